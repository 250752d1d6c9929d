// Package scrape drives one scrape run: fetch each target, parse the payloads, resolve
// change dates and persist new job changes.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jonathan/job-change-tracker/internal/db"
	"github.com/jonathan/job-change-tracker/internal/dedup"
	"github.com/jonathan/job-change-tracker/internal/fetch"
	"github.com/jonathan/job-change-tracker/internal/metrics"
	"github.com/jonathan/job-change-tracker/internal/tracing"
	"github.com/jonathan/job-change-tracker/internal/types"
)

// Store is the persistence the runner needs.
type Store interface {
	dedup.LatestLookup
	GetCompanyByName(ctx context.Context, name string) (*db.Company, error)
	UpsertCompany(ctx context.Context, in db.CompanyUpsert) (*db.Company, error)
	InsertIfNew(ctx context.Context, rec types.JobChange) (dedup.Classification, *db.JobChange, error)
}

// RunRecorder stores scrape run history. Optional.
type RunRecorder interface {
	CreateScrapeRun(ctx context.Context) (uuid.UUID, error)
	CompleteScrapeRun(ctx context.Context, id uuid.UUID, status string, counts db.RunCounts, errMsg string) error
}

// Parser extracts records from a payload.
type Parser interface {
	Parse(payload fetch.Payload, company string) []types.JobChange
}

// Config tunes a run.
type Config struct {
	MaxResults      int           // per target, 0 means unlimited
	CompanyDelay    time.Duration // pause between targets
	IncludeInactive bool          // scrape targets whose company is deactivated
}

// TargetResult is the outcome of one target.
type TargetResult struct {
	Target          types.Target
	Skipped         bool
	FetchErr        error
	Payloads        int
	Parsed          int
	New             int
	Duplicates      int
	ParseWarnings   int
	PersistFailures int
}

// Summary aggregates a run.
type Summary struct {
	RunID   uuid.UUID
	Targets []TargetResult
}

// Counts totals the per-target results.
func (s *Summary) Counts() db.RunCounts {
	var c db.RunCounts
	for _, t := range s.Targets {
		if t.Skipped {
			continue
		}
		c.Targets++
		c.NewRecords += t.New
		c.Duplicates += t.Duplicates
		c.ParseWarnings += t.ParseWarnings
		c.PersistFailures += t.PersistFailures
		if t.FetchErr != nil {
			c.FetchFailures++
		}
	}
	return c
}

// Skipped returns the number of targets skipped because their company is inactive.
func (s *Summary) Skipped() int {
	n := 0
	for _, t := range s.Targets {
		if t.Skipped {
			n++
		}
	}
	return n
}

// Runner runs targets sequentially, one at a time.
type Runner struct {
	fetcher  fetch.Fetcher
	parser   Parser
	store    Store
	runs     RunRecorder
	resolver *dedup.Resolver
	cfg      Config
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner. runs may be nil.
func NewRunner(fetcher fetch.Fetcher, parser Parser, store Store, runs RunRecorder, cfg Config) *Runner {
	return &Runner{
		fetcher:  fetcher,
		parser:   parser,
		store:    store,
		runs:     runs,
		resolver: dedup.NewResolver(store),
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

// Run scrapes targets in order. Per-target fetch, parse and record failures are counted and
// the run continues. A lost database connection or a cancelled context stops the run.
// ErrNoProgress is returned when every attempted target failed to fetch.
func (r *Runner) Run(ctx context.Context, targets []types.Target) (*Summary, error) {
	ctx, span := tracing.Tracer().Start(ctx, "scrape.run")
	defer span.End()
	span.SetAttributes(attribute.Int("scrape.targets", len(targets)))

	summary := &Summary{}
	if r.runs != nil {
		id, err := r.runs.CreateScrapeRun(ctx)
		if err != nil {
			return summary, &PersistError{Target: "scrape run", Message: "failed to record run", Cause: err, Fatal: true}
		}
		summary.RunID = id
	}

	runErr := r.runTargets(ctx, targets, summary)
	r.finish(ctx, summary, runErr)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	return summary, runErr
}

func (r *Runner) runTargets(ctx context.Context, targets []types.Target, summary *Summary) error {
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scrape cancelled: %w", err)
		}
		if i > 0 {
			if err := r.sleep(ctx, r.cfg.CompanyDelay); err != nil {
				return fmt.Errorf("scrape cancelled: %w", err)
			}
		}

		res, err := r.scrapeTarget(ctx, target)
		summary.Targets = append(summary.Targets, res)
		if err != nil {
			return err
		}
	}

	c := summary.Counts()
	if c.Targets > 0 && c.FetchFailures == c.Targets {
		return ErrNoProgress
	}
	return nil
}

// finish records the outcome in the run history. Failures here are logged only.
func (r *Runner) finish(ctx context.Context, summary *Summary, runErr error) {
	metrics.LastRunTimestamp.SetToCurrentTime()
	if r.runs == nil {
		return
	}

	status, msg := db.RunStatusCompleted, ""
	if runErr != nil {
		status, msg = db.RunStatusFailed, runErr.Error()
	}

	// The run context may already be cancelled; the history write gets its own deadline.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.runs.CompleteScrapeRun(writeCtx, summary.RunID, status, summary.Counts(), msg); err != nil {
		tracing.Logf(ctx, "[SCRAPE] failed to record run %s: %v", summary.RunID, err)
	}
}

func (r *Runner) scrapeTarget(ctx context.Context, target types.Target) (TargetResult, error) {
	target = target.Canonical()
	ctx, span := tracing.Tracer().Start(ctx, "scrape.target")
	defer span.End()
	span.SetAttributes(attribute.String("company", target.Name), attribute.String("url", target.URL))

	res := TargetResult{Target: target}

	active, skip, err := r.companyState(ctx, target)
	if err != nil {
		return res, err
	}
	if skip {
		tracing.Logf(ctx, "[SCRAPE] %s: company is inactive, skipping", target.Name)
		metrics.TargetsScraped.WithLabelValues("skipped").Inc()
		res.Skipped = true
		return res, nil
	}

	url := target.URL
	if _, err := r.store.UpsertCompany(ctx, db.CompanyUpsert{Name: target.Name, LinkedInURL: &url, IsActive: active}); err != nil {
		if db.IsConnectionError(err) {
			return res, &PersistError{Target: target.Name, Message: "failed to upsert company", Cause: err, Fatal: true}
		}
		tracing.Logf(ctx, "[SCRAPE] %s: failed to upsert company: %v", target.Name, err)
	}

	start := time.Now()
	payloads, err := r.fetcher.Fetch(ctx, target)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("scrape cancelled: %w", ctx.Err())
		}
		kind := fetch.KindOf(err)
		if kind == "" {
			kind = fetch.KindNetwork
		}
		tracing.Logf(ctx, "[SCRAPE] %s: fetch failed (%s): %v", target.Name, kind, err)
		metrics.FetchFailures.WithLabelValues(string(kind)).Inc()
		metrics.TargetsScraped.WithLabelValues("fetch_failed").Inc()
		span.RecordError(err)
		res.FetchErr = err
		return res, nil
	}
	res.Payloads = len(payloads)

	records := r.parse(payloads, target, &res)
	if r.cfg.MaxResults > 0 && len(records) > r.cfg.MaxResults {
		records = records[:r.cfg.MaxResults]
	}
	res.Parsed = len(records)

	for _, rec := range records {
		if err := r.persist(ctx, rec, &res); err != nil {
			return res, err
		}
	}

	metrics.TargetsScraped.WithLabelValues("scraped").Inc()
	tracing.Logf(ctx, "[SCRAPE] %s: %d parsed, %d new, %d duplicates, %d failed",
		target.Name, res.Parsed, res.New, res.Duplicates, res.PersistFailures)
	return res, nil
}

// companyState decides whether to scrape a target and which active flag to upsert.
// Deactivated companies are skipped unless IncludeInactive is set, in which case they
// stay inactive.
func (r *Runner) companyState(ctx context.Context, target types.Target) (active, skip bool, err error) {
	company, err := r.store.GetCompanyByName(ctx, target.Name)
	if err != nil {
		if db.IsConnectionError(err) {
			return false, false, &PersistError{Target: target.Name, Message: "failed to load company", Cause: err, Fatal: true}
		}
		tracing.Logf(ctx, "[SCRAPE] %s: failed to load company: %v", target.Name, err)
		return true, false, nil
	}
	if company == nil || company.IsActive {
		return true, false, nil
	}
	return false, !r.cfg.IncludeInactive, nil
}

func (r *Runner) parse(payloads []fetch.Payload, target types.Target, res *TargetResult) []types.JobChange {
	if len(payloads) == 0 {
		res.ParseWarnings++
		metrics.ParseWarnings.Inc()
		return nil
	}
	var records []types.JobChange
	for _, p := range payloads {
		recs := r.parser.Parse(p, target.Name)
		if len(recs) == 0 {
			res.ParseWarnings++
			metrics.ParseWarnings.Inc()
			continue
		}
		records = append(records, recs...)
	}
	return records
}

// persist resolves and stores one record. Only a lost connection is returned as an error.
func (r *Runner) persist(ctx context.Context, rec types.JobChange, res *TargetResult) error {
	rec, err := r.resolver.Resolve(ctx, rec)
	if err == nil {
		var class dedup.Classification
		class, _, err = r.store.InsertIfNew(ctx, rec)
		if err == nil {
			switch class {
			case dedup.New:
				res.New++
			case dedup.Duplicate:
				res.Duplicates++
			}
			metrics.RecordsClassified.WithLabelValues(class.String()).Inc()
			return nil
		}
	}

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("scrape cancelled: %w", err)
	}
	if db.IsConnectionError(err) {
		return &PersistError{Target: res.Target.Name, Message: "database connection lost", Cause: err, Fatal: true}
	}

	reason := "failed to store record"
	if db.IsConstraintViolation(err) {
		reason = "constraint violation"
	}
	tracing.Logf(ctx, "[SCRAPE] %s: %s for %s: %v", res.Target.Name, reason, rec.PersonName, err)
	metrics.PersistFailures.Inc()
	res.PersistFailures++
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
