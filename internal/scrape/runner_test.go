package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-change-tracker/internal/db"
	"github.com/jonathan/job-change-tracker/internal/dedup"
	"github.com/jonathan/job-change-tracker/internal/fetch"
	"github.com/jonathan/job-change-tracker/internal/types"
)

var runDay = time.Date(2024, 5, 20, 15, 30, 0, 0, time.UTC)

// memStore is an in-memory Store that classifies with the real dedup package.
type memStore struct {
	mu        sync.Mutex
	companies map[string]*db.Company
	rows      []types.JobChange
	keys      map[string]bool
	insertErr error
	getErr    error
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{companies: map[string]*db.Company{}, keys: map[string]bool{}}
}

func (m *memStore) ExistsByKey(_ context.Context, key dedup.Key) (bool, error) {
	return m.keys[key.Hash()], nil
}

func (m *memStore) LatestForPerson(_ context.Context, person, company string) (*dedup.Latest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *dedup.Latest
	for _, r := range m.rows {
		if r.Company != company || dedup.Normalize(r.PersonName) != dedup.Normalize(person) {
			continue
		}
		if latest == nil || r.ChangeDate.After(latest.ChangeDate) {
			latest = &dedup.Latest{NewPosition: r.NewPosition, ChangeDate: *r.ChangeDate}
		}
	}
	return latest, nil
}

func (m *memStore) GetCompanyByName(_ context.Context, name string) (*db.Company, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.companies[name]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) UpsertCompany(_ context.Context, in db.CompanyUpsert) (*db.Company, error) {
	c, ok := m.companies[in.Name]
	if !ok {
		m.nextID++
		c = &db.Company{ID: m.nextID, Name: in.Name}
		m.companies[in.Name] = c
	}
	c.IsActive = in.IsActive
	if in.LinkedInURL != nil {
		c.LinkedInURL = in.LinkedInURL
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) InsertIfNew(ctx context.Context, rec types.JobChange) (dedup.Classification, *db.JobChange, error) {
	if m.insertErr != nil {
		return dedup.New, nil, m.insertErr
	}
	class, err := dedup.Classify(ctx, rec, m)
	if err != nil || class == dedup.Duplicate {
		return class, nil, err
	}
	key, _ := dedup.KeyFor(rec)
	m.mu.Lock()
	m.keys[key.Hash()] = true
	m.rows = append(m.rows, rec)
	m.nextID++
	id := m.nextID
	m.mu.Unlock()
	if _, ok := m.companies[rec.Company]; !ok {
		m.companies[rec.Company] = &db.Company{Name: rec.Company, IsActive: true}
	}
	return dedup.New, &db.JobChange{ID: id, Name: rec.PersonName, Company: rec.Company, IsNew: true}, nil
}

type fetchResult struct {
	payloads []fetch.Payload
	err      error
}

type fakeFetcher struct {
	results map[string]fetchResult
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, target types.Target) ([]fetch.Payload, error) {
	f.calls = append(f.calls, target.Name)
	r, ok := f.results[target.Name]
	if !ok {
		return []fetch.Payload{{URL: target.URL}}, nil
	}
	return r.payloads, r.err
}

func (f *fakeFetcher) Close() error { return nil }

// fakeParser returns the records registered for a payload URL.
type fakeParser map[string][]types.JobChange

func (p fakeParser) Parse(payload fetch.Payload, company string) []types.JobChange {
	var out []types.JobChange
	for _, r := range p[payload.URL] {
		r.Company = company
		out = append(out, r)
	}
	return out
}

type runRecord struct {
	status string
	counts db.RunCounts
	errMsg string
}

type fakeRuns struct {
	created   int
	completed map[uuid.UUID]runRecord
}

func (f *fakeRuns) CreateScrapeRun(context.Context) (uuid.UUID, error) {
	f.created++
	return uuid.New(), nil
}

func (f *fakeRuns) CompleteScrapeRun(_ context.Context, id uuid.UUID, status string, counts db.RunCounts, errMsg string) error {
	if f.completed == nil {
		f.completed = map[uuid.UUID]runRecord{}
	}
	f.completed[id] = runRecord{status: status, counts: counts, errMsg: errMsg}
	return nil
}

func dated(name, position, day string) types.JobChange {
	d, err := types.ParseDate(day)
	if err != nil {
		panic(err)
	}
	return types.JobChange{PersonName: name, NewPosition: position}.WithChangeDate(d)
}

func target(name string) types.Target {
	return types.Target{Name: name, URL: "https://www.linkedin.com/company/" + name}
}

func newTestRunner(f fetch.Fetcher, p Parser, s Store, runs RunRecorder, cfg Config) (*Runner, *[]time.Duration) {
	r := NewRunner(f, p, s, runs, cfg)
	r.resolver.Now = func() time.Time { return runDay }
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func TestRun_AcmeScenario(t *testing.T) {
	store := newMemStore()
	acme := target("Acme")
	parser := fakeParser{acme.URL: {dated("Jane Doe", "Engineer", "2024-01-01")}}
	runs := &fakeRuns{}
	r, _ := newTestRunner(&fakeFetcher{}, parser, store, runs, Config{})

	summary, err := r.Run(context.Background(), []types.Target{acme})
	require.NoError(t, err)

	c := summary.Counts()
	assert.Equal(t, 1, c.NewRecords)
	assert.Equal(t, 0, c.Duplicates)
	assert.Equal(t, 0, c.PersistFailures)
	require.Len(t, store.rows, 1)
	assert.Equal(t, "Acme", store.rows[0].Company)

	company := store.companies["Acme"]
	require.NotNil(t, company)
	assert.True(t, company.IsActive)
	assert.Equal(t, acme.URL, *company.LinkedInURL)

	require.Contains(t, runs.completed, summary.RunID)
	assert.Equal(t, db.RunStatusCompleted, runs.completed[summary.RunID].status)
	assert.Equal(t, 1, runs.completed[summary.RunID].counts.NewRecords)

	// Same record on the next run
	summary, err = r.Run(context.Background(), []types.Target{acme})
	require.NoError(t, err)
	c = summary.Counts()
	assert.Equal(t, 0, c.NewRecords)
	assert.Equal(t, 1, c.Duplicates)
	assert.Equal(t, 0, c.PersistFailures)
	assert.Len(t, store.rows, 1)
}

func TestRun_UndatedRecordsAreIdempotent(t *testing.T) {
	store := newMemStore()
	acme := target("Acme")
	parser := fakeParser{acme.URL: {
		{PersonName: "Jane Doe", NewPosition: "Engineer"},
		{PersonName: "John Roe", NewPosition: "Manager"},
	}}
	r, _ := newTestRunner(&fakeFetcher{}, parser, store, nil, Config{})

	first, err := r.Run(context.Background(), []types.Target{acme})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Counts().NewRecords)
	for _, row := range store.rows {
		assert.Equal(t, "2024-05-20", row.ChangeDate.Format(types.DateLayout), "undated records take the run date")
	}

	// A later run on another day must still see them as duplicates
	r.resolver.Now = func() time.Time { return runDay.AddDate(0, 0, 3) }
	second, err := r.Run(context.Background(), []types.Target{acme})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Counts().NewRecords)
	assert.Equal(t, 2, second.Counts().Duplicates)
	assert.Len(t, store.rows, 2)
}

func TestRun_PaddedTargetNameIsCanonical(t *testing.T) {
	store := newMemStore()
	padded := types.Target{Name: "  Acme   Corp ", URL: "https://www.linkedin.com/company/acme"}
	parser := fakeParser{padded.URL: {{PersonName: "Jane Doe", NewPosition: "Engineer"}}}
	r, _ := newTestRunner(&fakeFetcher{}, parser, store, nil, Config{})

	first, err := r.Run(context.Background(), []types.Target{padded})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Counts().NewRecords)
	require.Len(t, store.rows, 1)
	assert.Equal(t, "Acme Corp", store.rows[0].Company)
	assert.Len(t, store.companies, 1)
	assert.Contains(t, store.companies, "Acme Corp")

	// The same padded target on a later day resolves against the stored record
	r.resolver.Now = func() time.Time { return runDay.AddDate(0, 0, 2) }
	second, err := r.Run(context.Background(), []types.Target{padded})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Counts().NewRecords)
	assert.Equal(t, 1, second.Counts().Duplicates)
	assert.Len(t, store.rows, 1)
	assert.Len(t, store.companies, 1)
}

func TestRun_PositionChangeInfersOldPosition(t *testing.T) {
	store := newMemStore()
	acme := target("Acme")
	store.rows = append(store.rows, dated("Jane Doe", "Engineer", "2024-01-01"))
	store.rows[0].Company = "Acme"

	parser := fakeParser{acme.URL: {{PersonName: "Jane Doe", NewPosition: "Engineering Manager"}}}
	r, _ := newTestRunner(&fakeFetcher{}, parser, store, nil, Config{})

	summary, err := r.Run(context.Background(), []types.Target{acme})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts().NewRecords)

	require.Len(t, store.rows, 2)
	stored := store.rows[1]
	require.NotNil(t, stored.OldPosition)
	assert.Equal(t, "Engineer", *stored.OldPosition)
	assert.Equal(t, "2024-05-20", stored.ChangeDate.Format(types.DateLayout))
}

func TestRun_InactiveCompanySkipped(t *testing.T) {
	store := newMemStore()
	store.companies["Globex"] = &db.Company{Name: "Globex", IsActive: false}
	globex := target("Globex")
	parser := fakeParser{globex.URL: {dated("Ann Lee", "Designer", "2024-02-02")}}
	fetcher := &fakeFetcher{}
	r, _ := newTestRunner(fetcher, parser, store, nil, Config{})

	summary, err := r.Run(context.Background(), []types.Target{globex})
	require.NoError(t, err, "a skipped target is not a fetch failure")
	assert.Equal(t, 1, summary.Skipped())
	assert.Empty(t, fetcher.calls)
	assert.Empty(t, store.rows)
	assert.False(t, store.companies["Globex"].IsActive)
}

func TestRun_IncludeInactiveKeepsFlag(t *testing.T) {
	store := newMemStore()
	store.companies["Globex"] = &db.Company{Name: "Globex", IsActive: false}
	globex := target("Globex")
	parser := fakeParser{globex.URL: {dated("Ann Lee", "Designer", "2024-02-02")}}
	r, _ := newTestRunner(&fakeFetcher{}, parser, store, nil, Config{IncludeInactive: true})

	summary, err := r.Run(context.Background(), []types.Target{globex})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Skipped())
	assert.Equal(t, 1, summary.Counts().NewRecords)
	assert.False(t, store.companies["Globex"].IsActive, "scraping must not reactivate a company")
}

func TestRun_FetchFailureContinues(t *testing.T) {
	store := newMemStore()
	acme, globex := target("Acme"), target("Globex")
	fetcher := &fakeFetcher{results: map[string]fetchResult{
		"Acme": {err: &fetch.Error{Kind: fetch.KindAuth, URL: acme.URL, Message: "authwall"}},
	}}
	parser := fakeParser{globex.URL: {dated("Ann Lee", "Designer", "2024-02-02")}}
	r, _ := newTestRunner(fetcher, parser, store, nil, Config{})

	summary, err := r.Run(context.Background(), []types.Target{acme, globex})
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Globex"}, fetcher.calls)

	c := summary.Counts()
	assert.Equal(t, 2, c.Targets)
	assert.Equal(t, 1, c.FetchFailures)
	assert.Equal(t, 1, c.NewRecords)
	assert.True(t, fetch.IsKind(summary.Targets[0].FetchErr, fetch.KindAuth))
}

func TestRun_NoProgress(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{results: map[string]fetchResult{
		"Acme":   {err: errors.New("connection reset")},
		"Globex": {err: &fetch.Error{Kind: fetch.KindNetwork, Message: "timeout"}},
	}}
	runs := &fakeRuns{}
	r, _ := newTestRunner(fetcher, fakeParser{}, store, runs, Config{})

	summary, err := r.Run(context.Background(), []types.Target{target("Acme"), target("Globex")})
	require.ErrorIs(t, err, ErrNoProgress)
	assert.Equal(t, 2, summary.Counts().FetchFailures)
	assert.Equal(t, db.RunStatusFailed, runs.completed[summary.RunID].status)
}

func TestRun_EmptyResultSetsAreFetchFailures(t *testing.T) {
	store := newMemStore()
	acme, globex := target("Acme"), target("Globex")
	fetcher := &fakeFetcher{results: map[string]fetchResult{
		"Acme":   {err: &fetch.Error{Kind: fetch.KindEmpty, URL: acme.URL, Message: "no result cards rendered"}},
		"Globex": {err: &fetch.Error{Kind: fetch.KindEmpty, URL: globex.URL, Message: "no result cards rendered"}},
	}}
	runs := &fakeRuns{}
	r, _ := newTestRunner(fetcher, fakeParser{}, store, runs, Config{})

	summary, err := r.Run(context.Background(), []types.Target{acme, globex})
	require.ErrorIs(t, err, ErrNoProgress)
	c := summary.Counts()
	assert.Equal(t, 2, c.FetchFailures)
	assert.Equal(t, 0, c.ParseWarnings)
	assert.True(t, fetch.IsKind(summary.Targets[1].FetchErr, fetch.KindEmpty))
	assert.Equal(t, db.RunStatusFailed, runs.completed[summary.RunID].status)
}

func TestRun_EmptyPayloadProceeds(t *testing.T) {
	store := newMemStore()
	acme, globex := target("Acme"), target("Globex")
	parser := fakeParser{globex.URL: {dated("Ann Lee", "Designer", "2024-02-02")}}
	r, _ := newTestRunner(&fakeFetcher{}, parser, store, nil, Config{})

	summary, err := r.Run(context.Background(), []types.Target{acme, globex})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Targets[0].ParseWarnings)
	assert.Equal(t, 0, summary.Targets[0].Parsed)
	assert.Equal(t, 1, summary.Counts().NewRecords)
}

func TestRun_MaxResultsTruncates(t *testing.T) {
	store := newMemStore()
	acme := target("Acme")
	var records []types.JobChange
	for i := 0; i < 5; i++ {
		records = append(records, dated(fmt.Sprintf("Person %d", i), "Engineer", "2024-01-01"))
	}
	r, _ := newTestRunner(&fakeFetcher{}, fakeParser{acme.URL: records}, store, nil, Config{MaxResults: 3})

	summary, err := r.Run(context.Background(), []types.Target{acme})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Targets[0].Parsed)
	assert.Len(t, store.rows, 3)
}

func TestRun_CompanyDelayBetweenTargets(t *testing.T) {
	r, slept := newTestRunner(&fakeFetcher{}, fakeParser{}, newMemStore(), nil, Config{CompanyDelay: 4 * time.Second})

	_, _ = r.Run(context.Background(), []types.Target{target("A"), target("B"), target("C")})
	assert.Equal(t, []time.Duration{4 * time.Second, 4 * time.Second}, *slept)
}

func TestRun_ConnectionLossIsFatal(t *testing.T) {
	store := newMemStore()
	store.insertErr = fmt.Errorf("failed to begin transaction: %w", io.ErrUnexpectedEOF)
	acme, globex := target("Acme"), target("Globex")
	parser := fakeParser{acme.URL: {dated("Jane Doe", "Engineer", "2024-01-01")}}
	fetcher := &fakeFetcher{}
	runs := &fakeRuns{}
	r, _ := newTestRunner(fetcher, parser, store, runs, Config{})

	summary, err := r.Run(context.Background(), []types.Target{acme, globex})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, []string{"Acme"}, fetcher.calls, "run stops after a fatal error")
	assert.Equal(t, db.RunStatusFailed, runs.completed[summary.RunID].status)
}

func TestRun_ConstraintViolationCounted(t *testing.T) {
	store := newMemStore()
	store.insertErr = fmt.Errorf("failed to insert job change: %w", &pgconn.PgError{Code: "23503"})
	acme := target("Acme")
	parser := fakeParser{acme.URL: {
		dated("Jane Doe", "Engineer", "2024-01-01"),
		dated("John Roe", "Manager", "2024-01-01"),
	}}
	r, _ := newTestRunner(&fakeFetcher{}, parser, store, nil, Config{})

	summary, err := r.Run(context.Background(), []types.Target{acme})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts().PersistFailures)
	assert.False(t, IsFatal(err))
}

func TestRun_LookupConnectionLossIsFatal(t *testing.T) {
	store := newMemStore()
	store.getErr = &pgconn.PgError{Code: "08006"}
	fetcher := &fakeFetcher{}
	r, _ := newTestRunner(fetcher, fakeParser{}, store, nil, Config{})

	_, err := r.Run(context.Background(), []types.Target{target("Acme")})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Empty(t, fetcher.calls)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	r, _ := newTestRunner(fetcher, fakeParser{}, newMemStore(), nil, Config{})

	_, err := r.Run(ctx, []types.Target{target("Acme")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.calls)
}

func TestRun_IdenticalKeysStoredOnce(t *testing.T) {
	store := newMemStore()
	acme := target("Acme")
	parser := fakeParser{acme.URL: {
		dated("Jane Doe", "Engineer", "2024-01-01"),
		dated("  jane  doe", "ENGINEER", "2024-01-01"),
		dated("Jane Doe", "Engineer", "2024-01-01"),
	}}
	r, _ := newTestRunner(&fakeFetcher{}, parser, store, nil, Config{})

	for i := 0; i < 3; i++ {
		_, err := r.Run(context.Background(), []types.Target{acme})
		require.NoError(t, err)
	}
	assert.Len(t, store.rows, 1)

	keys := make([]string, 0, len(store.keys))
	for k := range store.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Len(t, keys, 1)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
