package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/job-change-tracker/internal/config"
	"github.com/jonathan/job-change-tracker/internal/fetch"
	"github.com/jonathan/job-change-tracker/internal/metrics"
	"github.com/jonathan/job-change-tracker/internal/parsing"
	"github.com/jonathan/job-change-tracker/internal/scrape"
	"github.com/jonathan/job-change-tracker/internal/tracing"
	"github.com/spf13/cobra"
)

// pushJob is the Pushgateway job name of scrape runs.
const pushJob = "jobchange_scrape"

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape tracked companies and record new job changes",
	Long: `Fetch the configured LinkedIn pages one company at a time, extract job-change records and
store the ones not seen before. Targets come from the config file, COMPANIES_TO_TRACK and --company.

Exits non-zero when every target failed to fetch or the database connection was lost.`,
	RunE: runScrape,
}

var (
	scrapeTargets         []string
	scrapeMaxResults      int
	scrapeDelay           string
	scrapeCompanyDelay    string
	scrapeFetcher         string
	scrapeHeadless        bool
	scrapePages           int
	scrapeIncludeInactive bool
	scrapeLockFile        string
	scrapePushgateway     string
)

func init() {
	scrapeCmd.Flags().StringArrayVar(&scrapeTargets, "company", nil, "Target as Name=URL (repeatable)")
	scrapeCmd.Flags().IntVar(&scrapeMaxResults, "max-results", 0, "Maximum records per company (0 = unlimited)")
	scrapeCmd.Flags().StringVar(&scrapeDelay, "delay", "", "Delay between requests, in seconds or as a duration")
	scrapeCmd.Flags().StringVar(&scrapeCompanyDelay, "company-delay", "", "Pause between companies (default twice --delay)")
	scrapeCmd.Flags().StringVar(&scrapeFetcher, "fetcher", "", "Fetcher to use: browser or http")
	scrapeCmd.Flags().BoolVar(&scrapeHeadless, "headless", true, "Run the browser headless")
	scrapeCmd.Flags().IntVar(&scrapePages, "pages", 1, "Result pages per target (http fetcher)")
	scrapeCmd.Flags().BoolVar(&scrapeIncludeInactive, "include-inactive", false, "Also scrape deactivated companies")
	scrapeCmd.Flags().StringVar(&scrapeLockFile, "lock-file", "", "Refuse to start while another run holds this lock")
	scrapeCmd.Flags().StringVar(&scrapePushgateway, "pushgateway", "", "Push run metrics to this Prometheus Pushgateway URL")

	rootCmd.AddCommand(scrapeCmd)
}

// applyScrapeFlags overrides cfg with the scrape flags that were set explicitly.
func applyScrapeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("max-results") {
		cfg.MaxResults = scrapeMaxResults
	}
	if flags.Changed("delay") {
		d, err := config.ParseDelay(scrapeDelay)
		if err != nil {
			return fmt.Errorf("invalid --delay: %w", err)
		}
		cfg.Delay = d
	}
	if flags.Changed("company-delay") {
		d, err := config.ParseDelay(scrapeCompanyDelay)
		if err != nil {
			return fmt.Errorf("invalid --company-delay: %w", err)
		}
		cfg.CompanyDelay = d
	}
	if flags.Changed("fetcher") {
		cfg.Fetcher = scrapeFetcher
	}
	if flags.Changed("headless") {
		cfg.Chrome.Headless = scrapeHeadless
	}
	if flags.Changed("pages") {
		cfg.Pages = scrapePages
	}
	if flags.Changed("include-inactive") {
		cfg.IncludeInactive = scrapeIncludeInactive
	}
	if flags.Changed("lock-file") {
		cfg.LockFile = scrapeLockFile
	}
	if flags.Changed("pushgateway") {
		cfg.Pushgateway = scrapePushgateway
	}

	targets, err := parseTargetFlags(scrapeTargets)
	if err != nil {
		return err
	}
	cfg.MergeTargets(targets)
	return nil
}

// newFetcher builds the configured fetcher. The browser fetcher logs in with the stored
// LinkedIn credentials when there are any.
func newFetcher(cfg *config.Config) (fetch.Fetcher, error) {
	opts := cfg.FetchOptions()
	if cfg.Fetcher == config.FetcherHTTP {
		return fetch.NewHTTPFetcher(opts), nil
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds.IsZero() {
		log.Printf("[SCRAPE] no LinkedIn credentials stored, browsing anonymously")
	}
	return fetch.NewBrowserFetcher(opts, creds), nil
}

func runScrape(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyScrapeFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("no targets configured: add targets to the config file, %s or --company", config.EnvTargets)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.LockFile != "" {
		release, err := scrape.AcquireLock(cfg.LockFile)
		if err != nil {
			return err
		}
		defer release()
	}

	enabled, err := tracing.Init(ctx, "jobchange")
	if err != nil {
		log.Printf("[SCRAPE] tracing disabled: %v", err)
	} else if enabled {
		defer tracing.Shutdown(context.WithoutCancel(ctx))
	}
	metrics.Register()

	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			log.Printf("[SCRAPE] failed to close fetcher: %v", err)
		}
	}()

	runner := scrape.NewRunner(fetcher, parsing.New(cfg.Selectors), database, database, cfg.RunnerConfig())
	summary, runErr := runner.Run(ctx, cfg.Targets)
	writeSummary(cmd.OutOrStdout(), summary)

	if cfg.Pushgateway != "" {
		if err := metrics.Push(context.WithoutCancel(ctx), cfg.Pushgateway, pushJob); err != nil {
			log.Printf("[SCRAPE] %v", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("scrape failed: %w", runErr)
	}
	return nil
}
