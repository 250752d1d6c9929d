// Package metrics exposes scrape and API counters for Prometheus.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var TargetsScraped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobchange_targets_total",
		Help: "Scrape targets processed, by outcome (scraped, skipped, fetch_failed)",
	},
	[]string{"outcome"},
)

var RecordsClassified = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobchange_records_total",
		Help: "Parsed job changes by dedup classification",
	},
	[]string{"classification"},
)

var FetchFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobchange_fetch_failures_total",
		Help: "Fetch failures by kind (network, auth, empty)",
	},
	[]string{"kind"},
)

var ParseWarnings = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "jobchange_parse_warnings_total",
		Help: "Payloads that yielded no records",
	},
)

var PersistFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "jobchange_persist_failures_total",
		Help: "Records that could not be stored",
	},
)

var FetchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "jobchange_fetch_duration_seconds",
		Help:    "Time spent fetching one target",
		Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80},
	},
)

var LastRunTimestamp = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "jobchange_last_run_timestamp_seconds",
		Help: "Unix time the last scrape run finished",
	},
)

var APIRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobchange_api_requests_total",
		Help: "API requests by route pattern and status code",
	},
	[]string{"route", "status"},
)

// Registry holds the collectors above plus Go runtime metrics.
var Registry = prometheus.NewRegistry()

var registerOnce sync.Once

// Register adds all collectors to Registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		Registry.MustRegister(
			TargetsScraped,
			RecordsClassified,
			FetchFailures,
			ParseWarnings,
			PersistFailures,
			FetchDuration,
			LastRunTimestamp,
			APIRequests,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Push sends the scrape collectors to a Prometheus pushgateway. Short-lived scrape
// processes use this instead of being scraped.
func Push(ctx context.Context, gatewayURL, job string) error {
	err := push.New(gatewayURL, job).
		Collector(TargetsScraped).
		Collector(RecordsClassified).
		Collector(FetchFailures).
		Collector(ParseWarnings).
		Collector(PersistFailures).
		Collector(FetchDuration).
		Collector(LastRunTimestamp).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
