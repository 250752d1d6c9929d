// Package tracing sets up OpenTelemetry tracing for scrape runs.
package tracing

import (
	"context"
	"fmt"
	"log"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// EndpointEnv names the collector endpoint variable. Tracing stays off when it is unset.
const EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

const instrumentationName = "github.com/jonathan/job-change-tracker"

var traceProvider *sdktrace.TracerProvider

// Tracer returns the tracer used by the scrape pipeline. It is a no-op until Init succeeds.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Init installs an OTLP/HTTP exporter when OTEL_EXPORTER_OTLP_ENDPOINT is set and reports
// whether tracing is enabled.
func Init(ctx context.Context, serviceName string) (bool, error) {
	endpoint := os.Getenv(EndpointEnv)
	if endpoint == "" {
		return false, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	traceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(traceProvider)

	log.Printf("[TRACE] OpenTelemetry tracing initialized (endpoint %s)", endpoint)
	return true, nil
}

// Shutdown flushes pending spans.
func Shutdown(ctx context.Context) {
	if traceProvider == nil {
		return
	}
	if err := traceProvider.Shutdown(ctx); err != nil {
		log.Printf("[TRACE] error shutting down tracer: %v", err)
	}
}

// Logf logs with the trace id of the span in ctx, when there is one.
func Logf(ctx context.Context, format string, args ...any) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		log.Printf(format, args...)
		return
	}
	log.Printf("trace_id=%s "+format, append([]any{sc.TraceID().String()}, args...)...)
}
