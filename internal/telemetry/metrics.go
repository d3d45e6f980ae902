// Package telemetry holds the OpenTelemetry instruments for zoonotes.
//
// Instruments are created from an explicit [metric.MeterProvider] so tests can
// read them back through a ManualReader. [InitProvider] bridges them to a
// Prometheus registry that the HTTP server exposes on /metrics.
//
// A nil *Metrics is valid and records nothing; the engine and extraction
// pipeline accept nil when metrics are not wanted.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hurttlocker/zoonotes/internal/entity"
)

// meterName is the instrumentation scope used for every zoonotes instrument.
const meterName = "github.com/hurttlocker/zoonotes"

// Metrics holds the metric instruments. All fields are safe for concurrent
// use.
type Metrics struct {
	// EntitiesExtracted counts entities by extractor and kind.
	EntitiesExtracted metric.Int64Counter

	// ExtractorFailures counts swallowed extractor failures by extractor.
	ExtractorFailures metric.Int64Counter

	// TranscriptsProcessed counts engine runs by status (ok, malformed).
	TranscriptsProcessed metric.Int64Counter

	// ProcessingDuration tracks extraction plus synthesis latency.
	ProcessingDuration metric.Float64Histogram

	// JobTransitions counts job state changes by target status.
	JobTransitions metric.Int64Counter

	// ActiveJobs tracks jobs currently in PROCESSING.
	ActiveJobs metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency by method and route.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are in seconds. Text-only runs land in the low buckets;
// runs with the ONNX annotator reach the hundreds of milliseconds.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.EntitiesExtracted, err = m.Int64Counter("zoonotes.entities.extracted",
		metric.WithDescription("Entities produced by extractor and kind."),
	); err != nil {
		return nil, err
	}
	if met.ExtractorFailures, err = m.Int64Counter("zoonotes.extractor.failures",
		metric.WithDescription("Extractor failures that were swallowed by the pipeline."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptsProcessed, err = m.Int64Counter("zoonotes.transcripts.processed",
		metric.WithDescription("Transcripts processed by status."),
	); err != nil {
		return nil, err
	}
	if met.ProcessingDuration, err = m.Float64Histogram("zoonotes.processing.duration",
		metric.WithDescription("Latency of extraction and synthesis for one transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.JobTransitions, err = m.Int64Counter("zoonotes.jobs.transitions",
		metric.WithDescription("Job state transitions by target status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveJobs, err = m.Int64UpDownCounter("zoonotes.jobs.active",
		metric.WithDescription("Jobs currently processing."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("zoonotes.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordEntities adds one count per entity, grouped by kind.
func (m *Metrics) RecordEntities(ctx context.Context, extractor string, entities []entity.Entity) {
	if m == nil || len(entities) == 0 {
		return
	}
	counts := make(map[entity.Kind]int64)
	for _, e := range entities {
		counts[e.Kind]++
	}
	for kind, n := range counts {
		m.EntitiesExtracted.Add(ctx, n, metric.WithAttributes(
			attribute.String("extractor", extractor),
			attribute.String("kind", string(kind)),
		))
	}
}

// RecordExtractorFailure counts one swallowed extractor failure.
func (m *Metrics) RecordExtractorFailure(ctx context.Context, extractor string) {
	if m == nil {
		return
	}
	m.ExtractorFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("extractor", extractor)))
}

// RecordProcessing records one engine run.
func (m *Metrics) RecordProcessing(ctx context.Context, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.TranscriptsProcessed.Add(ctx, 1, attrs)
	m.ProcessingDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordJobTransition counts a job entering status and keeps ActiveJobs in
// step with the PROCESSING state.
func (m *Metrics) RecordJobTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.JobTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", to)))
	const processing = "PROCESSING"
	switch {
	case to == processing && from != processing:
		m.ActiveJobs.Add(ctx, 1)
	case from == processing && to != processing:
		m.ActiveJobs.Add(ctx, -1)
	}
}
