package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ExporterConfig configures the OTLP span exporter backing a process-wide
// TracerProvider (spec §9: tracing is a "process-wide singleton" with a
// batch_timeout/batch-size contract). Endpoint follows
// OTEL_EXPORTER_OTLP_ENDPOINT when empty.
type ExporterConfig struct {
	Endpoint     string
	Insecure     bool
	BatchTimeout time.Duration
	MaxBatchSize int
	ServiceName  string
}

func (c ExporterConfig) withDefaults() ExporterConfig {
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 5 * time.Second
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 512
	}
	if c.ServiceName == "" {
		c.ServiceName = "agentrun"
	}
	return c
}

// NewOTLPTracerProvider builds a BatchSpanProcessor-backed TracerProvider
// exporting over OTLP/HTTP. The exporter's own retry policy (base 1s, max
// 3 attempts, per spec §6's "tracing ingest" note) is configured via
// otlptracehttp.WithRetry rather than reimplemented, since the exporter
// already knows how to distinguish retryable transport failures from
// permanent ones.
//
// The caller is responsible for calling the returned shutdown func (which
// force-flushes pending spans) before process exit.
func NewOTLPTracerProvider(ctx context.Context, cfg ExporterConfig) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	cfg = cfg.withDefaults()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 1 * time.Second,
			MaxInterval:     8 * time.Second,
			MaxElapsedTime:  3 * (1 * time.Second), // base 1s, max 3 attempts
		}),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: building otlp exporter: %w", err)
	}

	tp := newBatchedTracerProvider(exporter, cfg)
	return tp, tp.Shutdown, nil
}

// newBatchedTracerProvider wires any sdktrace.SpanExporter into a
// BatchSpanProcessor-backed TracerProvider using cfg's batching knobs.
// Split out of NewOTLPTracerProvider so tests can exercise the batching
// and resource-tagging behaviour against an in-memory exporter instead of
// a live OTLP endpoint.
func newBatchedTracerProvider(exporter sdktrace.SpanExporter, cfg ExporterConfig) *sdktrace.TracerProvider {
	cfg = cfg.withDefaults()
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(cfg.MaxBatchSize),
		),
		sdktrace.WithResource(res),
	)
}
