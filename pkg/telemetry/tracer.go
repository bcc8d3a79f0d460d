package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TracerName names the tracer this engine's spans are recorded under.
	TracerName = "agentrun"
)

// GetTracer returns the tracer an agent run's spans should be recorded on.
// If telemetry is disabled, returns a no-op tracer. If Settings carries an
// explicit Tracer (e.g. wired to an in-memory exporter in tests), returns
// that. Otherwise returns the process-wide tracer installed via
// otel.SetTracerProvider (see provider.go).
func GetTracer(settings *Settings) trace.Tracer {
	if settings == nil || !settings.IsEnabled {
		return noop.NewTracerProvider().Tracer(TracerName)
	}

	if settings.Tracer != nil {
		return settings.Tracer
	}

	return otel.Tracer(TracerName)
}
