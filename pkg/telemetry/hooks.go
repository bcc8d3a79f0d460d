package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpanType enumerates the kinds of span the Runner may record (spec §3
// Trace/Span entities).
type SpanType string

const (
	SpanAgent      SpanType = "agent"
	SpanFunction   SpanType = "function"
	SpanGeneration SpanType = "generation"
	SpanResponse   SpanType = "response"
	SpanHandoff    SpanType = "handoff"
	SpanGuardrail  SpanType = "guardrail"
	SpanTool       SpanType = "tool"
	SpanApiRequest SpanType = "api_request"
)

// Hooks is the tracing side-channel (spec Component J). Every method is
// fire-and-forget from the Runner's perspective: it must never block the
// turn loop and never fail the run, so every call recovers its own panics
// and every call that can block (the underlying OTel exporter) runs off
// the hot path.
type Hooks struct {
	settings *Settings
	tracer   trace.Tracer

	mu        sync.Mutex
	openSpans map[string]trace.Span
}

// NewHooks builds a Hooks bound to settings. When settings is nil or
// disabled, every method becomes a no-op returning empty IDs, per spec
// §4.J ("a disabled tracing subsystem returns nil for IDs").
func NewHooks(settings *Settings) *Hooks {
	return &Hooks{
		settings:  settings,
		tracer:    GetTracer(settings),
		openSpans: make(map[string]trace.Span),
	}
}

func (h *Hooks) enabled() bool {
	return h.settings != nil && h.settings.IsEnabled
}

// StartTrace opens the root span for a run and returns a trace_<hex> ID.
func (h *Hooks) StartTrace(ctx context.Context, agentName string, input string) (context.Context, string) {
	if !h.enabled() {
		return ctx, ""
	}
	defer h.recover()

	traceID := "trace_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	attrs := []attribute.KeyValue{attribute.String("agentrun.agent_name", agentName)}
	if h.settings.RecordInputs {
		attrs = append(attrs, attribute.String("agentrun.input", input))
	}
	newCtx, span := h.tracer.Start(ctx, "agent_run", trace.WithAttributes(attrs...))

	h.mu.Lock()
	h.openSpans[traceID] = span
	h.mu.Unlock()

	return newCtx, traceID
}

// EndTrace ends the root span identified by traceID.
func (h *Hooks) EndTrace(traceID string, result string) {
	if !h.enabled() || traceID == "" {
		return
	}
	defer h.recover()
	h.endSpan(traceID, result)
}

// RecordSpan opens a child span of the given type and returns a
// span_<hex> ID.
func (h *Hooks) RecordSpan(ctx context.Context, spanType SpanType, data map[string]interface{}) string {
	if !h.enabled() {
		return ""
	}
	defer h.recover()

	spanID := "span_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	attrs := []attribute.KeyValue{attribute.String("agentrun.span_type", string(spanType))}
	if h.settings.RecordInputs {
		for k, v := range data {
			attrs = append(attrs, attribute.String("agentrun.data."+k, fmt.Sprintf("%v", v)))
		}
	}
	_, span := h.tracer.Start(ctx, string(spanType), trace.WithAttributes(attrs...))

	h.mu.Lock()
	h.openSpans[spanID] = span
	h.mu.Unlock()

	return spanID
}

// EndSpan ends the span identified by spanID.
func (h *Hooks) EndSpan(spanID string, result string) {
	if !h.enabled() || spanID == "" {
		return
	}
	defer h.recover()
	h.endSpan(spanID, result)
}

func (h *Hooks) endSpan(id string, result string) {
	h.mu.Lock()
	span, ok := h.openSpans[id]
	if ok {
		delete(h.openSpans, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	if h.settings.RecordOutputs && result != "" {
		span.SetAttributes(attribute.String("agentrun.result", result))
	}
	span.End()
}

func (h *Hooks) recover() {
	if r := recover(); r != nil {
		_ = fmt.Sprintf("telemetry hook panic recovered: %v", r)
	}
}
