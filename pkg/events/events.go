// Package events defines the closed set of normalised stream events the
// Runner emits to a stream buffer consumer. The SSE normaliser suppresses a
// few wire event types outright and translates every other raw wire event
// into exactly one of these variants; an unrecognised type becomes Unknown
// rather than being dropped.
package events

import "github.com/digitallysavvy/agentrun/pkg/usage"

// Type tags which variant a StreamEvent carries.
type Type string

const (
	TypeResponseCreated              Type = "response_created"
	TypeTextDelta                    Type = "text_delta"
	TypeFunctionCallArgumentsDelta    Type = "function_call_arguments_delta"
	TypeToolCall                      Type = "tool_call"
	TypeResponseCompleted             Type = "response_completed"
	TypeStreamComplete                Type = "stream_complete"
	TypeUsageUpdate                   Type = "usage_update"
	TypeUnknown                       Type = "unknown"
)

// StreamEvent is the single type carried by the stream buffer. Exactly one
// of the payload fields is populated, matching Type.
type StreamEvent struct {
	Type Type

	ResponseCreated *ResponseCreated
	TextDelta       *TextDelta
	ArgumentsDelta  *FunctionCallArgumentsDelta
	ToolCall        *ToolCall
	ResponseCompleted *ResponseCompleted
	UsageUpdate     *UsageUpdate
	Unknown         *Unknown
}

// ResponseCreated mirrors the wire event fired when the model begins a turn.
type ResponseCreated struct {
	ResponseID string
	Model      string
	CreatedAt  int64
}

// TextDelta is one fragment of assistant output text.
type TextDelta struct {
	Text  string
	Index int
}

// FunctionCallArgumentsDelta is one fragment of a function call's
// JSON-encoded arguments as they stream in.
type FunctionCallArgumentsDelta struct {
	CallID    string
	Arguments string
	Index     int
}

// ToolCall announces a function call item becoming available in full.
type ToolCall struct {
	Name      string
	CallID    string
	Arguments string
}

// ResponseCompleted carries the turn's final usage once the model finishes.
type ResponseCompleted struct {
	Usage   usage.Usage
	TraceID string
}

// UsageUpdate reports the run's accumulated usage after a turn.
type UsageUpdate struct {
	Usage usage.Usage
}

// Unknown carries an unrecognised wire event verbatim so callers can still
// observe it, e.g. for debugging or forward-compatibility.
type Unknown struct {
	Raw map[string]interface{}
}

func New(t Type) StreamEvent { return StreamEvent{Type: t} }

func NewResponseCreated(responseID, model string, createdAt int64) StreamEvent {
	return StreamEvent{Type: TypeResponseCreated, ResponseCreated: &ResponseCreated{
		ResponseID: responseID, Model: model, CreatedAt: createdAt,
	}}
}

func NewTextDelta(text string, index int) StreamEvent {
	return StreamEvent{Type: TypeTextDelta, TextDelta: &TextDelta{Text: text, Index: index}}
}

func NewFunctionCallArgumentsDelta(callID, arguments string, index int) StreamEvent {
	return StreamEvent{Type: TypeFunctionCallArgumentsDelta, ArgumentsDelta: &FunctionCallArgumentsDelta{
		CallID: callID, Arguments: arguments, Index: index,
	}}
}

func NewToolCall(name, callID, arguments string) StreamEvent {
	return StreamEvent{Type: TypeToolCall, ToolCall: &ToolCall{Name: name, CallID: callID, Arguments: arguments}}
}

func NewResponseCompleted(u usage.Usage, traceID string) StreamEvent {
	return StreamEvent{Type: TypeResponseCompleted, ResponseCompleted: &ResponseCompleted{Usage: u, TraceID: traceID}}
}

func NewUsageUpdate(u usage.Usage) StreamEvent {
	return StreamEvent{Type: TypeUsageUpdate, UsageUpdate: &UsageUpdate{Usage: u}}
}

func NewUnknown(raw map[string]interface{}) StreamEvent {
	return StreamEvent{Type: TypeUnknown, Unknown: &Unknown{Raw: raw}}
}

// StreamCompleteEvent is the sentinel that marks the end of a successful
// run's event stream. The SSE normaliser maps the [DONE] wire sentinel to
// it; the Runner emits it once, right after ResponseCompleted, when a run
// finishes successfully. A failed run's stream does not carry it.
var StreamCompleteEvent = StreamEvent{Type: TypeStreamComplete}
