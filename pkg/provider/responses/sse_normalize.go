package responses

import "github.com/digitallysavvy/agentrun/pkg/events"

// NormalizeEvent is the SSE event normaliser (spec Component E): a pure
// function from wire event to a Component C variant. Suppressed wire types
// return ok=false so the caller forwards nothing to the stream buffer.
func NormalizeEvent(w WireEvent) (events.StreamEvent, bool) {
	switch w.Type {
	case "response.created":
		if w.Response == nil {
			return events.StreamEvent{}, false
		}
		return events.NewResponseCreated(w.Response.ID, w.Response.Model, w.Response.CreatedAt), true

	case "response.in_progress":
		return events.StreamEvent{}, false

	case "response.output_text.delta":
		return events.NewTextDelta(w.Delta, w.ContentIndex), true

	case "response.function_call_arguments.delta":
		return events.NewFunctionCallArgumentsDelta(w.ItemID, w.Delta, w.OutputIndex), true

	case "response.function_call_arguments.done":
		return events.StreamEvent{}, false

	case "response.output_item.added":
		if w.Item == nil || w.Item.Type != "function_call" {
			return events.StreamEvent{}, false
		}
		return events.NewToolCall(w.Item.Name, w.Item.ID, w.Item.Arguments), true

	case "response.output_item.done":
		return events.StreamEvent{}, false

	case "response.completed", "response.done":
		if w.Response == nil {
			return events.NewResponseCompleted(UsageFromWire(WireUsage{}), ""), true
		}
		return events.NewResponseCompleted(UsageFromWire(w.Response.Usage), ""), true

	case "done":
		return events.StreamCompleteEvent, true

	default:
		return events.NewUnknown(map[string]interface{}{"type": w.Type}), true
	}
}
