package responses

import (
	"github.com/digitallysavvy/agentrun/pkg/convo"
	"github.com/digitallysavvy/agentrun/pkg/usage"
)

// NormalizeOutput maps a Response's wire output items onto Conversation
// items, per the table in spec §4.D:
//   - message.content[*] of type output_text -> text{text}
//   - message.content[*] of type tool_use     -> function_call{...}
//   - top-level function_call                 -> function_call{...}
//   - handoff                                  -> handoff{target}
//   - anything else                            -> passed through with its declared type
func NormalizeOutput(items []WireItem) []convo.Item {
	out := make([]convo.Item, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				switch c.Type {
				case "output_text":
					out = append(out, convo.Text(c.Text))
				case "tool_use":
					out = append(out, convo.FunctionCall(c.ID, c.Name, c.Arguments))
				default:
					out = append(out, convo.Item{Type: convo.ItemType(c.Type), Content: c.Text})
				}
			}
		case "function_call":
			out = append(out, convo.FunctionCall(item.CallID, item.Name, item.Arguments))
		case "handoff":
			out = append(out, convo.Handoff(item.Target))
		default:
			out = append(out, convo.Item{Type: convo.ItemType(item.Type)})
		}
	}
	return out
}

// UsageFromWire maps the wire's input_tokens/output_tokens/total_tokens
// onto the canonical usage.Usage (spec §4.A).
func UsageFromWire(w WireUsage) usage.Usage {
	return usage.FromWire(w.InputTokens, w.OutputTokens, w.TotalTokens)
}

// ItemToWire converts a local Conversation item back into the wire shape
// used in Request.Input, the inverse of NormalizeOutput for the item types
// the engine sends back (message, text, function_call,
// function_call_output, handoff).
func ItemToWire(item convo.Item) WireItem {
	switch item.Type {
	case convo.ItemMessage:
		return WireItem{
			Type: "message",
			Role: item.Role,
			Content: []WireContent{{
				Type: inputContentTypeForRole(item.Role),
				Text: item.Content,
			}},
		}
	case convo.ItemText:
		return WireItem{
			Type: "message",
			Role: "assistant",
			Content: []WireContent{{Type: "output_text", Text: item.Content}},
		}
	case convo.ItemFunctionCall:
		return WireItem{Type: "function_call", CallID: item.CallID, Name: item.Name, Arguments: item.Arguments}
	case convo.ItemFunctionCallOutput:
		return WireItem{Type: "function_call_output", CallID: item.CallID, Output: item.Output}
	case convo.ItemHandoff:
		return WireItem{Type: "handoff", Target: item.Target}
	default:
		return WireItem{Type: string(item.Type)}
	}
}

func inputContentTypeForRole(role string) string {
	if role == "assistant" {
		return "output_text"
	}
	return "input_text"
}

// BuildInput converts a full Conversation into the wire Input array.
func BuildInput(conversation convo.Conversation) []WireItem {
	out := make([]WireItem, 0, len(conversation))
	for _, item := range conversation {
		out = append(out, ItemToWire(item))
	}
	return out
}
