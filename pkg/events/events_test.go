package events

import (
	"testing"

	"github.com/digitallysavvy/agentrun/pkg/usage"
)

func TestConstructors_SetExactlyOnePayload(t *testing.T) {
	cases := []struct {
		name string
		ev   StreamEvent
		typ  Type
	}{
		{"response_created", NewResponseCreated("resp_1", "gpt-5", 123), TypeResponseCreated},
		{"text_delta", NewTextDelta("hi", 0), TypeTextDelta},
		{"arguments_delta", NewFunctionCallArgumentsDelta("call_1", `{"a":1`, 0), TypeFunctionCallArgumentsDelta},
		{"tool_call", NewToolCall("lookup", "call_1", `{}`), TypeToolCall},
		{"response_completed", NewResponseCompleted(usage.Usage{TotalTokens: 3}, "trace_1"), TypeResponseCompleted},
		{"usage_update", NewUsageUpdate(usage.Usage{TotalTokens: 3}), TypeUsageUpdate},
		{"unknown", NewUnknown(map[string]interface{}{"type": "mystery"}), TypeUnknown},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.ev.Type != c.typ {
				t.Fatalf("expected Type %q, got %q", c.typ, c.ev.Type)
			}
		})
	}
}

func TestStreamCompleteEvent(t *testing.T) {
	if StreamCompleteEvent.Type != TypeStreamComplete {
		t.Fatalf("expected TypeStreamComplete, got %q", StreamCompleteEvent.Type)
	}
}
