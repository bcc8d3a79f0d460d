package handoff

import (
	"context"
	"testing"

	"github.com/digitallysavvy/agentrun/pkg/convo"
	"github.com/digitallysavvy/agentrun/pkg/runcontext"
)

func TestToolName_And_TargetFromCallName(t *testing.T) {
	h := Handoff{TargetName: "billing"}
	if got := h.ToolName(); got != "handoff_to_billing" {
		t.Fatalf("unexpected tool name: %q", got)
	}
	if !IsHandoffCallName(h.ToolName()) {
		t.Fatal("expected IsHandoffCallName to recognise its own ToolName output")
	}
	if got := TargetFromCallName(h.ToolName()); got != "billing" {
		t.Fatalf("expected billing, got %q", got)
	}
}

func TestIsHandoffCallName_RejectsRegularTools(t *testing.T) {
	if IsHandoffCallName("lookup_order") {
		t.Fatal("a regular tool name must not look like a handoff")
	}
}

func TestAsTool_DefaultParametersWhenUnset(t *testing.T) {
	h := Handoff{TargetName: "billing"}
	tool := h.AsTool()
	params, ok := tool.Parameters.(map[string]interface{})
	if !ok {
		t.Fatalf("expected default parameters map, got %T", tool.Parameters)
	}
	if params["type"] != "object" {
		t.Fatalf("unexpected default schema: %+v", params)
	}
}

func TestAsTool_ExecuteAlwaysErrors(t *testing.T) {
	h := Handoff{TargetName: "billing"}
	_, err := h.AsTool().Execute(context.Background(), map[string]interface{}{}, runcontext.New(nil))
	if err == nil {
		t.Fatal("a handoff's synthetic tool must never actually execute")
	}
}

func TestRegistry_ResolveAppliesInputFilter(t *testing.T) {
	h := Handoff{
		TargetName: "billing",
		InputFilter: func(_ context.Context, c convo.Conversation, _ *runcontext.Wrapper) (convo.Conversation, error) {
			return c.Append(convo.Message("system", "routed to billing")), nil
		},
	}
	reg := NewRegistry([]Handoff{h})

	out, err := reg.Resolve(context.Background(), "billing", convo.NewConversation("hi"), runcontext.New(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[1].Content != "routed to billing" {
		t.Fatalf("expected filter to append a message, got %+v", out)
	}
}

func TestRegistry_ResolveUnknownTarget(t *testing.T) {
	reg := NewRegistry(nil)
	if _, err := reg.Resolve(context.Background(), "missing", convo.NewConversation("hi"), runcontext.New(nil)); err == nil {
		t.Fatal("expected an error for an unregistered target")
	}
}

func TestRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry([]Handoff{{TargetName: "b"}, {TargetName: "a"}, {TargetName: "b"}})
	got := reg.List()
	if len(got) != 2 {
		t.Fatalf("expected duplicate TargetName to overwrite, got %d entries", len(got))
	}
	if got[0].TargetName != "b" || got[1].TargetName != "a" {
		t.Fatalf("expected registration order [b a], got %+v", got)
	}
}
