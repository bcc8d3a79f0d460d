package runner

import "testing"

func TestMaybeResetToolChoice_ResetsAfterFirstUse(t *testing.T) {
	tracker := NewToolUseTracker()
	forced := ForcedToolChoice("lookup")

	got := MaybeResetToolChoice("agent-1", tracker, forced)
	if got != forced {
		t.Fatalf("a forced choice must survive until the agent has used a tool, got %+v", got)
	}

	tracker.RecordUse("agent-1", []string{"lookup"})

	got = MaybeResetToolChoice("agent-1", tracker, forced)
	if got != AutoToolChoice() {
		t.Fatalf("expected auto after first tool use, got %+v", got)
	}
}

func TestMaybeResetToolChoice_DoesNotAffectOtherAgents(t *testing.T) {
	tracker := NewToolUseTracker()
	tracker.RecordUse("agent-1", []string{"lookup"})

	forced := ForcedToolChoice("lookup")
	got := MaybeResetToolChoice("agent-2", tracker, forced)
	if got != forced {
		t.Fatalf("a different agent's tool use must not reset this agent's forced choice, got %+v", got)
	}
}

func TestMaybeResetToolChoice_AutoUnaffected(t *testing.T) {
	tracker := NewToolUseTracker()
	auto := AutoToolChoice()
	if got := MaybeResetToolChoice("agent-1", tracker, auto); got != auto {
		t.Fatalf("an already-auto choice should pass through unchanged, got %+v", got)
	}
}
