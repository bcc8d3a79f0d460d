package runner

import "sync"

// ToolChoice mirrors the wire tool_choice field (spec §6): "auto", "none",
// or a forced call of one specific named function.
type ToolChoice struct {
	Mode string // "auto", "none", or "tool"
	Name string // populated when Mode == "tool"
}

// AutoToolChoice lets the model decide whether to call tools.
func AutoToolChoice() ToolChoice { return ToolChoice{Mode: "auto"} }

// ForcedToolChoice forces the model to call the named tool.
func ForcedToolChoice(name string) ToolChoice { return ToolChoice{Mode: "tool", Name: name} }

// ToolUseTracker records, per agent name, whether any tool has been used
// yet during the run. Grounded on nlpodyssey's AgentToolUseTracker: its
// purpose is solely to let MaybeResetToolChoice un-force a tool_choice
// after its first use, so a forced choice can't loop the model into
// calling the same tool forever.
type ToolUseTracker struct {
	mu   sync.Mutex
	used map[string]bool
}

func NewToolUseTracker() *ToolUseTracker {
	return &ToolUseTracker{used: make(map[string]bool)}
}

func (t *ToolUseTracker) RecordUse(agentName string, toolNames []string) {
	if len(toolNames) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.used[agentName] = true
}

func (t *ToolUseTracker) HasUsedAny(agentName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used[agentName]
}

// MaybeResetToolChoice resets a forced tool_choice back to "auto" once the
// agent has already produced at least one tool call this run — otherwise a
// forced choice would force the same call on every subsequent turn.
func MaybeResetToolChoice(agentName string, tracker *ToolUseTracker, choice ToolChoice) ToolChoice {
	if choice.Mode == "tool" && tracker.HasUsedAny(agentName) {
		return AutoToolChoice()
	}
	return choice
}
