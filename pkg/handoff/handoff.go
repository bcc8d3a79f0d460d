// Package handoff implements the handoff resolver (spec Component H): each
// registered target is exposed to the model as a synthetic function tool
// named handoff_to_<target-agent-name>. Registration bookkeeping follows
// the teacher's pkg/agent/subagent.go SubagentRegistry shape, restructured
// around the spec's re-targeting control flow instead of explicit
// delegation calls.
package handoff

import (
	"context"
	"fmt"
	"strings"

	"github.com/digitallysavvy/agentrun/pkg/convo"
	"github.com/digitallysavvy/agentrun/pkg/runcontext"
)

// ToolNamePrefix is prepended to every handoff target's agent name to form
// its synthetic function-tool name.
const ToolNamePrefix = "handoff_to_"

// InputFilter reduces or transforms the conversation before the next agent
// sees it.
type InputFilter func(ctx context.Context, conversation convo.Conversation, rc *runcontext.Wrapper) (convo.Conversation, error)

// Handoff is one registered transfer target. TargetName must be unique
// within an agent's handoff list; it becomes part of the synthetic tool
// name, so it is restricted to identifier-safe characters by convention
// (not enforced here — spec leaves tool-name legality to the wire).
type Handoff struct {
	TargetName  string
	Description string

	// Parameters is the JSON-Schema for the synthetic tool's arguments.
	// Defaults to {"input": "string"} (see DefaultParameters) when nil.
	Parameters interface{}

	InputFilter InputFilter

	// Next is the agent configuration the Runner switches to once this
	// handoff is matched. It is typed interface{} (rather than a concrete
	// *runner.AgentConfig) solely so this package does not import
	// pkg/runner, which already imports pkg/handoff; the Runner type-
	// asserts it back to *runner.AgentConfig at the call site.
	Next interface{}
}

// DefaultParameters is the JSON-Schema used when a Handoff does not supply
// its own Parameters (spec §4.H).
func DefaultParameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"input": map[string]interface{}{"type": "string"},
		},
		"required": []string{"input"},
	}
}

// ToolName returns the synthetic function-tool name the model sees for h.
func (h Handoff) ToolName() string {
	return ToolNamePrefix + h.TargetName
}

// AsTool exposes h as a convo.Tool so it can be merged into the same
// tools[] list the model sees alongside regular tools (spec §4.H: "the
// source re-uses the tool mechanism to expose handoffs to the model").
// Execute is never actually invoked — the Runner's Classify stage
// short-circuits on the handoff_to_ name prefix before dispatch — but it is
// populated so AsTool satisfies convo.Tool's shape uniformly.
func (h Handoff) AsTool() convo.Tool {
	params := h.Parameters
	if params == nil {
		params = DefaultParameters()
	}
	return convo.Tool{
		Name:        h.ToolName(),
		Description: h.Description,
		Parameters:  params,
		Execute: func(ctx context.Context, args map[string]interface{}, rc *runcontext.Wrapper) (interface{}, error) {
			return nil, fmt.Errorf("handoff %q should never be executed as a regular tool", h.TargetName)
		},
	}
}

// IsHandoffCallName reports whether name looks like a synthetic handoff
// tool invocation.
func IsHandoffCallName(name string) bool {
	return strings.HasPrefix(name, ToolNamePrefix)
}

// TargetFromCallName extracts the target agent name from a synthetic
// handoff tool call name.
func TargetFromCallName(name string) string {
	return strings.TrimPrefix(name, ToolNamePrefix)
}

// Registry resolves target agent names to their Handoff record. One
// Registry exists per agent configuration (mirroring the granularity of
// the teacher's SubagentRegistry, one per agent).
type Registry struct {
	byName map[string]Handoff
	order  []string
}

// NewRegistry builds a Registry from a list of handoffs, in the order
// given. Later entries with a duplicate TargetName overwrite earlier ones.
func NewRegistry(handoffs []Handoff) *Registry {
	r := &Registry{byName: make(map[string]Handoff, len(handoffs))}
	for _, h := range handoffs {
		if _, exists := r.byName[h.TargetName]; !exists {
			r.order = append(r.order, h.TargetName)
		}
		r.byName[h.TargetName] = h
	}
	return r
}

// Get looks up a handoff by target agent name.
func (r *Registry) Get(targetName string) (Handoff, bool) {
	if r == nil {
		return Handoff{}, false
	}
	h, ok := r.byName[targetName]
	return h, ok
}

// List returns all registered handoffs in registration order.
func (r *Registry) List() []Handoff {
	if r == nil {
		return nil
	}
	out := make([]Handoff, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Resolve applies the matched handoff's InputFilter (if any) and returns
// the conversation the next agent should see. It does not mutate the
// Runner's agent/turn state — that is the caller's (Runner's)
// responsibility per spec §4.H step 3.
func (r *Registry) Resolve(ctx context.Context, targetName string, conversation convo.Conversation, rc *runcontext.Wrapper) (convo.Conversation, error) {
	h, ok := r.Get(targetName)
	if !ok {
		return nil, fmt.Errorf("unknown handoff target %q", targetName)
	}
	if h.InputFilter == nil {
		return conversation, nil
	}
	return h.InputFilter(ctx, conversation, rc)
}
