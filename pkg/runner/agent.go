package runner

import (
	"context"

	"github.com/digitallysavvy/agentrun/pkg/convo"
	"github.com/digitallysavvy/agentrun/pkg/guardrail"
	"github.com/digitallysavvy/agentrun/pkg/handoff"
	"github.com/digitallysavvy/agentrun/pkg/runcontext"
)

// Instructions is either a plain string or a function of the run context,
// matching spec §3's "instructions is either a string or a function
// context → string". Func additionally accepts the agent itself
// for 2-arity callers, per spec §4.K ResolveInstructions.
type Instructions struct {
	Static string
	Func   func(ctx context.Context, rc *runcontext.Wrapper, agent *AgentConfig) (string, error)
}

// StaticInstructions wraps a plain instructions string.
func StaticInstructions(s string) Instructions { return Instructions{Static: s} }

// DynamicInstructions wraps an instructions-resolving function.
func DynamicInstructions(fn func(context.Context, *runcontext.Wrapper, *AgentConfig) (string, error)) Instructions {
	return Instructions{Func: fn}
}

func (i Instructions) IsDynamic() bool { return i.Func != nil }

// OutputSchema exposes a JSON-Schema description and a stable schema-name
// string (spec §3 invariant); the engine forwards Schema verbatim and
// never parses it (spec §1 Non-goals).
type OutputSchema interface {
	SchemaName() string
	Schema() interface{}
}

// ModelSettings carries the optional per-call tuning knobs forwarded onto
// the wire request (spec §6): temperature, top_p, tool_choice,
// parallel_tool_calls. Extra is passed through untouched for fields the
// core does not interpret (spec §9 Open Question: max_tokens).
type ModelSettings struct {
	Temperature       *float64
	TopP              *float64
	ToolChoice        ToolChoice
	ParallelToolCalls *bool
	Extra             map[string]interface{}
}

// Resolve merges override on top of base: any non-zero field in override
// wins, matching nlpodyssey's ModelSettings.Resolve semantics ("any
// non-null or non-zero values will override the agent-specific model
// settings").
func (base ModelSettings) Resolve(override ModelSettings) ModelSettings {
	out := base
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if override.ToolChoice.Mode != "" {
		out.ToolChoice = override.ToolChoice
	}
	if override.ParallelToolCalls != nil {
		out.ParallelToolCalls = override.ParallelToolCalls
	}
	if override.Extra != nil {
		merged := make(map[string]interface{}, len(out.Extra)+len(override.Extra))
		for k, v := range out.Extra {
			merged[k] = v
		}
		for k, v := range override.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}

// AgentConfig is the read-only per-agent configuration record (spec §3).
type AgentConfig struct {
	Name             string
	Instructions     Instructions
	Model            string
	ModelSettings    ModelSettings
	Tools            []convo.Tool
	Handoffs         []handoff.Handoff
	InputGuardrails  []guardrail.InputGuardrail
	OutputGuardrails []guardrail.OutputGuardrail
	OutputSchema     OutputSchema

	// OnStart, if set, is invoked before the agent's first model call and
	// not per turn (spec §4.K OnStart state): once for the starting agent,
	// and again each time a handoff switches the run to this agent. A
	// returned error terminates the run.
	OnStart func(ctx context.Context, rc *runcontext.Wrapper) error
}

// Validate checks the invariants spec §3 names: "name is a non-empty
// string [...] list fields default to empty". Called for the starting
// agent at run start and for each handoff target before the run switches
// to it (spec §7 InvalidConfig).
func (a *AgentConfig) Validate() error {
	if a.Name == "" {
		return NewInvalidConfigError("name", "must be non-empty")
	}
	if a.Instructions.Static == "" && a.Instructions.Func == nil {
		return NewInvalidConfigError("instructions", "must be a string or a function")
	}
	return nil
}

// resolveInstructions implements spec §4.K's ResolveInstructions transition.
func (a *AgentConfig) resolveInstructions(ctx context.Context, rc *runcontext.Wrapper) (string, error) {
	if !a.Instructions.IsDynamic() {
		return a.Instructions.Static, nil
	}
	return a.Instructions.Func(ctx, rc, a)
}

// allTools returns the agent's configured tools plus a synthetic
// handoff_to_<target> tool per registered handoff (spec §4.H: "the source
// re-uses the tool mechanism to expose handoffs to the model").
func (a *AgentConfig) allTools() []convo.Tool {
	out := make([]convo.Tool, 0, len(a.Tools)+len(a.Handoffs))
	out = append(out, a.Tools...)
	for _, h := range a.Handoffs {
		out = append(out, h.AsTool())
	}
	return out
}

func (a *AgentConfig) handoffRegistry() *handoff.Registry {
	return handoff.NewRegistry(a.Handoffs)
}
