// Package runner implements the turn-loop state machine (spec Component
// K): Init -> CheckTurnLimit -> OnStart -> ResolveInstructions ->
// InputGuardrails -> ModelCall -> Classify -> (ToolDispatch | HandoffDispatch
// | OutputGuardrails) -> (Loop | Terminate). The loop shape and its
// turn/handoff bookkeeping are grounded on nlpodyssey/openai-agents-go's
// runner.go; the hook-firing texture (settings-level callbacks invoked at
// well-defined transitions, never gating the loop's own progress) follows
// the teacher's pkg/agent/toolloop.go ToolLoopAgent.ExecuteWithMessages.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digitallysavvy/agentrun/pkg/convo"
	"github.com/digitallysavvy/agentrun/pkg/events"
	"github.com/digitallysavvy/agentrun/pkg/guardrail"
	"github.com/digitallysavvy/agentrun/pkg/handoff"
	"github.com/digitallysavvy/agentrun/pkg/provider/responses"
	"github.com/digitallysavvy/agentrun/pkg/runcontext"
	"github.com/digitallysavvy/agentrun/pkg/telemetry"
	"github.com/digitallysavvy/agentrun/pkg/usage"
)

// DefaultMaxTurns bounds the loop when RunParams.MaxTurns is left at zero
// (spec §4.K "Numeric & edge semantics": "max_turns defaults to 10").
const DefaultMaxTurns = 10

// RunHooks observes run-wide transitions. Every method has a no-op default
// (NoOpRunHooks); none of them may alter control flow — they exist purely
// for observability, mirroring the teacher's settings-level callbacks that
// "never gate the loop's own progress".
type RunHooks interface {
	OnRunStart(ctx context.Context, agentName string, input string)
	OnTurnStart(ctx context.Context, agentName string, turn uint64)
	OnToolCall(ctx context.Context, agentName string, calls []DispatchCall)
	OnToolResult(ctx context.Context, agentName string, results []DispatchResult)
	OnHandoff(ctx context.Context, fromAgent, toAgent string)
	OnRunEnd(ctx context.Context, result *RunResult, err error)
}

// NoOpRunHooks implements RunHooks with empty bodies. Embed it to satisfy
// the interface while overriding only the methods of interest.
type NoOpRunHooks struct{}

func (NoOpRunHooks) OnRunStart(context.Context, string, string)              {}
func (NoOpRunHooks) OnTurnStart(context.Context, string, uint64)             {}
func (NoOpRunHooks) OnToolCall(context.Context, string, []DispatchCall)      {}
func (NoOpRunHooks) OnToolResult(context.Context, string, []DispatchResult) {}
func (NoOpRunHooks) OnHandoff(context.Context, string, string)               {}
func (NoOpRunHooks) OnRunEnd(context.Context, *RunResult, error)              {}

// RunConfig carries run-wide overrides layered on top of each agent's own
// configuration (spec §3 RunConfig), grounded on nlpodyssey's RunConfig.
type RunConfig struct {
	// Model, if non-empty, overrides every agent's AgentConfig.Model for
	// the duration of this run.
	Model string

	ModelProvider *responses.Client

	// ModelSettings is resolved on top of (never replacing) each agent's
	// own settings via ModelSettings.Resolve.
	ModelSettings ModelSettings

	// HandoffInputFilter is applied when the matched handoff itself
	// declares no InputFilter of its own.
	HandoffInputFilter handoff.InputFilter

	// InputGuardrails/OutputGuardrails are appended after the current
	// agent's own guardrail lists (including a handoff target's), running
	// in the same pass.
	InputGuardrails  []guardrail.InputGuardrail
	OutputGuardrails []guardrail.OutputGuardrail

	Tracing *telemetry.Settings
}

// RunParams is the full set of inputs to a single run (spec §3 RunParams).
type RunParams struct {
	StartingAgent *AgentConfig
	Input         string

	// Context is the opaque user value threaded through every tool and
	// guardrail call via runcontext.Wrapper.
	Context any

	// MaxTurns bounds the loop; zero means DefaultMaxTurns.
	MaxTurns uint64

	Hooks RunHooks

	RunConfig RunConfig

	// PreviousResponseID is forwarded to the model adapter unchanged; the
	// engine does not alter its own conversation tracking based on it
	// (spec §9 Open Question: accepted as opt-in passthrough).
	PreviousResponseID string
}

// RunResult is the synchronous outcome of Run (spec §3).
type RunResult struct {
	FinalOutput   string
	Conversation  convo.Conversation
	Usage         usage.Usage
	TurnCount     uint64
	LastAgentName string
	TraceID       string
}

// run holds the mutable state threaded through one execution of the loop,
// shared between Run and RunStreamed so both paths implement the same
// state machine.
type run struct {
	params RunConfig
	hooks  RunHooks
	tel    *telemetry.Hooks

	agent        *AgentConfig
	conversation convo.Conversation
	rc           *runcontext.Wrapper
	tracker      *ToolUseTracker

	turn     uint64
	maxTurns uint64

	traceID            string
	previousResponseID string

	// stream is nil for a synchronous Run; when set, ModelCall drives the
	// streaming client and mirrors every normalised event into it.
	stream *StreamBuffer
}

// Run executes params.StartingAgent synchronously to completion, blocking
// until a final output, an error, or MaxTurnsExceeded.
func Run(ctx context.Context, params RunParams) (*RunResult, error) {
	r, err := newRun(params)
	if err != nil {
		return nil, err
	}

	ctx, traceID := r.tel.StartTrace(ctx, r.agent.Name, params.Input)
	r.traceID = traceID

	r.hooks.OnRunStart(ctx, r.agent.Name, params.Input)
	result, err := r.loop(ctx)
	r.hooks.OnRunEnd(ctx, result, err)
	r.tel.EndTrace(traceID, resultText(result))
	return result, err
}

// RunStreamed starts the loop on a background goroutine and returns
// immediately with a StreamBuffer a caller drains via Next. The returned
// buffer always reaches Complete, whether the run finished normally,
// failed, or the caller's ctx was cancelled.
func RunStreamed(ctx context.Context, params RunParams) (*StreamBuffer, error) {
	r, err := newRun(params)
	if err != nil {
		return nil, err
	}
	buf := NewStreamBuffer()
	r.stream = buf

	go func() {
		defer buf.Complete()

		ctx, traceID := r.tel.StartTrace(ctx, r.agent.Name, params.Input)
		r.traceID = traceID

		r.hooks.OnRunStart(ctx, r.agent.Name, params.Input)
		result, err := r.loop(ctx)
		r.hooks.OnRunEnd(ctx, result, err)
		r.tel.EndTrace(traceID, resultText(result))

		// On success, terminate() already emitted ResponseCompleted (which
		// carries the final usage) followed by StreamComplete — scenario 6's
		// exact sequence ends there, so nothing further is appended. On
		// failure (including an output guardrail trip inside terminate())
		// neither of those was emitted, so the consumer gets an Unknown
		// event carrying the error and a final usage snapshot before the
		// buffer completes.
		if err != nil {
			buf.Emit(events.NewUnknown(map[string]interface{}{"error": err.Error()}))
			buf.Emit(events.NewUsageUpdate(r.rc.Usage()))
		}
	}()

	return buf, nil
}

func resultText(r *RunResult) string {
	if r == nil {
		return ""
	}
	return r.FinalOutput
}

func newRun(params RunParams) (*run, error) {
	if params.StartingAgent == nil {
		return nil, NewInvalidConfigError("starting_agent", "must not be nil")
	}
	if err := params.StartingAgent.Validate(); err != nil {
		return nil, err
	}
	if params.RunConfig.ModelProvider == nil {
		return nil, NewInvalidConfigError("run_config.model_provider", "must not be nil")
	}

	maxTurns := params.MaxTurns
	if maxTurns == 0 {
		maxTurns = DefaultMaxTurns
	}

	hooks := params.Hooks
	if hooks == nil {
		hooks = NoOpRunHooks{}
	}

	return &run{
		params:              params.RunConfig,
		hooks:               hooks,
		tel:                 telemetry.NewHooks(params.RunConfig.Tracing),
		agent:               params.StartingAgent,
		conversation:        convo.NewConversation(params.Input),
		rc:                  runcontext.New(params.Context),
		tracker:             NewToolUseTracker(),
		turn:                0,
		maxTurns:            maxTurns,
		previousResponseID:  params.PreviousResponseID,
	}, nil
}

// loop runs the Init -> ... -> Terminate state machine to completion.
func (r *run) loop(ctx context.Context) (*RunResult, error) {
	startedAgent := true

	for {
		// CheckTurnLimit
		if r.turn >= r.maxTurns {
			return nil, NewMaxTurnsExceededError(r.turn)
		}
		r.hooks.OnTurnStart(ctx, r.agent.Name, r.turn)
		slog.Debug("running agent turn", slog.String("agent", r.agent.Name), slog.Uint64("turn", r.turn))

		// OnStart fires for the starting agent and again after every
		// handoff into an agent, not once per turn.
		if startedAgent {
			if r.agent.OnStart != nil {
				if err := r.agent.OnStart(ctx, r.rc); err != nil {
					return nil, fmt.Errorf("agent %q OnStart: %w", r.agent.Name, err)
				}
			}
			startedAgent = false
		}

		// ResolveInstructions
		instructions, err := r.agent.resolveInstructions(ctx, r.rc)
		if err != nil {
			return nil, fmt.Errorf("resolving instructions for %q: %w", r.agent.Name, err)
		}

		// InputGuardrails: only ever run once per agent, immediately
		// before that agent's first model call — a handoff re-targets to
		// a new agent whose own guardrails then apply once, in turn.
		if r.turn == 0 {
			all := append(append([]guardrail.InputGuardrail{}, r.agent.InputGuardrails...), r.params.InputGuardrails...)
			if err := guardrail.RunInput(ctx, all, r.conversation, r.rc); err != nil {
				if trip, ok := err.(*guardrail.TrippedError); ok {
					slog.Debug("input guardrail triggered", slog.String("guardrail", trip.Module), slog.String("reason", trip.Reason))
					return nil, NewGuardrailTriggeredError(trip.Module, trip.Reason, trip.Meta)
				}
				return nil, err
			}
		}

		// ModelCall
		resp, err := r.modelCall(ctx, instructions)
		if err != nil {
			return nil, err
		}
		r.rc.UpdateUsage(resp.usage)

		newItems := responses.NormalizeOutput(resp.output)
		r.conversation = r.conversation.Append(newItems...)

		// Classify
		handoffCallID, handoffTarget, toolCalls, finalText, ok := classify(newItems)
		if !ok {
			return nil, NewUnexpectedResponseError("model response contained neither text, a tool call, nor a handoff")
		}

		switch {
		case handoffTarget != "":
			slog.Debug("handoff requested", slog.String("from", r.agent.Name), slog.String("to", handoffTarget))
			if err := r.dispatchHandoff(ctx, handoffCallID, handoffTarget); err != nil {
				return nil, err
			}
			startedAgent = true
			r.turn = 0
			continue

		case len(toolCalls) > 0:
			r.dispatchTools(ctx, toolCalls)
			r.turn++
			continue

		default:
			return r.terminate(ctx, finalText)
		}
	}
}

// classify inspects one turn's newly-normalised items and decides which
// branch of the state machine to take next (spec §4.K Classify). Only the
// first handoff call is honoured if multiple appear in the same response
// (spec §4.H).
func classify(items []convo.Item) (handoffCallID, handoffTarget string, toolCalls []DispatchCall, finalText string, ok bool) {
	for _, item := range items {
		switch item.Type {
		case convo.ItemFunctionCall:
			if handoff.IsHandoffCallName(item.Name) {
				if handoffTarget == "" {
					handoffCallID = item.CallID
					handoffTarget = handoff.TargetFromCallName(item.Name)
				}
				continue
			}
			toolCalls = append(toolCalls, DispatchCall{CallID: item.CallID, Name: item.Name, Arguments: item.Arguments})
		case convo.ItemHandoff:
			if handoffTarget == "" {
				handoffTarget = item.Target
			}
		case convo.ItemText:
			finalText += item.Content
		}
	}
	if handoffTarget != "" || len(toolCalls) > 0 || finalText != "" {
		ok = true
	}
	return
}

func (r *run) dispatchTools(ctx context.Context, calls []DispatchCall) {
	r.hooks.OnToolCall(ctx, r.agent.Name, calls)

	spanID := r.tel.RecordSpan(ctx, telemetry.SpanFunction, map[string]interface{}{"agent": r.agent.Name, "calls": len(calls)})
	results := Dispatch(ctx, calls, r.agent.allTools(), r.rc)
	r.tel.EndSpan(spanID, fmt.Sprintf("%d results", len(results)))

	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Name)
	}
	r.tracker.RecordUse(r.agent.Name, names)

	for _, res := range results {
		output := res.Output
		if res.Err != nil {
			output = fmt.Sprintf(`{"error":%q}`, res.Err.Error())
			slog.Warn("tool call failed", slog.String("agent", r.agent.Name), slog.String("call_id", res.CallID), slog.String("error", res.Err.Error()))
		}
		r.conversation = r.conversation.Append(convo.FunctionCallOutput(res.CallID, output))
	}

	r.hooks.OnToolResult(ctx, r.agent.Name, results)

	if r.stream != nil {
		r.stream.Emit(events.NewUsageUpdate(r.rc.Usage()))
	}
}

func (r *run) dispatchHandoff(ctx context.Context, callID, target string) error {
	spanID := r.tel.RecordSpan(ctx, telemetry.SpanHandoff, map[string]interface{}{"from": r.agent.Name, "to": target})
	defer r.tel.EndSpan(spanID, target)

	registry := r.agent.handoffRegistry()
	matched, ok := registry.Get(target)
	if !ok {
		return NewHandoffError(fmt.Sprintf("agent %q has no handoff registered for target %q", r.agent.Name, target))
	}

	filter := matched.InputFilter
	if filter == nil {
		filter = r.params.HandoffInputFilter
	}
	nextConversation := r.conversation
	if callID != "" {
		nextConversation = nextConversation.Append(convo.FunctionCallOutput(callID, `{"status":"handed_off"}`))
	}
	if filter != nil {
		filtered, err := filter(ctx, nextConversation, r.rc)
		if err != nil {
			return fmt.Errorf("handoff input filter for %q: %w", target, err)
		}
		nextConversation = filtered
	}

	r.hooks.OnHandoff(ctx, r.agent.Name, target)

	next, ok := matched.Next.(*AgentConfig)
	if !ok || next == nil {
		return NewHandoffError(fmt.Sprintf("handoff target %q has no bound AgentConfig (set Handoff.Next)", target))
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("handoff target %q: %w", target, err)
	}

	r.agent = next
	r.conversation = nextConversation
	return nil
}

func (r *run) terminate(ctx context.Context, finalText string) (*RunResult, error) {
	output, err := guardrail.RunOutput(ctx, append(append([]guardrail.OutputGuardrail{}, r.agent.OutputGuardrails...), r.params.OutputGuardrails...), finalText, r.rc)
	if err != nil {
		if trip, ok := err.(*guardrail.TrippedError); ok {
			return nil, NewOutputGuardrailTriggeredError(trip.Module, trip.Reason, output, trip.Meta)
		}
		return nil, err
	}

	result := &RunResult{
		FinalOutput:   output,
		Conversation:  r.conversation,
		Usage:         r.rc.Usage(),
		TurnCount:     r.turn,
		LastAgentName: r.agent.Name,
		TraceID:       r.traceID,
	}

	if r.stream != nil {
		r.stream.Emit(events.NewResponseCompleted(r.rc.Usage(), r.traceID))
		r.stream.Emit(events.StreamCompleteEvent)
	}
	return result, nil
}
