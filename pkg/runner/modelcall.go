package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digitallysavvy/agentrun/pkg/convo"
	"github.com/digitallysavvy/agentrun/pkg/provider/responses"
	"github.com/digitallysavvy/agentrun/pkg/telemetry"
	"github.com/digitallysavvy/agentrun/pkg/usage"
)

// modelCallResult is the ModelCall transition's output (spec §4.K): the
// turn's raw output items, ready for NormalizeOutput, plus that turn's
// usage.
type modelCallResult struct {
	output []responses.WireItem
	usage  usage.Usage
}

// modelCall builds the wire request for the current turn and performs it,
// either as a single non-streaming call or, when r.stream is set, by
// draining an SSE stream and mirroring every normalised event into the
// stream buffer as it arrives (spec §4.K ModelCall, driven by Component D
// and normalised by Component E).
func (r *run) modelCall(ctx context.Context, instructions string) (*modelCallResult, error) {
	req := r.buildRequest(instructions)

	spanID := r.tel.RecordSpan(ctx, telemetry.SpanGeneration, map[string]interface{}{"agent": r.agent.Name, "model": req.Model})
	defer func() { r.tel.EndSpan(spanID, "") }()

	if r.stream == nil {
		resp, err := r.params.ModelProvider.CreateCompletion(ctx, req)
		if err != nil {
			slog.Warn("model call failed", slog.String("agent", r.agent.Name), slog.String("error", err.Error()))
			return nil, translateProviderErr(err)
		}
		return &modelCallResult{output: resp.Output, usage: responses.UsageFromWire(resp.Usage)}, nil
	}

	items, err := r.params.ModelProvider.CreateStream(ctx, req)
	if err != nil {
		slog.Warn("model stream failed", slog.String("agent", r.agent.Name), slog.String("error", err.Error()))
		return nil, translateProviderErr(err)
	}

	var finalOutput []responses.WireItem
	var finalUsage usage.Usage

	for item := range items {
		if item.Err != nil {
			return nil, translateProviderErr(item.Err)
		}

		w := item.Event

		// "response.completed"/"response.done" and the synthetic "done"
		// sentinel mark the end of this turn's wire stream, not the end of
		// the run: a tool-calling turn sees both mid-run, well before the
		// conversation actually terminates. The Runner owns the one true
		// ResponseCompleted/StreamComplete pair and emits it itself, once,
		// from terminate() — forwarding these here would both duplicate
		// that pair and surface it after every intermediate turn.
		switch w.Type {
		case "response.completed", "response.done":
			if w.Response != nil {
				finalOutput = w.Response.Output
				finalUsage = responses.UsageFromWire(w.Response.Usage)
			}
			continue
		case "done":
			continue
		}

		if ev, ok := responses.NormalizeEvent(w); ok {
			r.stream.Emit(ev)
		}
	}

	// Spec §4.K / §9: a streamed run that claims completed=true for a
	// function-call item still gets that call dispatched locally exactly
	// once by this Runner — the wire's own "completed" flag on a
	// streaming tool call never substitutes for ToolDispatch, it only
	// marks that the call's arguments have finished accumulating.
	return &modelCallResult{output: finalOutput, usage: finalUsage}, nil
}

func (r *run) buildRequest(instructions string) responses.Request {
	model := r.agent.Model
	if r.params.Model != "" {
		model = r.params.Model
	}

	settings := r.agent.ModelSettings.Resolve(r.params.ModelSettings)
	choice := MaybeResetToolChoice(r.agent.Name, r.tracker, settings.ToolChoice)

	req := responses.Request{
		Model:              model,
		Instructions:       instructions,
		Input:              responses.BuildInput(r.conversation),
		Tools:              buildToolDefs(r.agent.allTools()),
		Temperature:        settings.Temperature,
		TopP:               settings.TopP,
		ParallelToolCalls:  settings.ParallelToolCalls,
		Extra:              settings.Extra,
		PreviousResponseID: r.previousResponseID,
	}

	switch choice.Mode {
	case "auto", "":
		// omitted: the wire default
	case "none":
		req.ToolChoice = "none"
	case "tool":
		req.ToolChoice = map[string]interface{}{"type": "function", "name": choice.Name}
	}

	if r.agent.OutputSchema != nil {
		req.Text = &responses.TextFormat{Format: responses.FormatSpec{
			Type:   "json_schema",
			Name:   r.agent.OutputSchema.SchemaName(),
			Schema: r.agent.OutputSchema.Schema(),
		}}
	}

	return req
}

func buildToolDefs(tools []convo.Tool) []responses.ToolDef {
	out := make([]responses.ToolDef, 0, len(tools))
	for _, t := range tools {
		out = append(out, responses.ToolDef{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Function:    &responses.FunctionDef{Parameters: t.Parameters},
		})
	}
	return out
}

func translateProviderErr(err error) error {
	switch e := err.(type) {
	case *responses.WireApiError:
		return NewApiError(e.Status, e.Body)
	case *responses.WireNetworkError:
		return NewNetworkError(e.Cause)
	case *responses.WireDecodeError:
		return NewDecodeError(e.Cause)
	default:
		return fmt.Errorf("model call: %w", err)
	}
}
