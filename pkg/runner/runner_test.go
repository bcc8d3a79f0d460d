package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/digitallysavvy/agentrun/pkg/convo"
	"github.com/digitallysavvy/agentrun/pkg/events"
	"github.com/digitallysavvy/agentrun/pkg/guardrail"
	"github.com/digitallysavvy/agentrun/pkg/handoff"
	"github.com/digitallysavvy/agentrun/pkg/provider/responses"
	"github.com/digitallysavvy/agentrun/pkg/runcontext"
	"github.com/digitallysavvy/agentrun/pkg/usage"
)

// sequencedServer replays one canned Response per call, in order, easing
// into the multi-turn scenarios a single agent run walks through.
func sequencedServer(t *testing.T, bodies ...responses.Response) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := atomic.AddInt32(&calls, 1) - 1
		if int(i) >= len(bodies) {
			t.Fatalf("unexpected extra model call #%d", i)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(bodies[i])
	}))
	return srv, &calls
}

func textResponse(id, text string) responses.Response {
	return responses.Response{
		ID:    id,
		Model: "gpt-5",
		Usage: responses.WireUsage{InputTokens: 5, OutputTokens: 5, TotalTokens: 10},
		Output: []responses.WireItem{
			{Type: "message", Role: "assistant", Content: []responses.WireContent{{Type: "output_text", Text: text}}},
		},
	}
}

func TestRun_PureQA(t *testing.T) {
	srv, _ := sequencedServer(t, textResponse("resp_1", "hello there"))
	defer srv.Close()

	agent := &AgentConfig{Name: "assistant", Instructions: StaticInstructions("be nice"), Model: "gpt-5"}
	client := responses.NewClient(responses.ApiConfig{BaseURL: srv.URL, APIKey: "test"})

	result, err := Run(context.Background(), RunParams{
		StartingAgent: agent,
		Input:         "hi",
		RunConfig:     RunConfig{ModelProvider: client},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalOutput != "hello there" {
		t.Fatalf("unexpected final output: %q", result.FinalOutput)
	}
	if result.TurnCount != 0 {
		t.Fatalf("a single-turn Q&A should terminate at turn 0, got %d", result.TurnCount)
	}
	if result.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected usage: %+v", result.Usage)
	}
}

func TestRun_DynamicInstructions_ResolvedPerAgent(t *testing.T) {
	var gotInstructions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req responses.Request
		json.NewDecoder(r.Body).Decode(&req)
		gotInstructions = append(gotInstructions, req.Instructions)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textResponse("resp_1", "hello there"))
	}))
	defer srv.Close()

	agent := &AgentConfig{
		Name: "assistant",
		Instructions: DynamicInstructions(func(ctx context.Context, rc *runcontext.Wrapper, a *AgentConfig) (string, error) {
			return "you are " + a.Name, nil
		}),
		Model: "gpt-5",
	}
	client := responses.NewClient(responses.ApiConfig{BaseURL: srv.URL, APIKey: "test"})

	result, err := Run(context.Background(), RunParams{
		StartingAgent: agent,
		Input:         "hi",
		RunConfig:     RunConfig{ModelProvider: client},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalOutput != "hello there" {
		t.Fatalf("unexpected final output: %q", result.FinalOutput)
	}
	if len(gotInstructions) != 1 || gotInstructions[0] != "you are assistant" {
		t.Fatalf("expected the dynamically resolved instructions on the wire request, got %v", gotInstructions)
	}
}

func TestRun_SingleToolCall(t *testing.T) {
	srv, _ := sequencedServer(t,
		responses.Response{
			ID: "resp_1", Model: "gpt-5",
			Usage: responses.WireUsage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2},
			Output: []responses.WireItem{
				{Type: "function_call", CallID: "call_1", Name: "lookup", Arguments: `{"q":"weather"}`},
			},
		},
		textResponse("resp_2", "it is sunny"),
	)
	defer srv.Close()

	var sawArgs map[string]interface{}
	agent := &AgentConfig{
		Name:         "assistant",
		Instructions: StaticInstructions("be nice"),
		Model:        "gpt-5",
		Tools: []convo.Tool{{
			Name: "lookup",
			Execute: func(ctx context.Context, args map[string]interface{}, rc *runcontext.Wrapper) (interface{}, error) {
				sawArgs = args
				return "sunny", nil
			},
		}},
	}
	client := responses.NewClient(responses.ApiConfig{BaseURL: srv.URL, APIKey: "test"})

	result, err := Run(context.Background(), RunParams{
		StartingAgent: agent,
		Input:         "what's the weather",
		RunConfig:     RunConfig{ModelProvider: client},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalOutput != "it is sunny" {
		t.Fatalf("unexpected final output: %q", result.FinalOutput)
	}
	if sawArgs["q"] != "weather" {
		t.Fatalf("expected the tool to see decoded arguments, got %+v", sawArgs)
	}
}

func TestRun_ParallelToolCalls(t *testing.T) {
	srv, _ := sequencedServer(t,
		responses.Response{
			ID: "resp_1", Model: "gpt-5",
			Output: []responses.WireItem{
				{Type: "function_call", CallID: "call_1", Name: "a", Arguments: `{}`},
				{Type: "function_call", CallID: "call_2", Name: "b", Arguments: `{}`},
			},
		},
		textResponse("resp_2", "done"),
	)
	defer srv.Close()

	var order []string
	agent := &AgentConfig{
		Name:         "assistant",
		Instructions: StaticInstructions("x"),
		Model:        "gpt-5",
		Tools: []convo.Tool{
			{Name: "a", Execute: func(ctx context.Context, args map[string]interface{}, rc *runcontext.Wrapper) (interface{}, error) {
				time.Sleep(20 * time.Millisecond)
				order = append(order, "a")
				return "a-done", nil
			}},
			{Name: "b", Execute: func(ctx context.Context, args map[string]interface{}, rc *runcontext.Wrapper) (interface{}, error) {
				order = append(order, "b")
				return "b-done", nil
			}},
		},
	}
	client := responses.NewClient(responses.ApiConfig{BaseURL: srv.URL, APIKey: "test"})

	result, err := Run(context.Background(), RunParams{
		StartingAgent: agent,
		Input:         "do both",
		RunConfig:     RunConfig{ModelProvider: client},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalOutput != "done" {
		t.Fatalf("unexpected final output: %q", result.FinalOutput)
	}
	if len(order) != 2 || order[0] != "b" {
		t.Fatalf("expected the faster call 'b' to finish first even though 'a' was listed first, got %v", order)
	}

	var outputs []convo.Item
	for _, item := range result.Conversation {
		if item.Type == convo.ItemFunctionCallOutput {
			outputs = append(outputs, item)
		}
	}
	if len(outputs) != 2 || outputs[0].CallID != "call_1" || outputs[1].CallID != "call_2" {
		t.Fatalf("expected function_call_output items in input order regardless of completion order, got %+v", outputs)
	}
}

func TestRun_Handoff(t *testing.T) {
	srv, _ := sequencedServer(t,
		responses.Response{
			ID: "resp_1", Model: "gpt-5",
			Output: []responses.WireItem{
				{Type: "function_call", CallID: "call_1", Name: "handoff_to_billing", Arguments: `{"input":"route me"}`},
			},
		},
		textResponse("resp_2", "billing here, how can I help"),
	)
	defer srv.Close()

	billing := &AgentConfig{Name: "billing", Instructions: StaticInstructions("handle billing"), Model: "gpt-5"}
	triage := &AgentConfig{
		Name:         "triage",
		Instructions: StaticInstructions("route the user"),
		Model:        "gpt-5",
		Handoffs:     []handoff.Handoff{{TargetName: "billing", Next: billing}},
	}
	client := responses.NewClient(responses.ApiConfig{BaseURL: srv.URL, APIKey: "test"})

	var seenHandoff bool

	result, err := Run(context.Background(), RunParams{
		StartingAgent: triage,
		Input:         "i have a billing question",
		RunConfig:     RunConfig{ModelProvider: client},
		Hooks: &handoffObservingHooks{onHandoff: func(from, to string) {
			seenHandoff = from == "triage" && to == "billing"
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.LastAgentName != "billing" {
		t.Fatalf("expected the run to finish under the handoff target, got %q", result.LastAgentName)
	}
	if result.FinalOutput != "billing here, how can I help" {
		t.Fatalf("unexpected final output: %q", result.FinalOutput)
	}
	if !seenHandoff {
		t.Fatal("expected OnHandoff(triage, billing) to fire")
	}
	if result.TurnCount != 0 {
		t.Fatalf("a handoff resets the turn counter, expected 0 at termination, got %d", result.TurnCount)
	}
}

type handoffObservingHooks struct {
	NoOpRunHooks
	onHandoff func(from, to string)
}

func (h *handoffObservingHooks) OnHandoff(ctx context.Context, from, to string) {
	h.onHandoff(from, to)
}

func TestRun_InputGuardrailTrips_NoModelCallMade(t *testing.T) {
	srv, calls := sequencedServer(t, textResponse("resp_1", "should never be reached"))
	defer srv.Close()

	agent := &AgentConfig{
		Name:         "assistant",
		Instructions: StaticInstructions("x"),
		Model:        "gpt-5",
		InputGuardrails: []guardrail.InputGuardrail{{
			Name: "no-secrets",
			Validate: func(ctx context.Context, input convo.Conversation, rc *runcontext.Wrapper) (guardrail.TripwireError, error) {
				for _, item := range input {
					if strings.Contains(item.Content, "password") {
						return guardrail.TripwireError{Reason: "contains a password"}, nil
					}
				}
				return guardrail.TripwireError{}, nil
			},
		}},
	}
	client := responses.NewClient(responses.ApiConfig{BaseURL: srv.URL, APIKey: "test"})

	_, err := Run(context.Background(), RunParams{
		StartingAgent: agent,
		Input:         "my password is hunter2",
		RunConfig:     RunConfig{ModelProvider: client},
	})
	if err == nil {
		t.Fatal("expected the input guardrail to abort the run")
	}
	if !IsGuardrailTriggeredError(err) {
		t.Fatalf("expected a GuardrailTriggeredError, got %T: %v", err, err)
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("a tripped input guardrail must prevent any model call, got %d calls", *calls)
	}
}

func TestRun_MaxTurnsExceeded_ToolCallForcesTerminationOnSecondIteration(t *testing.T) {
	srv, calls := sequencedServer(t,
		responses.Response{
			ID: "resp_1", Model: "gpt-5",
			Output: []responses.WireItem{
				{Type: "function_call", CallID: "call_1", Name: "lookup", Arguments: `{}`},
			},
		},
	)
	defer srv.Close()

	agent := &AgentConfig{
		Name:         "assistant",
		Instructions: StaticInstructions("x"),
		Model:        "gpt-5",
		Tools: []convo.Tool{{
			Name: "lookup",
			Execute: func(ctx context.Context, args map[string]interface{}, rc *runcontext.Wrapper) (interface{}, error) {
				return "result", nil
			},
		}},
	}
	client := responses.NewClient(responses.ApiConfig{BaseURL: srv.URL, APIKey: "test"})

	_, err := Run(context.Background(), RunParams{
		StartingAgent: agent,
		Input:         "do the thing",
		RunConfig:     RunConfig{ModelProvider: client},
		MaxTurns:      1,
	})
	if err == nil {
		t.Fatal("expected MaxTurnsExceeded once the tool call pushes the turn counter to 1")
	}
	if !IsMaxTurnsExceededError(err) {
		t.Fatalf("expected a MaxTurnsExceededError, got %T: %v", err, err)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("max_turns=1 must allow exactly one model call before terminating, got %d", got)
	}
}

func TestRunStreamed_Transcript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"type":"response.created","response":{"id":"resp_1","model":"gpt-5"}}`,
			`{"type":"response.output_text.delta","delta":"hel"}`,
			`{"type":"response.output_text.delta","delta":"lo"}`,
			`{"type":"response.completed","response":{"id":"resp_1","model":"gpt-5","usage":{"input_tokens":1,"output_tokens":2,"total_tokens":3},"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"hello"}]}]}}`,
		}
		for _, f := range frames {
			w.Write([]byte("data: " + f + "\n\n"))
		}
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	agent := &AgentConfig{Name: "assistant", Instructions: StaticInstructions("x"), Model: "gpt-5"}
	client := responses.NewClient(responses.ApiConfig{BaseURL: srv.URL, APIKey: "test"})

	buf, err := RunStreamed(context.Background(), RunParams{
		StartingAgent: agent,
		Input:         "hi",
		RunConfig:     RunConfig{ModelProvider: client},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var types []events.Type
	var deltas []string
	var completedUsage usage.Usage
	for {
		next := buf.Next(2 * time.Second)
		if next.TimedOut {
			t.Fatal("stream buffer timed out before completing")
		}
		if next.Done {
			break
		}
		types = append(types, next.Event.Type)
		if next.Event.TextDelta != nil {
			deltas = append(deltas, next.Event.TextDelta.Text)
		}
		if next.Event.ResponseCompleted != nil {
			completedUsage = next.Event.ResponseCompleted.Usage
		}
	}

	if strings.Join(deltas, "") != "hello" {
		t.Fatalf("expected streamed deltas to reassemble to 'hello', got %v", deltas)
	}

	// Exact scenario 6 sequence: ResponseCreated -> TextDelta -> TextDelta ->
	// ResponseCompleted -> StreamComplete, with nothing duplicated or
	// trailing (no second ResponseCompleted from terminate, no stray
	// UsageUpdate after StreamComplete).
	want := []events.Type{
		events.TypeResponseCreated,
		events.TypeTextDelta,
		events.TypeTextDelta,
		events.TypeResponseCompleted,
		events.TypeStreamComplete,
	}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("expected event sequence %v, got %v", want, types)
	}
	if completedUsage.TotalTokens != 3 {
		t.Fatalf("expected ResponseCompleted to carry the turn's final usage, got %+v", completedUsage)
	}
}
