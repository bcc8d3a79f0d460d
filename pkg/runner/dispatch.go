package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/digitallysavvy/agentrun/pkg/convo"
	"github.com/digitallysavvy/agentrun/pkg/internal/jsonutil"
	"github.com/digitallysavvy/agentrun/pkg/runcontext"
)

// DefaultToolTimeout is the per-call timeout applied when a Tool does not
// override it (spec §4.G, §4.K "Numeric & edge semantics").
const DefaultToolTimeout = 30 * time.Second

// DispatchCall is one function-call item routed to the dispatcher.
type DispatchCall struct {
	CallID    string
	Name      string
	Arguments string
}

// DispatchResult is the {call_id, result} pair spec §4.G step 4 requires,
// pre-serialised to the JSON string a function_call_output item carries.
type DispatchResult struct {
	CallID string
	Output string
	Err    error
}

// Dispatch resolves each call to a tool by name, invokes every tool in the
// batch concurrently, and returns results in the original input order
// regardless of completion order (spec §4.G, §5 "Ordering guarantees").
// A call naming an unknown tool, a panic inside Execute, and a per-call
// timeout are all reported as a non-nil DispatchResult.Err for that call
// alone — they never abort the batch. Arguments that fail to decode are
// passed through jsonutil.FixJSON and, if still undecodable, replaced by
// an empty object; the tool is then invoked with them.
func Dispatch(ctx context.Context, calls []DispatchCall, tools []convo.Tool, rc *runcontext.Wrapper) []DispatchResult {
	byName := make(map[string]convo.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	results := make([]DispatchResult, len(calls))
	done := make(chan int, len(calls))

	for i, call := range calls {
		i, call := i, call
		go func() {
			results[i] = dispatchOne(ctx, call, byName, rc)
			done <- i
		}()
	}
	for range calls {
		<-done
	}
	return results
}

func dispatchOne(ctx context.Context, call DispatchCall, byName map[string]convo.Tool, rc *runcontext.Wrapper) DispatchResult {
	tool, ok := byName[call.Name]
	if !ok {
		return DispatchResult{CallID: call.CallID, Err: fmt.Errorf("unknown tool %q", call.Name)}
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || args == nil {
		// Models occasionally emit near-valid JSON arguments (trailing
		// commas, unquoted keys); try a repair pass before giving up and
		// dispatching with an empty argument set.
		if fixed, fixErr := jsonutil.FixJSON(call.Arguments); fixErr == nil {
			json.Unmarshal([]byte(fixed), &args)
		}
		if args == nil {
			args = map[string]interface{}{}
		}
	}

	timeout := tool.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	outcomeCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				msg := fmt.Sprintf("%v", r)
				if tool.OnError != nil {
					msg = tool.OnError(fmt.Errorf("%v", r))
				}
				outcomeCh <- outcome{err: fmt.Errorf("%s", msg)}
			}
		}()
		result, err := tool.Execute(callCtx, args, rc)
		if err != nil && tool.OnError != nil {
			err = fmt.Errorf("%s", tool.OnError(err))
		}
		outcomeCh <- outcome{result: result, err: err}
	}()

	select {
	case o := <-outcomeCh:
		if o.err != nil {
			return DispatchResult{CallID: call.CallID, Err: o.err}
		}
		payload, err := json.Marshal(o.result)
		if err != nil {
			return DispatchResult{CallID: call.CallID, Err: fmt.Errorf("encoding tool result: %w", err)}
		}
		return DispatchResult{CallID: call.CallID, Output: string(payload)}
	case <-callCtx.Done():
		return DispatchResult{CallID: call.CallID, Err: fmt.Errorf("timeout")}
	}
}
