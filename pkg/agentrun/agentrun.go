// Package agentrun is the public façade (spec Component L): Run,
// RunAsync, and Stream wrap pkg/runner's state machine behind the three
// call shapes spec §4.L names, hiding the internal package layering from
// callers the way the teacher's pkg/agent exposes ToolLoopAgent while
// keeping toolloop.go's mechanics internal.
package agentrun

import (
	"context"
	"sync"
	"time"

	"github.com/digitallysavvy/agentrun/pkg/events"
	"github.com/digitallysavvy/agentrun/pkg/runner"
)

// DefaultTimeout bounds a synchronous Run call (spec §4.K "Numeric & edge
// semantics": default 60s).
const DefaultTimeout = 60 * time.Second

// Options configures a single call to Run, RunAsync, or Stream. Timeout of
// zero uses DefaultTimeout for Run; RunAsync and Stream are bounded only by
// the context the caller passes (or cancels) themselves.
type Options struct {
	MaxTurns           uint64
	Context            any
	Hooks              runner.RunHooks
	RunConfig          runner.RunConfig
	PreviousResponseID string
	Timeout            time.Duration
}

func (o Options) toParams(agent *runner.AgentConfig, input string) runner.RunParams {
	return runner.RunParams{
		StartingAgent:      agent,
		Input:              input,
		Context:            o.Context,
		MaxTurns:           o.MaxTurns,
		Hooks:              o.Hooks,
		RunConfig:          o.RunConfig,
		PreviousResponseID: o.PreviousResponseID,
	}
}

// Run executes agent synchronously, blocking until a final output, an
// error, or opts.Timeout (default DefaultTimeout) elapses.
func Run(ctx context.Context, agent *runner.AgentConfig, input string, opts Options) (*runner.RunResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return runner.Run(ctx, opts.toParams(agent, input))
}

// Handle is a cancellable in-flight run started by RunAsync.
type Handle struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	done   bool
	result *runner.RunResult
	err    error
	wait   chan struct{}
}

// RunAsync starts agent on a background goroutine and returns immediately
// with a Handle the caller can Cancel or Wait on.
func RunAsync(ctx context.Context, agent *runner.AgentConfig, input string, opts Options) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, wait: make(chan struct{})}

	go func() {
		defer close(h.wait)
		result, err := runner.Run(runCtx, opts.toParams(agent, input))
		h.mu.Lock()
		h.done = true
		h.result = result
		h.err = err
		h.mu.Unlock()
	}()

	return h
}

// Cancel aborts the in-flight run. A run already finished is unaffected.
func (h *Handle) Cancel() { h.cancel() }

// Wait blocks until the run finishes (normally, on error, or via Cancel)
// and returns its outcome.
func (h *Handle) Wait() (*runner.RunResult, error) {
	<-h.wait
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// Done reports whether the run has finished without blocking.
func (h *Handle) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// Stream starts agent on a background goroutine and returns a StreamBuffer
// the caller drains with Next(timeout); dropping the returned buffer
// (never calling Next again) leaves the run to finish on its own, since
// stream production is driven by the Runner, not by the reader pulling
// (spec §4.F: emission and consumption are decoupled).
func Stream(ctx context.Context, agent *runner.AgentConfig, input string, opts Options) (*runner.StreamBuffer, error) {
	return runner.RunStreamed(ctx, opts.toParams(agent, input))
}

// DrainEvents is a convenience for tests and small examples: it pulls every
// event from buf until Done, using perEventTimeout for each Next call, and
// returns them in order. It also stops, returning what it has so far, when
// a Next call times out.
func DrainEvents(buf *runner.StreamBuffer, perEventTimeout time.Duration) []events.StreamEvent {
	var out []events.StreamEvent
	for {
		next := buf.Next(perEventTimeout)
		if next.TimedOut {
			break
		}
		if next.Done {
			break
		}
		out = append(out, next.Event)
	}
	return out
}
