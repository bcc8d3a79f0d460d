// Package guardrail implements the input/output validator pipeline (spec
// Component I). Input guardrails run in parallel and stop on the first
// tripwire, following the sync.WaitGroup + context.WithCancel +
// first-failure-wins shape used for input guardrails in
// nlpodyssey/openai-agents-go's runner. Output guardrails run one after
// another as an ordered pipeline and stop at the first tripwire.
package guardrail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/digitallysavvy/agentrun/pkg/convo"
	"github.com/digitallysavvy/agentrun/pkg/runcontext"
)

// Result carries a guardrail's verdict plus the caller-supplied metadata
// that accompanies a refusal.
type Result struct {
	Reason string
	Meta   map[string]interface{}
}

// InputGuardrail validates the conversation before a model call is made.
// Returning a non-zero TripwireError aborts the run with GuardrailTriggered.
type InputGuardrail struct {
	Name     string
	Validate func(ctx context.Context, input convo.Conversation, rc *runcontext.Wrapper) (TripwireError, error)
}

// OutputGuardrail validates (and may transform) the final text output. A
// non-nil transformed return replaces the output seen by subsequent
// guardrails in the pipeline (spec §4.I "ordered pipeline"); nil means the
// guardrail passed the output through unchanged, which is distinct from
// transforming it into an empty string.
type OutputGuardrail struct {
	Name     string
	Validate func(ctx context.Context, output string, rc *runcontext.Wrapper) (transformed *string, trip TripwireError, err error)
}

// TripwireError is returned by a guardrail's Validate function to signal a
// refusal; the zero value means the guardrail passed.
type TripwireError struct {
	Reason string
	Meta   map[string]interface{}
}

func (t *TripwireError) Error() string {
	if t == nil {
		return ""
	}
	return t.Reason
}

func Trip(reason string, meta map[string]interface{}) *TripwireError {
	return &TripwireError{Reason: reason, Meta: meta}
}

// TrippedError is the aborting error surfaced to the Runner when an input
// guardrail trips. It is distinct from runner.GuardrailTriggeredError only
// because this package must not import pkg/runner (which imports this
// package) — the Runner wraps this into its own typed error at the call
// site.
type TrippedError struct {
	Module string
	Reason string
	Meta   map[string]interface{}
}

func (e *TrippedError) Error() string {
	return fmt.Sprintf("guardrail %q tripped: %s", e.Module, e.Reason)
}

// RunInput runs every input guardrail concurrently. A guardrail that panics
// is treated as that guardrail's own tripwire — spec §4.I: an uncaught
// exception becomes {:error, exception-message, {exception: raw}}, which §7
// surfaces as GuardrailTriggered, the same as an explicit Trip(). The first
// tripwire or panic observed cancels the rest and is returned as
// *TrippedError; any other guardrail errors are joined and returned instead
// if nothing tripped.
func RunInput(ctx context.Context, guardrails []InputGuardrail, input convo.Conversation, rc *runcontext.Wrapper) error {
	if len(guardrails) == 0 {
		return nil
	}

	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, len(guardrails))
	var tripped atomic.Pointer[TrippedError]

	var wg sync.WaitGroup
	wg.Add(len(guardrails))
	for i, g := range guardrails {
		i, g := i, g
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					tripped.CompareAndSwap(nil, &TrippedError{
						Module: g.Name,
						Reason: fmt.Sprintf("%v", r),
						Meta:   map[string]interface{}{"exception": r},
					})
					cancel()
				}
			}()

			trip, err := g.Validate(childCtx, input, rc)
			if err != nil {
				errs[i] = fmt.Errorf("guardrail %q failed: %w", g.Name, err)
				cancel()
				return
			}
			if (*TripwireError)(nil) != trip.toPtr() {
				tripped.CompareAndSwap(nil, &TrippedError{Module: g.Name, Reason: trip.Reason, Meta: trip.Meta})
				cancel()
			}
		}()
	}
	wg.Wait()

	if t := tripped.Load(); t != nil {
		return t
	}
	return errors.Join(errs...)
}

// toPtr lets a zero-value TripwireError mean "no trip" without requiring
// every Validate implementation to return a typed nil pointer.
func (t TripwireError) toPtr() *TripwireError {
	if t.Reason == "" && t.Meta == nil {
		return nil
	}
	return &t
}

// RunOutput runs every output guardrail as an ordered pipeline: each
// guardrail sees the output of the previous one, so they cannot run
// concurrently with each other (unlike input guardrails, which share no
// data dependency). The first tripwire aborts and returns the transformed
// output seen so far.
func RunOutput(ctx context.Context, guardrails []OutputGuardrail, output string, rc *runcontext.Wrapper) (string, error) {
	current := output
	for _, g := range guardrails {
		transformed, trip, err := func() (out *string, t TripwireError, e error) {
			defer func() {
				if r := recover(); r != nil {
					// spec §4.I: an uncaught exception is that guardrail's
					// own tripwire, not a generic error.
					t = TripwireError{Reason: fmt.Sprintf("%v", r), Meta: map[string]interface{}{"exception": r}}
				}
			}()
			return g.Validate(ctx, current, rc)
		}()
		if err != nil {
			return current, fmt.Errorf("guardrail %q failed: %w", g.Name, err)
		}
		if trip.toPtr() != nil {
			return current, &TrippedError{Module: g.Name, Reason: trip.Reason, Meta: trip.Meta}
		}
		if transformed != nil {
			current = *transformed
		}
	}
	return current, nil
}
