package runner

import (
	"sync"
	"time"

	"github.com/digitallysavvy/agentrun/pkg/events"
)

// StreamBuffer is the in-memory FIFO with a single consumer (spec
// Component F). The queue has no size limit: Emit never blocks and never
// drops an event, however far the consumer falls behind. It decouples wire-event production (driven by the model
// adapter inside the Runner) from the rate at which a stream consumer
// pulls events, following the goroutine + mutex + channel idiom the
// teacher's pkg/ai/stream.go uses for its own chunk channel, narrowed to
// the tighter emit/complete/next(timeout) contract spec.md requires.
type StreamBuffer struct {
	mu        sync.Mutex
	readerMu  sync.Mutex // serialises Next calls: at most one suspended reader
	queue     []events.StreamEvent
	completed bool
	notify    chan struct{}
}

// NewStreamBuffer returns an empty, not-yet-completed buffer.
func NewStreamBuffer() *StreamBuffer {
	return &StreamBuffer{notify: make(chan struct{}, 1)}
}

// Emit appends an event to the queue in order. Emitting after Complete is a
// no-op — "once completed?, no further emits are accepted" (spec §3).
func (b *StreamBuffer) Emit(e events.StreamEvent) {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, e)
	b.mu.Unlock()
	b.wake()
}

// Complete marks the buffer as finished. Events already queued are still
// delivered by subsequent Next calls; only once the queue drains does Next
// start returning Done.
func (b *StreamBuffer) Complete() {
	b.mu.Lock()
	b.completed = true
	b.mu.Unlock()
	b.wake()
}

func (b *StreamBuffer) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// NextResult is the tri-state return of Next: exactly one field is
// meaningful, selected by Done/TimedOut.
type NextResult struct {
	Event    events.StreamEvent
	Done     bool
	TimedOut bool
}

// Next returns the next queued event immediately if one is available;
// otherwise it suspends until an event is emitted, the buffer completes, or
// timeout elapses, whichever comes first. Only one goroutine may be
// suspended in Next at a time (enforced via readerMu) per spec §4.F.
func (b *StreamBuffer) Next(timeout time.Duration) NextResult {
	b.readerMu.Lock()
	defer b.readerMu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			e := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return NextResult{Event: e}
		}
		if b.completed {
			b.mu.Unlock()
			return NextResult{Done: true}
		}
		b.mu.Unlock()

		select {
		case <-b.notify:
			continue
		case <-deadline.C:
			return NextResult{TimedOut: true}
		}
	}
}
