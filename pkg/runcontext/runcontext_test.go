package runcontext

import (
	"sync"
	"testing"

	"github.com/digitallysavvy/agentrun/pkg/usage"
)

func TestUpdateUsage_Accumulates(t *testing.T) {
	w := New(nil)
	w.UpdateUsage(usage.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	got := w.UpdateUsage(usage.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2})

	want := usage.Usage{PromptTokens: 11, CompletionTokens: 6, TotalTokens: 17}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if w.Usage() != want {
		t.Fatalf("Usage() snapshot mismatch: got %+v, want %+v", w.Usage(), want)
	}
}

func TestMetadata_RoundTrip(t *testing.T) {
	w := New("opaque-value")
	if w.Value != "opaque-value" {
		t.Fatalf("expected Value to be preserved, got %v", w.Value)
	}

	if _, ok := w.GetMetadata("missing"); ok {
		t.Fatal("expected missing key to report ok=false")
	}

	w.SetMetadata("key", 42)
	v, ok := w.GetMetadata("key")
	if !ok || v != 42 {
		t.Fatalf("expected (42, true), got (%v, %v)", v, ok)
	}
}

func TestUpdateUsage_ConcurrentCallersAreSerialised(t *testing.T) {
	w := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.UpdateUsage(usage.Usage{PromptTokens: 1})
		}()
	}
	wg.Wait()

	if got := w.Usage().PromptTokens; got != 100 {
		t.Fatalf("expected 100 accumulated prompt tokens, got %d", got)
	}
}
