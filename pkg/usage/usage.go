// Package usage holds the canonical token-usage accumulator shared by the
// model adapter, the Runner, and the event types — it lives in its own
// package so that neither side needs to import the other's package just to
// name a Usage value.
package usage

// Usage is the canonical token-usage record accumulated across the turns of
// a single run. Wire responses name these fields input_tokens/output_tokens;
// the model adapter maps both onto these canonical names before they ever
// reach the Runner.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Add returns the componentwise sum of u and other. Missing fields on
// either side are treated as zero; there is no overflow guard beyond
// natural int64 arithmetic.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// FromWire builds a Usage from the Responses API's wire names.
func FromWire(inputTokens, outputTokens, totalTokens int64) Usage {
	return Usage{
		PromptTokens:     inputTokens,
		CompletionTokens: outputTokens,
		TotalTokens:      totalTokens,
	}
}
