// Package responses is the Model adapter (spec Component D): it serialises
// a Request, POSTs it to <base_url>/responses, and parses either a single
// JSON response or a Server-Sent-Events stream into normalised output
// items. Wire item shapes are adapted from the teacher's
// pkg/providers/openai/responses/api_types.go, which already modelled this
// exact endpoint family.
package responses

import "encoding/json"

// Request is the JSON body sent to POST <base_url>/responses (spec §6).
// Fields are tagged omitempty so nil/zero optional fields are dropped, per
// "null fields are omitted".
type Request struct {
	Model              string      `json:"model"`
	Instructions       string      `json:"instructions,omitempty"`
	Input              []WireItem  `json:"input"`
	Tools              []ToolDef   `json:"tools,omitempty"`
	Temperature        *float64    `json:"temperature,omitempty"`
	TopP               *float64    `json:"top_p,omitempty"`
	ToolChoice         interface{} `json:"tool_choice,omitempty"`
	ParallelToolCalls  *bool       `json:"parallel_tool_calls,omitempty"`
	Stream             bool        `json:"stream,omitempty"`
	Text               *TextFormat `json:"text,omitempty"`
	PreviousResponseID string      `json:"previous_response_id,omitempty"`

	// Extra carries fields the core does not interpret (spec §9 Open
	// Question: max_tokens and similar pass-through knobs), merged
	// verbatim into the serialised request body by MarshalJSON.
	Extra map[string]interface{} `json:"-"`
}

// MarshalJSON serialises Request's named fields, then merges Extra's keys
// in without overwriting a named field of the same key.
func (r Request) MarshalJSON() ([]byte, error) {
	type alias Request
	base, err := json.Marshal(alias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}
	var merged map[string]interface{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// TextFormat carries the optional structured-output schema block (spec
// §4.D: "derived from the last dotted component of the schema identifier").
type TextFormat struct {
	Format FormatSpec `json:"format"`
}

type FormatSpec struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Schema interface{} `json:"schema"`
}

// ToolDef is one entry of the request's tools[] array. Per spec §6, name
// and description sit at the entry's top level; only parameters nests
// under "function". Only the "function" shape is populated by this
// engine; other variants exist on the wire (see LocalShellToolDef etc. in
// teacher lineage) but are out of spec scope.
type ToolDef struct {
	Type        string       `json:"type"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	Function    *FunctionDef `json:"function,omitempty"`
}

type FunctionDef struct {
	Parameters interface{} `json:"parameters,omitempty"`
}

// WireItem is one element of Request.Input or Response.Output. Only the
// fields relevant to its Type are populated; Content nests sub-items for
// message-typed entries.
type WireItem struct {
	Type    string         `json:"type"`
	Role    string         `json:"role,omitempty"`
	Content []WireContent  `json:"content,omitempty"`
	ID      string         `json:"id,omitempty"`
	CallID  string         `json:"call_id,omitempty"`
	Name    string         `json:"name,omitempty"`
	Arguments string       `json:"arguments,omitempty"`
	Output  string         `json:"output,omitempty"`
	Target  string         `json:"target,omitempty"`
}

// WireContent is one content part inside a message WireItem.
type WireContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// ToolUse-shaped content parts (message.content[*].type == "tool_use").
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Response is the non-streaming success body (spec §6).
type Response struct {
	ID        string       `json:"id"`
	Model     string       `json:"model"`
	CreatedAt int64        `json:"created_at"`
	Usage     WireUsage    `json:"usage"`
	Output    []WireItem   `json:"output"`
}

// WireUsage carries the wire names input_tokens/output_tokens/total_tokens;
// the adapter maps these onto the canonical usage.Usage fields (spec §4.A).
type WireUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// WireEvent is one parsed `data: {...}` SSE frame body (spec §4.E).
type WireEvent struct {
	Type          string     `json:"type"`
	Response      *Response  `json:"response,omitempty"`
	Delta         string     `json:"delta,omitempty"`
	ContentIndex  int        `json:"content_index,omitempty"`
	OutputIndex   int        `json:"output_index,omitempty"`
	ItemID        string     `json:"item_id,omitempty"`
	Item          *WireItem  `json:"item,omitempty"`
}
