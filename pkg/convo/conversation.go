package convo

// ItemType tags the variant of a conversation Item.
type ItemType string

const (
	ItemMessage            ItemType = "message"
	ItemText               ItemType = "text"
	ItemFunctionCall       ItemType = "function_call"
	ItemFunctionCallOutput ItemType = "function_call_output"
	ItemHandoff            ItemType = "handoff"
)

// Item is a single tagged element of a Conversation. Exactly the fields
// matching Type are populated. Items are appended only — the Runner never
// mutates one in place — and ordering is the order in which they were
// generated (spec §3).
type Item struct {
	Type ItemType

	// message
	Role    string
	Content string

	// function_call
	CallID    string
	Name      string
	Arguments string

	// function_call_output
	Output string

	// handoff
	Target string
}

// Message builds a message{role, content} item.
func Message(role, content string) Item {
	return Item{Type: ItemMessage, Role: role, Content: content}
}

// Text builds a normalised assistant text{text} item.
func Text(text string) Item {
	return Item{Type: ItemText, Content: text}
}

// FunctionCall builds a function_call{call_id, name, arguments} item.
func FunctionCall(callID, name, arguments string) Item {
	return Item{Type: ItemFunctionCall, CallID: callID, Name: name, Arguments: arguments}
}

// FunctionCallOutput builds a function_call_output{call_id, output} item.
// callID must reference a prior FunctionCall item's CallID (spec §3
// invariant); the Runner is responsible for upholding that, not this
// constructor.
func FunctionCallOutput(callID, output string) Item {
	return Item{Type: ItemFunctionCallOutput, CallID: callID, Output: output}
}

// Handoff builds a rare bare handoff{target} item. In practice handoffs
// normally arrive as a function_call whose name is prefixed handoff_to_
// (spec §4.H); this variant exists for wire responses that emit a
// first-class handoff item instead.
func Handoff(target string) Item {
	return Item{Type: ItemHandoff, Target: target}
}

// Conversation is an ordered, append-only sequence of Items.
type Conversation []Item

// NewConversation wraps a plain string user input as a single
// message{role:"user"} item, per spec §3. Pass items directly (via
// append/concat) when the caller already has a structured conversation.
func NewConversation(userInput string) Conversation {
	return Conversation{Message("user", userInput)}
}

// Append returns a new Conversation with items appended; the receiver is
// left unmodified so callers holding an old reference (e.g. for retry
// diagnostics) keep a stable view.
func (c Conversation) Append(items ...Item) Conversation {
	out := make(Conversation, 0, len(c)+len(items))
	out = append(out, c...)
	out = append(out, items...)
	return out
}
