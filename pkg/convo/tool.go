package convo

import (
	"context"
	"time"

	"github.com/digitallysavvy/agentrun/pkg/runcontext"
)

// ToolExecutor runs a tool's body. args is the decoded JSON object the
// model supplied as arguments (an empty map if decoding failed — spec
// §4.G step 2: "decode arguments as JSON, failure ⇒ empty object").
type ToolExecutor func(ctx context.Context, args map[string]interface{}, rc *runcontext.Wrapper) (interface{}, error)

// Tool is a user-supplied function the model may invoke by name (spec
// GLOSSARY). Parameters is forwarded verbatim as the tool's JSON-Schema in
// the request's tools[].function.parameters field — the engine never
// parses or validates it (spec §1 Non-goals).
type Tool struct {
	Name        string
	Description string
	Parameters  interface{}
	Execute     ToolExecutor

	// OnError, if set, transforms a panic/error from Execute into the
	// error string recorded for that call. If unset, the panic/error's
	// own message is used (spec §4.G step 3).
	OnError func(err error) string

	// Timeout overrides the dispatcher's default per-call timeout (30s)
	// for this tool specifically. Zero means use the default.
	Timeout time.Duration
}
