package commands

import (
	"context"

	"github.com/vfbarros/zapflow/internal/flow"
	"github.com/vfbarros/zapflow/internal/types"
)

// HandlerFunc is the signature shared by plain command handlers and flow
// step handlers. Errors are caught at the router boundary; handlers never
// crash the dispatch loop.
type HandlerFunc func(ctx context.Context, req *Request) error

// Request is the normalized parameter object handed to every handler.
type Request struct {
	Message *types.InboundMessage

	Command string   // Resolved command name (empty for state continuations)
	Args    []string // Whitespace-split arguments after the command name
	RawArgs string   // Everything after the command name, untrimmed of internal spacing

	// Flow is the capability bundle for mutating this user's conversation
	// state. Set for state continuations and for commands registered with
	// Flows: true; nil for plain handlers.
	Flow *flow.Context

	// Respond enqueues an outbound message to the sender's chat through
	// the send queue. Best-effort; the router does not await delivery.
	Respond func(content *types.Outbound)
}

// Reply is a convenience for plain-text responses.
func (r *Request) Reply(text string) {
	if r.Respond != nil {
		r.Respond(types.TextMessage(text))
	}
}

// Command is a registered chat command.
type Command struct {
	Name        string   // e.g. "form" (no prefix, lowercase)
	Description string   // Shown in help listings
	Usage       string   // Subcommand usage, e.g. "listar|limpar <user>" (optional)
	Aliases     []string // Alternate names
	Plugin      string   // Owning plugin namespace (stamped by the host if empty)

	// Flows marks the handler as flow-capable: the router supplies a
	// FlowContext bound to the sender so the handler may begin a flow.
	Flows bool

	Handler HandlerFunc
}
