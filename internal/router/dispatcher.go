// Package router implements the conversation dispatch algorithm: each
// inbound message is classified as a state continuation, an interactive
// reply, a command, or plain text, and delivered to the matching handler.
// Nothing a handler does can crash the dispatch loop.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vfbarros/zapflow/internal/commands"
	"github.com/vfbarros/zapflow/internal/flow"
	"github.com/vfbarros/zapflow/internal/state"
	"github.com/vfbarros/zapflow/internal/types"

	"github.com/vfbarros/zapflow/internal/logging"
)

// Outcome is the terminal classification of one inbound message.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeStateContinuation
	OutcomeInteractiveReply
	OutcomeCommand
	OutcomePlain
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeStateContinuation:
		return "state"
	case OutcomeInteractiveReply:
		return "interactive"
	case OutcomeCommand:
		return "command"
	case OutcomePlain:
		return "plain"
	}
	return "unknown"
}

// Outbox is the narrow surface of the outbound send queue the router
// needs. Sends are fire-and-forget; pacing and ordering live behind it.
type Outbox interface {
	Enqueue(recipient string, content *types.Outbound)
}

// Listener receives Plain messages (free text, no active flow, no
// prefix) and decides independently whether to act.
type Listener func(ctx context.Context, msg *types.InboundMessage)

// Config holds the router's configuration surface.
type Config struct {
	Prefix string // Command prefix, e.g. "!"
}

// Dispatcher routes inbound messages. Construct with New and feed it
// through Submit; Run consumes the queue one message at a time in
// arrival order, which serializes all state access.
type Dispatcher struct {
	cfgMu    sync.RWMutex
	cfg      Config
	store    *state.Store
	registry *commands.Registry
	outbox   Outbox

	listeners []Listener

	inbox chan *types.InboundMessage
	done  chan struct{}

	stats Stats
}

// New creates a dispatcher. The prefix defaults to "!" if empty.
func New(cfg Config, store *state.Store, registry *commands.Registry, outbox Outbox) *Dispatcher {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	return &Dispatcher{
		cfg:      cfg,
		store:    store,
		registry: registry,
		outbox:   outbox,
		inbox:    make(chan *types.InboundMessage, 256),
		done:     make(chan struct{}),
	}
}

// AddListener registers a passive listener for Plain messages. Must be
// called before Run.
func (d *Dispatcher) AddListener(l Listener) {
	d.listeners = append(d.listeners, l)
}

// SetPrefix changes the command prefix at runtime (config reload).
func (d *Dispatcher) SetPrefix(prefix string) {
	if prefix == "" {
		return
	}
	d.cfgMu.Lock()
	d.cfg.Prefix = prefix
	d.cfgMu.Unlock()
	logging.L_info("router: command prefix changed", "prefix", prefix)
}

func (d *Dispatcher) prefix() string {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg.Prefix
}

// Submit queues an inbound message for dispatch. Blocks if the inbox is
// full so arrival order is preserved.
func (d *Dispatcher) Submit(msg *types.InboundMessage) {
	if logging.IsShuttingDown() {
		return
	}
	d.inbox <- msg
}

// Run consumes the inbox until ctx is cancelled. Handlers run
// synchronously inside this loop; the next message is not dispatched
// until the current handler returns.
func (d *Dispatcher) Run(ctx context.Context) {
	logging.L_info("router: dispatch loop started", "prefix", d.prefix())
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			logging.L_info("router: dispatch loop stopped")
			return
		case msg := <-d.inbox:
			d.Handle(ctx, msg)
		}
	}
}

// Wait blocks until the dispatch loop has exited.
func (d *Dispatcher) Wait() {
	<-d.done
}

// Handle classifies and dispatches a single message. Exported so tests
// and embedders can drive the router synchronously.
func (d *Dispatcher) Handle(ctx context.Context, msg *types.InboundMessage) Outcome {
	// 1. Ignore: no usable body, or broadcast/status origin.
	if msg == nil || msg.Sender == "" || isBroadcast(msg.Chat) {
		d.stats.Ignored.Add(1)
		return OutcomeIgnored
	}
	if msg.Text == "" && !msg.IsSelection() {
		d.stats.Ignored.Add(1)
		return OutcomeIgnored
	}

	d.stats.Dispatched.Add(1)

	// 2. State continuation: an active flow's step handler gets first
	// refusal, including on messages that start with the command prefix.
	if st := d.store.Get(msg.Sender); st != nil {
		// Activity counts even if the handler invocation fails.
		d.store.Touch(msg.Sender)

		handler := d.registry.ResolveState(st.OwnerPlugin, st.CurrentStep)
		if handler != nil {
			d.invokeState(ctx, msg, st, handler)
			d.stats.StateContinuations.Add(1)
			return OutcomeStateContinuation
		}

		// Fail soft: no handler for this step means the message is
		// treated as not belonging to a flow.
		logging.L_warn("router: no handler for flow step, falling through",
			"user", msg.Sender, "plugin", st.OwnerPlugin, "step", st.CurrentStep)
	}

	// 3. Interactive reply: structured selection, no active flow step to
	// consume it. Baseline behavior acknowledges the selection; plugins
	// wire selections to transitions via their own flow steps.
	if msg.IsSelection() {
		logging.L_debug("router: interactive reply acknowledged", "user", msg.Sender, "selection", msg.SelectionID)
		if msg.Raw != nil {
			d.outbox.Enqueue(msg.Chat, &types.Outbound{Reaction: "👍", QuoteOf: msg.Raw})
		}
		d.stats.Interactive.Add(1)
		return OutcomeInteractiveReply
	}

	// 4. Command dispatch.
	if strings.HasPrefix(msg.Text, d.prefix()) {
		d.dispatchCommand(ctx, msg)
		d.stats.Commands.Add(1)
		return OutcomeCommand
	}

	// 5. Plain: forwarded to passive listeners, each isolated.
	for _, l := range d.listeners {
		d.invokeListener(ctx, l, msg)
	}
	d.stats.Plain.Add(1)
	return OutcomePlain
}

// invokeState runs an active flow's step handler. The handler is solely
// responsible for updateState/clearState/replies; the router infers no
// transitions. Errors leave the state exactly as the handler left it.
func (d *Dispatcher) invokeState(ctx context.Context, msg *types.InboundMessage, st *state.ConversationState, handler commands.HandlerFunc) {
	req := &commands.Request{
		Message: msg,
		Flow:    flow.NewContext(d.store, msg.Sender, st.OwnerPlugin),
		Respond: d.responder(msg.Chat),
	}

	if err := d.invoke(ctx, handler, req); err != nil {
		d.stats.HandlerErrors.Add(1)
		logging.L_error("router: flow step handler failed",
			"user", msg.Sender, "plugin", st.OwnerPlugin, "step", st.CurrentStep, "error", err)
		// Best-effort notice; enqueue failures are the queue's problem.
		d.outbox.Enqueue(msg.Chat, types.TextMessage("Something went wrong handling your reply. Please try again."))
	}
}

// dispatchCommand parses and runs a prefixed command.
func (d *Dispatcher) dispatchCommand(ctx context.Context, msg *types.InboundMessage) {
	body := strings.TrimPrefix(msg.Text, d.prefix())
	fields := strings.Fields(body)
	if len(fields) == 0 {
		d.stats.UnknownCommands.Add(1)
		d.outbox.Enqueue(msg.Chat, types.TextMessage("Command not recognized."))
		return
	}

	name := strings.ToLower(fields[0])
	args := fields[1:]
	rawArgs := strings.TrimSpace(strings.TrimPrefix(body, fields[0]))

	cmd := d.registry.Resolve(name)
	if cmd == nil {
		d.stats.UnknownCommands.Add(1)
		logging.L_debug("router: unknown command", "user", msg.Sender, "command", name)
		d.outbox.Enqueue(msg.Chat, types.TextMessage(fmt.Sprintf("Command %q not recognized.", name)))
		return
	}

	req := &commands.Request{
		Message: msg,
		Command: name,
		Args:    args,
		RawArgs: rawArgs,
		Respond: d.responder(msg.Chat),
	}
	if cmd.Flows {
		owner := cmd.Plugin
		if owner == "" {
			owner = cmd.Name
		}
		req.Flow = flow.NewContext(d.store, msg.Sender, owner)
	}

	if err := d.invoke(ctx, cmd.Handler, req); err != nil {
		d.stats.HandlerErrors.Add(1)
		logging.L_error("router: command handler failed", "user", msg.Sender, "command", name, "error", err)
		d.outbox.Enqueue(msg.Chat, types.TextMessage(fmt.Sprintf("Command failed: %v", err)))
	}
}

// invoke runs a handler with panic containment. A panicking handler is
// reported as an ordinary handler error.
func (d *Dispatcher) invoke(ctx context.Context, handler commands.HandlerFunc, req *commands.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, req)
}

func (d *Dispatcher) invokeListener(ctx context.Context, l Listener, msg *types.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			logging.L_error("router: passive listener panic", "error", r)
		}
	}()
	l(ctx, msg)
}

func (d *Dispatcher) responder(chat string) func(*types.Outbound) {
	return func(content *types.Outbound) {
		d.outbox.Enqueue(chat, content)
	}
}

// isBroadcast reports whether a chat identifier is a broadcast/status
// channel rather than a real conversation.
func isBroadcast(chat string) bool {
	return chat == "status@broadcast" || strings.HasSuffix(chat, "@broadcast") || strings.HasSuffix(chat, "@newsletter")
}
