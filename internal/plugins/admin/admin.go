// Package admin exposes the state store's control surface as ordinary
// chat commands: list, inspect, clear and persist conversation states.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vfbarros/zapflow/internal/commands"
	"github.com/vfbarros/zapflow/internal/plugins"
	"github.com/vfbarros/zapflow/internal/state"
)

// Plugin implements the administrative commands.
type Plugin struct {
	states *state.Store
}

// New creates the admin plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string        { return "admin" }
func (p *Plugin) Description() string { return "Conversation state administration" }
func (p *Plugin) Version() string     { return "1.0.0" }

func (p *Plugin) Initialize(deps plugins.Deps) error {
	if deps.States == nil {
		return fmt.Errorf("admin plugin requires the state store")
	}
	p.states = deps.States
	return nil
}

func (p *Plugin) Shutdown() error { return nil }

func (p *Plugin) Commands() []*commands.Command {
	return []*commands.Command{
		{
			Name:        "estados",
			Description: "Manage conversation states",
			Usage:       "listar|ver <user>|limpar <user>|limpartudo|salvar",
			Handler:     p.handle,
		},
	}
}

func (p *Plugin) handle(ctx context.Context, req *commands.Request) error {
	if len(req.Args) == 0 {
		req.Reply("Usage: estados " + "listar|ver <user>|limpar <user>|limpartudo|salvar")
		return nil
	}

	switch strings.ToLower(req.Args[0]) {
	case "listar":
		p.list(req)
	case "ver":
		if len(req.Args) < 2 {
			req.Reply("Usage: estados ver <user>")
			return nil
		}
		p.show(req, req.Args[1])
	case "limpar":
		if len(req.Args) < 2 {
			req.Reply("Usage: estados limpar <user>")
			return nil
		}
		p.clear(req, req.Args[1])
	case "limpartudo":
		n := p.states.ClearAll()
		req.Reply(fmt.Sprintf("Cleared %d state(s).", n))
	case "salvar":
		if err := p.states.Persist(); err != nil {
			req.Reply(fmt.Sprintf("Persist failed: %v", err))
			return nil
		}
		req.Reply("States persisted to disk.")
	default:
		req.Reply(fmt.Sprintf("Unknown subcommand %q.", req.Args[0]))
	}
	return nil
}

func (p *Plugin) list(req *commands.Request) {
	all := p.states.All()
	if len(all) == 0 {
		req.Reply("No active states.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active states (%d):\n", len(all))
	for user, st := range all {
		fmt.Fprintf(&b, "• %s → %s/%s (last activity %s)\n",
			user, st.OwnerPlugin, st.CurrentStep, st.LastActivityAt.Format("2006-01-02 15:04"))
	}
	req.Reply(strings.TrimRight(b.String(), "\n"))
}

func (p *Plugin) show(req *commands.Request, user string) {
	st := p.states.Get(user)
	if st == nil {
		req.Reply(fmt.Sprintf("No active state for %s.", user))
		return
	}

	payload, err := json.MarshalIndent(st.Payload, "", "  ")
	if err != nil {
		payload = []byte("<unserializable>")
	}
	req.Reply(fmt.Sprintf("User: %s\nPlugin: %s\nStep: %s\nCreated: %s\nLast activity: %s\nPayload:\n%s",
		user, st.OwnerPlugin, st.CurrentStep,
		st.CreatedAt.Format("2006-01-02 15:04:05"),
		st.LastActivityAt.Format("2006-01-02 15:04:05"),
		payload))
}

// clear is user-visibly idempotent: the first call reports success, a
// repeat reports that nothing was there.
func (p *Plugin) clear(req *commands.Request, user string) {
	if p.states.Clear(user) {
		req.Reply(fmt.Sprintf("State for %s cleared.", user))
	} else {
		req.Reply(fmt.Sprintf("No active state for %s.", user))
	}
}
