// Package form is the interactive registration wizard: a linear
// name -> email -> age -> confirm flow that accumulates answers in the
// conversation payload.
package form

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vfbarros/zapflow/internal/commands"
	"github.com/vfbarros/zapflow/internal/plugins"
	"github.com/vfbarros/zapflow/internal/state"
)

const cancelWord = "cancelar"

// Plugin implements the form wizard.
type Plugin struct{}

// New creates the form plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string        { return "form" }
func (p *Plugin) Description() string { return "Interactive registration form" }
func (p *Plugin) Version() string     { return "1.0.0" }

func (p *Plugin) Initialize(deps plugins.Deps) error { return nil }
func (p *Plugin) Shutdown() error                    { return nil }

func (p *Plugin) Commands() []*commands.Command {
	return []*commands.Command{
		{
			Name:        "form",
			Description: "Start the registration form",
			Flows:       true,
			Handler:     p.start,
		},
	}
}

func (p *Plugin) Steps() map[string]commands.HandlerFunc {
	return map[string]commands.HandlerFunc{
		"name":    p.stepName,
		"email":   p.stepEmail,
		"age":     p.stepAge,
		"confirm": p.stepConfirm,
	}
}

func (p *Plugin) start(ctx context.Context, req *commands.Request) error {
	if !req.Flow.CreateState("name", state.Payload{}) {
		req.Reply("You have another conversation in progress. Send \"cancelar\" to it first.")
		return nil
	}
	req.Reply("Let's get you registered! What's your name? (send \"cancelar\" anytime to stop)")
	return nil
}

// cancelled handles the in-flow cancel keyword. The router never
// auto-intercepts it; the flow owns its own escape hatch.
func cancelled(req *commands.Request) bool {
	if strings.EqualFold(strings.TrimSpace(req.Message.Text), cancelWord) {
		req.Flow.ClearState()
		req.Reply("Form cancelled.")
		return true
	}
	return false
}

func (p *Plugin) stepName(ctx context.Context, req *commands.Request) error {
	if cancelled(req) {
		return nil
	}
	name := strings.TrimSpace(req.Message.Text)
	if len(name) < 3 {
		req.Reply("Name must have at least 3 characters. Try again.")
		return nil
	}
	req.Flow.UpdateState("email", state.Payload{"name": name})
	req.Reply(fmt.Sprintf("Thanks, %s! What's your email?", name))
	return nil
}

func (p *Plugin) stepEmail(ctx context.Context, req *commands.Request) error {
	if cancelled(req) {
		return nil
	}
	email := strings.TrimSpace(req.Message.Text)
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		req.Reply("That doesn't look like an email. Try again.")
		return nil
	}
	req.Flow.UpdateState("age", state.Payload{"email": email})
	req.Reply("Got it. How old are you?")
	return nil
}

func (p *Plugin) stepAge(ctx context.Context, req *commands.Request) error {
	if cancelled(req) {
		return nil
	}
	age, err := strconv.Atoi(strings.TrimSpace(req.Message.Text))
	if err != nil || age < 1 || age > 120 {
		req.Reply("Please send your age as a number.")
		return nil
	}
	req.Flow.UpdateState("confirm", state.Payload{"age": age})

	st := req.Flow.State
	req.Reply(fmt.Sprintf("Please confirm:\nName: %v\nEmail: %v\nAge: %d\n\nReply \"sim\" to save or \"cancelar\" to discard.",
		st.Payload["name"], st.Payload["email"], age))
	return nil
}

func (p *Plugin) stepConfirm(ctx context.Context, req *commands.Request) error {
	if cancelled(req) {
		return nil
	}
	answer := strings.ToLower(strings.TrimSpace(req.Message.Text))
	switch answer {
	case "sim", "s", "yes":
		name := req.Flow.State.Payload["name"]
		req.Flow.ClearState()
		req.Reply(fmt.Sprintf("Registration saved. Welcome, %v! 🎉", name))
	case "não", "nao", "n", "no":
		req.Flow.ClearState()
		req.Reply("Discarded. Send the form command to start over.")
	default:
		req.Reply("Reply \"sim\" to save or \"cancelar\" to discard.")
	}
	return nil
}
