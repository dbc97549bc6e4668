// Package menu demonstrates interactive replies wired into a flow: it
// sends a selectable list and consumes the selection in its own step.
package menu

import (
	"context"
	"fmt"
	"strings"

	"github.com/vfbarros/zapflow/internal/commands"
	"github.com/vfbarros/zapflow/internal/plugins"
	"github.com/vfbarros/zapflow/internal/state"
	"github.com/vfbarros/zapflow/internal/types"
)

var options = []types.ListRow{
	{ID: "opt_pizza", Title: "Pizza", Description: "Margherita, 30cm"},
	{ID: "opt_burger", Title: "Burger", Description: "With fries"},
	{ID: "opt_sushi", Title: "Sushi", Description: "12-piece combo"},
}

// Plugin implements the demo menu.
type Plugin struct{}

// New creates the menu plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string        { return "menu" }
func (p *Plugin) Description() string { return "Interactive list menu demo" }
func (p *Plugin) Version() string     { return "1.0.0" }

func (p *Plugin) Initialize(deps plugins.Deps) error { return nil }
func (p *Plugin) Shutdown() error                    { return nil }

func (p *Plugin) Commands() []*commands.Command {
	return []*commands.Command{
		{
			Name:        "menu",
			Description: "Pick something from the menu",
			Flows:       true,
			Handler:     p.start,
		},
	}
}

func (p *Plugin) Steps() map[string]commands.HandlerFunc {
	return map[string]commands.HandlerFunc{
		"choose": p.stepChoose,
	}
}

func (p *Plugin) start(ctx context.Context, req *commands.Request) error {
	if !req.Flow.CreateState("choose", state.Payload{}) {
		req.Reply("You have another conversation in progress. Finish it first.")
		return nil
	}
	req.Respond(&types.Outbound{
		Text: "What would you like?",
		List: &types.ListMenu{
			Title:      "Today's menu",
			ButtonText: "Open menu",
			Rows:       options,
		},
	})
	return nil
}

func (p *Plugin) stepChoose(ctx context.Context, req *commands.Request) error {
	choice := req.Message.SelectionID
	if choice == "" {
		// Typed answers work too: match on the row title.
		text := strings.ToLower(strings.TrimSpace(req.Message.Text))
		if text == "cancelar" {
			req.Flow.ClearState()
			req.Reply("Menu closed.")
			return nil
		}
		for _, row := range options {
			if strings.ToLower(row.Title) == text {
				choice = row.ID
				break
			}
		}
	}

	for _, row := range options {
		if row.ID == choice {
			req.Flow.ClearState()
			req.Reply(fmt.Sprintf("%s coming right up! 🍽️", row.Title))
			return nil
		}
	}

	req.Reply("Please pick an option from the menu, or send \"cancelar\".")
	return nil
}
