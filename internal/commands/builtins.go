package commands

import (
	"context"
	"fmt"
	"strings"
)

// RegisterBuiltins adds the core commands every deployment gets. Plugins
// may override any of them by registering the same name later.
func RegisterBuiltins(r *Registry, prefix string) {
	r.Register(&Command{
		Name:        "ajuda",
		Description: "List available commands",
		Aliases:     []string{"help"},
		Handler: func(ctx context.Context, req *Request) error {
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, cmd := range r.List() {
				b.WriteString(fmt.Sprintf("%s%s", prefix, cmd.Name))
				if cmd.Usage != "" {
					b.WriteString(" " + cmd.Usage)
				}
				if cmd.Description != "" {
					b.WriteString(" - " + cmd.Description)
				}
				b.WriteString("\n")
			}
			req.Reply(strings.TrimRight(b.String(), "\n"))
			return nil
		},
	})

	r.Register(&Command{
		Name:        "ping",
		Description: "Check that the bot is alive",
		Handler: func(ctx context.Context, req *Request) error {
			req.Reply("pong 🏓")
			return nil
		},
	})
}
