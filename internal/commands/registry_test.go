package commands

import (
	"context"
	"testing"
)

func noop(ctx context.Context, req *Request) error { return nil }

func TestRegisterAndResolve(t *testing.T) {
	r := New()
	r.Register(&Command{Name: "Ping", Aliases: []string{"P"}, Handler: noop})

	if !r.Has("ping") {
		t.Error("Has should be case-insensitive")
	}
	if r.Resolve("PING") == nil {
		t.Error("Resolve should be case-insensitive")
	}
	if r.Resolve("p") == nil {
		t.Error("alias not registered")
	}
	if r.Resolve("pong") != nil {
		t.Error("unknown name should resolve to nil")
	}
}

func TestLastWriteWins(t *testing.T) {
	r := New()
	r.Register(&Command{Name: "help", Description: "builtin", Handler: noop})
	r.Register(&Command{Name: "help", Description: "plugin override", Handler: noop})

	cmd := r.Resolve("help")
	if cmd.Description != "plugin override" {
		t.Errorf("expected override to win, got %q", cmd.Description)
	}
}

func TestRegisterBatchOrder(t *testing.T) {
	r := New()
	r.RegisterBatch([]*Command{
		{Name: "x", Description: "first", Handler: noop},
		{Name: "x", Description: "second", Handler: noop},
	})
	if r.Resolve("x").Description != "second" {
		t.Error("batch registration should apply in slice order")
	}
}

func TestStateHandlers(t *testing.T) {
	r := New()
	r.RegisterState("form", "name", noop)

	if r.ResolveState("form", "name") == nil {
		t.Error("state handler not found")
	}
	if r.ResolveState("form", "email") != nil {
		t.Error("unregistered step should resolve to nil")
	}
	if r.ResolveState("wizard", "name") != nil {
		t.Error("step lookup must be scoped to the owner plugin")
	}

	// Names with separators that would have broken a joined-string scheme
	r.RegisterState("my:plugin", "step:two", noop)
	if r.ResolveState("my:plugin", "step:two") == nil {
		t.Error("colon in owner/step should be allowed")
	}
	if r.ResolveState("my", "plugin:step:two") != nil {
		t.Error("tagged lookup must not be ambiguous across the separator")
	}
}

func TestListDeduplicatesAliases(t *testing.T) {
	r := New()
	r.Register(&Command{Name: "b", Aliases: []string{"bb", "bbb"}, Handler: noop})
	r.Register(&Command{Name: "a", Handler: noop})

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List returned %d commands, want 2", len(list))
	}
	if list[0].Name != "a" || list[1].Name != "b" {
		t.Errorf("List not sorted: %v, %v", list[0].Name, list[1].Name)
	}
}
