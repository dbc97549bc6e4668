package admin

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vfbarros/zapflow/internal/commands"
	"github.com/vfbarros/zapflow/internal/plugins"
	"github.com/vfbarros/zapflow/internal/state"
	"github.com/vfbarros/zapflow/internal/types"
)

func newTestPlugin(t *testing.T) (*Plugin, *state.Store) {
	t.Helper()
	store := state.NewStore(filepath.Join(t.TempDir(), "states.json"))
	p := New()
	if err := p.Initialize(plugins.Deps{States: store}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return p, store
}

func run(t *testing.T, p *Plugin, args ...string) []string {
	t.Helper()
	var replies []string
	req := &commands.Request{
		Message: types.NewInboundMessage("test", "admin-user", ""),
		Command: "estados",
		Args:    args,
		Respond: func(out *types.Outbound) { replies = append(replies, out.Text) },
	}
	if err := p.handle(context.Background(), req); err != nil {
		t.Fatalf("handle(%v): %v", args, err)
	}
	return replies
}

func TestInitializeRequiresStore(t *testing.T) {
	if err := New().Initialize(plugins.Deps{}); err == nil {
		t.Fatal("Initialize accepted nil state store")
	}
}

func TestListEmptyAndPopulated(t *testing.T) {
	p, store := newTestPlugin(t)

	replies := run(t, p, "listar")
	if len(replies) != 1 || replies[0] != "No active states." {
		t.Fatalf("empty list reply = %v", replies)
	}

	store.Create("user1", "survey", "intro", nil)
	replies = run(t, p, "listar")
	if len(replies) != 1 || !strings.Contains(replies[0], "user1") || !strings.Contains(replies[0], "survey/intro") {
		t.Errorf("populated list reply = %v", replies)
	}
}

func TestShowState(t *testing.T) {
	p, store := newTestPlugin(t)
	store.Create("user1", "survey", "email", state.Payload{"name": "ana"})

	replies := run(t, p, "ver", "user1")
	if len(replies) != 1 {
		t.Fatalf("got %d replies", len(replies))
	}
	for _, want := range []string{"user1", "survey", "email", "ana"} {
		if !strings.Contains(replies[0], want) {
			t.Errorf("ver output missing %q:\n%s", want, replies[0])
		}
	}

	replies = run(t, p, "ver", "ghost")
	if replies[0] != "No active state for ghost." {
		t.Errorf("ver missing-user reply = %q", replies[0])
	}
}

func TestClearIsIdempotent(t *testing.T) {
	p, store := newTestPlugin(t)
	store.Create("user1", "survey", "intro", nil)

	replies := run(t, p, "limpar", "user1")
	if replies[0] != "State for user1 cleared." {
		t.Errorf("first clear reply = %q", replies[0])
	}
	if store.Get("user1") != nil {
		t.Fatal("state survived limpar")
	}

	// Repeat must not error, just report the absence.
	replies = run(t, p, "limpar", "user1")
	if replies[0] != "No active state for user1." {
		t.Errorf("second clear reply = %q", replies[0])
	}
}

func TestClearAll(t *testing.T) {
	p, store := newTestPlugin(t)
	store.Create("user1", "survey", "intro", nil)
	store.Create("user2", "quiz", "q1", nil)

	replies := run(t, p, "limpartudo")
	if replies[0] != "Cleared 2 state(s)." {
		t.Errorf("limpartudo reply = %q", replies[0])
	}
	if store.Count() != 0 {
		t.Errorf("store still holds %d states", store.Count())
	}
}

func TestPersistSubcommand(t *testing.T) {
	p, store := newTestPlugin(t)
	store.Create("user1", "survey", "intro", nil)

	replies := run(t, p, "salvar")
	if replies[0] != "States persisted to disk." {
		t.Errorf("salvar reply = %q", replies[0])
	}
}

func TestUsageAndUnknownSubcommand(t *testing.T) {
	p, _ := newTestPlugin(t)

	replies := run(t, p)
	if !strings.HasPrefix(replies[0], "Usage:") {
		t.Errorf("no-args reply = %q", replies[0])
	}

	replies = run(t, p, "frobnicate")
	if !strings.Contains(replies[0], "frobnicate") {
		t.Errorf("unknown subcommand reply = %q", replies[0])
	}
}
