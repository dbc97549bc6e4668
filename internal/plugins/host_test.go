package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/vfbarros/zapflow/internal/commands"
)

type stubPlugin struct {
	name     string
	cmds     []*commands.Command
	steps    map[string]commands.HandlerFunc
	initErr  error
	initRan  bool
	downRan  bool
	panicsOn string // "init" or "shutdown"
}

func (s *stubPlugin) Name() string        { return s.name }
func (s *stubPlugin) Description() string { return "stub" }
func (s *stubPlugin) Version() string     { return "0.0.1" }

func (s *stubPlugin) Initialize(deps Deps) error {
	if s.panicsOn == "init" {
		panic("init bug")
	}
	s.initRan = true
	return s.initErr
}

func (s *stubPlugin) Commands() []*commands.Command { return s.cmds }

func (s *stubPlugin) Shutdown() error {
	if s.panicsOn == "shutdown" {
		panic("shutdown bug")
	}
	s.downRan = true
	return nil
}

func (s *stubPlugin) Steps() map[string]commands.HandlerFunc { return s.steps }

func handlerNamed(tag string, out *[]string) commands.HandlerFunc {
	return func(ctx context.Context, req *commands.Request) error {
		*out = append(*out, tag)
		return nil
	}
}

func TestLoadFiltering(t *testing.T) {
	h := NewHost(nil, []string{"blocked"})
	h.Load(
		&stubPlugin{name: "a"},
		&stubPlugin{name: "blocked"},
		&stubPlugin{name: ""},
		nil,
	)

	if n := len(h.Plugins()); n != 1 {
		t.Fatalf("loaded %d plugins, want 1", n)
	}
	if h.Plugins()[0].Name() != "a" {
		t.Errorf("wrong plugin survived: %s", h.Plugins()[0].Name())
	}
}

func TestEnabledListIsExclusive(t *testing.T) {
	h := NewHost([]string{"only"}, nil)
	h.Load(&stubPlugin{name: "only"}, &stubPlugin{name: "other"})

	if n := len(h.Plugins()); n != 1 {
		t.Fatalf("loaded %d plugins, want 1", n)
	}
}

func TestCollectCommandsLastWriteWins(t *testing.T) {
	var ran []string
	first := &stubPlugin{name: "first", cmds: []*commands.Command{
		{Name: "dup", Handler: handlerNamed("first", &ran)},
	}}
	second := &stubPlugin{name: "second", cmds: []*commands.Command{
		{Name: "dup", Handler: handlerNamed("second", &ran)},
	}}

	h := NewHost(nil, nil)
	h.Load(first, second)

	reg := commands.New()
	h.CollectCommands(reg)

	cmd := reg.Resolve("dup")
	if cmd == nil {
		t.Fatal("command not collected")
	}
	if cmd.Plugin != "second" {
		t.Errorf("later plugin should win collision, got %q", cmd.Plugin)
	}
	_ = cmd.Handler(context.Background(), &commands.Request{})
	if len(ran) != 1 || ran[0] != "second" {
		t.Errorf("wrong handler won: %v", ran)
	}
}

func TestCollectStepsUnderPluginNamespace(t *testing.T) {
	var ran []string
	p := &stubPlugin{name: "wizard", steps: map[string]commands.HandlerFunc{
		"ask": handlerNamed("ask", &ran),
	}}

	h := NewHost(nil, nil)
	h.Load(p)

	reg := commands.New()
	h.CollectCommands(reg)

	if reg.ResolveState("wizard", "ask") == nil {
		t.Error("flow step not registered under the plugin namespace")
	}
	if reg.ResolveState("other", "ask") != nil {
		t.Error("step leaked outside the owner namespace")
	}
}

func TestInitializeIsolatesFailures(t *testing.T) {
	bad := &stubPlugin{name: "bad", initErr: errors.New("no database")}
	worse := &stubPlugin{name: "worse", panicsOn: "init"}
	good := &stubPlugin{name: "good"}

	h := NewHost(nil, nil)
	h.Load(bad, worse, good)
	h.InitializeAll(Deps{})

	if !good.initRan {
		t.Error("healthy plugin blocked by a failing sibling")
	}
}

func TestShutdownIsolatesFailures(t *testing.T) {
	angry := &stubPlugin{name: "angry", panicsOn: "shutdown"}
	calm := &stubPlugin{name: "calm"}

	h := NewHost(nil, nil)
	h.Load(angry, calm)
	h.ShutdownAll()

	if !calm.downRan {
		t.Error("healthy plugin not shut down after a panicking sibling")
	}
}
