// Package plugins defines the feature-module capability set and the host
// that wires modules into the command registry. Plugins are compiled-in
// registrants: each exposes its identity, its commands and flow steps,
// and lifecycle hooks; the host keeps one plugin's failure from ever
// taking down the others.
package plugins

import (
	"fmt"
	"sync"

	"github.com/vfbarros/zapflow/internal/commands"
	"github.com/vfbarros/zapflow/internal/state"
	"github.com/vfbarros/zapflow/internal/types"

	. "github.com/vfbarros/zapflow/internal/logging"
)

// Deps is the handle passed to Initialize: the capabilities a plugin may
// hold on to for the process lifetime.
type Deps struct {
	// Outbox sends messages proactively, outside a dispatch. Handlers
	// triggered by a message should prefer Request.Respond.
	Outbox Outbox

	// States gives administrative plugins direct store access. Ordinary
	// flow plugins must mutate state only through their FlowContext.
	States *state.Store
}

// Outbox is the proactive-send capability (backed by the send queue).
type Outbox interface {
	Enqueue(recipient string, content *types.Outbound)
}

// Plugin is the capability set every feature module implements.
type Plugin interface {
	Name() string
	Description() string
	Version() string
	Initialize(deps Deps) error
	Commands() []*commands.Command
	Shutdown() error
}

// FlowProvider is implemented by plugins that register multi-turn flow
// steps. Step handlers are registered under the plugin's own namespace.
type FlowProvider interface {
	Steps() map[string]commands.HandlerFunc
}

// Host owns the loaded plugin set.
type Host struct {
	enabled  map[string]bool // empty = all discovered plugins enabled
	disabled map[string]bool

	mu      sync.Mutex
	plugins []Plugin // in registration order
}

// NewHost creates a host. An empty enabled list means every registered
// plugin is enabled unless individually disabled.
func NewHost(enabled, disabled []string) *Host {
	h := &Host{
		enabled:  make(map[string]bool),
		disabled: make(map[string]bool),
	}
	for _, name := range enabled {
		h.enabled[name] = true
	}
	for _, name := range disabled {
		h.disabled[name] = true
	}
	return h
}

// Load registers candidate plugins in order. A plugin that panics during
// inspection or fails the shape check is skipped and logged; loading of
// the remaining plugins continues.
func (h *Host) Load(candidates ...Plugin) {
	for _, p := range candidates {
		h.load(p)
	}
}

func (h *Host) load(p Plugin) {
	defer func() {
		if r := recover(); r != nil {
			L_error("plugins: candidate panicked during load, skipped", "error", r)
		}
	}()

	if p == nil {
		L_warn("plugins: nil candidate skipped")
		return
	}
	name := p.Name()
	if name == "" {
		L_warn("plugins: candidate with empty name skipped")
		return
	}

	if h.disabled[name] {
		L_info("plugins: disabled by configuration", "plugin", name)
		return
	}
	if len(h.enabled) > 0 && !h.enabled[name] {
		L_info("plugins: not in enabled list", "plugin", name)
		return
	}

	h.mu.Lock()
	h.plugins = append(h.plugins, p)
	h.mu.Unlock()
	L_info("plugins: loaded", "plugin", name, "version", p.Version(), "description", p.Description())
}

// InitializeAll calls Initialize on every loaded plugin sequentially. A
// failure in one plugin is caught and logged and does not block the
// others.
func (h *Host) InitializeAll(deps Deps) {
	for _, p := range h.snapshot() {
		h.initOne(p, deps)
	}
}

func (h *Host) initOne(p Plugin, deps Deps) {
	defer func() {
		if r := recover(); r != nil {
			L_error("plugins: initialize panicked", "plugin", p.Name(), "error", r)
		}
	}()
	if err := p.Initialize(deps); err != nil {
		L_error("plugins: initialize failed", "plugin", p.Name(), "error", err)
	}
}

// CollectCommands merges every plugin's commands and flow steps into the
// registry, in load order. Later plugins overwrite earlier ones on name
// collision, same last-write-wins rule as the registry itself.
func (h *Host) CollectCommands(reg *commands.Registry) {
	for _, p := range h.snapshot() {
		h.collectOne(p, reg)
	}
}

func (h *Host) collectOne(p Plugin, reg *commands.Registry) {
	defer func() {
		if r := recover(); r != nil {
			L_error("plugins: command collection panicked", "plugin", p.Name(), "error", r)
		}
	}()

	for _, cmd := range p.Commands() {
		if cmd == nil || cmd.Name == "" || cmd.Handler == nil {
			L_warn("plugins: malformed command skipped", "plugin", p.Name())
			continue
		}
		if cmd.Plugin == "" {
			cmd.Plugin = p.Name()
		}
		reg.Register(cmd)
	}

	if fp, ok := p.(FlowProvider); ok {
		for step, handler := range fp.Steps() {
			if step == "" || handler == nil {
				L_warn("plugins: malformed flow step skipped", "plugin", p.Name())
				continue
			}
			reg.RegisterState(p.Name(), step, handler)
		}
	}
}

// ShutdownAll calls Shutdown on every plugin, each independently caught
// and logged.
func (h *Host) ShutdownAll() {
	for _, p := range h.snapshot() {
		h.shutdownOne(p)
	}
}

func (h *Host) shutdownOne(p Plugin) {
	defer func() {
		if r := recover(); r != nil {
			L_error("plugins: shutdown panicked", "plugin", p.Name(), "error", r)
		}
	}()
	if err := p.Shutdown(); err != nil {
		L_error("plugins: shutdown failed", "plugin", p.Name(), "error", err)
	}
}

// Plugins returns the loaded plugins in load order.
func (h *Host) Plugins() []Plugin {
	return h.snapshot()
}

// Describe returns a one-line-per-plugin summary for help output.
func (h *Host) Describe() []string {
	var out []string
	for _, p := range h.snapshot() {
		out = append(out, fmt.Sprintf("%s %s - %s", p.Name(), p.Version(), p.Description()))
	}
	return out
}

func (h *Host) snapshot() []Plugin {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Plugin(nil), h.plugins...)
}
