// Package commands provides the command registry shared by the router
// and all plugins: plain chat commands by name, and flow step handlers
// by (owner plugin, step) tag.
package commands

import (
	"sort"
	"strings"
	"sync"
)

// stateKey identifies a flow step handler. Using a struct key instead of
// a joined string means plugin and step names carry no reserved
// characters.
type stateKey struct {
	owner string
	step  string
}

// Registry maps command names and flow steps to handlers. Construct one
// per process with New and pass it by reference; there is no package
// global.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	states   map[stateKey]HandlerFunc
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		states:   make(map[stateKey]HandlerFunc),
	}
}

// Register adds a command. Last write wins if the name is registered
// twice; plugins may override built-ins on purpose.
func (r *Registry) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands[strings.ToLower(cmd.Name)] = cmd
	for _, alias := range cmd.Aliases {
		r.commands[strings.ToLower(alias)] = cmd
	}
}

// RegisterBatch registers many commands at once, in slice order.
func (r *Registry) RegisterBatch(cmds []*Command) {
	for _, cmd := range cmds {
		r.Register(cmd)
	}
}

// Has reports whether a command name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[strings.ToLower(name)]
	return ok
}

// Resolve returns the command for a name (or alias), or nil.
func (r *Registry) Resolve(name string) *Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[strings.ToLower(name)]
}

// RegisterState adds a flow step handler for (ownerPlugin, step).
// Last write wins, same as Register.
func (r *Registry) RegisterState(ownerPlugin, step string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[stateKey{owner: ownerPlugin, step: step}] = h
}

// ResolveState returns the step handler for (ownerPlugin, step), or nil.
// A nil result means the message is treated as not belonging to a flow.
func (r *Registry) ResolveState(ownerPlugin, step string) HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[stateKey{owner: ownerPlugin, step: step}]
}

// List returns all unique commands (aliases deduplicated), sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Command]bool)
	var list []*Command
	for _, cmd := range r.commands {
		if !seen[cmd] {
			seen[cmd] = true
			list = append(list, cmd)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
