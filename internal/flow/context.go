// Package flow provides the capability surface handlers use to drive
// their own multi-turn flows forward. A Context is constructed fresh per
// dispatched message, bound to one user and one owning plugin namespace;
// its three mutation operations are the only way any handler may touch
// conversation state.
package flow

import (
	"github.com/vfbarros/zapflow/internal/state"

	. "github.com/vfbarros/zapflow/internal/logging"
)

// Context is the capability bundle handed to flow-capable handlers.
type Context struct {
	UserID string
	Owner  string // Plugin namespace performing mutations

	// State is a snapshot of the user's ConversationState as of dispatch
	// time, or nil if the user has no active flow.
	State *state.ConversationState

	store *state.Store
}

// NewContext builds a Context bound to userID, acting for the owner
// plugin, with the current state snapshotted.
func NewContext(store *state.Store, userID, owner string) *Context {
	return &Context{
		UserID: userID,
		Owner:  owner,
		State:  store.Get(userID),
		store:  store,
	}
}

// CreateState begins a new flow for this user. If a state already exists
// under a different owner this is a silent no-op (callers must ClearState
// first); if the same owner calls it again, the existing flow is
// deliberately restarted. Returns whether a state was created.
func (c *Context) CreateState(initialStep string, payload state.Payload) bool {
	existing := c.store.Get(c.UserID)
	if existing != nil && existing.OwnerPlugin != c.Owner {
		L_debug("flow: createState refused, state held by other plugin",
			"user", c.UserID, "caller", c.Owner, "holder", existing.OwnerPlugin)
		return false
	}

	c.store.Create(c.UserID, c.Owner, initialStep, payload)
	c.State = c.store.Get(c.UserID)
	return true
}

// UpdateState advances the flow: merges patch into the payload, sets the
// step and refreshes activity. Returns false if the user has no state.
func (c *Context) UpdateState(nextStep string, patch state.Payload) bool {
	ok := c.store.Update(c.UserID, nextStep, patch)
	if ok {
		c.State = c.store.Get(c.UserID)
	}
	return ok
}

// ClearState ends the flow. Returns whether a state existed.
func (c *Context) ClearState() bool {
	ok := c.store.Clear(c.UserID)
	c.State = nil
	return ok
}
