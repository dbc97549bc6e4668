package state

import (
	"encoding/json"
	"time"
)

// Payload is the open mapping of accumulated flow data. Plugins are
// responsible for schema consistency within their own namespace.
type Payload = map[string]any

// ConversationState is one user's active flow. At most one exists per
// user identifier at any time.
type ConversationState struct {
	OwnerPlugin    string    `json:"ownerPlugin"`    // Plugin namespace that owns this flow (immutable)
	CurrentStep    string    `json:"currentStep"`    // Current node in the plugin's state graph
	Payload        Payload   `json:"payload"`        // Accumulated form/session data
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

// Clone returns a deep copy, so callers can hand out snapshots without
// exposing the store's internal pointer.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Payload = clonePayload(s.Payload)
	return &cp
}

// clonePayload deep-copies via a JSON round trip. Payload values are
// JSON-serializable by contract, so this is lossless.
func clonePayload(p Payload) Payload {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Payload{}
	}
	var out Payload
	if err := json.Unmarshal(data, &out); err != nil {
		return Payload{}
	}
	return out
}

// storeFile is the on-disk layout: a single JSON document mapping user
// identifier to state, rewritten wholesale on each persistence cycle.
type storeFile struct {
	Version int                           `json:"version"`
	States  map[string]*ConversationState `json:"states"`
}
