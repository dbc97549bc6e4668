// Package state implements the per-user conversation state store: an
// in-memory map with periodic JSON snapshot persistence and expiry of
// abandoned flows.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/robfig/cron/v3"

	. "github.com/vfbarros/zapflow/internal/logging"
)

// Store manages conversation state persistence.
type Store struct {
	path string

	mu     sync.RWMutex
	states map[string]*ConversationState

	now func() time.Time // overridable for tests

	timersMu sync.Mutex
	cron     *cron.Cron
}

// NewStore creates a store backed by the given JSON file path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		states: make(map[string]*ConversationState),
		now:    time.Now,
	}
}

// Get returns a snapshot of the user's state, or nil if none exists.
// Pure lookup, no side effects.
func (s *Store) Get(userID string) *ConversationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[userID].Clone()
}

// Set upserts a state, replacing any prior state for that user.
func (s *Store) Set(userID string, st *ConversationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = st.Clone()
}

// Create builds a fresh state for the user with createdAt = lastActivityAt = now.
func (s *Store) Create(userID, ownerPlugin, initialStep string, payload Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.states[userID] = &ConversationState{
		OwnerPlugin:    ownerPlugin,
		CurrentStep:    initialStep,
		Payload:        clonePayload(payload),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	L_debug("state: created", "user", userID, "plugin", ownerPlugin, "step", initialStep)
}

// Update advances the user's flow: merges patch into the payload (keys in
// patch overwrite, absent keys are preserved, nested maps merge deep),
// sets currentStep and refreshes lastActivityAt. Returns false if the
// user has no state.
func (s *Store) Update(userID, nextStep string, patch Payload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		return false
	}

	if len(patch) > 0 {
		if st.Payload == nil {
			st.Payload = Payload{}
		}
		if err := mergo.Merge(&st.Payload, clonePayload(patch), mergo.WithOverride); err != nil {
			L_error("state: payload merge failed", "user", userID, "error", err)
			return false
		}
	}

	st.CurrentStep = nextStep
	st.LastActivityAt = s.now()
	L_debug("state: updated", "user", userID, "step", nextStep)
	return true
}

// Touch refreshes lastActivityAt without transitioning. Called on every
// inbound message addressed to a user with an active flow, whether or
// not the message produces a step transition.
func (s *Store) Touch(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		return false
	}
	st.LastActivityAt = s.now()
	return true
}

// Clear removes the user's state. Returns whether one existed.
func (s *Store) Clear(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[userID]; !ok {
		return false
	}
	delete(s.states, userID)
	L_debug("state: cleared", "user", userID)
	return true
}

// ClearAll removes every state and returns how many were removed.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.states)
	s.states = make(map[string]*ConversationState)
	return n
}

// ListByStep returns the user IDs whose current step matches. Full scan,
// acceptable for the expected population (hundreds to low thousands).
func (s *Store) ListByStep(step string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, st := range s.states {
		if st.CurrentStep == step {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ListByPlugin returns the user IDs whose state is owned by the plugin.
func (s *Store) ListByPlugin(ownerPlugin string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, st := range s.states {
		if st.OwnerPlugin == ownerPlugin {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// All returns a snapshot of every state, keyed by user ID.
func (s *Store) All() map[string]*ConversationState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*ConversationState, len(s.states))
	for id, st := range s.states {
		out[id] = st.Clone()
	}
	return out
}

// Count returns the number of active states.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// SweepExpired removes every state whose lastActivityAt is older than
// maxAgeHours before now, and returns how many were removed.
func (s *Store) SweepExpired(maxAgeHours float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-time.Duration(maxAgeHours * float64(time.Hour)))
	removed := 0
	for id, st := range s.states {
		if st.LastActivityAt.Before(cutoff) {
			delete(s.states, id)
			removed++
			L_debug("state: expired", "user", id, "plugin", st.OwnerPlugin, "step", st.CurrentStep)
		}
	}
	if removed > 0 {
		L_info("state: sweep removed expired flows", "count", removed)
	}
	return removed
}

// Load reads the state file. Runs once at startup; a missing or corrupt
// file starts empty and logs, never crashes the process.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			L_debug("state: file not found, starting empty", "path", s.path)
		} else {
			L_warn("state: failed to read file, starting empty", "path", s.path, "error", err)
		}
		s.states = make(map[string]*ConversationState)
		return
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		L_error("state: corrupt file, starting empty", "path", s.path, "error", err)
		s.states = make(map[string]*ConversationState)
		return
	}

	if file.States == nil {
		file.States = make(map[string]*ConversationState)
	}
	s.states = file.States
	L_info("state: loaded", "count", len(s.states), "path", s.path)
}

// Persist writes the whole map to disk atomically (temp file + rename).
// The error is returned for callers that want it; scheduled persistence
// logs and retries on the next cycle.
func (s *Store) Persist() error {
	s.mu.RLock()
	file := storeFile{
		Version: 1,
		States:  make(map[string]*ConversationState, len(s.states)),
	}
	for id, st := range s.states {
		file.States[id] = st
	}
	s.mu.RUnlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal states: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	L_debug("state: persisted", "count", len(file.States), "path", s.path)
	return nil
}
