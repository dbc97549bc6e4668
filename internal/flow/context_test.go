package flow

import (
	"path/filepath"
	"testing"

	"github.com/vfbarros/zapflow/internal/state"
)

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore(filepath.Join(t.TempDir(), "states.json"))
}

func TestCreateStateBindsOwner(t *testing.T) {
	store := newTestStore(t)
	fc := NewContext(store, "user1", "survey")

	if !fc.CreateState("intro", state.Payload{"lang": "pt"}) {
		t.Fatal("CreateState returned false on a fresh user")
	}
	if fc.State == nil {
		t.Fatal("context snapshot not refreshed after create")
	}
	if fc.State.OwnerPlugin != "survey" || fc.State.CurrentStep != "intro" {
		t.Errorf("got owner=%q step=%q", fc.State.OwnerPlugin, fc.State.CurrentStep)
	}
}

func TestCreateStateRefusesForeignOwner(t *testing.T) {
	store := newTestStore(t)
	NewContext(store, "user1", "survey").CreateState("intro", nil)

	other := NewContext(store, "user1", "quiz")
	if other.CreateState("q1", nil) {
		t.Fatal("CreateState succeeded while another plugin holds the state")
	}

	st := store.Get("user1")
	if st == nil || st.OwnerPlugin != "survey" || st.CurrentStep != "intro" {
		t.Errorf("existing flow was disturbed: %+v", st)
	}
}

func TestCreateStateRestartsSameOwner(t *testing.T) {
	store := newTestStore(t)
	fc := NewContext(store, "user1", "survey")
	fc.CreateState("intro", state.Payload{"answers": 3})
	fc.UpdateState("question", nil)

	if !fc.CreateState("intro", nil) {
		t.Fatal("same owner could not restart its own flow")
	}
	st := store.Get("user1")
	if st.CurrentStep != "intro" {
		t.Errorf("step = %q, want intro", st.CurrentStep)
	}
	if _, ok := st.Payload["answers"]; ok {
		t.Error("restart kept the old payload")
	}
}

func TestUpdateStateMergesAndAdvances(t *testing.T) {
	store := newTestStore(t)
	fc := NewContext(store, "user1", "survey")
	fc.CreateState("name", state.Payload{"name": "ana"})

	if !fc.UpdateState("email", state.Payload{"email": "ana@example.com"}) {
		t.Fatal("UpdateState returned false on an active flow")
	}
	st := fc.State
	if st.CurrentStep != "email" {
		t.Errorf("step = %q, want email", st.CurrentStep)
	}
	if st.Payload["name"] != "ana" || st.Payload["email"] != "ana@example.com" {
		t.Errorf("payload merge lost data: %v", st.Payload)
	}
}

func TestUpdateStateWithoutFlow(t *testing.T) {
	store := newTestStore(t)
	fc := NewContext(store, "user1", "survey")

	if fc.UpdateState("email", nil) {
		t.Fatal("UpdateState succeeded with no active flow")
	}
}

func TestClearState(t *testing.T) {
	store := newTestStore(t)
	fc := NewContext(store, "user1", "survey")
	fc.CreateState("intro", nil)

	if !fc.ClearState() {
		t.Fatal("ClearState returned false on an active flow")
	}
	if fc.State != nil {
		t.Error("context snapshot not cleared")
	}
	if fc.ClearState() {
		t.Error("second ClearState reported a state")
	}
	if store.Get("user1") != nil {
		t.Error("store still holds a state after clear")
	}
}
