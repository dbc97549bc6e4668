package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "states.json"))
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	s.Create("5511999990000", "form", "name", Payload{"lang": "pt"})

	st := s.Get("5511999990000")
	if st == nil {
		t.Fatal("expected state after Create")
	}
	if st.OwnerPlugin != "form" {
		t.Errorf("ownerPlugin = %q, want form", st.OwnerPlugin)
	}
	if st.CurrentStep != "name" {
		t.Errorf("currentStep = %q, want name", st.CurrentStep)
	}
	if st.Payload["lang"] != "pt" {
		t.Errorf("payload lang = %v, want pt", st.Payload["lang"])
	}
	if st.CreatedAt.IsZero() || !st.CreatedAt.Equal(st.LastActivityAt) {
		t.Errorf("createdAt/lastActivityAt not initialized together: %v / %v", st.CreatedAt, st.LastActivityAt)
	}

	if s.Get("nobody") != nil {
		t.Error("Get on unknown user should return nil")
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := newTestStore(t)
	s.Create("u1", "form", "name", Payload{"n": "Ana"})

	st := s.Get("u1")
	st.Payload["n"] = "mutated"
	st.CurrentStep = "hacked"

	fresh := s.Get("u1")
	if fresh.Payload["n"] != "Ana" || fresh.CurrentStep != "name" {
		t.Error("mutating a Get snapshot leaked into the store")
	}
}

func TestUpdateMergesPayload(t *testing.T) {
	s := newTestStore(t)
	s.Create("u1", "form", "email", Payload{
		"name": "Ana",
		"prefs": map[string]any{
			"lang":  "pt",
			"sound": true,
		},
	})

	ok := s.Update("u1", "age", Payload{
		"email": "ana@x.com",
		"prefs": map[string]any{
			"lang": "en",
		},
	})
	if !ok {
		t.Fatal("Update returned false for existing state")
	}

	st := s.Get("u1")
	if st.OwnerPlugin != "form" {
		t.Errorf("ownerPlugin changed on update: %q", st.OwnerPlugin)
	}
	if st.CurrentStep != "age" {
		t.Errorf("currentStep = %q, want age", st.CurrentStep)
	}
	if st.Payload["name"] != "Ana" {
		t.Error("key absent from patch was not preserved")
	}
	if st.Payload["email"] != "ana@x.com" {
		t.Error("key present in patch was not applied")
	}
	prefs, ok := st.Payload["prefs"].(map[string]any)
	if !ok {
		t.Fatalf("prefs is %T, want map", st.Payload["prefs"])
	}
	if prefs["lang"] != "en" {
		t.Error("nested key in patch did not overwrite")
	}
	if prefs["sound"] != true {
		t.Error("nested key absent from patch was not preserved")
	}
}

func TestUpdateWithoutState(t *testing.T) {
	s := newTestStore(t)
	if s.Update("ghost", "step", nil) {
		t.Error("Update on missing state should return false")
	}
}

func TestUpdateRefreshesActivity(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Create("u1", "form", "name", nil)

	s.now = func() time.Time { return base.Add(time.Hour) }
	s.Update("u1", "email", nil)

	st := s.Get("u1")
	if !st.LastActivityAt.Equal(base.Add(time.Hour)) {
		t.Errorf("lastActivityAt = %v, want %v", st.LastActivityAt, base.Add(time.Hour))
	}
	if !st.CreatedAt.Equal(base) {
		t.Errorf("createdAt changed on update: %v", st.CreatedAt)
	}
}

func TestClearIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.Create("u1", "form", "name", nil)

	if !s.Clear("u1") {
		t.Error("first Clear should return true")
	}
	if s.Get("u1") != nil {
		t.Error("state survived Clear")
	}
	if s.Clear("u1") {
		t.Error("second Clear should return false")
	}
}

func TestListByStepAndPlugin(t *testing.T) {
	s := newTestStore(t)
	s.Create("a", "form", "name", nil)
	s.Create("b", "form", "email", nil)
	s.Create("c", "wizard", "name", nil)

	byStep := s.ListByStep("name")
	if len(byStep) != 2 || byStep[0] != "a" || byStep[1] != "c" {
		t.Errorf("ListByStep(name) = %v", byStep)
	}

	byPlugin := s.ListByPlugin("form")
	if len(byPlugin) != 2 || byPlugin[0] != "a" || byPlugin[1] != "b" {
		t.Errorf("ListByPlugin(form) = %v", byPlugin)
	}
}

func TestSweepExpired(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	s.Create("old", "form", "name", Payload{"keep": "me"})

	s.now = func() time.Time { return base.Add(23 * time.Hour) }
	s.Create("fresh", "form", "name", Payload{"keep": "me"})

	s.now = func() time.Time { return base.Add(24*time.Hour + time.Minute) }
	removed := s.SweepExpired(24)

	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if s.Get("old") != nil {
		t.Error("expired state survived sweep")
	}
	fresh := s.Get("fresh")
	if fresh == nil {
		t.Fatal("unexpired state was swept")
	}
	if fresh.Payload["keep"] != "me" {
		t.Error("sweep touched an unexpired state's payload")
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "states.json")

	s := NewStore(path)
	s.Create("u1", "form", "email", Payload{
		"name": "Ana",
		"age":  float64(30),
		"tags": []any{"x", "y"},
	})
	s.Create("u2", "wizard", "confirm", nil)

	before := s.All()
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	loaded := NewStore(path)
	loaded.Load()

	after := loaded.All()
	if len(after) != len(before) {
		t.Fatalf("loaded %d states, want %d", len(after), len(before))
	}
	for id, want := range before {
		got := after[id]
		if got == nil {
			t.Fatalf("state %q missing after load", id)
		}
		if got.OwnerPlugin != want.OwnerPlugin || got.CurrentStep != want.CurrentStep {
			t.Errorf("state %q fields changed: %+v vs %+v", id, got, want)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) || !got.LastActivityAt.Equal(want.LastActivityAt) {
			t.Errorf("state %q timestamps changed", id)
		}
		if got.Payload["name"] != want.Payload["name"] {
			t.Errorf("state %q payload changed", id)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope", "states.json"))
	s.Load()
	if s.Count() != 0 {
		t.Error("missing file should start empty")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "states.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path)
	s.Load()
	if s.Count() != 0 {
		t.Error("corrupt file should start empty")
	}
}
