package session

import (
	"os"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestCreateListLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateNewSession("my project", []Message{
		{Role: RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("CreateNewSession: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty session id")
	}

	loaded, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Messages) != 1 || loaded.Messages[0].Content != "hello" {
		t.Fatalf("loaded messages = %+v", loaded.Messages)
	}

	summaries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != id {
		t.Fatalf("summaries = %+v", summaries)
	}
}

func TestSaveThenLoadReflectsLatest(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateNewSession("proj", nil)
	if err != nil {
		t.Fatalf("CreateNewSession: %v", err)
	}

	snap, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap.Messages = append(snap.Messages, Message{Role: RoleAssistant, Content: "reply"})
	if err := s.Save(id, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	if len(reloaded.Messages) != 1 || reloaded.Messages[0].Content != "reply" {
		t.Fatalf("reloaded messages = %+v", reloaded.Messages)
	}
}

func TestResolveLastTracksMostRecentTouch(t *testing.T) {
	s := newTestStore(t)

	if last, err := s.ResolveLast(); err != nil || last != "" {
		t.Fatalf("ResolveLast on empty store = %q, %v", last, err)
	}

	first, err := s.CreateNewSession("a", nil)
	if err != nil {
		t.Fatalf("CreateNewSession: %v", err)
	}
	second, err := s.CreateNewSession("b", nil)
	if err != nil {
		t.Fatalf("CreateNewSession: %v", err)
	}

	last, err := s.ResolveLast()
	if err != nil {
		t.Fatalf("ResolveLast: %v", err)
	}
	if last != second {
		t.Fatalf("ResolveLast = %q, want %q", last, second)
	}

	snap, err := s.Load(first)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Save(first, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	last, err = s.ResolveLast()
	if err != nil {
		t.Fatalf("ResolveLast: %v", err)
	}
	if last != first {
		t.Fatalf("ResolveLast after re-touching first = %q, want %q", last, first)
	}
}

func TestLoadUnknownSessionFails(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Load("does-not-exist"); err == nil {
		t.Fatal("expected error loading unknown session")
	}
}

func TestLoadCorruptedSnapshotFails(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateNewSession("proj", nil)
	if err != nil {
		t.Fatalf("CreateNewSession: %v", err)
	}

	path := s.sessionDir(id) + "/" + snapshotFileName
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	if _, err := s.Load(id); err == nil {
		t.Fatal("expected error loading corrupted snapshot")
	}
}
