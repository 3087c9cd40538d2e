package agentx

import "testing"

func TestSessionManagerCreate(t *testing.T) {
	sm := NewSessionManager(0)
	s := sm.Create("claude-code", "/tmp/work")

	if s.ID == "" {
		t.Fatal("expected non-empty session ID")
	}
	if s.Backend != "claude-code" || s.WorkingDir != "/tmp/work" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.Status != StatusRunning {
		t.Fatalf("expected status %q, got %q", StatusRunning, s.Status)
	}
	if s.CreatedAt.IsZero() {
		t.Fatal("expected non-zero CreatedAt")
	}
}

func TestSessionManagerGet(t *testing.T) {
	sm := NewSessionManager(0)
	s := sm.Create("claude-code", "/tmp/work")

	got, ok := sm.Get(s.ID)
	if !ok || got.ID != s.ID {
		t.Fatalf("Get(%q) = (%v, %v)", s.ID, got, ok)
	}
	if _, ok := sm.Get("nonexistent-id"); ok {
		t.Fatal("expected Get for nonexistent ID to return false")
	}
}

func TestSessionManagerList(t *testing.T) {
	sm := NewSessionManager(0)
	sm.Create("claude-code", "/tmp/a")
	sm.Create("codex", "/tmp/b")

	if list := sm.List(); len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
}

func TestSessionManagerDestroy(t *testing.T) {
	sm := NewSessionManager(0)
	s := sm.Create("claude-code", "/tmp/work")

	sm.Destroy(s.ID)
	if _, ok := sm.Get(s.ID); ok {
		t.Fatal("expected session gone after Destroy")
	}

	sm.Destroy("nonexistent-id") // must not panic
}

func TestSessionManagerDestroyKillsProcess(t *testing.T) {
	sm := NewSessionManager(0)
	s := sm.Create("claude-code", "/tmp/work")
	s.process = &Process{} // Kill is safe on nil cmd

	sm.Destroy(s.ID)
	if _, ok := sm.Get(s.ID); ok {
		t.Fatal("expected session gone after Destroy")
	}
}

func TestSessionManagerCap(t *testing.T) {
	sm := NewSessionManager(2)

	if _, err := sm.CreateWithLimit("claude-code", "/tmp/a"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := sm.CreateWithLimit("claude-code", "/tmp/b"); err != nil {
		t.Fatalf("second create: %v", err)
	}
	if _, err := sm.CreateWithLimit("claude-code", "/tmp/c"); err == nil {
		t.Fatal("expected error past the cap")
	}

	// Destroy frees a slot.
	list := sm.List()
	sm.Destroy(list[0].ID)
	if _, err := sm.CreateWithLimit("claude-code", "/tmp/d"); err != nil {
		t.Fatalf("create after destroy: %v", err)
	}
}
