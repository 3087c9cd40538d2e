package cronjob

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreAddAndList(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "jobs.json"))

	j := Job{ID: "j1", Name: "test", Enabled: true, CreatedAt: time.Now()}
	if err := s.Add(j); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(j); err == nil {
		t.Fatal("expected error on duplicate Add")
	}

	jobs := s.List()
	if len(jobs) != 1 || jobs[0].ID != "j1" {
		t.Fatalf("List: got %v", jobs)
	}
}

func TestStoreListOrder(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "jobs.json"))
	base := time.Now()

	_ = s.Add(Job{ID: "newer", CreatedAt: base.Add(time.Minute)})
	_ = s.Add(Job{ID: "older", CreatedAt: base})
	_ = s.Add(Job{ID: "b-tied", CreatedAt: base.Add(time.Minute)})

	jobs := s.List()
	got := []string{jobs[0].ID, jobs[1].ID, jobs[2].ID}
	want := []string{"older", "b-tied", "newer"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List order: got %v, want %v", got, want)
		}
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")

	s1 := NewStore(path)
	now := time.Now().Truncate(time.Millisecond)
	_ = s1.Add(Job{ID: "j1", Name: "persist", Enabled: true, CreatedAt: now})
	if err := s1.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s2 := NewStore(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	jobs := s2.List()
	if len(jobs) != 1 || jobs[0].ID != "j1" || jobs[0].Name != "persist" {
		t.Fatalf("reloaded jobs: %v", jobs)
	}
}

func TestStoreLoadDiscardsHeartbeats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")

	s1 := NewStore(path)
	_ = s1.Add(Job{ID: "j1", CreatedAt: time.Now()})
	_ = s1.Add(Job{ID: heartbeatJobID("agent-a"), CreatedAt: time.Now()})
	if err := s1.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s2 := NewStore(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	jobs := s2.List()
	if len(jobs) != 1 || jobs[0].ID != "j1" {
		t.Fatalf("heartbeat should be discarded on load, got %v", jobs)
	}
}

func TestStoreRemove(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "jobs.json"))
	_ = s.Add(Job{ID: "j1", CreatedAt: time.Now()})
	_ = s.Add(Job{ID: "j2", CreatedAt: time.Now()})

	s.Remove("j1")

	jobs := s.List()
	if len(jobs) != 1 || jobs[0].ID != "j2" {
		t.Fatalf("after Remove: %v", jobs)
	}
}

func TestStoreListDue(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "jobs.json"))

	past := time.Now().Add(-1 * time.Minute)
	future := time.Now().Add(1 * time.Hour)

	_ = s.Add(Job{ID: "due", Enabled: true, NextRunAt: &past, CreatedAt: time.Now()})
	_ = s.Add(Job{ID: "not-due", Enabled: true, NextRunAt: &future, CreatedAt: time.Now()})
	_ = s.Add(Job{ID: "disabled", Enabled: false, NextRunAt: &past, CreatedAt: time.Now()})

	due := s.ListDue(time.Now())
	if len(due) != 1 || due[0].ID != "due" {
		t.Fatalf("ListDue: got %v", due)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nonexistent.json"))
	if err := s.Load(); err != nil {
		t.Fatalf("Load on missing file should not error: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatal("expected empty list on missing file")
	}
}

func TestStoreSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	s := NewStore(filepath.Join(dir, "jobs.json"))
	_ = s.Add(Job{ID: "j1", CreatedAt: time.Now()})

	if err := s.Save(); err != nil {
		t.Fatalf("Save should create directories: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "jobs.json")); err != nil {
		t.Fatalf("file not created: %v", err)
	}
}
