package cronjob

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeHeartbeat(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, heartbeatFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write heartbeat file: %v", err)
	}
}

func TestBuildHeartbeatPromptSkips(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, hasWork := BuildHeartbeatPrompt(t.TempDir()); hasWork {
			t.Fatal("expected no work for missing file")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		dir := t.TempDir()
		writeHeartbeat(t, dir, "")
		if _, hasWork := BuildHeartbeatPrompt(dir); hasWork {
			t.Fatal("expected no work for empty file")
		}
	})

	t.Run("headers and comments only", func(t *testing.T) {
		dir := t.TempDir()
		writeHeartbeat(t, dir, `# HEARTBEAT.md
## Active Tasks
<!-- no tasks -->
## Completed
<!-- nothing
spanning lines -->
`)
		if _, hasWork := BuildHeartbeatPrompt(dir); hasWork {
			t.Fatal("expected no work for headers-only file")
		}
	})
}

func TestBuildHeartbeatPromptFindsWork(t *testing.T) {
	// Plain descriptive text counts as content, as do bullet tasks.
	dir := t.TempDir()
	writeHeartbeat(t, dir, `# HEARTBEAT.md

## Active Tasks

- Check email inbox every 30 minutes
- Review calendar for upcoming meetings
`)

	prompt, hasWork := BuildHeartbeatPrompt(dir)
	if !hasWork {
		t.Fatal("expected work for file with tasks")
	}
	if prompt == "" {
		t.Fatal("expected non-empty prompt")
	}
}

func TestNewHeartbeatJob(t *testing.T) {
	job := NewHeartbeatJob("agent-1", "/workspace", 0)

	if !IsHeartbeatJob(job.ID) {
		t.Errorf("job ID %q should be detected as heartbeat", job.ID)
	}
	if job.AgentID != "agent-1" {
		t.Errorf("agent ID = %q, want agent-1", job.AgentID)
	}
	if job.SessionTarget != SessionMain {
		t.Errorf("session target = %q, want main", job.SessionTarget)
	}
	if job.NextRunAt == nil {
		t.Fatal("NextRunAt should be set")
	}
	// Jitter pushes the first fire past one bare interval.
	if job.NextRunAt.Before(time.Now().Add(defaultHeartbeatInterval - time.Second)) {
		t.Errorf("first fire %v unexpectedly early", job.NextRunAt)
	}
}

func TestIsHeartbeatJob(t *testing.T) {
	if IsHeartbeatJob("regular-job") {
		t.Error("regular job should not be heartbeat")
	}
	if !IsHeartbeatJob(heartbeatJobID("agent-1")) {
		t.Error("heartbeat job should be detected")
	}
}
