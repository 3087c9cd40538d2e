package convstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/orchestrator/core/internal/core/clockwork"
)

func TestAddMessageTrimsLeadingNonUser(t *testing.T) {
	clock := clockwork.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := New(clock, filepath.Join(t.TempDir(), "conv.json"), 10)

	s.AddMessage("c1", RoleAssistant, "stray")
	s.AddMessage("c1", RoleUser, "hi")
	s.AddMessage("c1", RoleAssistant, "hello")

	hist := s.History("c1")
	if len(hist) != 2 || hist[0].Role != RoleUser {
		t.Fatalf("expected history to start with user role, got %+v", hist)
	}
}

func TestAddMessageBoundedByMaxHistory(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	s := New(clock, filepath.Join(t.TempDir(), "conv.json"), 3)
	for i := 0; i < 10; i++ {
		s.AddMessage("c1", RoleUser, fmt.Sprintf("m%d", i))
	}
	hist := s.History("c1")
	if len(hist) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(hist))
	}
	if hist[len(hist)-1].Content != "m9" {
		t.Fatalf("expected most recent message retained, got %+v", hist)
	}
}

func TestGetSummarizedHistoryProperty(t *testing.T) {
	clock := clockwork.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := New(clock, filepath.Join(t.TempDir(), "conv.json"), 1000)

	const recentWindow = 4
	const total = 12
	for i := 0; i < total; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		s.AddMessage("c1", role, fmt.Sprintf("msg-%d", i))
		clock.Advance(time.Minute)
	}

	out := s.GetSummarizedHistory("c1", recentWindow)
	if len(out) != 1+recentWindow {
		t.Fatalf("expected %d messages, got %d", 1+recentWindow, len(out))
	}
	if out[0].Role != RoleUser {
		t.Fatalf("expected summary message to be user-role, got %s", out[0].Role)
	}
	wantTag := fmt.Sprintf("[CONVERSATION SUMMARY - %d earlier messages]", total-recentWindow)
	if !strings.Contains(out[0].Content, wantTag) {
		t.Fatalf("expected summary content to contain %q, got %q", wantTag, out[0].Content)
	}
	for _, m := range out {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			t.Fatalf("unexpected role %s in summarized history", m.Role)
		}
	}
}

func TestGetSummarizedHistoryUnderWindowIsVerbatimWithMarkers(t *testing.T) {
	clock := clockwork.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := New(clock, filepath.Join(t.TempDir(), "conv.json"), 1000)
	s.AddMessage("c1", RoleUser, "hi")

	out := s.GetSummarizedHistory("c1", 5)
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	if !strings.Contains(out[0].Content, "[just now]") {
		t.Fatalf("expected relative time marker, got %q", out[0].Content)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conv.json")
	clock := clockwork.NewFake(time.Now())
	s := New(clock, path, 100)
	s.AddMessage("c1", RoleUser, "hello")
	s.AddMessage("c1", RoleAssistant, "hi there")
	s.SetActiveSkill("c1", "coding")
	s.Save()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	loaded := New(clock, path, 100)
	if err := loaded.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	gotHist := loaded.History("c1")
	wantHist := s.History("c1")
	if len(gotHist) != len(wantHist) {
		t.Fatalf("history length mismatch after round trip")
	}
	skill, ok := loaded.ActiveSkill("c1")
	if !ok || skill != "coding" {
		t.Fatalf("expected active skill to survive round trip, got %q, ok=%v", skill, ok)
	}
}

func TestClearRemovesHistoryAndSkill(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	s := New(clock, filepath.Join(t.TempDir(), "conv.json"), 100)
	s.AddMessage("c1", RoleUser, "hi")
	s.SetActiveSkill("c1", "coding")
	s.Clear("c1")
	if len(s.History("c1")) != 0 {
		t.Fatalf("expected empty history after clear")
	}
	if _, ok := s.ActiveSkill("c1"); ok {
		t.Fatalf("expected no active skill after clear")
	}
}
