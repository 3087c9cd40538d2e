package automation

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/orchestrator/core/internal/core/clockwork"
)

type fireRecorder struct {
	mu     sync.Mutex
	prompt []string
}

func (r *fireRecorder) fire(ctx context.Context, chat, prompt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompt = append(r.prompt, prompt)
	return nil
}

func (r *fireRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prompt)
}

func TestQuietHoursDeferral(t *testing.T) {
	dir := t.TempDir()
	// 02:59 sits inside a 02:00-06:00 quiet window.
	clock := clockwork.NewFake(time.Date(2026, 1, 1, 2, 59, 0, 0, time.UTC))
	rec := &fireRecorder{}

	m := New(clock, clockwork.QuietHours{StartMinute: 2 * 60, EndMinute: 6 * 60}, filepath.Join(dir, "automations.json"), rec.fire, nil)

	a, err := m.Create(CreateRequest{
		ChatID:            "chat1",
		Name:              "ping",
		Description:       "heartbeat",
		Schedule:          Schedule{Kind: ScheduleInterval, Minutes: 10},
		Enabled:           true,
		RespectQuietHours: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Fire the timer directly (deterministic, no real-clock sleep).
	m.onFire(a.ID)
	waitUntilSettled()

	if rec.count() != 0 {
		t.Fatalf("expected no execution while inside quiet hours, got %d calls", rec.count())
	}
	got, _ := m.Get(a.ID)
	if got.RunCount != 0 {
		t.Fatalf("run_count must be unchanged on deferral, got %d", got.RunCount)
	}
	if !got.NextRun.After(clock.Now()) {
		t.Fatalf("expected re-arm to a future time")
	}
}

func TestFiresOutsideQuietHours(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	rec := &fireRecorder{}

	m := New(clock, clockwork.QuietHours{StartMinute: 2 * 60, EndMinute: 6 * 60}, filepath.Join(dir, "automations.json"), rec.fire, nil)

	a, err := m.Create(CreateRequest{
		ChatID:            "chat1",
		Name:              "ping",
		Description:       "heartbeat",
		Schedule:          Schedule{Kind: ScheduleInterval, Minutes: 10},
		Enabled:           true,
		RespectQuietHours: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	m.onFire(a.ID)
	waitUntilSettled()

	if rec.count() != 1 {
		t.Fatalf("expected exactly one execution, got %d", rec.count())
	}
	got, _ := m.Get(a.ID)
	if got.RunCount != 1 {
		t.Fatalf("expected run_count=1, got %d", got.RunCount)
	}
	if got.LastError != "" {
		t.Fatalf("expected no last_error, got %q", got.LastError)
	}
}

func TestRandomScheduleValidation(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFake(time.Now())
	m := New(clock, clockwork.QuietHours{}, filepath.Join(dir, "automations.json"), noopFire, nil)

	_, err := m.Create(CreateRequest{
		ChatID:   "chat1",
		Name:     "roll",
		Schedule: Schedule{Kind: ScheduleRandom, MinMin: 10, MaxMin: 5},
		Enabled:  true,
	})
	if err == nil {
		t.Fatalf("expected validation error for max <= min")
	}
}

func TestMaxPerChatEnforced(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFake(time.Now())
	limits := &Limits{MaxPerChat: 1, MinIntervalMinutes: 5}
	m := New(clock, clockwork.QuietHours{}, filepath.Join(dir, "automations.json"), noopFire, limits)

	_, err := m.Create(CreateRequest{ChatID: "c", Name: "a", Schedule: Schedule{Kind: ScheduleInterval, Minutes: 5}})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err = m.Create(CreateRequest{ChatID: "c", Name: "b", Schedule: Schedule{Kind: ScheduleInterval, Minutes: 5}})
	if err == nil {
		t.Fatalf("expected max-per-chat error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "automations.json")
	clock := clockwork.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	m := New(clock, clockwork.QuietHours{}, path, noopFire, nil)
	created, err := m.Create(CreateRequest{
		ChatID:            "chat1",
		Name:              "daily digest",
		Description:       "summarize today",
		Schedule:          Schedule{Kind: ScheduleInterval, Minutes: 30},
		Enabled:           true,
		RespectQuietHours: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected store file to exist: %v", err)
	}

	loaded := New(clock, clockwork.QuietHours{}, path, noopFire, nil)
	if err := loaded.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	got, ok := loaded.Get(created.ID)
	if !ok {
		t.Fatalf("expected automation %s to survive round trip", created.ID)
	}
	if got.Name != created.Name || got.Description != created.Description {
		t.Fatalf("fields mismatch after round trip: got %+v, want name=%q description=%q", got, created.Name, created.Description)
	}
	if got.Schedule != created.Schedule {
		t.Fatalf("schedule mismatch after round trip: got %+v, want %+v", got.Schedule, created.Schedule)
	}
	if !got.Enabled || !got.RespectQuietHours {
		t.Fatalf("expected enabled flags to survive round trip, got %+v", got)
	}
	if !got.NextRun.After(clock.Now()) {
		t.Fatalf("expected Load to re-arm and set a future next_run, got %v (now=%v)", got.NextRun, clock.Now())
	}
}

func noopFire(ctx context.Context, chat, prompt string) error { return nil }

// waitUntilSettled gives the per-chat runSerialized goroutine a brief
// chance to run; onFire's own work (short of the chat-chain dispatch)
// happens synchronously on the calling goroutine, but the fire
// callback itself is invoked from runSerialized's goroutine.
func waitUntilSettled() {
	time.Sleep(20 * time.Millisecond)
}
