package lifeengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orchestrator/core/internal/core/clockwork"
)

type firedCall struct {
	chat   string
	prompt string
}

type recorder struct {
	mu    sync.Mutex
	calls []firedCall
}

func (r *recorder) fire(ctx context.Context, chat, prompt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, firedCall{chat, prompt})
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) last() firedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func TestTriggerNowBypassesCooldownAndTimer(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	rec := &recorder{}
	e := New(clock, rec.fire, time.Hour, 0)

	if err := e.TriggerNow(string(KindJournal)); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected exactly one fire, got %d", rec.count())
	}
	got := rec.last()
	if got.chat != ReservedChat {
		t.Fatalf("expected reserved chat, got %q", got.chat)
	}
	if got.prompt != prompts[KindJournal] {
		t.Fatalf("expected journal prompt, got %q", got.prompt)
	}

	// Immediately triggering again must still fire despite journal's
	// 4h cooldown, since TriggerNow bypasses it.
	if err := e.TriggerNow(string(KindJournal)); err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if rec.count() != 2 {
		t.Fatalf("expected two fires, got %d", rec.count())
	}
}

func TestPauseSkipsTimerFire(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	rec := &recorder{}
	e := New(clock, rec.fire, 10*time.Millisecond, 0)
	e.Pause()

	// schedule.Schedule clamps the 10ms delay to 1s; wait past that.
	time.Sleep(1200 * time.Millisecond)

	if rec.count() != 0 {
		t.Fatalf("expected no fires while paused, got %d", rec.count())
	}
}

func TestChooseKindRespectsCooldown(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	e := New(clock, func(ctx context.Context, chat, prompt string) error { return nil }, time.Hour, 0)

	e.mu.Lock()
	e.lastRun[KindJournal] = clock.Now()
	e.lastRun[KindSelfCode] = clock.Now()
	e.lastRun[KindCodeReview] = clock.Now()
	e.lastRun[KindReflect] = clock.Now()
	kind := e.chooseKindLocked(false)
	e.mu.Unlock()

	switch kind {
	case KindJournal, KindSelfCode, KindCodeReview, KindReflect:
		t.Fatalf("expected a zero-cooldown kind immediately after running all cooldown kinds, got %s", kind)
	}
}
