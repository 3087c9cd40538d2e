package jobmanager

import (
	"testing"
	"time"

	"github.com/orchestrator/core/internal/core/clockwork"
)

func TestLifecycleEventOrder(t *testing.T) {
	clock := clockwork.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := New(clock, 4)

	var kinds []EventKind
	m.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	j := m.Create("chat1", "coding", "build it", nil)
	if _, ok := m.Start(j.ID); !ok {
		t.Fatalf("expected start to succeed")
	}
	if _, ok := m.Complete(j.ID, "done", nil); !ok {
		t.Fatalf("expected complete to succeed")
	}

	if len(kinds) != 2 || kinds[0] != EventStarted || kinds[1] != EventCompleted {
		t.Fatalf("unexpected event sequence: %v", kinds)
	}

	// Terminal job rejects further mutation silently.
	if _, ok := m.Fail(j.ID, "late error"); ok {
		t.Fatalf("fail on terminal job must be a no-op")
	}
	if len(kinds) != 2 {
		t.Fatalf("no further events expected after terminal, got %v", kinds)
	}
}

func TestFailBeforeStartStillEmitsStarted(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	m := New(clock, 4)

	var kinds []EventKind
	m.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	// Failing a job that never ran (unknown worker type at dispatch)
	// must still produce the full started → failed sequence.
	j := m.Create("chat1", "bogus", "task", nil)
	if _, ok := m.Fail(j.ID, "unknown worker type"); !ok {
		t.Fatalf("expected fail to succeed")
	}

	if len(kinds) != 2 || kinds[0] != EventStarted || kinds[1] != EventFailed {
		t.Fatalf("unexpected event sequence: %v", kinds)
	}
	got, _ := m.Get(j.ID)
	if got.Status != StatusFailed || got.StartedAt.IsZero() {
		t.Fatalf("expected failed job with a start time, got %+v", got)
	}
}

func TestCancelQueuedStillEmitsStarted(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	m := New(clock, 4)

	var kinds []EventKind
	m.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	j := m.Create("chat1", "coding", "task", nil)
	if c := m.Cancel(j.ID); c == nil || c.Status != StatusCancelled {
		t.Fatalf("expected queued job to cancel, got %+v", c)
	}

	if len(kinds) != 2 || kinds[0] != EventStarted || kinds[1] != EventCancelled {
		t.Fatalf("unexpected event sequence: %v", kinds)
	}
}

func TestCancelIdempotent(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	m := New(clock, 4)

	var cancelEvents int
	m.Subscribe(func(ev Event) {
		if ev.Kind == EventCancelled {
			cancelEvents++
		}
	})

	j := m.Create("chat1", "coding", "task", nil)
	m.Start(j.ID)

	first := m.Cancel(j.ID)
	second := m.Cancel(j.ID)
	if first.Status != StatusCancelled || second.Status != StatusCancelled {
		t.Fatalf("expected both cancels to report cancelled status")
	}
	if cancelEvents != 1 {
		t.Fatalf("expected exactly one cancel event, got %d", cancelEvents)
	}
	if !j.CancelToken().Tripped() {
		t.Fatalf("expected cancel token to be tripped")
	}
}

func TestConcurrencyCap(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	m := New(clock, 1)

	a := m.Create("chat1", "coding", "a", nil)
	b := m.Create("chat1", "coding", "b", nil)

	if _, ok := m.Start(a.ID); !ok {
		t.Fatalf("expected first job to start")
	}
	if _, ok := m.Start(b.ID); ok {
		t.Fatalf("expected second job to stay queued at cap")
	}
	// Cancel is always permitted even while queued.
	cancelled := m.Cancel(b.ID)
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected queued job to be cancellable")
	}
}

func TestCancelAllForChat(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	m := New(clock, 4)

	a := m.Create("chat1", "coding", "a", nil)
	_ = m.Create("chat2", "coding", "b", nil)
	m.Start(a.ID)

	cancelled := m.CancelAllForChat("chat1")
	if len(cancelled) != 1 || cancelled[0].ID != a.ID {
		t.Fatalf("expected exactly job a cancelled, got %+v", cancelled)
	}
	if len(m.ListRunning("chat2")) != 0 {
		t.Fatalf("chat2 job must be untouched")
	}
}
