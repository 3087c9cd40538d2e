package schedule

import (
	"testing"
	"time"
)

func TestNextCronEveryFiveMinutes(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 2, 17, 0, time.UTC)
	next, err := NextCron("*/5 * * * *", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextIntervalOverdueFiresSoon(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lastRun := now.Add(-40 * time.Minute)
	next := NextInterval(30, lastRun, now)
	want := now.Add(time.Second)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextIntervalFirstRun(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	next := NextInterval(30, time.Time{}, now)
	want := now.Add(30 * time.Minute)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextRandomUniformRange(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lo := now.Add(10 * time.Minute)
	hi := now.Add(20 * time.Minute)
	for i := 0; i < 10000; i++ {
		got := NextRandom(10, 20, now, nil)
		if got.Before(lo) || got.After(hi) {
			t.Fatalf("trial %d: %v outside [%v,%v]", i, got, lo, hi)
		}
	}
}

func TestScheduleClampsMinimumDelay(t *testing.T) {
	done := make(chan struct{})
	start := time.Now()
	Schedule(0, func() { close(done) })
	<-done
	if time.Since(start) < minTimerDelay {
		t.Fatalf("timer fired before the 1s clamp elapsed")
	}
}

func TestHandleCancel(t *testing.T) {
	fired := false
	h := Schedule(50*time.Millisecond, func() { fired = true })
	h.Cancel()
	time.Sleep(100 * time.Millisecond)
	if fired {
		t.Fatalf("expected cancelled timer not to fire")
	}
}
