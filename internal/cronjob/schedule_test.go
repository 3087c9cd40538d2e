package cronjob

import (
	"testing"
	"time"
)

func TestCalcNextRunEvery(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	next, err := calcNextRun(&Job{ScheduleType: ScheduleEvery, Schedule: "5m"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := now.Add(5 * time.Minute); !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}

	if _, err := calcNextRun(&Job{ScheduleType: ScheduleEvery, Schedule: "bad"}, now); err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if _, err := calcNextRun(&Job{ScheduleType: ScheduleEvery, Schedule: "-5m"}, now); err == nil {
		t.Fatal("expected error for non-positive duration")
	}
}

func TestCalcNextRunCron(t *testing.T) {
	// Daily at 09:00, asked at 08:00 the same day.
	now := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

	next, err := calcNextRun(&Job{ScheduleType: ScheduleCron, Schedule: "0 9 * * *"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}

func TestCalcNextRunAt(t *testing.T) {
	job := &Job{ScheduleType: ScheduleAt, Schedule: "2026-02-01T09:00:00Z"}

	next, err := calcNextRun(job, time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}

	// Asked after the timestamp: the one-shot is spent.
	next, err = calcNextRun(job, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.IsZero() {
		t.Errorf("expected zero time for past one-shot, got %v", next)
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		consecutiveErr int
		want           time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, 1 * time.Minute},
		{3, 5 * time.Minute},
		{4, 15 * time.Minute},
		{5, 60 * time.Minute},
		{100, 60 * time.Minute}, // capped
	}
	for _, tt := range tests {
		if got := backoffDelay(tt.consecutiveErr); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.consecutiveErr, got, tt.want)
		}
	}
}
