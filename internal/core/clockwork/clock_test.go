package clockwork

import (
	"testing"
	"time"
)

func TestIsQuietHoursSimpleWindow(t *testing.T) {
	q := QuietHours{StartMinute: 2 * 60, EndMinute: 6 * 60}
	inside := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	outside := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	if !q.IsQuietHours(inside) {
		t.Fatalf("expected 03:00 to be inside quiet hours")
	}
	if q.IsQuietHours(outside) {
		t.Fatalf("expected 08:00 to be outside quiet hours")
	}
}

func TestIsQuietHoursWraparound(t *testing.T) {
	q := QuietHours{StartMinute: 22 * 60, EndMinute: 6 * 60}
	late := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	early := time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC)
	midday := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if !q.IsQuietHours(late) || !q.IsQuietHours(early) {
		t.Fatalf("expected wraparound window to cover 23:30 and 04:00")
	}
	if q.IsQuietHours(midday) {
		t.Fatalf("expected midday to be outside wraparound window")
	}
}

func TestMsUntilQuietEnd(t *testing.T) {
	q := QuietHours{StartMinute: 2 * 60, EndMinute: 6 * 60}
	now := time.Date(2024, 1, 1, 5, 59, 0, 0, time.UTC)
	ms := q.MsUntilQuietEnd(now)
	if ms != 60*1000 {
		t.Fatalf("expected 60000ms remaining, got %d", ms)
	}
	outside := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	if q.MsUntilQuietEnd(outside) != 0 {
		t.Fatalf("expected 0ms outside window")
	}
}

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := NewFake(start)
	fc.Advance(5 * time.Minute)
	if !fc.Now().Equal(start.Add(5 * time.Minute)) {
		t.Fatalf("fake clock did not advance")
	}
}
