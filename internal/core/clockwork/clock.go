// Package clockwork provides the single injected time source and the
// quiet-hours window test. Time is always read through the Clock
// interface so tests can freeze and advance it.
package clockwork

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/orchestrator/core/internal/core/ports"
)

// System is the production Clock: time.Now().
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fake is a test Clock that only advances when told to.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

var _ ports.Clock = System{}
var _ ports.Clock = (*Fake)(nil)

// QuietHours is a wall-clock do-not-disturb window, [Start, End) in
// minutes-since-midnight, possibly wrapping past midnight.
type QuietHours struct {
	StartMinute int
	EndMinute   int
}

const (
	defaultQuietStartHour = 2
	defaultQuietEndHour   = 6
)

// ResolveQuietHours resolves the do-not-disturb window: env vars
// QUIET_HOURS_START/END in HH:MM, else the configured start/end hours,
// else the 02:00-06:00 default.
func ResolveQuietHours(cfgStartHour, cfgEndHour int, hasCfg bool) QuietHours {
	if start, end, ok := quietHoursFromEnv(); ok {
		return QuietHours{StartMinute: start, EndMinute: end}
	}
	if hasCfg {
		return QuietHours{StartMinute: cfgStartHour * 60, EndMinute: cfgEndHour * 60}
	}
	return QuietHours{
		StartMinute: defaultQuietStartHour * 60,
		EndMinute:   defaultQuietEndHour * 60,
	}
}

func quietHoursFromEnv() (start, end int, ok bool) {
	s := strings.TrimSpace(os.Getenv("QUIET_HOURS_START"))
	e := strings.TrimSpace(os.Getenv("QUIET_HOURS_END"))
	if s == "" || e == "" {
		return 0, 0, false
	}
	sm, sok := parseHHMM(s)
	em, eok := parseHHMM(e)
	if !sok || !eok {
		return 0, 0, false
	}
	return sm, em, true
}

func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// IsQuietHours reports whether now's local wall-clock minute index lies
// in [start, end), with wraparound across midnight supported.
func (q QuietHours) IsQuietHours(now time.Time) bool {
	minute := now.Hour()*60 + now.Minute()
	if q.StartMinute == q.EndMinute {
		return false
	}
	if q.StartMinute < q.EndMinute {
		return minute >= q.StartMinute && minute < q.EndMinute
	}
	// wraps past midnight, e.g. 22:00-06:00
	return minute >= q.StartMinute || minute < q.EndMinute
}

// MsUntilQuietEnd returns positive milliseconds remaining in the quiet
// window if now is inside it, else 0.
func (q QuietHours) MsUntilQuietEnd(now time.Time) int64 {
	if !q.IsQuietHours(now) {
		return 0
	}
	minute := now.Hour()*60 + now.Minute()
	sec := now.Second()
	nsec := now.Nanosecond()

	endMinute := q.EndMinute
	var minutesRemaining int
	if q.StartMinute < q.EndMinute {
		minutesRemaining = endMinute - minute
	} else if minute >= q.StartMinute {
		// from `minute` forward past midnight to endMinute
		minutesRemaining = (24*60 - minute) + endMinute
	} else {
		minutesRemaining = endMinute - minute
	}
	ms := int64(minutesRemaining)*60*1000 - int64(sec)*1000 - int64(nsec)/1_000_000
	if ms < 0 {
		ms = 0
	}
	return ms
}
