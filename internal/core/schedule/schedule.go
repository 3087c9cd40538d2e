// Package schedule implements pure next-fire computation for the three
// automation schedule kinds plus a one-shot timer abstraction
// used by the Automation Manager and Life Engine. Cron field parsing
// is delegated to robfig/cron/v3; the 366-day search bound and the
// "now+24h" pathological fallback are this package's own rules, not
// the library's.
package schedule

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser matches the 5-field form (minute hour dom month dow),
// dow 0=Sunday.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

const cronSearchBound = 366 * 24 * time.Hour

// NextCron returns the earliest minute strictly after now whose
// decomposed fields all match expr. If no match is found within the
// 366-day search bound the pathological-expression fallback now+24h is
// returned instead of erroring.
func NextCron(expr string, now time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	truncated := now.Truncate(time.Second)
	next := sched.Next(truncated)
	if next.IsZero() || next.Sub(truncated) > cronSearchBound {
		return now.Add(24 * time.Hour), nil
	}
	return next, nil
}

// NextInterval computes the interval rule: if lastRun is the zero
// value, fire at now+minutes; otherwise at lastRun+minutes, or now+1s
// if that has already passed (overdue work fires once, promptly, never
// twice for one overdue period).
func NextInterval(minutes int, lastRun time.Time, now time.Time) time.Time {
	if lastRun.IsZero() {
		return now.Add(time.Duration(minutes) * time.Minute)
	}
	next := lastRun.Add(time.Duration(minutes) * time.Minute)
	if next.Before(now) {
		return now.Add(time.Second)
	}
	return next
}

// NextRandom returns a uniformly distributed time in [now+min, now+max]
// minutes. A nil rng is replaced by a new source seeded from now.
func NextRandom(minMinutes, maxMinutes int, now time.Time, rng *rand.Rand) time.Time {
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	span := maxMinutes - minMinutes
	offset := minMinutes
	if span > 0 {
		offset += rng.Intn(span + 1)
	}
	return now.Add(time.Duration(offset) * time.Minute)
}

const minTimerDelay = time.Second

// TimerFunc is scheduled once by Schedule and fired on its own
// goroutine. Handle.Cancel stops it if it has not yet fired.
type TimerFunc func()

// Handle cancels a pending timer. Cancel after the timer already fired
// is a harmless no-op, matching time.Timer.Stop semantics.
type Handle struct {
	timer *time.Timer
}

func (h *Handle) Cancel() {
	if h == nil || h.timer == nil {
		return
	}
	h.timer.Stop()
}

// Schedule arms callback to run after delay, clamped to at least 1s to
// avoid tight loops on clock skew. Callers that need "exactly
// one pending timer per automation" re-arm by cancelling the previous
// Handle before calling Schedule again.
func Schedule(delay time.Duration, callback TimerFunc) *Handle {
	if delay < minTimerDelay {
		delay = minTimerDelay
	}
	t := time.AfterFunc(delay, callback)
	return &Handle{timer: t}
}
