// Package lifeengine implements the Life Engine: a timer-driven
// generator of synthetic activity that shares the same FireFunc
// dispatch shape as the Automation Manager, but has no user
// behind it — its prompts are injected under a single reserved chat.
// Built on internal/core/schedule's one-shot Handle/Schedule timer
// abstraction, with the same pause/disable-between-arm-and-fire checks
// the Automation Manager uses.
package lifeengine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/core/schedule"
	"github.com/orchestrator/core/internal/pkg/logs"
)

// ReservedChat is the pseudo-chat life-engine prompts are injected
// under.
const ReservedChat = "__life__"

// Kind is one of the seven synthetic activity kinds.
type Kind string

const (
	KindThink      Kind = "think"
	KindBrowse     Kind = "browse"
	KindJournal    Kind = "journal"
	KindCreate     Kind = "create"
	KindSelfCode   Kind = "self_code"
	KindCodeReview Kind = "code_review"
	KindReflect    Kind = "reflect"
)

var allKinds = []Kind{KindThink, KindBrowse, KindJournal, KindCreate, KindSelfCode, KindCodeReview, KindReflect}

// cooldowns gives each kind's minimum spacing between runs; kinds
// absent from this map have no cooldown.
var cooldowns = map[Kind]time.Duration{
	KindJournal:    4 * time.Hour,
	KindSelfCode:   2 * time.Hour,
	KindCodeReview: 4 * time.Hour,
	KindReflect:    4 * time.Hour,
}

// prompts maps each kind to its predefined synthetic user message.
var prompts = map[Kind]string{
	KindThink:      "Take a quiet moment and think freely about whatever feels most worth attention right now.",
	KindBrowse:     "Go browse something that sparks your curiosity, then report back what you found.",
	KindJournal:    "Write a journal entry reflecting on recent activity.",
	KindCreate:     "Create something small and share it.",
	KindSelfCode:   "Look over your own source for a rough edge worth improving, and act on it if it's small.",
	KindCodeReview: "Review a recent change for correctness, clarity, and style.",
	KindReflect:    "Reflect on recent jobs and automations; note anything worth remembering.",
}

// DefaultBaseInterval and DefaultJitter together give the idle-timer
// delay: base + uniform(0, jitter).
const (
	DefaultBaseInterval = 20 * time.Minute
	DefaultJitter       = 10 * time.Minute
)

// FireFunc delivers a synthetic prompt through the Chat Pipeline into
// the Orchestrator Loop, symmetric with automation.FireFunc. Declared
// locally so this package depends on neither chatpipeline nor
// orchestrator.
type FireFunc func(ctx context.Context, chat, prompt string) error

// Engine is the Life Engine. Exactly one pending timer exists at a
// time; firing re-arms the next one regardless of outcome.
type Engine struct {
	Clock        ports.Clock
	Fire         FireFunc
	BaseInterval time.Duration
	Jitter       time.Duration
	Rng          *rand.Rand

	mu      sync.Mutex
	paused  bool
	lastRun map[Kind]time.Time
	handle  *schedule.Handle
}

// New builds an armed Engine. fire is called with ReservedChat and the
// chosen kind's prompt whenever a timer (or TriggerNow) fires.
func New(clock ports.Clock, fire FireFunc, baseInterval, jitter time.Duration) *Engine {
	if baseInterval <= 0 {
		baseInterval = DefaultBaseInterval
	}
	e := &Engine{
		Clock:        clock,
		Fire:         fire,
		BaseInterval: baseInterval,
		Jitter:       jitter,
		lastRun:      make(map[Kind]time.Time),
	}
	e.armLocked()
	return e
}

// Pause stops future timer-driven activity; a previously armed timer
// becomes a no-op when it fires (checked by the paused flag, symmetric
// with automation's "disabled between scheduling and firing" check).
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume re-arms the idle timer if it is not already pending.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	needsArm := e.handle == nil
	e.mu.Unlock()
	if needsArm {
		e.mu.Lock()
		e.armLocked()
		e.mu.Unlock()
	}
}

// TriggerNow bypasses both the idle timer and any cooldown. An empty
// kind picks one the same way the timer-driven path does.
func (e *Engine) TriggerNow(kind string) error {
	e.mu.Lock()
	var k Kind
	if kind == "" {
		k = e.chooseKindLocked(true)
	} else {
		k = Kind(kind)
	}
	e.lastRun[k] = e.now()
	e.mu.Unlock()

	return e.fire(context.Background(), k)
}

func (e *Engine) armLocked() {
	delay := e.BaseInterval
	jitter := e.Jitter
	if jitter > 0 {
		rng := e.Rng
		if rng == nil {
			rng = rand.New(rand.NewSource(e.now().UnixNano()))
		}
		delay += time.Duration(rng.Int63n(int64(jitter)))
	}
	e.handle = schedule.Schedule(delay, e.onFire)
}

func (e *Engine) onFire() {
	e.mu.Lock()
	if e.paused {
		e.handle = nil
		e.armLocked()
		e.mu.Unlock()
		return
	}
	kind := e.chooseKindLocked(false)
	e.lastRun[kind] = e.now()
	e.handle = nil
	e.armLocked()
	e.mu.Unlock()

	if err := e.fire(context.Background(), kind); err != nil {
		logs.Warn("[lifeengine] %s activity failed: %v", kind, err)
	}
}

func (e *Engine) fire(ctx context.Context, kind Kind) error {
	prompt, ok := prompts[kind]
	if !ok {
		return nil
	}
	return e.Fire(ctx, ReservedChat, prompt)
}

// chooseKindLocked picks an eligible kind uniformly at random from
// those whose cooldown has elapsed; bypassCooldown is used by
// TriggerNow("").
func (e *Engine) chooseKindLocked(bypassCooldown bool) Kind {
	now := e.now()
	eligible := make([]Kind, 0, len(allKinds))
	for _, k := range allKinds {
		if bypassCooldown {
			eligible = append(eligible, k)
			continue
		}
		cd := cooldowns[k]
		if cd == 0 {
			eligible = append(eligible, k)
			continue
		}
		if last, ok := e.lastRun[k]; !ok || now.Sub(last) >= cd {
			eligible = append(eligible, k)
		}
	}
	if len(eligible) == 0 {
		return KindThink
	}
	rng := e.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	return eligible[rng.Intn(len(eligible))]
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}
