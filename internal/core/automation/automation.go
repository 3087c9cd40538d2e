// Package automation implements the Automation Manager: CRUD plus
// arm/disarm over Automation records, quiet-hours deferral, and
// per-chat execution serialization. The whole collection persists as
// one JSON array written atomically (tmp file + rename).
package automation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/orchestrator/core/internal/core/clockwork"
	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/core/schedule"
	"github.com/orchestrator/core/internal/pkg/logs"
)

const (
	defaultMaxPerChat         = 10
	defaultMinIntervalMinutes = 5
	quietHoursReArmGrace      = 60 * time.Second
)

// ScheduleKind discriminates the tagged-union Schedule.
type ScheduleKind string

const (
	ScheduleCron     ScheduleKind = "cron"
	ScheduleInterval ScheduleKind = "interval"
	ScheduleRandom   ScheduleKind = "random"
)

// Schedule is the tagged union Cron{expr} | Interval{minutes} |
// Random{min,max}.
type Schedule struct {
	Kind     ScheduleKind `json:"kind"`
	CronExpr string       `json:"cron_expr,omitempty"`
	Minutes  int          `json:"minutes,omitempty"`
	MinMin   int          `json:"min_minutes,omitempty"`
	MaxMin   int          `json:"max_minutes,omitempty"`
}

// Automation is a scheduled, recurring synthetic user prompt.
type Automation struct {
	ID                 string    `json:"id"`
	ChatID             string    `json:"chat_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Schedule           Schedule  `json:"schedule"`
	Enabled            bool      `json:"enabled"`
	RespectQuietHours  bool      `json:"respect_quiet_hours"`
	LastRun            time.Time `json:"last_run,omitempty"`
	NextRun            time.Time `json:"next_run,omitempty"`
	RunCount           int       `json:"run_count"`
	LastError          string    `json:"last_error,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// FireFunc delivers an automation's synthetic prompt through the Chat
// Pipeline into the Orchestrator Loop. Declared locally (not imported
// from orchestrator/chatpipeline) so this package has no dependency on
// either.
type FireFunc func(ctx context.Context, chat, prompt string) error

// Limits bundles the CRUD validation constants.
type Limits struct {
	MaxPerChat         int
	MinIntervalMinutes int
}

func defaultLimits() Limits {
	return Limits{MaxPerChat: defaultMaxPerChat, MinIntervalMinutes: defaultMinIntervalMinutes}
}

// Manager owns the timer wheel for automations;
// timer ids (schedule.Handle) are internal.
type Manager struct {
	clock      ports.Clock
	quiet      clockwork.QuietHours
	fire       FireFunc
	limits     Limits
	path       string

	mu      sync.Mutex
	byID    map[string]*Automation
	handles map[string]*schedule.Handle
	chains  map[string]chan struct{} // per-chat serialization token buckets
}

func New(clock ports.Clock, quiet clockwork.QuietHours, path string, fire FireFunc, limits *Limits) *Manager {
	lim := defaultLimits()
	if limits != nil {
		lim = *limits
	}
	return &Manager{
		clock:   clock,
		quiet:   quiet,
		fire:    fire,
		limits:  lim,
		path:    path,
		byID:    make(map[string]*Automation),
		handles: make(map[string]*schedule.Handle),
		chains:  make(map[string]chan struct{}),
	}
}

// newAutomationID uses google/uuid, matching internal/security/pairing
// and internal/core/transportadapter's own generated ids.
func newAutomationID() string {
	return "auto_" + uuid.NewString()[:8]
}

// CreateRequest is the validated input to Create.
type CreateRequest struct {
	ChatID            string
	Name              string
	Description       string
	Schedule          Schedule
	Enabled           bool
	RespectQuietHours bool
}

// Create validates and inserts a new automation, arming it if enabled.
func (m *Manager) Create(req CreateRequest) (Automation, error) {
	if err := m.validateSchedule(req.Schedule); err != nil {
		return Automation{}, err
	}

	m.mu.Lock()
	count := 0
	for _, a := range m.byID {
		if a.ChatID == req.ChatID {
			count++
		}
	}
	if count >= m.limits.MaxPerChat {
		m.mu.Unlock()
		return Automation{}, fmt.Errorf("chat %s already has the maximum of %d automations", req.ChatID, m.limits.MaxPerChat)
	}

	a := &Automation{
		ID:                newAutomationID(),
		ChatID:            req.ChatID,
		Name:              req.Name,
		Description:       req.Description,
		Schedule:          req.Schedule,
		Enabled:           req.Enabled,
		RespectQuietHours: req.RespectQuietHours,
		CreatedAt:         m.clock.Now(),
	}
	m.byID[a.ID] = a
	m.mu.Unlock()

	if a.Enabled {
		m.arm(a.ID)
	}
	m.persist()
	return *a, nil
}

func (m *Manager) validateSchedule(s Schedule) error {
	switch s.Kind {
	case ScheduleCron:
		if s.CronExpr == "" {
			return fmt.Errorf("cron schedule requires a non-empty expression")
		}
	case ScheduleInterval:
		if s.Minutes < m.limits.MinIntervalMinutes {
			return fmt.Errorf("interval minutes must be >= %d", m.limits.MinIntervalMinutes)
		}
	case ScheduleRandom:
		if s.MinMin < m.limits.MinIntervalMinutes {
			return fmt.Errorf("random min must be >= %d", m.limits.MinIntervalMinutes)
		}
		if s.MaxMin <= s.MinMin {
			return fmt.Errorf("random max must be > min")
		}
	default:
		return fmt.Errorf("unknown schedule kind: %s", s.Kind)
	}
	return nil
}

// UpdateRequest patches an existing automation; nil fields are left
// unchanged.
type UpdateRequest struct {
	Name              *string
	Description       *string
	Schedule          *Schedule
	Enabled           *bool
	RespectQuietHours *bool
}

// Update applies a patch and re-arms if enabled and the schedule (or
// enabled flag) changed.
func (m *Manager) Update(id string, req UpdateRequest) (Automation, error) {
	if req.Schedule != nil {
		if err := m.validateSchedule(*req.Schedule); err != nil {
			return Automation{}, err
		}
	}

	m.mu.Lock()
	a, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return Automation{}, fmt.Errorf("automation %s not found", id)
	}
	scheduleChanged := false
	wasEnabled := a.Enabled
	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Schedule != nil {
		a.Schedule = *req.Schedule
		scheduleChanged = true
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if req.RespectQuietHours != nil {
		a.RespectQuietHours = *req.RespectQuietHours
	}
	snap := *a
	m.mu.Unlock()

	if snap.Enabled && (scheduleChanged || !wasEnabled) {
		m.arm(id)
	} else if !snap.Enabled {
		m.disarm(id)
	}
	m.persist()
	return snap, nil
}

// Delete removes an automation and cancels its pending timer.
func (m *Manager) Delete(id string) error {
	m.disarm(id)
	m.mu.Lock()
	_, ok := m.byID[id]
	delete(m.byID, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("automation %s not found", id)
	}
	m.persist()
	return nil
}

// Get returns one automation by id.
func (m *Manager) Get(id string) (Automation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return Automation{}, false
	}
	return *a, true
}

// List returns every automation for chat (or all, if chat is empty).
func (m *Manager) List(chat string) []Automation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Automation, 0, len(m.byID))
	for _, a := range m.byID {
		if chat == "" || a.ChatID == chat {
			out = append(out, *a)
		}
	}
	return out
}

// RunNow triggers id immediately, outside its normal schedule, through
// the same quiet-hours and serialization path as a scheduled fire.
// Backs the "auto run <id>" command.
func (m *Manager) RunNow(id string) error {
	if _, ok := m.Get(id); !ok {
		return fmt.Errorf("automation %s not found", id)
	}
	m.onFire(id)
	return nil
}

// arm computes next fire and schedules the timer, cancelling any
// existing one first.
func (m *Manager) arm(id string) {
	m.mu.Lock()
	a, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if h, exists := m.handles[id]; exists {
		h.Cancel()
		delete(m.handles, id)
	}
	next, err := m.nextFire(a)
	if err != nil {
		a.LastError = err.Error()
		m.mu.Unlock()
		m.persist()
		return
	}
	a.NextRun = next
	now := m.clock.Now()
	delay := next.Sub(now)
	m.mu.Unlock()

	handle := schedule.Schedule(delay, func() { m.onFire(id) })
	m.mu.Lock()
	m.handles[id] = handle
	m.mu.Unlock()
	m.persist()
}

func (m *Manager) disarm(id string) {
	m.mu.Lock()
	if h, ok := m.handles[id]; ok {
		h.Cancel()
		delete(m.handles, id)
	}
	m.mu.Unlock()
}

func (m *Manager) nextFire(a *Automation) (time.Time, error) {
	now := m.clock.Now()
	switch a.Schedule.Kind {
	case ScheduleCron:
		return schedule.NextCron(a.Schedule.CronExpr, now)
	case ScheduleInterval:
		return schedule.NextInterval(a.Schedule.Minutes, a.LastRun, now), nil
	case ScheduleRandom:
		return schedule.NextRandom(a.Schedule.MinMin, a.Schedule.MaxMin, now, nil), nil
	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %s", a.Schedule.Kind)
	}
}

// onFire is the timer callback. It re-validates enabled/quiet-hours
// state, then serializes execution per chat.
func (m *Manager) onFire(id string) {
	m.mu.Lock()
	a, ok := m.byID[id]
	if !ok || !a.Enabled {
		m.mu.Unlock()
		return // deleted or disabled between scheduling and firing: skip
	}
	if a.RespectQuietHours && m.quiet.IsQuietHours(m.clock.Now()) {
		m.mu.Unlock()
		m.rearmAfterQuietHours(id)
		return
	}
	chat := a.ChatID
	prompt := fmt.Sprintf("[AUTOMATION: %s] %s", a.Name, a.Description)
	m.mu.Unlock()

	m.runSerialized(chat, func() {
		err := m.fire(context.Background(), chat, prompt)
		m.mu.Lock()
		a, ok := m.byID[id]
		if ok {
			a.LastRun = m.clock.Now()
			a.RunCount++
			if err != nil {
				a.LastError = err.Error()
			} else {
				a.LastError = ""
			}
		}
		m.mu.Unlock()
		m.persist()
		if ok {
			m.arm(id)
		}
	})
}

func (m *Manager) rearmAfterQuietHours(id string) {
	m.mu.Lock()
	a, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delay := time.Duration(m.quiet.MsUntilQuietEnd(m.clock.Now()))*time.Millisecond + quietHoursReArmGrace
	next := m.clock.Now().Add(delay)
	a.NextRun = next
	if h, exists := m.handles[id]; exists {
		h.Cancel()
	}
	m.mu.Unlock()

	handle := schedule.Schedule(delay, func() { m.onFire(id) })
	m.mu.Lock()
	m.handles[id] = handle
	m.mu.Unlock()
	m.persist()
}

// runSerialized chains fn after the prior execution for the same chat
// completes, regardless of success — the same FIFO-chain pattern the
// Chat Pipeline uses, so automation runs never interleave with
// each other nor corrupt conversation history.
func (m *Manager) runSerialized(chat string, fn func()) {
	m.mu.Lock()
	prior, ok := m.chains[chat]
	done := make(chan struct{})
	m.chains[chat] = done
	m.mu.Unlock()

	go func() {
		if ok {
			<-prior
		}
		defer close(done)
		fn()
	}()
}

// Load reads automations.json and arms every enabled automation.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read automations store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var list []Automation
	if err := sonic.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("unmarshal automations store: %w", err)
	}

	m.mu.Lock()
	m.byID = make(map[string]*Automation, len(list))
	for i := range list {
		a := list[i]
		m.byID[a.ID] = &a
	}
	ids := make([]string, 0, len(m.byID))
	for id, a := range m.byID {
		if a.Enabled {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.arm(id)
	}
	return nil
}

// persist writes the whole collection atomically; failures are logged
// only, never propagated into callers.
func (m *Manager) persist() {
	m.mu.Lock()
	list := make([]Automation, 0, len(m.byID))
	for _, a := range m.byID {
		list = append(list, *a)
	}
	m.mu.Unlock()

	data, err := sonic.Marshal(list)
	if err != nil {
		logs.Warn("[automation] marshal failed: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		logs.Warn("[automation] create directory failed: %v", err)
		return
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logs.Warn("[automation] write tmp failed: %v", err)
		return
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		logs.Warn("[automation] rename failed: %v", err)
	}
}
