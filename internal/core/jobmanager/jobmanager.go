// Package jobmanager implements the Job Manager: worker job
// lifecycle, cancellation tokens, a concurrency cap, and an event bus
// fanning out job:started/completed/failed/cancelled to subscribers in
// registration order. One lock guards all mutation; reads return
// snapshots.
package jobmanager

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/pkg/metrics"
)

// Status is one of a job's lifecycle states.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CancelToken is a one-shot signal shared between the Job Manager and
// the Worker Runtime executing a job. Trip is idempotent.
type CancelToken struct {
	once sync.Once
	ch   chan struct{}
}

func newCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Trip signals cancellation. Safe to call multiple times or concurrently.
func (t *CancelToken) Trip() {
	t.once.Do(func() { close(t.ch) })
}

// Done returns a channel closed once Trip has been called.
func (t *CancelToken) Done() <-chan struct{} { return t.ch }

// Tripped reports whether Trip has already been called.
func (t *CancelToken) Tripped() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Job is a single worker execution unit.
type Job struct {
	ID              string
	ChatID          string
	WorkerType      string
	Task            string
	Status          Status
	CreatedAt       time.Time
	StartedAt       time.Time
	CompletedAt     time.Time
	DurationS       float64
	Result          string
	Error           string
	DependsOn       []string
	Progress        []string
	LLMCalls        int
	ToolCalls       int
	LastThinking    string
	StatusMessageID string
	StructuredResult any

	cancel *CancelToken
}

// Snapshot returns a value copy of j safe to hand to subscribers and
// callers outside the manager's lock.
func (j *Job) snapshot() Job {
	cp := *j
	cp.DependsOn = append([]string(nil), j.DependsOn...)
	cp.Progress = append([]string(nil), j.Progress...)
	cp.cancel = j.cancel
	return cp
}

// CancelToken exposes the job's cancellation signal to the Worker
// Runtime executing it.
func (j *Job) CancelToken() *CancelToken { return j.cancel }

// EventKind discriminates job lifecycle events.
type EventKind string

const (
	EventStarted   EventKind = "job:started"
	EventCompleted EventKind = "job:completed"
	EventFailed    EventKind = "job:failed"
	EventCancelled EventKind = "job:cancelled"
)

// Event carries the full job snapshot at the moment of emission.
type Event struct {
	Kind EventKind
	Job  Job
}

// Subscriber receives job lifecycle events on the emitting goroutine,
// in registration order.
type Subscriber func(Event)

// Manager owns every Job; all mutation goes through its methods so
// event ordering holds.
type Manager struct {
	clock         ports.Clock
	maxConcurrent int
	softCap       int

	mu          sync.Mutex
	jobs        map[string]*Job
	order       []string // insertion order, for eviction and List()
	runningByWT map[string]int
	subs        []Subscriber
}

type Option func(*Manager)

// WithSoftCap bounds the terminal-job backlog:
// FIFO eviction of terminal jobs beyond the cap. Default 200.
func WithSoftCap(n int) Option {
	return func(m *Manager) { m.softCap = n }
}

func New(clock ports.Clock, maxConcurrentJobs int, opts ...Option) *Manager {
	if maxConcurrentJobs <= 0 {
		maxConcurrentJobs = 4
	}
	m := &Manager{
		clock:         clock,
		maxConcurrent: maxConcurrentJobs,
		softCap:       200,
		jobs:          make(map[string]*Job),
		runningByWT:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a subscriber; subscribers are invoked in the
// order they were registered.
func (m *Manager) Subscribe(sub Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, sub)
}

// newJobID uses google/uuid (short-hand form, 8 hex chars of a v4
// UUID) for a short, printable, unique job id.
func newJobID() string {
	return uuid.NewString()[:8]
}

// Create registers a new job. If the manager is at its concurrency
// cap the job is created queued and left for the caller to Start once
// capacity frees up; Create never blocks.
func (m *Manager) Create(chat, workerType, task string, dependsOn []string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	j := &Job{
		ID:         newJobID(),
		ChatID:     chat,
		WorkerType: workerType,
		Task:       task,
		Status:     StatusQueued,
		CreatedAt:  m.clock.Now(),
		DependsOn:  append([]string(nil), dependsOn...),
		cancel:     newCancelToken(),
	}
	m.jobs[j.ID] = j
	m.order = append(m.order, j.ID)
	m.evictTerminalLocked()
	return j
}

// CanStart reports whether the global concurrency cap has headroom.
func (m *Manager) CanStart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningCountLocked() < m.maxConcurrent
}

func (m *Manager) runningCountLocked() int {
	n := 0
	for _, id := range m.order {
		if j, ok := m.jobs[id]; ok && j.Status == StatusRunning {
			n++
		}
	}
	return n
}

// Start transitions a queued job to running. Returns false if the job
// is missing, already terminal, or the concurrency cap is exhausted
// (caller should leave it queued and retry later).
func (m *Manager) Start(id string) (Job, bool) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok || j.Status.Terminal() || j.Status == StatusRunning {
		m.mu.Unlock()
		return Job{}, false
	}
	if m.runningCountLocked() >= m.maxConcurrent {
		m.mu.Unlock()
		return Job{}, false
	}
	j.Status = StatusRunning
	j.StartedAt = m.clock.Now()
	snap := j.snapshot()
	m.mu.Unlock()

	metrics.JobsStarted.WithLabelValues(snap.WorkerType).Inc()
	m.emit(Event{Kind: EventStarted, Job: snap})
	return snap, true
}

// Complete terminally transitions a job to completed. Silently ignored
// if the job is already terminal.
func (m *Manager) Complete(id, result string, structured any) (Job, bool) {
	return m.finish(id, StatusCompleted, result, "", structured)
}

// Fail terminally transitions a job to failed.
func (m *Manager) Fail(id, errMsg string) (Job, bool) {
	return m.finish(id, StatusFailed, "", errMsg, nil)
}

// markStartedLocked promotes a still-queued job to running so its
// lifecycle always reads started → terminal, even when the terminal
// transition is the first thing that happens to it (e.g. an unknown
// worker type failing at dispatch). Returns the started snapshot to
// emit, or nil if the job had already started.
func (m *Manager) markStartedLocked(j *Job, now time.Time) *Job {
	if j.Status != StatusQueued {
		return nil
	}
	j.Status = StatusRunning
	j.StartedAt = now
	snap := j.snapshot()
	return &snap
}

func (m *Manager) finish(id string, status Status, result, errMsg string, structured any) (Job, bool) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok || j.Status.Terminal() {
		m.mu.Unlock()
		return Job{}, false
	}
	now := m.clock.Now()
	startedSnap := m.markStartedLocked(j, now)
	j.Status = status
	j.CompletedAt = now
	j.Result = result
	j.Error = errMsg
	j.StructuredResult = structured
	if !j.StartedAt.IsZero() {
		j.DurationS = now.Sub(j.StartedAt).Seconds()
	}
	snap := j.snapshot()
	m.mu.Unlock()

	if startedSnap != nil {
		metrics.JobsStarted.WithLabelValues(startedSnap.WorkerType).Inc()
		m.emit(Event{Kind: EventStarted, Job: *startedSnap})
	}
	kind := EventCompleted
	if status == StatusFailed {
		kind = EventFailed
	}
	metrics.JobsCompleted.WithLabelValues(snap.WorkerType, string(status)).Inc()
	m.emit(Event{Kind: kind, Job: snap})
	return snap, true
}

// Cancel is idempotent: it transitions a non-terminal job to cancelled
// and trips its cancel token exactly once. Returns the job (nil if not
// found) regardless of whether this call performed the transition.
func (m *Manager) Cancel(id string) *Job {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if j.Status.Terminal() {
		snap := j.snapshot()
		m.mu.Unlock()
		return &snap
	}
	now := m.clock.Now()
	startedSnap := m.markStartedLocked(j, now)
	j.Status = StatusCancelled
	j.CompletedAt = now
	if !j.StartedAt.IsZero() {
		j.DurationS = now.Sub(j.StartedAt).Seconds()
	}
	j.cancel.Trip()
	snap := j.snapshot()
	m.mu.Unlock()

	if startedSnap != nil {
		metrics.JobsStarted.WithLabelValues(startedSnap.WorkerType).Inc()
		m.emit(Event{Kind: EventStarted, Job: *startedSnap})
	}
	metrics.JobsCompleted.WithLabelValues(snap.WorkerType, string(StatusCancelled)).Inc()
	m.emit(Event{Kind: EventCancelled, Job: snap})
	return &snap
}

// CancelAllForChat cancels every non-terminal job belonging to chat
// and returns the resulting snapshots.
func (m *Manager) CancelAllForChat(chat string) []Job {
	m.mu.Lock()
	var ids []string
	for _, id := range m.order {
		if j := m.jobs[id]; j != nil && j.ChatID == chat && !j.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	out := make([]Job, 0, len(ids))
	for _, id := range ids {
		if j := m.Cancel(id); j != nil {
			out = append(out, *j)
		}
	}
	return out
}

// AppendProgress appends one activity line and bumps the llm/tool call
// counters on a still-live job. No-op on a terminal job: progress
// callbacks arriving after cancellation or timeout are dropped.
func (m *Manager) AppendProgress(id, line string, llmDelta, toolDelta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status.Terminal() {
		return
	}
	if line != "" {
		j.Progress = append(j.Progress, line)
		j.LastThinking = line
	}
	j.LLMCalls += llmDelta
	j.ToolCalls += toolDelta
}

// SetStatusMessageID records the transport message id backing a job's
// live status display.
func (m *Manager) SetStatusMessageID(id, msgID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && !j.Status.Terminal() {
		j.StatusMessageID = msgID
	}
}

// Get returns a snapshot of one job.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.snapshot(), true
}

// List returns every job for chat, oldest first.
func (m *Manager) List(chat string) []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, 0, len(m.order))
	for _, id := range m.order {
		if j := m.jobs[id]; j != nil && (chat == "" || j.ChatID == chat) {
			out = append(out, j.snapshot())
		}
	}
	return out
}

// ListRunning returns the running jobs for chat.
func (m *Manager) ListRunning(chat string) []Job {
	all := m.List(chat)
	out := all[:0:0]
	for _, j := range all {
		if j.Status == StatusRunning {
			out = append(out, j)
		}
	}
	return out
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	subs := append([]Subscriber(nil), m.subs...)
	m.mu.Unlock()
	for _, sub := range subs {
		sub(ev)
	}
}

// evictTerminalLocked drops the oldest terminal jobs once the backlog
// exceeds softCap, keeping the job list bounded.
func (m *Manager) evictTerminalLocked() {
	if m.softCap <= 0 || len(m.order) <= m.softCap {
		return
	}
	excess := len(m.order) - m.softCap
	kept := m.order[:0]
	evicted := 0
	for _, id := range m.order {
		j := m.jobs[id]
		if evicted < excess && j != nil && j.Status.Terminal() {
			delete(m.jobs, id)
			evicted++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}
