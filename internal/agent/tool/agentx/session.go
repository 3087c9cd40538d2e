package agentx

import (
	"fmt"
	"sync"
	"time"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Session is one external-agent execution context.
type Session struct {
	ID         string
	Backend    string
	WorkingDir string
	CreatedAt  time.Time
	process    *Process // nil for sync sessions

	mu           sync.Mutex
	CLISessionID string
	Status       string
	LastOutput   string
}

// SetResult updates the CLI session ID, last output, and status under
// the session's lock, so concurrent readers via Snapshot see a
// consistent triple.
func (s *Session) SetResult(cliSessionID, output, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CLISessionID = cliSessionID
	s.LastOutput = output
	s.Status = status
}

// Snapshot returns the CLI session ID, last output, and status under
// the session's lock.
func (s *Session) Snapshot() (cliSessionID, lastOutput, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CLISessionID, s.LastOutput, s.Status
}

// SessionManager tracks live sessions, optionally capped.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
}

// NewSessionManager allows up to maxSessions concurrent sessions;
// 0 means unlimited.
func NewSessionManager(maxSessions int) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		max:      maxSessions,
	}
}

func (sm *SessionManager) newSessionLocked(backend, workingDir string) *Session {
	s := &Session{
		ID:         fmt.Sprintf("as-%d", seq.Add(1)),
		Backend:    backend,
		Status:     StatusRunning,
		WorkingDir: workingDir,
		CreatedAt:  time.Now(),
	}
	sm.sessions[s.ID] = s
	return s
}

// Create adds a session without consulting the capacity cap. IDs are
// "as-<n>" off the package counter.
func (sm *SessionManager) Create(backend, workingDir string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.newSessionLocked(backend, workingDir)
}

// CreateWithLimit creates a session, failing once the cap is reached.
// The check and the insert happen under one lock so concurrent callers
// cannot oversubscribe the cap.
func (sm *SessionManager) CreateWithLimit(backend, workingDir string) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.max > 0 && len(sm.sessions) >= sm.max {
		return nil, fmt.Errorf("max sessions reached (%d)", sm.max)
	}
	return sm.newSessionLocked(backend, workingDir), nil
}

// Get retrieves a session by ID.
func (sm *SessionManager) Get(id string) (*Session, bool) {
	sm.mu.RLock()
	s, ok := sm.sessions[id]
	sm.mu.RUnlock()
	return s, ok
}

// List returns all sessions in no particular order.
func (sm *SessionManager) List() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	list := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		list = append(list, s)
	}
	return list
}

// Destroy removes a session, killing its process if one is running.
func (sm *SessionManager) Destroy(id string) {
	sm.mu.Lock()
	s, ok := sm.sessions[id]
	if ok {
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()

	if ok && s.process != nil {
		s.process.Kill()
	}
}
