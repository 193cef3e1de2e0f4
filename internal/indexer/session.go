package indexer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an indexing session.
type Status string

// Status constants define the lifecycle states of an indexing session.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// AlreadyRunningError is returned when indexing is started for a root that
// already has a running session. Start requests are rejected, not queued.
type AlreadyRunningError struct {
	Root      string
	SessionID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("indexing already running for %s (session %s)", e.Root, e.SessionID)
}

// Session tracks one run of the indexing pipeline. Only the pipeline worker
// mutates it; pollers read snapshots.
type Session struct {
	mu sync.RWMutex

	id             string
	root           string
	filesTotal     int
	filesProcessed int
	facesFound     int
	errors         int
	status         Status
	errMsg         string
	startedAt      time.Time
	endedAt        *time.Time

	cancelled bool
}

// Snapshot is a point-in-time copy of a session's progress.
type Snapshot struct {
	SessionID      string     `json:"session_id"`
	RootPath       string     `json:"root_path"`
	FilesTotal     int        `json:"files_total"`
	FilesProcessed int        `json:"files_processed"`
	FacesFound     int        `json:"faces_found"`
	Errors         int        `json:"errors"`
	Status         Status     `json:"status"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current progress. Counters only ever grow, so
// successive snapshots observe monotonic progress.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		SessionID:      s.id,
		RootPath:       s.root,
		FilesTotal:     s.filesTotal,
		FilesProcessed: s.filesProcessed,
		FacesFound:     s.facesFound,
		Errors:         s.errors,
		Status:         s.status,
		Error:          s.errMsg,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
	}
}

// Cancel requests a cooperative stop. The worker checks between files.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

func (s *Session) isCancelled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancelled
}

func (s *Session) setTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesTotal = n
}

func (s *Session) advance(faces int, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesProcessed++
	s.facesFound += faces
	if failed {
		s.errors++
	}
}

func (s *Session) finish(status Status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.status = status
	s.errMsg = errMsg
	s.endedAt = &now
}

// maxFinishedSessions bounds how many terminal sessions stay pollable.
const maxFinishedSessions = 100

// SessionManager tracks indexing sessions and enforces the one-running-
// session-per-root rule.
type SessionManager struct {
	mu       sync.Mutex
	byID     map[string]*Session
	active   map[string]*Session // keyed by root path
	finished []string            // terminal session ids, oldest first
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		byID:   make(map[string]*Session),
		active: make(map[string]*Session),
	}
}

// Begin registers a new running session for root, or fails with
// AlreadyRunningError when one is active.
func (m *SessionManager) Begin(root string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if active, ok := m.active[root]; ok {
		return nil, &AlreadyRunningError{Root: root, SessionID: active.id}
	}

	s := &Session{
		id:        uuid.New().String(),
		root:      root,
		status:    StatusRunning,
		startedAt: time.Now(),
	}
	m.byID[s.id] = s
	m.active[root] = s
	return s, nil
}

// Get retrieves a session by id, nil when unknown.
func (m *SessionManager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

// release clears the active slot for the session's root. Terminal sessions
// stay pollable until enough newer ones push them out, so a long-lived
// server does not accumulate them without bound.
func (m *SessionManager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[s.root] == s {
		delete(m.active, s.root)
	}
	m.finished = append(m.finished, s.id)
	for len(m.finished) > maxFinishedSessions {
		delete(m.byID, m.finished[0])
		m.finished = m.finished[1:]
	}
}
