package runner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hperssn/coindoro/internal/domain"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

const (
	DefaultIdleTTL         = 12 * time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

type ManagerConfig struct {
	Config

	IdleTTL         time.Duration
	CleanupInterval time.Duration
}

// SessionManager owns the runners of all live sessions.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Runner
	cfg      ManagerConfig
}

// NewSessionManager starts the idle-session cleanup loop, which runs until
// ctx is cancelled.
func NewSessionManager(ctx context.Context, cfg ManagerConfig) *SessionManager {
	cfg.Config = cfg.Config.withDefaults()
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	m := &SessionManager{
		sessions: make(map[string]*Runner),
		cfg:      cfg,
	}

	go m.cleanupLoop(ctx)

	return m
}

func (m *SessionManager) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdleSessions()
		case <-ctx.Done():
			m.StopAll()
			return
		}
	}
}

// cleanupIdleSessions drops sessions nobody has touched or watched for
// IdleTTL. Reads and open event streams count as activity.
func (m *SessionManager) cleanupIdleSessions() {
	cutoff := m.cfg.Clock.Now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var idle []*Runner
	for id, r := range m.sessions {
		if !r.Watched() && r.LastActive().Before(cutoff) {
			idle = append(idle, r)
			delete(m.sessions, id)
		}
	}
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, r := range idle {
		m.cfg.Logger.Infow("dropping idle session", "session", r.ID(), "user", r.UserID())
		r.Stop()
	}
}

// StartSession creates a session for userID and starts driving it.
func (m *SessionManager) StartSession(userID string, settings domain.Settings, autoStart bool) (*Runner, error) {
	s, err := domain.NewSession("", userID, settings, m.cfg.Clock, autoStart)
	if err != nil {
		return nil, err
	}
	return m.Adopt(s)
}

// Adopt starts driving an already built session.
func (m *SessionManager) Adopt(s *domain.Session) (*Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return nil, ErrSessionExists
	}

	r := NewRunner(s, m.cfg.Config)
	m.sessions[s.ID] = r
	activeSessions.Set(float64(len(m.sessions)))

	return r, nil
}

func (m *SessionManager) Get(id string) (*Runner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.sessions[id]
	return r, ok
}

func (m *SessionManager) Subscribe(id string) (<-chan Event, func(), error) {
	r, ok := m.Get(id)
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	return r.Subscribe()
}

// Sessions lists the runners owned by userID, oldest first.
func (m *SessionManager) Sessions(userID string) []*Runner {
	m.mu.Lock()
	var out []*Runner
	for _, r := range m.sessions {
		if r.UserID() == userID {
			out = append(out, r)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].session.CreatedAt.Before(out[j].session.CreatedAt)
	})
	return out
}

func (m *SessionManager) StopSession(id string) error {
	m.mu.Lock()
	r, exists := m.sessions[id]
	if !exists {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	r.Stop()
	return nil
}

func (m *SessionManager) StopAll() {
	m.mu.Lock()
	runners := make([]*Runner, 0, len(m.sessions))
	for id, r := range m.sessions {
		runners = append(runners, r)
		delete(m.sessions, id)
	}
	activeSessions.Set(0)
	m.mu.Unlock()

	for _, r := range runners {
		r.Stop()
	}
}
