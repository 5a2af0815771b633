// Package session enforces one live login session per username with a
// sliding inactivity timeout. Expiry is evaluated lazily on every access;
// Sweep additionally purges stale records and runs once at start-up.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
)

// DefaultTimeout is the inactivity window after which a session is gone.
const DefaultTimeout = 24 * time.Hour

var ErrEmptyID = errors.New("empty session id")

// ClientInfo describes where a session was opened from.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type Manager struct {
	store   jsonstore.Documents
	logger  logging.Logger
	timeout time.Duration
	now     func() time.Time

	// serialises read-modify-write cycles inside this process
	mu sync.Mutex
}

type Option func(*Manager)

func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager and sweeps expired sessions.
func NewManager(ctx context.Context, store jsonstore.Documents, l logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		logger:  l.With("module", "sessions"),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.Sweep(ctx)
	return m
}

// Timeout returns the configured inactivity window.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

func (m *Manager) load(ctx context.Context) models.Sessions {
	sessions := models.Sessions{}
	if !m.store.Read(ctx, jsonstore.DocSessions, &sessions) {
		return models.Sessions{}
	}
	return sessions
}

func (m *Manager) save(ctx context.Context, sessions models.Sessions) error {
	return m.store.Write(ctx, jsonstore.DocSessions, sessions)
}

func (m *Manager) expired(s models.Session) bool {
	return m.now().Sub(s.LastActivity.Time) > m.timeout
}

// Create stores a new session for username, replacing any previous one.
func (m *Manager) Create(ctx context.Context, username, sessionID string) error {
	return m.CreateFrom(ctx, username, sessionID, ClientInfo{UserAgent: "backend-api"})
}

// CreateFrom is Create with client details recorded on the session.
func (m *Manager) CreateFrom(ctx context.Context, username, sessionID string, client ClientInfo) error {
	if sessionID == "" {
		return ErrEmptyID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := m.load(ctx)
	if old, ok := sessions[username]; ok {
		m.logger.Info(ctx, "replacing existing session", "username", username, "old_session", old.SessionID)
	}

	now := timex.NewStamp(m.now())
	sessions[username] = models.Session{
		SessionID:    sessionID,
		Username:     username,
		CreatedAt:    now,
		LastActivity: now,
		IPAddress:    client.IPAddress,
		UserAgent:    client.UserAgent,
	}

	if err := m.save(ctx, sessions); err != nil {
		m.logger.Error(ctx, "session create failed", "username", username, "error", err)
		return err
	}
	m.logger.Info(ctx, "session created", "username", username)
	return nil
}

// Validate reports whether sessionID is the live session of username and,
// if so, slides its expiry forward. An expired record is removed.
func (m *Manager) Validate(ctx context.Context, username, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := m.load(ctx)
	s, ok := sessions[username]
	if !ok || s.SessionID != sessionID {
		return false
	}

	if m.expired(s) {
		delete(sessions, username)
		if err := m.save(ctx, sessions); err != nil {
			m.logger.Warn(ctx, "could not drop expired session", "username", username, "error", err)
		}
		m.logger.Info(ctx, "session expired", "username", username)
		return false
	}

	s.LastActivity = timex.NewStamp(m.now())
	sessions[username] = s
	if err := m.save(ctx, sessions); err != nil {
		// still valid, only the refresh was lost
		m.logger.Warn(ctx, "could not refresh session activity", "username", username, "error", err)
	}
	return true
}

// Invalidate removes the session of username. When sessionID is not empty it
// must match the stored one, so a stale client cannot end a newer session.
func (m *Manager) Invalidate(ctx context.Context, username, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := m.load(ctx)
	s, ok := sessions[username]
	if !ok {
		return false
	}
	if sessionID != "" && s.SessionID != sessionID {
		m.logger.Warn(ctx, "session id mismatch on invalidate", "username", username)
		return false
	}

	delete(sessions, username)
	if err := m.save(ctx, sessions); err != nil {
		m.logger.Error(ctx, "session invalidate failed", "username", username, "error", err)
		return false
	}
	m.logger.Info(ctx, "session invalidated", "username", username)
	return true
}

// CheckExisting returns the live session id of username, if any.
func (m *Manager) CheckExisting(ctx context.Context, username string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := m.load(ctx)
	s, ok := sessions[username]
	if !ok {
		return "", false
	}
	if m.expired(s) {
		delete(sessions, username)
		if err := m.save(ctx, sessions); err != nil {
			m.logger.Warn(ctx, "could not drop expired session", "username", username, "error", err)
		}
		return "", false
	}
	return s.SessionID, true
}

// Info returns the live session record of username without touching it.
func (m *Manager) Info(ctx context.Context, username string) (models.Session, bool) {
	s, ok := m.load(ctx)[username]
	if !ok || m.expired(s) {
		return models.Session{}, false
	}
	return s, true
}

// Active lists live sessions, most recently active first.
func (m *Manager) Active(ctx context.Context) []models.Session {
	var out []models.Session
	for name, s := range m.load(ctx) {
		if m.expired(s) {
			continue
		}
		if s.Username == "" {
			s.Username = name
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity.Time)
	})
	return out
}

// Sweep deletes expired sessions and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.store.Exists(ctx, jsonstore.DocSessions) {
		return 0
	}

	sessions := m.load(ctx)
	removed := 0
	for name, s := range sessions {
		if m.expired(s) {
			delete(sessions, name)
			removed++
			m.logger.Info(ctx, "cleaned up expired session", "username", name)
		}
	}
	if removed == 0 {
		return 0
	}
	if err := m.save(ctx, sessions); err != nil {
		m.logger.Warn(ctx, "session sweep not persisted", "error", err)
	}
	return removed
}
