// Package users owns the user directory: roles, credentials, and every
// decision about which account may act on which.
//
// Business-rule refusals are returned as sentinel errors. Attempts against
// the protected Owner account are also written to the incident log.
package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/cryptox"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/quota"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrProtectedOwner   = errors.New("the Owner account is protected")
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrInvalidUsername  = errors.New("invalid username")
	ErrInvalidRole      = errors.New("invalid role")
	ErrNotAdmin         = errors.New("user is not an Admin")
	ErrNoSession        = errors.New("no active session")
	ErrEmptyPassword    = errors.New("password cannot be empty")
)

// DefaultDailyLimit is stored for new users that do not specify one.
const DefaultDailyLimit = 5000

// Sessions is the part of the session manager the user manager needs.
type Sessions interface {
	Invalidate(ctx context.Context, username, sessionID string) bool
}

type Manager struct {
	store     jsonstore.Documents
	sessions  Sessions
	quotas    quota.Backend
	cipher    *cryptox.Fernet
	incidents *IncidentLog
	logger    logging.Logger
	now       func() time.Time

	seed         []SeedUser
	seedPassword string

	mu sync.Mutex
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIncidentLog appends security incidents to il in addition to the logger.
func WithIncidentLog(il *IncidentLog) Option {
	return func(m *Manager) { m.incidents = il }
}

// WithSeed sets the accounts created when users.json does not exist yet.
// An empty password leaves them without a usable login.
func WithSeed(users []SeedUser, password string) Option {
	return func(m *Manager) {
		m.seed = users
		m.seedPassword = password
	}
}

// NewManager builds the user manager. A fresh data directory is seeded; an
// existing users.json is migrated in place, and one that cannot be parsed is
// replaced by a new seed.
func NewManager(ctx context.Context, store jsonstore.Documents, sessions Sessions, quotas quota.Backend,
	cipher *cryptox.Fernet, l logging.Logger, opts ...Option) *Manager {
	if quotas == nil {
		quotas = quota.Disabled{}
	}
	m := &Manager{
		store:    store,
		sessions: sessions,
		quotas:   quotas,
		cipher:   cipher,
		logger:   l.With("module", "users"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}

	existed := store.Exists(ctx, jsonstore.DocUsers)
	if existed {
		if _, err := m.Migrate(ctx); err != nil {
			m.logger.Error(ctx, "user migration failed", "error", err)
		}
	}
	// Reading an unparsable users.json moves it aside, which leaves the
	// directory without an Owner until it is seeded again.
	if !store.Exists(ctx, jsonstore.DocUsers) {
		if existed {
			m.logger.Warn(ctx, "users document was unreadable and moved aside, reseeding")
		}
		if err := m.Seed(ctx, m.seed, m.seedPassword); err != nil {
			m.logger.Error(ctx, "seeding users failed", "error", err)
		}
	}
	return m
}

func (m *Manager) load(ctx context.Context) models.Users {
	users := models.Users{}
	if !m.store.Read(ctx, jsonstore.DocUsers, &users) || users == nil {
		return models.Users{}
	}
	return users
}

func (m *Manager) save(ctx context.Context, users models.Users) error {
	if err := m.store.Write(ctx, jsonstore.DocUsers, users); err != nil {
		m.logger.Error(ctx, "saving users failed", "error", err)
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

// GetUser returns a copy of the stored record.
func (m *Manager) GetUser(ctx context.Context, username string) (models.User, bool) {
	u, ok := m.load(ctx)[username]
	return u, ok
}

func (m *Manager) UserExists(ctx context.Context, username string) bool {
	_, ok := m.GetUser(ctx, username)
	return ok
}

// AllUsers returns every record keyed by username.
func (m *Manager) AllUsers(ctx context.Context) models.Users {
	return m.load(ctx)
}

// Usernames lists every account, sorted.
func (m *Manager) Usernames(ctx context.Context) []string {
	users := m.load(ctx)
	out := make([]string, 0, len(users))
	for name := range users {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetUserRole returns the role of username. Unknown users, and records with
// a missing or unrecognised role, are Auditors.
func (m *Manager) GetUserRole(ctx context.Context, username string) models.Role {
	u, ok := m.GetUser(ctx, username)
	if !ok || !u.Role.Valid() {
		return models.RoleAuditor
	}
	return u.Role
}

// Quotas exposes the quota backend the manager was built with.
func (m *Manager) Quotas() quota.Backend {
	return m.quotas
}
