package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/cryptox"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
)

// SeedUser is one account created on first start.
type SeedUser struct {
	Username   string      `json:"username"`
	Role       models.Role `json:"role"`
	DailyLimit int         `json:"daily_limit"`
}

// DefaultSeed is the account set of a fresh installation.
func DefaultSeed() []SeedUser {
	return []SeedUser{
		{Username: "auditor1", Role: models.RoleAuditor, DailyLimit: 5000},
		{Username: "auditor2", Role: models.RoleAuditor, DailyLimit: 5000},
		{Username: "auditor3", Role: models.RoleAuditor, DailyLimit: 5000},
		{Username: "auditor4", Role: models.RoleAuditor, DailyLimit: 3000},
		{Username: "auditor5", Role: models.RoleAuditor, DailyLimit: 5000},
		{Username: "auditor6", Role: models.RoleAuditor, DailyLimit: 5000},
		{Username: "auditor7", Role: models.RoleAuditor, DailyLimit: 5000},
		{Username: "wosmova", Role: models.RoleAuditor, DailyLimit: 2000},
		{Username: models.OwnerUsername, Role: models.RoleOwner, DailyLimit: models.UnlimitedDailyLimit},
	}
}

// Seed creates the given accounts, skipping existing ones. Without a
// password the accounts are created unusable until one is set, so no known
// default credential ever ships.
func (m *Manager) Seed(ctx context.Context, seed []SeedUser, password string) error {
	if password == "" {
		m.logger.Warn(ctx, "DEFAULT_APP_PASSWORD is not set, seeded users have no app password")
	}

	var errs []error
	for _, s := range seed {
		role := s.Role
		if s.Username == models.OwnerUsername {
			role = models.RoleOwner
		}
		err := m.AddUser(ctx, s.Username, NewUser{
			Role:       role,
			Password:   password,
			DailyLimit: s.DailyLimit,
		}, "")
		switch {
		case err == nil, errors.Is(err, ErrUserExists):
		default:
			m.logger.Warn(ctx, "seeding user failed", "username", s.Username, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Username, err))
		}
	}

	if !m.store.Exists(ctx, jsonstore.DocUsers) {
		if err := m.save(ctx, models.Users{}); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		m.logger.Info(ctx, "users seeded", "count", len(seed))
	}
	return errors.Join(errs...)
}

// Migrate brings old records up to date: a missing role becomes Owner for
// the protected account and Auditor otherwise, and plaintext ReadyMode
// passwords are encrypted. It returns the number of records changed.
func (m *Manager) Migrate(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.load(ctx)
	changed := 0
	for name, u := range users {
		dirty := false
		if !u.Role.Valid() {
			u.Role = models.RoleAuditor
			if name == models.OwnerUsername {
				u.Role = models.RoleOwner
			}
			dirty = true
			m.logger.Info(ctx, "migrated user role", "username", name, "role", u.Role)
		}
		if u.LegacyReadymodePass != "" && u.ReadymodePassEncrypted == "" {
			enc, err := m.cipher.EncryptString(u.LegacyReadymodePass)
			if err != nil {
				m.logger.Error(ctx, "encrypting readymode password failed", "username", name, "error", err)
			} else {
				u.ReadymodePassEncrypted, u.LegacyReadymodePass = enc, ""
				dirty = true
				m.logger.Info(ctx, "migrated readymode password to encrypted storage", "username", name)
			}
		}
		if dirty {
			users[name] = u
			changed++
		}
	}

	if changed == 0 {
		return 0, nil
	}
	if err := m.save(ctx, users); err != nil {
		return 0, err
	}
	return changed, nil
}

// MigrateLegacyPasswords hashes every plaintext app_pass still stored.
func (m *Manager) MigrateLegacyPasswords(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.load(ctx)
	changed := 0
	for name, u := range users {
		if u.LegacyAppPass == "" || u.HasPasswordHash() {
			continue
		}
		hash, salt, err := cryptox.HashPassword(u.LegacyAppPass)
		if err != nil {
			return 0, err
		}
		u.AppPassHash, u.AppPassSalt, u.LegacyAppPass = hash, salt, ""
		users[name] = u
		changed++
	}

	if changed == 0 {
		return 0, nil
	}
	if err := m.save(ctx, users); err != nil {
		return 0, err
	}
	m.logger.Info(ctx, "legacy passwords migrated", "count", changed)
	return changed, nil
}

// SetPassword replaces the app password of username without a permission
// check. It backs the maintenance CLI, including for the Owner account.
func (m *Manager) SetPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	hash, salt, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}
	return m.maintain(ctx, username, func(u *models.User) {
		u.AppPassHash, u.AppPassSalt, u.LegacyAppPass = hash, salt, ""
	})
}

// SetAPIKey stores an encrypted transcription API key for username without
// a permission check. An empty key clears it.
func (m *Manager) SetAPIKey(ctx context.Context, username, key string) error {
	enc := ""
	if key != "" {
		var err error
		if enc, err = m.cipher.EncryptString(key); err != nil {
			return err
		}
	}
	return m.maintain(ctx, username, func(u *models.User) {
		u.AssemblyAIKeyEncrypted = enc
	})
}

func (m *Manager) maintain(ctx context.Context, username string, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.load(ctx)
	u, ok := users[username]
	if !ok {
		return ErrUserNotFound
	}
	fn(&u)
	u.LastModified = timex.Format(m.now())
	users[username] = u
	if err := m.save(ctx, users); err != nil {
		return err
	}
	m.logger.Info(ctx, "user record maintained", "username", username)
	return nil
}
