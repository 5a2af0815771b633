package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/cryptox"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
)

// NewUser carries the plaintext inputs of a new account. Secrets are hashed
// or encrypted before anything is stored.
type NewUser struct {
	Role          models.Role
	Password      string
	ReadymodeUser string
	ReadymodePass string
	AssemblyAIKey string
	DailyLimit    int
}

// UserUpdate lists the fields to change; nil fields are left alone. An empty
// AssemblyAIKey clears the stored key.
type UserUpdate struct {
	Role          *models.Role
	Password      *string
	ReadymodeUser *string
	ReadymodePass *string
	AssemblyAIKey *string
	DailyLimit    *int
}

// credentialsOnly keeps the two ReadyMode fields and drops the rest.
func (u UserUpdate) credentialsOnly() UserUpdate {
	return UserUpdate{ReadymodeUser: u.ReadymodeUser, ReadymodePass: u.ReadymodePass}
}

func validUsername(name string) bool {
	return name != "" && strings.TrimSpace(name) == name
}

// AddUser creates username. createdBy is recorded on the record; when it is
// set, only an Owner creator may request a privileged role. An empty
// createdBy denotes seeding or a maintenance tool.
func (m *Manager) AddUser(ctx context.Context, username string, in NewUser, createdBy string) error {
	if !validUsername(username) {
		return ErrInvalidUsername
	}
	role := in.Role
	if role == "" {
		role = models.RoleAuditor
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if role == models.RoleOwner && username != models.OwnerUsername {
		m.logger.Warn(ctx, "refused to create a second Owner", "username", username, "actor", createdBy)
		return ErrPermissionDenied
	}
	if createdBy != "" && role.Privileged() {
		if creator := m.GetUserRole(ctx, createdBy); creator != models.RoleOwner {
			m.logger.Warn(ctx, "privileged role requested by non-owner",
				"username", username, "role", role, "actor", createdBy, "actor_role", creator)
			return ErrPermissionDenied
		}
	}

	rec := models.User{
		Role:          role,
		ReadymodeUser: in.ReadymodeUser,
		DailyLimit:    in.DailyLimit,
		CreatedBy:     createdBy,
		CreatedDate:   timex.Format(m.now()),
	}
	if rec.DailyLimit == 0 {
		rec.DailyLimit = DefaultDailyLimit
	}
	if in.Password != "" {
		hash, salt, err := cryptox.HashPassword(in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		rec.AppPassHash, rec.AppPassSalt = hash, salt
	} else {
		m.logger.Warn(ctx, "user created without app password", "username", username)
	}
	if in.ReadymodePass != "" {
		enc, err := m.cipher.EncryptString(in.ReadymodePass)
		if err != nil {
			return fmt.Errorf("encrypt readymode password: %w", err)
		}
		rec.ReadymodePassEncrypted = enc
	}
	if in.AssemblyAIKey != "" {
		enc, err := m.cipher.EncryptString(in.AssemblyAIKey)
		if err != nil {
			return fmt.Errorf("encrypt api key: %w", err)
		}
		rec.AssemblyAIKeyEncrypted = enc
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.load(ctx)
	if _, ok := users[username]; ok {
		m.logger.Warn(ctx, "user already exists", "username", username)
		return ErrUserExists
	}
	users[username] = rec
	if err := m.save(ctx, users); err != nil {
		return err
	}

	m.logger.Info(ctx, "user added", "username", username, "role", role, "created_by", createdBy)
	return nil
}

// RemoveUser deletes username. The Owner account is never removed, whoever
// asks. Otherwise removedBy must be the Owner; an empty removedBy denotes a
// maintenance tool.
func (m *Manager) RemoveUser(ctx context.Context, username, removedBy string) error {
	if username == models.OwnerUsername {
		m.incident(ctx, IncidentDeletion, username, removedBy)
		return ErrProtectedOwner
	}
	if !m.UserExists(ctx, username) {
		return ErrUserNotFound
	}
	if removedBy != "" && m.GetUserRole(ctx, removedBy) != models.RoleOwner {
		m.logger.Warn(ctx, "user removal refused", "username", username, "actor", removedBy)
		return ErrPermissionDenied
	}

	return m.purge(ctx, username)
}

// purge releases the quota held by username, ends its session and deletes
// the record. Quota and session cleanup failures are logged only.
func (m *Manager) purge(ctx context.Context, username string) error {
	m.releaseQuota(ctx, username)

	m.mu.Lock()
	users := m.load(ctx)
	rec, ok := users[username]
	if !ok {
		m.mu.Unlock()
		return ErrUserNotFound
	}
	delete(users, username)
	err := m.save(ctx, users)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if m.sessions != nil {
		m.sessions.Invalidate(ctx, username, "")
	}
	m.logger.Info(ctx, "user removed", "username", username, "role", rec.Role)
	return nil
}

// releaseQuota drops the quota records tied to username: its own assignment,
// and the limits it held if it was an Admin.
func (m *Manager) releaseQuota(ctx context.Context, username string) {
	if st := m.quotas.UserQuotaStatus(ctx, username); st.Managed && st.Admin != "" {
		if _, err := m.quotas.RemoveUserFromAdmin(ctx, username, st.Admin); err != nil {
			m.logger.Error(ctx, "quota cleanup failed", "username", username, "admin", st.Admin, "error", err)
		}
	}
	if _, ok := m.quotas.AllAdminLimits(ctx)[username]; ok {
		if err := m.quotas.RemoveAdminLimits(ctx, username); err != nil {
			m.logger.Error(ctx, "admin limits cleanup failed", "admin", username, "error", err)
		}
	}
}

// UpdateUser applies upd to username on behalf of updatedBy.
//
// The Owner account accepts updates only from itself, and then only to its
// ReadyMode credentials. Other accounts accept updates from themselves or
// from an actor passing CanAdminModifyUser. Role changes touching Owner or
// Admin require an Owner actor and are dropped otherwise. An empty updatedBy
// denotes a maintenance tool.
func (m *Manager) UpdateUser(ctx context.Context, username string, upd UserUpdate, updatedBy string) error {
	current, ok := m.GetUser(ctx, username)
	if !ok {
		return ErrUserNotFound
	}

	if username == models.OwnerUsername {
		if updatedBy != models.OwnerUsername {
			m.incident(ctx, IncidentModification, username, updatedBy)
			return ErrProtectedOwner
		}
		upd = upd.credentialsOnly()
	}

	self := updatedBy != "" && updatedBy == username
	if updatedBy != "" && !self && !m.CanAdminModifyUser(ctx, updatedBy, username) {
		m.logger.Warn(ctx, "user update refused", "username", username, "actor", updatedBy)
		return ErrPermissionDenied
	}

	if self && upd.DailyLimit != nil && !m.CanAdminModifyUser(ctx, updatedBy, username) {
		m.logger.Warn(ctx, "dropped self-service daily limit change", "username", username)
		upd.DailyLimit = nil
	}

	if upd.Role != nil {
		next := *upd.Role
		if !next.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidRole, next)
		}
		touchesPrivileged := next.Privileged() || current.Role.Privileged()
		switch {
		case next == models.RoleOwner && username != models.OwnerUsername:
			m.logger.Warn(ctx, "dropped promotion to Owner", "username", username, "actor", updatedBy)
			upd.Role = nil
		case updatedBy != "" && touchesPrivileged && m.GetUserRole(ctx, updatedBy) != models.RoleOwner:
			m.logger.Warn(ctx, "dropped role change by non-owner", "username", username, "role", next, "actor", updatedBy)
			upd.Role = nil
		}
	}

	var hash, salt, readymodeEnc, apiKeyEnc string
	if upd.Password != nil {
		if *upd.Password == "" {
			return ErrEmptyPassword
		}
		var err error
		if hash, salt, err = cryptox.HashPassword(*upd.Password); err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
	}
	if upd.ReadymodePass != nil && *upd.ReadymodePass != "" {
		var err error
		if readymodeEnc, err = m.cipher.EncryptString(*upd.ReadymodePass); err != nil {
			return fmt.Errorf("encrypt readymode password: %w", err)
		}
	}
	if upd.AssemblyAIKey != nil && *upd.AssemblyAIKey != "" {
		var err error
		if apiKeyEnc, err = m.cipher.EncryptString(*upd.AssemblyAIKey); err != nil {
			return fmt.Errorf("encrypt api key: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.load(ctx)
	rec, ok := users[username]
	if !ok {
		return ErrUserNotFound
	}
	if upd.Role != nil {
		rec.Role = *upd.Role
	}
	if upd.Password != nil {
		rec.AppPassHash, rec.AppPassSalt, rec.LegacyAppPass = hash, salt, ""
	}
	if upd.ReadymodeUser != nil {
		rec.ReadymodeUser = *upd.ReadymodeUser
	}
	if readymodeEnc != "" {
		rec.ReadymodePassEncrypted, rec.LegacyReadymodePass = readymodeEnc, ""
	}
	if upd.AssemblyAIKey != nil {
		rec.AssemblyAIKeyEncrypted = apiKeyEnc
	}
	if upd.DailyLimit != nil {
		rec.DailyLimit = *upd.DailyLimit
	}
	rec.LastModified = timex.Format(m.now())
	users[username] = rec

	if err := m.save(ctx, users); err != nil {
		return err
	}
	m.logger.Info(ctx, "user updated", "username", username, "actor", updatedBy)
	return nil
}
