package users

import (
	"context"
	"slices"
	"sort"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
)

// HasSettingsAccess reports whether username may open the settings area.
func (m *Manager) HasSettingsAccess(ctx context.Context, username string) bool {
	return m.GetUserRole(ctx, username).Privileged()
}

// CanManageUsers reports whether username may create accounts.
func (m *Manager) CanManageUsers(ctx context.Context, username string) bool {
	return m.GetUserRole(ctx, username).Privileged()
}

// CanModifyUsers reports whether username may modify or delete any account.
func (m *Manager) CanModifyUsers(ctx context.Context, username string) bool {
	return m.GetUserRole(ctx, username) == models.RoleOwner
}

// AdminCreatedUsers returns the accounts admin owns: its quota assignments
// together with every user whose created_by names it. Sorted.
func (m *Manager) AdminCreatedUsers(ctx context.Context, admin string) []string {
	created := m.quotas.AdminCreatedUsers(ctx, admin)
	for name, u := range m.load(ctx) {
		if u.CreatedBy == admin && !slices.Contains(created, name) {
			created = append(created, name)
		}
	}
	sort.Strings(created)
	return created
}

// CanAdminModifyUser reports whether actor may act on target. The Owner
// may act on anyone; an Admin only on accounts it created.
func (m *Manager) CanAdminModifyUser(ctx context.Context, actor, target string) bool {
	switch m.GetUserRole(ctx, actor) {
	case models.RoleOwner:
		return true
	case models.RoleAdmin:
		return slices.Contains(m.AdminCreatedUsers(ctx, actor), target)
	default:
		return false
	}
}

// CanModifyUser is CanAdminModifyUser with the protected Owner account
// excluded for everyone but the Owner itself.
func (m *Manager) CanModifyUser(ctx context.Context, modifier, target string) bool {
	if target == models.OwnerUsername && modifier != models.OwnerUsername {
		m.incident(ctx, IncidentUserModification, target, modifier)
		return false
	}
	return m.CanAdminModifyUser(ctx, modifier, target)
}

// CanEndSessions reports whether actor may end sessions, or the session of
// target when it is not empty. Nobody but the Owner may end the Owner's
// session.
func (m *Manager) CanEndSessions(ctx context.Context, actor, target string) bool {
	if !m.GetUserRole(ctx, actor).Privileged() {
		return false
	}
	if target == models.OwnerUsername && actor != models.OwnerUsername {
		m.incident(ctx, IncidentSessionEnd, target, actor)
		return false
	}
	return true
}

// InvalidateUserSession ends target's session on behalf of actor. An empty
// actor denotes a maintenance caller and skips the permission check.
func (m *Manager) InvalidateUserSession(ctx context.Context, target, actor string) error {
	if actor != "" && !m.CanEndSessions(ctx, actor, target) {
		m.logger.Warn(ctx, "session end refused", "target", target, "actor", actor)
		return ErrPermissionDenied
	}
	if !m.sessions.Invalidate(ctx, target, "") {
		return ErrNoSession
	}
	m.logger.Info(ctx, "session ended", "target", target, "actor", actor)
	return nil
}
