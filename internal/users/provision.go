package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/quota"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/txn"
)

// CreateUserWithQuota creates username on behalf of createdBy. When an Admin
// creates the account and quotas are enabled, the new user is assigned a
// dailyQuota slice of the Admin's pool; if that assignment fails, the user
// record is removed again.
func (m *Manager) CreateUserWithQuota(ctx context.Context, username string, in NewUser, createdBy string, dailyQuota int) (string, error) {
	creator := m.GetUserRole(ctx, createdBy)
	if !creator.Privileged() {
		m.logger.Warn(ctx, "user creation refused", "username", username, "actor", createdBy)
		return "", ErrPermissionDenied
	}

	managed := creator == models.RoleAdmin && m.quotas.Enabled()
	if managed {
		if _, err := m.quotas.CanAdminCreateUser(ctx, createdBy); err != nil {
			return "", err
		}
		if !m.quotas.CanAdminAssignQuota(ctx, createdBy, dailyQuota) {
			return "", &quota.Error{
				Reason:  quota.ReasonInsufficientPool,
				Message: "Insufficient quota available for assignment",
			}
		}
		if in.DailyLimit == 0 {
			in.DailyLimit = models.UnlimitedDailyLimit
		}
	}

	err := txn.Run(ctx, m.logger, func(ctx context.Context, tx *txn.Tx) error {
		if err := m.AddUser(ctx, username, in, createdBy); err != nil {
			return err
		}
		tx.OnRollback("remove user "+username, func(ctx context.Context) error {
			return m.deleteRecord(ctx, username)
		})

		if managed {
			if _, err := m.quotas.AssignUserToAdmin(ctx, username, createdBy, dailyQuota); err != nil {
				m.logger.Warn(ctx, "quota assignment failed, rolling back user", "username", username, "error", err)
				return err
			}
		}
		tx.Commit()
		return nil
	})
	if err != nil {
		return "", err
	}

	if managed {
		return "User created successfully with quota assignment", nil
	}
	return "User created successfully", nil
}

// deleteRecord removes username without any permission or quota handling.
func (m *Manager) deleteRecord(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := m.load(ctx)
	if _, ok := users[username]; !ok {
		return nil
	}
	delete(users, username)
	return m.save(ctx, users)
}

// RemoveUserWithQuota removes username on behalf of removedBy and frees its
// quota. An Admin may remove only the users it created.
func (m *Manager) RemoveUserWithQuota(ctx context.Context, username, removedBy string) (string, error) {
	if username == models.OwnerUsername {
		m.incident(ctx, IncidentQuotaDeletion, username, removedBy)
		return "", ErrProtectedOwner
	}
	if !m.CanModifyUser(ctx, removedBy, username) {
		m.logger.Warn(ctx, "user removal refused", "username", username, "actor", removedBy)
		return "", ErrPermissionDenied
	}
	if !m.UserExists(ctx, username) {
		return "", ErrUserNotFound
	}

	if m.GetUserRole(ctx, removedBy) == models.RoleAdmin && m.quotas.Enabled() {
		_, err := m.quotas.RemoveUserFromAdmin(ctx, username, removedBy)
		if err != nil && quota.ReasonOf(err) != quota.ReasonNotAssigned {
			return "", err
		}
	}

	if err := m.purge(ctx, username); err != nil {
		return "", err
	}
	return "User removed successfully, quota freed", nil
}

// SetAdminLimitsAsOwner grants admin its user cap and daily pool.
func (m *Manager) SetAdminLimitsAsOwner(ctx context.Context, admin string, maxUsers, dailyQuota int, owner string) (string, error) {
	if m.GetUserRole(ctx, owner) != models.RoleOwner {
		return "", ErrPermissionDenied
	}
	if m.GetUserRole(ctx, admin) != models.RoleAdmin {
		return "", ErrNotAdmin
	}
	if err := m.quotas.SetAdminLimits(ctx, admin, maxUsers, dailyQuota, owner); err != nil {
		return "", err
	}
	return fmt.Sprintf("Limits set for %s: %d users, %d daily quota", admin, maxUsers, dailyQuota), nil
}

// AllAdminLimitsAsOwner returns every admin grant. Owner only.
func (m *Manager) AllAdminLimitsAsOwner(ctx context.Context, owner string) (map[string]quota.AdminOverview, error) {
	if m.GetUserRole(ctx, owner) != models.RoleOwner {
		return nil, ErrPermissionDenied
	}
	return m.quotas.AllAdminLimits(ctx), nil
}

// AdminQuotaInfo returns the quota dashboard of an Admin.
func (m *Manager) AdminQuotaInfo(ctx context.Context, admin string) (quota.AdminDashboard, error) {
	if m.GetUserRole(ctx, admin) != models.RoleAdmin {
		return quota.AdminDashboard{}, ErrNotAdmin
	}
	return m.quotas.AdminDashboard(ctx, admin)
}

func (m *Manager) UserQuotaStatus(ctx context.Context, username string) quota.UserStatus {
	return m.quotas.UserQuotaStatus(ctx, username)
}

// RecordUsage charges amount units to username: to its own counter for an
// Auditor, to the Admin's direct usage for an Admin.
func (m *Manager) RecordUsage(ctx context.Context, username string, amount int) (string, error) {
	if m.GetUserRole(ctx, username) == models.RoleAdmin {
		return m.quotas.RecordAdminUsage(ctx, username, amount)
	}
	return m.quotas.RecordUserUsage(ctx, username, amount)
}

// IsRefusal reports whether err is a business-rule refusal rather than an
// infrastructure failure.
func IsRefusal(err error) bool {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrProtectedOwner),
		errors.Is(err, ErrUserNotFound), errors.Is(err, ErrUserExists),
		errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrNotAdmin), errors.Is(err, ErrNoSession):
		return true
	}
	r := quota.ReasonOf(err)
	return r != 0 && r != quota.ReasonStorage
}
