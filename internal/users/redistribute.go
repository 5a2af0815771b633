package users

import (
	"context"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/quota"
)

// poolAdmin resolves whose pool actor works on. An Admin works on its own;
// the Owner must name an admin.
func (m *Manager) poolAdmin(ctx context.Context, admin, actor string) (string, error) {
	role := m.GetUserRole(ctx, actor)
	if !role.Privileged() {
		return "", ErrPermissionDenied
	}
	if admin == "" {
		admin = actor
	}
	if admin != actor && role != models.RoleOwner {
		return "", ErrPermissionDenied
	}
	if m.GetUserRole(ctx, admin) != models.RoleAdmin {
		return "", ErrNotAdmin
	}
	return admin, nil
}

// AdjustUserQuota changes the daily slice of username on behalf of actor.
// An Admin may adjust only its own auditors; the Owner adjusts within the
// pool of whichever admin the auditor is assigned to.
func (m *Manager) AdjustUserQuota(ctx context.Context, username string, newQuota int, actor string) (string, error) {
	if !m.CanAdminModifyUser(ctx, actor, username) {
		m.logger.Warn(ctx, "quota adjustment refused", "username", username, "actor", actor)
		return "", ErrPermissionDenied
	}

	admin := actor
	if m.GetUserRole(ctx, actor) == models.RoleOwner {
		st := m.quotas.UserQuotaStatus(ctx, username)
		if !st.Managed {
			return "", &quota.Error{Reason: quota.ReasonNotAssigned, Message: "User not found in assignments"}
		}
		admin = st.Admin
	}
	return m.quotas.AdjustUserQuota(ctx, username, admin, newQuota)
}

func (m *Manager) RedistributionOptions(ctx context.Context, admin, actor string) (quota.RedistributionOptions, error) {
	admin, err := m.poolAdmin(ctx, admin, actor)
	if err != nil {
		return quota.RedistributionOptions{}, err
	}
	return m.quotas.RedistributionOptions(ctx, admin)
}

// RedistributionImpact previews alloc without writing anything.
func (m *Manager) RedistributionImpact(ctx context.Context, admin string, alloc map[string]int, actor string) (quota.RedistributionImpact, error) {
	admin, err := m.poolAdmin(ctx, admin, actor)
	if err != nil {
		return quota.RedistributionImpact{}, err
	}
	return m.quotas.RedistributionImpact(ctx, admin, alloc)
}

func (m *Manager) ApplyRedistribution(ctx context.Context, admin string, alloc map[string]int, actor string) (string, error) {
	admin, err := m.poolAdmin(ctx, admin, actor)
	if err != nil {
		return "", err
	}
	return m.quotas.ApplyRedistribution(ctx, admin, alloc)
}

func (m *Manager) SuggestRedistribution(ctx context.Context, admin, actor string) (quota.Suggestion, error) {
	admin, err := m.poolAdmin(ctx, admin, actor)
	if err != nil {
		return quota.Suggestion{}, err
	}
	return m.quotas.SuggestRedistribution(ctx, admin)
}

// CheckUsage reports whether username may process amount more units today,
// using the same rules as RecordUsage.
func (m *Manager) CheckUsage(ctx context.Context, username string, amount int) (string, error) {
	if m.GetUserRole(ctx, username) == models.RoleAdmin {
		return m.quotas.CheckAdminUsage(ctx, username, amount)
	}
	return m.quotas.CheckUsage(ctx, username, amount)
}
