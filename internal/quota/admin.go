package quota

import (
	"context"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
)

// SetAdminLimits grants admin a user cap and a daily pool, replacing any
// earlier grant. Only the Owner may call it.
func (m *Manager) SetAdminLimits(ctx context.Context, admin string, maxUsers, dailyQuota int, owner string) error {
	if owner != models.OwnerUsername {
		m.logger.Warn(ctx, "non-owner tried to set admin limits", "admin", admin, "actor", owner)
		return refuse(ReasonNotOwner, "Only the Owner can set admin limits")
	}
	if admin == "" {
		return refuse(ReasonInvalidInput, "Admin username cannot be empty")
	}
	if maxUsers < 0 || dailyQuota < 0 {
		return refuse(ReasonInvalidInput, "Invalid limits: max_users=%d, daily_quota=%d", maxUsers, dailyQuota)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	now := m.now()
	doc.AdminLimits[admin] = models.AdminLimits{
		MaxUsers:     maxUsers,
		DailyQuota:   dailyQuota,
		CreatedBy:    owner,
		CreatedDate:  timex.Date(now),
		LastModified: timex.Format(now),
	}
	if err := m.saveQuota(ctx, doc); err != nil {
		return storageError("System error while saving admin limits", err)
	}

	l := m.loadUsage(ctx, doc)
	if _, ok := l.AdminUsage[admin]; !ok {
		l.AdminUsage[admin] = l.Admin(admin)
		if err := m.saveUsage(ctx, l); err != nil {
			return storageError("System error while initialising admin usage", err)
		}
	}

	m.logger.Info(ctx, "admin limits set", "admin", admin, "max_users", maxUsers, "daily_quota", dailyQuota)
	return nil
}

// RemoveAdminLimits drops admin's grant together with every assignment and
// usage counter under it. Removing an unknown admin succeeds.
func (m *Manager) RemoveAdminLimits(ctx context.Context, admin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	l := m.loadUsage(ctx, doc)

	delete(doc.AdminLimits, admin)
	for user := range doc.AssignmentsOf(admin) {
		delete(doc.UserAssignments, user)
	}
	delete(l.AdminUsage, admin)

	if err := m.saveQuota(ctx, doc); err != nil {
		return storageError("System error while removing admin limits", err)
	}
	if err := m.saveUsage(ctx, l); err != nil {
		return storageError("System error while removing admin usage", err)
	}

	m.logger.Info(ctx, "admin limits removed", "admin", admin)
	return nil
}

// AdminOverview is one row of the Owner's admin table.
type AdminOverview struct {
	Limits             models.AdminLimits `json:"limits"`
	CurrentUsage       int                `json:"current_usage"`
	RemainingQuota     int                `json:"remaining_quota"`
	UsersCreated       int                `json:"users_created"`
	RemainingUserSlots int                `json:"remaining_user_slots"`
}

// AllAdminLimits returns every admin grant with its current consumption.
func (m *Manager) AllAdminLimits(ctx context.Context) map[string]AdminOverview {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	l := m.loadUsage(ctx, doc)

	out := make(map[string]AdminOverview, len(doc.AdminLimits))
	for admin, limits := range doc.AdminLimits {
		au := l.Admin(admin)
		used := au.TotalUsed + au.UsersTotal()
		created := len(doc.AssignmentsOf(admin))
		out[admin] = AdminOverview{
			Limits:             limits,
			CurrentUsage:       used,
			RemainingQuota:     limits.DailyQuota - used,
			UsersCreated:       created,
			RemainingUserSlots: limits.MaxUsers - created,
		}
	}
	return out
}
