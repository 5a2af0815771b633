package quota

import (
	"context"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
)

// UserStatus is an auditor's view of its own quota.
type UserStatus struct {
	Managed        bool    `json:"managed"`
	Message        string  `json:"message,omitempty"`
	DailyQuota     int     `json:"daily_quota"`
	CurrentUsage   int     `json:"current_usage"`
	Remaining      int     `json:"remaining"`
	PercentageUsed float64 `json:"percentage_used"`
	Admin          string  `json:"admin,omitempty"`
}

func (m *Manager) UserQuotaStatus(ctx context.Context, username string) UserStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	a, ok := doc.UserAssignments[username]
	if !ok {
		return UserStatus{Managed: false, Message: unmanagedMessage}
	}

	used := m.loadUsage(ctx, doc).Admin(a.AssignedToAdmin).UsersUsage[username]
	st := UserStatus{
		Managed:      true,
		DailyQuota:   a.DailyQuota,
		CurrentUsage: used,
		Remaining:    max(0, a.DailyQuota-used),
		Admin:        a.AssignedToAdmin,
	}
	if a.DailyQuota > 0 {
		st.PercentageUsed = float64(used) / float64(a.DailyQuota) * 100
	}
	return st
}

// AdminDashboard summarises an admin's pool.
//
// RemainingQuota is the pool minus what is assigned and what the admin used
// itself; AvailableForAssignment ignores the admin's own usage.
type AdminDashboard struct {
	MaxUsers               int                              `json:"max_users"`
	UsersCreated           int                              `json:"users_created"`
	RemainingUserSlots     int                              `json:"remaining_user_slots"`
	DailyQuotaPool         int                              `json:"daily_quota_pool"`
	TotalUsage             int                              `json:"total_usage"`
	RemainingQuota         int                              `json:"remaining_quota"`
	QuotaAssignedToUsers   int                              `json:"quota_assigned_to_users"`
	AvailableForAssignment int                              `json:"available_for_assignment"`
	AdminPersonalUsage     int                              `json:"admin_personal_usage"`
	UsersTotalUsage        int                              `json:"users_total_usage"`
	CreatedUsers           []string                         `json:"created_users_list"`
	QuotaBreakdown         map[string]models.UserAssignment `json:"quota_breakdown"`
	UsersUsage             map[string]int                   `json:"users_usage"`
}

func (m *Manager) AdminDashboard(ctx context.Context, admin string) (AdminDashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	limits, ok := doc.AdminLimits[admin]
	if !ok {
		return AdminDashboard{}, refuse(ReasonAdminNotConfigured, "Admin limits not configured")
	}

	au := m.loadUsage(ctx, doc).Admin(admin)
	assignments := doc.AssignmentsOf(admin)
	assigned := doc.AssignedTotal(admin)
	usersUsed := au.UsersTotal()

	return AdminDashboard{
		MaxUsers:               limits.MaxUsers,
		UsersCreated:           len(assignments),
		RemainingUserSlots:     limits.MaxUsers - len(assignments),
		DailyQuotaPool:         limits.DailyQuota,
		TotalUsage:             au.TotalUsed + usersUsed,
		RemainingQuota:         limits.DailyQuota - assigned - au.TotalUsed,
		QuotaAssignedToUsers:   assigned,
		AvailableForAssignment: limits.DailyQuota - assigned,
		AdminPersonalUsage:     au.TotalUsed,
		UsersTotalUsage:        usersUsed,
		CreatedUsers:           sortedKeys(assignments),
		QuotaBreakdown:         assignments,
		UsersUsage:             au.UsersUsage,
	}, nil
}

// Health reports the state of the ledger documents.
type Health struct {
	Status          string `json:"status"`
	QuotaFileExists bool   `json:"quota_file_exists"`
	UsageFileExists bool   `json:"usage_file_exists"`
	AdminCount      int    `json:"admin_count"`
	UserAssignments int    `json:"user_assignments"`
	LastResetDate   string `json:"last_reset_date"`
	CurrentDate     string `json:"current_date"`
	NeedsReset      bool   `json:"needs_reset"`
	ResetStatus     string `json:"reset_status"`
}

// Health inspects the ledger without triggering the daily reset.
func (m *Manager) Health(ctx context.Context) Health {
	h := Health{
		Status:          "healthy",
		QuotaFileExists: m.store.Exists(ctx, jsonstore.DocQuota),
		UsageFileExists: m.store.Exists(ctx, jsonstore.DocUsage),
		CurrentDate:     m.today(),
	}

	doc := &models.QuotaDocument{}
	if m.store.Read(ctx, jsonstore.DocQuota, doc) {
		h.AdminCount = len(doc.AdminLimits)
		h.UserAssignments = len(doc.UserAssignments)
	} else {
		h.Status = "error"
	}

	l := &models.UsageLedger{}
	if m.store.Read(ctx, jsonstore.DocUsage, l) {
		h.LastResetDate = l.LastResetDate
	} else {
		h.Status = "error"
	}

	h.NeedsReset = h.LastResetDate != h.CurrentDate
	h.ResetStatus = "Up to date"
	if h.NeedsReset {
		h.ResetStatus = "Reset needed - will occur on next usage check"
	}
	return h
}
