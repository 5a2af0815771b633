package quota

import (
	"context"
	"fmt"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
)

// CanAdminCreateUser reports whether admin has a free user slot.
func (m *Manager) CanAdminCreateUser(ctx context.Context, admin string) (string, error) {
	return canCreate(m.loadQuota(ctx), admin)
}

func canCreate(doc *models.QuotaDocument, admin string) (string, error) {
	limits, ok := doc.AdminLimits[admin]
	if !ok {
		return "", refuse(ReasonAdminNotConfigured, "Admin limits not configured by Owner")
	}
	created := len(doc.AssignmentsOf(admin))
	if created >= limits.MaxUsers {
		return "", refuse(ReasonUserLimitReached, "Maximum user limit reached (%d)", limits.MaxUsers)
	}
	return fmt.Sprintf("Can create %d more users", limits.MaxUsers-created), nil
}

// CanAdminAssignQuota reports whether requested more units fit in admin's
// pool next to what is already assigned and what admin itself used today.
func (m *Manager) CanAdminAssignQuota(ctx context.Context, admin string, requested int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	return fits(doc, m.loadUsage(ctx, doc), admin, requested)
}

func fits(doc *models.QuotaDocument, l *models.UsageLedger, admin string, requested int) bool {
	if requested < 0 {
		return false
	}
	limits, ok := doc.AdminLimits[admin]
	if !ok {
		return false
	}
	return doc.AssignedTotal(admin)+l.Admin(admin).TotalUsed+requested <= limits.DailyQuota
}

// AssignUserToAdmin places username under admin with a daily slice of
// dailyQuota units.
func (m *Manager) AssignUserToAdmin(ctx context.Context, username, admin string, dailyQuota int) (string, error) {
	if username == "" || dailyQuota < 0 {
		return "", refuse(ReasonInvalidInput, "Invalid assignment for %q: daily_quota=%d", username, dailyQuota)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	if existing, ok := doc.UserAssignments[username]; ok {
		return "", refuse(ReasonAlreadyAssigned, "User already assigned to %s", existing.AssignedToAdmin)
	}
	if _, err := canCreate(doc, admin); err != nil {
		return "", err
	}

	l := m.loadUsage(ctx, doc)
	if !fits(doc, l, admin, dailyQuota) {
		return "", refuse(ReasonInsufficientPool, "Insufficient quota available for assignment")
	}

	doc.UserAssignments[username] = models.UserAssignment{
		AssignedToAdmin: admin,
		DailyQuota:      dailyQuota,
		CreatedDate:     timex.Date(m.now()),
	}
	if err := m.saveQuota(ctx, doc); err != nil {
		return "", storageError("System error during assignment", err)
	}

	au := l.Admin(admin)
	if _, ok := au.UsersUsage[username]; !ok {
		au.UsersUsage[username] = 0
		l.AdminUsage[admin] = au
		_ = m.saveUsage(ctx, l)
	}

	m.logger.Info(ctx, "user assigned", "username", username, "admin", admin, "daily_quota", dailyQuota)
	return "User assigned successfully", nil
}

// AdjustUserQuota changes the slice of an auditor owned by admin. Growing a
// slice is checked against the pool; shrinking one never is.
func (m *Manager) AdjustUserQuota(ctx context.Context, username, admin string, newQuota int) (string, error) {
	if newQuota < 0 {
		return "", refuse(ReasonInvalidInput, "Quota cannot be negative")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	a, ok := doc.UserAssignments[username]
	if !ok {
		return "", refuse(ReasonNotAssigned, "User not found in assignments")
	}
	if a.AssignedToAdmin != admin {
		return "", refuse(ReasonWrongAdmin, "User not assigned to this admin")
	}

	current := a.DailyQuota
	if delta := newQuota - current; delta > 0 {
		if !fits(doc, m.loadUsage(ctx, doc), admin, delta) {
			return "", refuse(ReasonInsufficientPool, "Insufficient quota available. Need %d more quota units.", delta)
		}
	}

	a.DailyQuota = newQuota
	a.LastModified = timex.Format(m.now())
	doc.UserAssignments[username] = a
	if err := m.saveQuota(ctx, doc); err != nil {
		return "", storageError("System error during quota adjustment", err)
	}

	m.logger.Info(ctx, "user quota adjusted", "username", username, "from", current, "to", newQuota)
	return fmt.Sprintf("User quota updated from %d to %d", current, newQuota), nil
}

// RemoveUserFromAdmin releases an auditor's slice. What the auditor already
// consumed today is moved onto admin's own counter so the pool stays charged.
func (m *Manager) RemoveUserFromAdmin(ctx context.Context, username, admin string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	a, ok := doc.UserAssignments[username]
	if !ok {
		return "", refuse(ReasonNotAssigned, "User not found in quota assignments")
	}
	if a.AssignedToAdmin != admin {
		return "", refuse(ReasonWrongAdmin, "User not assigned to this admin")
	}

	l := m.loadUsage(ctx, doc)
	used := 0
	if au, ok := l.AdminUsage[admin]; ok {
		if v, ok := au.UsersUsage[username]; ok {
			used = v
			au.TotalUsed += v
			delete(au.UsersUsage, username)
			l.AdminUsage[admin] = au
		}
	}

	delete(doc.UserAssignments, username)
	if err := m.saveQuota(ctx, doc); err != nil {
		return "", storageError("System error during user removal", err)
	}
	if err := m.saveUsage(ctx, l); err != nil {
		return "", storageError("System error during user removal", err)
	}

	m.logger.Info(ctx, "user removed from admin", "username", username, "admin", admin, "used", used)
	if used > 0 {
		return fmt.Sprintf("User removed. Used quota (%d) preserved, unused quota (%d) reclaimed.", used, a.DailyQuota-used), nil
	}
	return fmt.Sprintf("User removed. All assigned quota (%d) reclaimed.", a.DailyQuota), nil
}

// RemoveQuotaAssignment deletes an assignment whatever admin owns it, along
// with its usage counters. It cleans up after users deleted out of band.
func (m *Manager) RemoveQuotaAssignment(ctx context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	if _, ok := doc.UserAssignments[username]; !ok {
		return "", refuse(ReasonNotAssigned, "User not found in quota assignments")
	}
	delete(doc.UserAssignments, username)
	if err := m.saveQuota(ctx, doc); err != nil {
		return "", storageError("System error during quota assignment cleanup", err)
	}

	l := m.loadUsage(ctx, doc)
	changed := false
	for admin, au := range l.AdminUsage {
		if _, ok := au.UsersUsage[username]; ok {
			delete(au.UsersUsage, username)
			l.AdminUsage[admin] = au
			changed = true
		}
	}
	if changed {
		_ = m.saveUsage(ctx, l)
	}

	m.logger.Info(ctx, "quota assignment removed", "username", username)
	return "Quota assignment for user '" + username + "' removed", nil
}
