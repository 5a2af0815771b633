package quota

import (
	"context"
	"fmt"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
)

const (
	unmanagedMessage      = "User not under quota management"
	adminUnmanagedMessage = "Admin not under quota management"
)

// checkUser validates that username may consume amount more units today.
// It returns the owning admin, or "" for unmanaged users.
func checkUser(doc *models.QuotaDocument, l *models.UsageLedger, username string, amount int) (string, error) {
	if amount < 0 {
		return "", refuse(ReasonInvalidInput, "Usage amount cannot be negative")
	}

	a, ok := doc.UserAssignments[username]
	if !ok {
		return "", nil
	}

	au := l.Admin(a.AssignedToAdmin)
	if au.UsersUsage[username]+amount > a.DailyQuota {
		return "", refuse(ReasonUserQuotaExceeded, "User daily quota exceeded (%d)", a.DailyQuota)
	}

	limits, ok := doc.AdminLimits[a.AssignedToAdmin]
	if !ok {
		return "", refuse(ReasonAdminNotConfigured, "Admin limits not configured")
	}
	if au.TotalUsed+au.UsersTotal()+amount > limits.DailyQuota {
		return "", refuse(ReasonAdminQuotaExceeded, "Admin total quota exceeded (%d)", limits.DailyQuota)
	}
	return a.AssignedToAdmin, nil
}

// CheckUsage runs the checks of RecordUserUsage without recording anything.
func (m *Manager) CheckUsage(ctx context.Context, username string, amount int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	admin, err := checkUser(doc, m.loadUsage(ctx, doc), username, amount)
	if err != nil {
		return "", err
	}
	if admin == "" {
		return unmanagedMessage, nil
	}
	return fmt.Sprintf("Usage of %d units allowed", amount), nil
}

// RecordUserUsage charges amount units to a managed auditor. Unmanaged users
// always succeed. Only the auditor's own counter grows: the admin's
// total_used is reserved for the admin's direct usage.
func (m *Manager) RecordUserUsage(ctx context.Context, username string, amount int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	l := m.loadUsage(ctx, doc)

	admin, err := checkUser(doc, l, username, amount)
	if err != nil {
		m.logger.Info(ctx, "usage refused", "username", username, "amount", amount, "reason", ReasonOf(err).String())
		return "", err
	}
	if admin == "" {
		return unmanagedMessage, nil
	}

	au := l.Admin(admin)
	au.UsersUsage[username] += amount
	l.AdminUsage[admin] = au
	if err := m.saveUsage(ctx, l); err != nil {
		return "", storageError("System error while recording usage", err)
	}
	return fmt.Sprintf("Usage recorded: %d units", amount), nil
}

// checkAdmin validates that admin may draw amount more units on its own
// account. The admin may only draw on the part of its pool not assigned to
// auditors. managed is false for admins without configured limits.
func checkAdmin(doc *models.QuotaDocument, l *models.UsageLedger, admin string, amount int) (managed bool, err error) {
	if amount < 0 {
		return false, refuse(ReasonInvalidInput, "Usage amount cannot be negative")
	}
	limits, ok := doc.AdminLimits[admin]
	if !ok {
		return false, nil
	}

	au := l.Admin(admin)
	if au.TotalUsed+au.UsersTotal()+amount > limits.DailyQuota {
		return true, refuse(ReasonAdminQuotaExceeded, "Admin total quota exceeded (%d)", limits.DailyQuota)
	}
	// Slices assigned to auditors stay reserved even while unused.
	if !fits(doc, l, admin, amount) {
		return true, refuse(ReasonAdminQuotaExceeded, "Admin quota exceeded: %d of %d units are assigned to users",
			doc.AssignedTotal(admin), limits.DailyQuota)
	}
	return true, nil
}

// CheckAdminUsage runs the checks of RecordAdminUsage without recording
// anything.
func (m *Manager) CheckAdminUsage(ctx context.Context, admin string, amount int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	managed, err := checkAdmin(doc, m.loadUsage(ctx, doc), admin, amount)
	if err != nil {
		return "", err
	}
	if !managed {
		return adminUnmanagedMessage, nil
	}
	return fmt.Sprintf("Usage of %d units allowed", amount), nil
}

// RecordAdminUsage charges amount units to admin's own counter. Admins
// without configured limits are not metered.
func (m *Manager) RecordAdminUsage(ctx context.Context, admin string, amount int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	l := m.loadUsage(ctx, doc)
	managed, err := checkAdmin(doc, l, admin, amount)
	if err != nil {
		return "", err
	}
	if !managed {
		return adminUnmanagedMessage, nil
	}

	au := l.Admin(admin)
	au.TotalUsed += amount
	l.AdminUsage[admin] = au
	if err := m.saveUsage(ctx, l); err != nil {
		return "", storageError("System error while recording usage", err)
	}
	return fmt.Sprintf("Usage recorded: %d units", amount), nil
}
