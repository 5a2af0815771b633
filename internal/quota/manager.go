// Package quota keeps the two-level allocation ledger: the Owner grants each
// Admin a user cap and a daily unit pool, the Admin slices that pool among
// the Auditors it creates, and daily usage is counted against both levels.
//
// Two documents back the ledger. quota_management.json holds limits and
// assignments; daily_usage.json holds the counters for the current day and
// is zeroed lazily the first time it is loaded on a new date.
package quota

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
)

type Manager struct {
	store  jsonstore.Documents
	logger logging.Logger
	now    func() time.Time

	mu sync.Mutex
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates missing ledger documents.
func NewManager(ctx context.Context, store jsonstore.Documents, l logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: l.With("module", "quota"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}

	if !store.Exists(ctx, jsonstore.DocQuota) {
		_ = m.saveQuota(ctx, models.NewQuotaDocument())
	}
	if !store.Exists(ctx, jsonstore.DocUsage) {
		_ = m.saveUsage(ctx, &models.UsageLedger{LastResetDate: m.today(), AdminUsage: map[string]models.AdminUsage{}})
	}
	return m
}

func (m *Manager) Enabled() bool { return true }

func (m *Manager) today() string {
	return timex.Date(m.now())
}

// loadQuota returns the limits document, reinitialising it when absent or
// unreadable.
func (m *Manager) loadQuota(ctx context.Context) *models.QuotaDocument {
	doc := &models.QuotaDocument{}
	if !m.store.Read(ctx, jsonstore.DocQuota, doc) {
		doc = models.NewQuotaDocument()
		if !m.store.Exists(ctx, jsonstore.DocQuota) {
			m.logger.Warn(ctx, "quota document missing, reinitialising")
			_ = m.saveQuota(ctx, doc)
		}
		return doc
	}
	doc.Normalize()
	return doc
}

func (m *Manager) saveQuota(ctx context.Context, doc *models.QuotaDocument) error {
	if err := m.store.Write(ctx, jsonstore.DocQuota, doc); err != nil {
		m.logger.Error(ctx, "saving quota document failed", "error", err)
		return err
	}
	return nil
}

func (m *Manager) saveUsage(ctx context.Context, l *models.UsageLedger) error {
	if err := m.store.Write(ctx, jsonstore.DocUsage, l); err != nil {
		m.logger.Error(ctx, "saving usage ledger failed", "error", err)
		return err
	}
	return nil
}

// loadUsage returns today's ledger. A ledger from an earlier day is replaced
// by a zeroed one; negative counters are clamped to zero.
func (m *Manager) loadUsage(ctx context.Context, doc *models.QuotaDocument) *models.UsageLedger {
	l := &models.UsageLedger{}
	if !m.store.Read(ctx, jsonstore.DocUsage, l) || l.LastResetDate != m.today() {
		return m.reset(ctx, doc)
	}

	if l.AdminUsage == nil {
		l.AdminUsage = map[string]models.AdminUsage{}
	}

	fixed := false
	for admin, au := range l.AdminUsage {
		if au.TotalUsed < 0 {
			m.logger.Warn(ctx, "clamped negative admin usage", "admin", admin, "value", au.TotalUsed)
			au.TotalUsed = 0
			fixed = true
		}
		for user, v := range au.UsersUsage {
			if v < 0 {
				m.logger.Warn(ctx, "clamped negative user usage", "username", user, "value", v)
				au.UsersUsage[user] = 0
				fixed = true
			}
		}
		if au.UsersUsage == nil {
			au.UsersUsage = map[string]int{}
		}
		l.AdminUsage[admin] = au
	}
	if fixed {
		_ = m.saveUsage(ctx, l)
	}
	return l
}

// reset builds a zeroed ledger for every configured admin and its users.
// Re-running it on the same day produces the same document.
func (m *Manager) reset(ctx context.Context, doc *models.QuotaDocument) *models.UsageLedger {
	l := &models.UsageLedger{
		LastResetDate: m.today(),
		AdminUsage:    make(map[string]models.AdminUsage, len(doc.AdminLimits)),
	}
	for admin := range doc.AdminLimits {
		au := models.AdminUsage{UsersUsage: map[string]int{}}
		for user := range doc.AssignmentsOf(admin) {
			au.UsersUsage[user] = 0
		}
		l.AdminUsage[admin] = au
	}

	if err := m.saveUsage(ctx, l); err == nil {
		m.logger.Info(ctx, "daily usage reset", "date", l.LastResetDate)
	}
	return l
}

// ForceDailyReset zeroes today's counters regardless of the stored date.
func (m *Manager) ForceDailyReset(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	l := m.reset(ctx, doc)
	if !m.store.Exists(ctx, jsonstore.DocUsage) {
		return "", refuse(ReasonStorage, "Reset failed: usage ledger not written")
	}
	return "Daily usage reset completed. Reset date: " + l.LastResetDate, nil
}

// AdminCreatedUsers lists the auditors assigned to admin, sorted.
func (m *Manager) AdminCreatedUsers(ctx context.Context, admin string) []string {
	doc := m.loadQuota(ctx)
	return sortedKeys(doc.AssignmentsOf(admin))
}

func sortedKeys[V any](in map[string]V) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
