package quota

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
)

// MinSuggestedQuota is the floor of every suggested slice.
const MinSuggestedQuota = 100

// UserAllocation is one auditor row of a redistribution view.
type UserAllocation struct {
	Username        string  `json:"username"`
	CurrentQuota    int     `json:"current_quota"`
	CurrentUsage    int     `json:"current_usage"`
	Remaining       int     `json:"remaining"`
	UsagePercentage float64 `json:"usage_percentage"`
}

type RedistributionOptions struct {
	AdminTotalQuota int              `json:"admin_total_quota"`
	TotalAssigned   int              `json:"total_assigned"`
	AvailableQuota  int              `json:"available_quota"`
	Users           []UserAllocation `json:"users"`
	CanRedistribute bool             `json:"can_redistribute"`
}

// QuotaChange is one planned slice change.
type QuotaChange struct {
	Username     string `json:"username"`
	OldQuota     int    `json:"old_quota"`
	NewQuota     int    `json:"new_quota"`
	Change       int    `json:"change"`
	CurrentUsage int    `json:"current_usage"`
	NewRemaining int    `json:"new_remaining"`
}

type RedistributionImpact struct {
	TotalNewAllocation int           `json:"total_new_allocation"`
	RemainingQuota     int           `json:"remaining_quota"`
	Changes            []QuotaChange `json:"changes"`
}

type Suggestion struct {
	Allocations    map[string]int `json:"suggestions"`
	Reasoning      string         `json:"reasoning"`
	TotalSuggested int            `json:"total_suggested"`
	Remaining      int            `json:"remaining"`
	MinimalChange  bool           `json:"minimal_change"`
}

// RedistributionOptions lists the current slices of admin's auditors.
func (m *Manager) RedistributionOptions(ctx context.Context, admin string) (RedistributionOptions, error) {
	dash, err := m.AdminDashboard(ctx, admin)
	if err != nil {
		return RedistributionOptions{}, err
	}

	opts := RedistributionOptions{
		AdminTotalQuota: dash.DailyQuotaPool,
		TotalAssigned:   dash.QuotaAssignedToUsers,
		AvailableQuota:  dash.AvailableForAssignment,
	}
	for _, user := range dash.CreatedUsers {
		a := dash.QuotaBreakdown[user]
		used := dash.UsersUsage[user]
		row := UserAllocation{
			Username:     user,
			CurrentQuota: a.DailyQuota,
			CurrentUsage: used,
			Remaining:    max(0, a.DailyQuota-used),
		}
		if a.DailyQuota > 0 {
			row.UsagePercentage = float64(used) / float64(a.DailyQuota) * 100
		}
		opts.Users = append(opts.Users, row)
	}
	opts.CanRedistribute = len(opts.Users) > 1
	return opts, nil
}

// RedistributionImpact validates a proposed set of slices. Auditors missing
// from alloc keep their current slice. The resulting total, plus the admin's
// own usage, must fit the pool, and no slice may drop below today's usage.
func (m *Manager) RedistributionImpact(ctx context.Context, admin string, alloc map[string]int) (RedistributionImpact, error) {
	dash, err := m.AdminDashboard(ctx, admin)
	if err != nil {
		return RedistributionImpact{}, err
	}

	for user, q := range alloc {
		if _, ok := dash.QuotaBreakdown[user]; !ok {
			return RedistributionImpact{}, refuse(ReasonWrongAdmin, "User %s is not managed by %s", user, admin)
		}
		if q < 0 {
			return RedistributionImpact{}, refuse(ReasonInvalidInput, "Quota for %s cannot be negative", user)
		}
	}

	var impact RedistributionImpact
	for _, user := range dash.CreatedUsers {
		old := dash.QuotaBreakdown[user].DailyQuota
		next, ok := alloc[user]
		if !ok {
			next = old
		}
		impact.TotalNewAllocation += next
		if next == old {
			continue
		}

		used := dash.UsersUsage[user]
		if used > next {
			return RedistributionImpact{}, refuse(ReasonInvalidInput,
				"User %s has already used %d, cannot reduce quota to %d", user, used, next)
		}
		impact.Changes = append(impact.Changes, QuotaChange{
			Username:     user,
			OldQuota:     old,
			NewQuota:     next,
			Change:       next - old,
			CurrentUsage: used,
			NewRemaining: next - used,
		})
	}

	if impact.TotalNewAllocation+dash.AdminPersonalUsage > dash.DailyQuotaPool {
		return RedistributionImpact{}, refuse(ReasonInsufficientPool,
			"Total allocation (%d) exceeds admin quota (%d)", impact.TotalNewAllocation, dash.DailyQuotaPool-dash.AdminPersonalUsage)
	}
	impact.RemainingQuota = dash.DailyQuotaPool - impact.TotalNewAllocation
	return impact, nil
}

// ApplyRedistribution validates alloc and writes every changed slice in a
// single document update. The pool check is repeated under the lock against
// the current document, since slices may have moved since the preview.
func (m *Manager) ApplyRedistribution(ctx context.Context, admin string, alloc map[string]int) (string, error) {
	impact, err := m.RedistributionImpact(ctx, admin, alloc)
	if err != nil {
		return "", err
	}
	if len(impact.Changes) == 0 {
		return "No changes needed", nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadQuota(ctx)
	l := m.loadUsage(ctx, doc)
	usage := l.Admin(admin).UsersUsage
	growth := 0
	for _, c := range impact.Changes {
		a, ok := doc.UserAssignments[c.Username]
		if !ok || a.AssignedToAdmin != admin {
			return "", refuse(ReasonWrongAdmin, "User %s is no longer managed by %s", c.Username, admin)
		}
		if used := usage[c.Username]; used > c.NewQuota {
			return "", refuse(ReasonInvalidInput,
				"User %s has already used %d, cannot reduce quota to %d", c.Username, used, c.NewQuota)
		}
		growth += c.NewQuota - a.DailyQuota
	}
	if growth > 0 && !fits(doc, l, admin, growth) {
		return "", refuse(ReasonInsufficientPool, "Insufficient quota available. Need %d more quota units.", growth)
	}

	now := m.now()
	var changes []string
	for _, c := range impact.Changes {
		a := doc.UserAssignments[c.Username]
		changes = append(changes, fmt.Sprintf("%s: %d → %d", c.Username, a.DailyQuota, c.NewQuota))
		a.DailyQuota = c.NewQuota
		a.LastModified = timex.Format(now)
		doc.UserAssignments[c.Username] = a
	}
	if err := m.saveQuota(ctx, doc); err != nil {
		return "", storageError("Failed to apply redistribution", err)
	}

	m.logger.Info(ctx, "quota redistributed", "admin", admin, "changes", len(changes))
	return "Redistribution successful: " + strings.Join(changes, ", "), nil
}

// SuggestRedistribution proposes slices of today's usage plus 50%, never
// below MinSuggestedQuota, scaled down when they would exceed the pool.
func (m *Manager) SuggestRedistribution(ctx context.Context, admin string) (Suggestion, error) {
	opts, err := m.RedistributionOptions(ctx, admin)
	if err != nil {
		return Suggestion{}, err
	}
	if !opts.CanRedistribute {
		return Suggestion{}, refuse(ReasonInvalidInput, "Cannot generate suggestions")
	}

	s := Suggestion{Allocations: make(map[string]int, len(opts.Users))}
	total := 0
	for _, u := range opts.Users {
		q := max(MinSuggestedQuota, u.CurrentUsage*3/2)
		s.Allocations[u.Username] = q
		total += q
	}

	if total > opts.AdminTotalQuota {
		scale := float64(opts.AdminTotalQuota) / float64(total)
		names := make([]string, 0, len(s.Allocations))
		for name := range s.Allocations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s.Allocations[name] = max(MinSuggestedQuota, int(float64(s.Allocations[name])*scale))
		}
	}

	for _, q := range s.Allocations {
		s.TotalSuggested += q
	}
	s.Remaining = opts.AdminTotalQuota - s.TotalSuggested

	diff := s.TotalSuggested - opts.TotalAssigned
	if diff < 0 {
		diff = -diff
	}
	if diff < MinSuggestedQuota {
		s.MinimalChange = true
		s.Reasoning = "Current allocation is already optimal - no significant changes needed"
	} else {
		s.Reasoning = "Based on current usage + 50% buffer for optimal resource allocation"
	}
	return s, nil
}
