package quota

import (
	"context"
)

// Backend is the quota capability as seen by the user manager. Manager is
// the real ledger; Disabled is substituted when quotas are switched off.
type Backend interface {
	Enabled() bool

	SetAdminLimits(ctx context.Context, admin string, maxUsers, dailyQuota int, owner string) error
	RemoveAdminLimits(ctx context.Context, admin string) error
	AllAdminLimits(ctx context.Context) map[string]AdminOverview

	CanAdminCreateUser(ctx context.Context, admin string) (string, error)
	CanAdminAssignQuota(ctx context.Context, admin string, requested int) bool
	AssignUserToAdmin(ctx context.Context, username, admin string, dailyQuota int) (string, error)
	AdjustUserQuota(ctx context.Context, username, admin string, newQuota int) (string, error)
	RemoveUserFromAdmin(ctx context.Context, username, admin string) (string, error)
	RemoveQuotaAssignment(ctx context.Context, username string) (string, error)
	AdminCreatedUsers(ctx context.Context, admin string) []string

	CheckUsage(ctx context.Context, username string, amount int) (string, error)
	RecordUserUsage(ctx context.Context, username string, amount int) (string, error)
	CheckAdminUsage(ctx context.Context, admin string, amount int) (string, error)
	RecordAdminUsage(ctx context.Context, admin string, amount int) (string, error)

	UserQuotaStatus(ctx context.Context, username string) UserStatus
	AdminDashboard(ctx context.Context, admin string) (AdminDashboard, error)

	RedistributionOptions(ctx context.Context, admin string) (RedistributionOptions, error)
	RedistributionImpact(ctx context.Context, admin string, alloc map[string]int) (RedistributionImpact, error)
	ApplyRedistribution(ctx context.Context, admin string, alloc map[string]int) (string, error)
	SuggestRedistribution(ctx context.Context, admin string) (Suggestion, error)

	ForceDailyReset(ctx context.Context) (string, error)
	Health(ctx context.Context) Health
}

var (
	_ Backend = (*Manager)(nil)
	_ Backend = Disabled{}
)

const disabledMessage = "Quota system disabled"

// Disabled lets every usage through and refuses configuration changes.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) SetAdminLimits(context.Context, string, int, int, string) error {
	return refuse(ReasonDisabled, disabledMessage)
}

func (Disabled) RemoveAdminLimits(context.Context, string) error { return nil }

func (Disabled) AllAdminLimits(context.Context) map[string]AdminOverview {
	return map[string]AdminOverview{}
}

func (Disabled) CanAdminCreateUser(context.Context, string) (string, error) {
	return disabledMessage, nil
}

func (Disabled) CanAdminAssignQuota(context.Context, string, int) bool { return true }

func (Disabled) AssignUserToAdmin(context.Context, string, string, int) (string, error) {
	return "", refuse(ReasonDisabled, disabledMessage)
}

func (Disabled) AdjustUserQuota(context.Context, string, string, int) (string, error) {
	return "", refuse(ReasonDisabled, disabledMessage)
}

func (Disabled) RemoveUserFromAdmin(context.Context, string, string) (string, error) {
	return disabledMessage, nil
}

func (Disabled) RemoveQuotaAssignment(context.Context, string) (string, error) {
	return disabledMessage, nil
}

func (Disabled) AdminCreatedUsers(context.Context, string) []string { return nil }

func (Disabled) CheckUsage(context.Context, string, int) (string, error) {
	return disabledMessage, nil
}

func (Disabled) RecordUserUsage(context.Context, string, int) (string, error) {
	return disabledMessage, nil
}

func (Disabled) CheckAdminUsage(context.Context, string, int) (string, error) {
	return disabledMessage, nil
}

func (Disabled) RecordAdminUsage(context.Context, string, int) (string, error) {
	return disabledMessage, nil
}

func (Disabled) UserQuotaStatus(context.Context, string) UserStatus {
	return UserStatus{Managed: false, Message: disabledMessage}
}

func (Disabled) AdminDashboard(context.Context, string) (AdminDashboard, error) {
	return AdminDashboard{}, refuse(ReasonDisabled, disabledMessage)
}

func (Disabled) RedistributionOptions(context.Context, string) (RedistributionOptions, error) {
	return RedistributionOptions{}, refuse(ReasonDisabled, disabledMessage)
}

func (Disabled) RedistributionImpact(context.Context, string, map[string]int) (RedistributionImpact, error) {
	return RedistributionImpact{}, refuse(ReasonDisabled, disabledMessage)
}

func (Disabled) ApplyRedistribution(context.Context, string, map[string]int) (string, error) {
	return "", refuse(ReasonDisabled, disabledMessage)
}

func (Disabled) SuggestRedistribution(context.Context, string) (Suggestion, error) {
	return Suggestion{}, refuse(ReasonDisabled, disabledMessage)
}

func (Disabled) ForceDailyReset(context.Context) (string, error) {
	return "", refuse(ReasonDisabled, disabledMessage)
}

func (Disabled) Health(context.Context) Health {
	return Health{Status: "disabled"}
}
