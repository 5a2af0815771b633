package models

// SystemConfig is the system_config block of quota_management.json.
type SystemConfig struct {
	QuotaResetTime         string `json:"quota_reset_time"`
	DefaultAdminUserLimit  int    `json:"default_admin_user_limit"`
	DefaultAdminDailyQuota int    `json:"default_admin_daily_quota"`
}

// DefaultSystemConfig is written when quota_management.json is created.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		QuotaResetTime:         "00:00",
		DefaultAdminUserLimit:  10,
		DefaultAdminDailyQuota: 5000,
	}
}

// AdminLimits is the Owner-granted allowance of one Admin.
type AdminLimits struct {
	MaxUsers     int    `json:"max_users"`
	DailyQuota   int    `json:"daily_quota"`
	CreatedBy    string `json:"created_by"`
	CreatedDate  string `json:"created_date"`
	LastModified string `json:"last_modified,omitempty"`
}

// UserAssignment is one Auditor's slice of its Admin's pool.
type UserAssignment struct {
	AssignedToAdmin string `json:"assigned_to_admin"`
	DailyQuota      int    `json:"daily_quota"`
	CreatedDate     string `json:"created_date"`
	LastModified    string `json:"last_modified,omitempty"`
}

// QuotaDocument is quota_management.json.
type QuotaDocument struct {
	SystemConfig    SystemConfig              `json:"system_config"`
	AdminLimits     map[string]AdminLimits    `json:"admin_limits"`
	UserAssignments map[string]UserAssignment `json:"user_assignments"`
}

// NewQuotaDocument returns an empty document with default system settings.
func NewQuotaDocument() *QuotaDocument {
	return &QuotaDocument{
		SystemConfig:    DefaultSystemConfig(),
		AdminLimits:     map[string]AdminLimits{},
		UserAssignments: map[string]UserAssignment{},
	}
}

// Normalize replaces nil maps so callers can index freely.
func (d *QuotaDocument) Normalize() {
	if d.AdminLimits == nil {
		d.AdminLimits = map[string]AdminLimits{}
	}
	if d.UserAssignments == nil {
		d.UserAssignments = map[string]UserAssignment{}
	}
	if d.SystemConfig == (SystemConfig{}) {
		d.SystemConfig = DefaultSystemConfig()
	}
}

// AssignmentsOf returns the assignments owned by admin.
func (d *QuotaDocument) AssignmentsOf(admin string) map[string]UserAssignment {
	out := map[string]UserAssignment{}
	for u, a := range d.UserAssignments {
		if a.AssignedToAdmin == admin {
			out[u] = a
		}
	}
	return out
}

// AssignedTotal sums the daily quota handed out by admin.
func (d *QuotaDocument) AssignedTotal(admin string) int {
	total := 0
	for _, a := range d.AssignmentsOf(admin) {
		total += a.DailyQuota
	}
	return total
}

// AdminUsage is the per-admin block of daily_usage.json.
type AdminUsage struct {
	TotalUsed  int            `json:"total_used"`
	UsersUsage map[string]int `json:"users_usage"`
}

// UsersTotal sums the usage of all auditors under this admin.
func (a AdminUsage) UsersTotal() int {
	total := 0
	for _, v := range a.UsersUsage {
		total += v
	}
	return total
}

// UsageLedger is daily_usage.json.
type UsageLedger struct {
	LastResetDate string                `json:"last_reset_date"`
	AdminUsage    map[string]AdminUsage `json:"admin_usage"`
}

// Admin returns the usage block of admin, creating it when absent.
func (l *UsageLedger) Admin(admin string) AdminUsage {
	if l.AdminUsage == nil {
		l.AdminUsage = map[string]AdminUsage{}
	}
	au, ok := l.AdminUsage[admin]
	if !ok {
		au = AdminUsage{UsersUsage: map[string]int{}}
	}
	if au.UsersUsage == nil {
		au.UsersUsage = map[string]int{}
	}
	return au
}
