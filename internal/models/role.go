// Package models holds the persisted records of the access-control core.
// Field names follow the on-disk JSON documents so external tooling can keep
// reading and writing them by key.
package models

import "fmt"

// Role is the closed set of account roles.
type Role string

const (
	RoleOwner   Role = "Owner"
	RoleAdmin   Role = "Admin"
	RoleAuditor Role = "Auditor"
)

// OwnerUsername is the single protected Owner account.
const OwnerUsername = "Mohamed Abdo"

// UnlimitedDailyLimit marks a user whose volume is governed by the quota
// system instead of the per-user daily_limit field.
const UnlimitedDailyLimit = 999999

// ParseRole converts a stored role string. Unknown values are rejected.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOwner, RoleAdmin, RoleAuditor:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Privileged reports whether r grants administrative rights.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
