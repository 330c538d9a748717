package model

import (
	"errors"
	"fmt"
)

// Role is the closed set of roles the backend assigns to users.
type Role string

const (
	RoleUnknown       Role = ""
	RoleDieselManager Role = "diesel-manager"
	RoleSiteIncharge  Role = "site-incharge"
	RoleAdmin         Role = "admin"
	RoleDriver        Role = "driver"
	RoleOperator      Role = "operator"
)

// ErrInvalidRole is returned by ParseRole for values outside the role enum.
var ErrInvalidRole = errors.New("invalid role")

var roleLabels = map[Role]string{
	RoleDieselManager: "Diesel Manager",
	RoleSiteIncharge:  "Site Incharge",
	RoleAdmin:         "Admin",
	RoleDriver:        "Driver",
	RoleOperator:      "Operator",
}

// Roles lists every known role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleDieselManager, RoleSiteIncharge, RoleDriver, RoleOperator}
}

// ParseRole accepts either the enum value ("site-incharge") or its display
// label ("Site Incharge"). Matching is case-sensitive.
func ParseRole(s string) (Role, error) {
	for r, label := range roleLabels {
		if s == string(r) || s == label {
			return r, nil
		}
	}
	return RoleUnknown, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label returns the display label, or "Unknown" for roles outside the enum.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return "Unknown"
}

// MarshalText renders the enum value.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

// UnmarshalText parses a role from the backend. Unknown roles decode to
// RoleUnknown instead of failing the whole payload; callers that need to
// reject them check Valid.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		*r = RoleUnknown
		return nil
	}
	*r = parsed
	return nil
}
