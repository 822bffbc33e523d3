package enums

import (
	"fmt"
	"strings"
)

// Role is the platform-wide account role. It is fixed at signup.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleNurseryOwner Role = "NURSERY_OWNER"
	RoleParent       Role = "PARENT"
	RoleUser         Role = "USER"
)

var validRoles = []Role{
	RoleAdmin,
	RoleNurseryOwner,
	RoleParent,
	RoleUser,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// Domain returns the session domain a role authenticates into.
func (r Role) Domain() SessionDomain {
	if r == RoleAdmin {
		return SessionDomainAdmin
	}
	return SessionDomainUser
}

// SelfRegistrable reports whether the role can be chosen on the public signup form.
func (r Role) SelfRegistrable() bool {
	return r == RoleParent || r == RoleNurseryOwner
}

// ParseRole converts raw input into a Role. Matching is case-insensitive.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
