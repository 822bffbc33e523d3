package enums

import "fmt"

// SessionDomain partitions credentials so an admin session never authenticates
// user pages and the reverse.
type SessionDomain string

const (
	SessionDomainAdmin SessionDomain = "admin"
	SessionDomainUser  SessionDomain = "user"
)

var validSessionDomains = []SessionDomain{
	SessionDomainAdmin,
	SessionDomainUser,
}

func (d SessionDomain) String() string {
	return string(d)
}

func (d SessionDomain) IsValid() bool {
	for _, candidate := range validSessionDomains {
		if candidate == d {
			return true
		}
	}
	return false
}

// Allows reports whether role may hold a session in this domain.
func (d SessionDomain) Allows(role Role) bool {
	return role.IsValid() && role.Domain() == d
}

// LoginPath is the sign-in route unauthenticated visitors are sent to.
func (d SessionDomain) LoginPath() string {
	if d == SessionDomainAdmin {
		return "/admin-login"
	}
	return "/nursery-login"
}

func ParseSessionDomain(value string) (SessionDomain, error) {
	for _, candidate := range validSessionDomains {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session domain %q", value)
}
