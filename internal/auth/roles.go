package auth

import (
	"fmt"
	"slices"
	"strings"
)

// Role is the closed set of authorization levels a principal can hold.
type Role string

const (
	// RoleUser is assigned to every principal at registration.
	RoleUser Role = "user"
	// RoleAdmin manages principals and their roles.
	RoleAdmin Role = "admin"
	// RoleAgent is granted to listing agents by an admin.
	RoleAgent Role = "agent"
)

// ValidRoles lists every role in display order.
var ValidRoles = []Role{RoleUser, RoleAdmin, RoleAgent}

// IsValid reports whether r is one of the enumerated roles.
func (r Role) IsValid() bool {
	return slices.Contains(ValidRoles, r)
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a raw string into a Role. Unknown values return ErrInvalidRole.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q (valid roles: %s)", ErrInvalidRole, s, joinRoles(ValidRoles))
	}
	return r, nil
}

// RoleSet is an unordered set of roles admitted by a route or operation.
// The zero value admits nobody.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether r is a member of the set.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Roles returns the members in ValidRoles order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s))
	for _, r := range ValidRoles {
		if s.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	return "{" + joinRoles(s.Roles()) + "}"
}

func joinRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
