package auth

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
)

//go:embed model.conf
var casbinModelContent string

//go:embed policy.csv
var casbinPolicyContent string

type permission struct {
	object string
	action string
}

// anyRole is the policy subject that stands for every role.
const anyRole = "*"

// PolicyTable maps (object, action) pairs to the RoleSet admitted by the gate.
// Each set is decided once at construction by asking the enforcer about every
// valid role; the policy carries no role inheritance rules.
type PolicyTable struct {
	sets map[permission]RoleSet
}

// NewPolicyTable loads the embedded route policy.
func NewPolicyTable() (*PolicyTable, error) {
	return NewPolicyTableFromString(casbinPolicyContent)
}

// NewPolicyTableFromString loads a policy in casbin CSV form. A subject of
// "*" grants the permission to every role.
func NewPolicyTableFromString(policy string) (*PolicyTable, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(policy))
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	rules, err := enforcer.GetPolicy()
	if err != nil {
		return nil, fmt.Errorf("read casbin policy: %w", err)
	}

	var perms []permission
	seen := make(map[permission]bool)
	for _, rule := range rules {
		if len(rule) != 3 {
			return nil, fmt.Errorf("policy rule %v: expected role, object, action", rule)
		}
		if rule[0] != anyRole {
			if _, err := ParseRole(rule[0]); err != nil {
				return nil, fmt.Errorf("policy rule %s: %w", strings.Join(rule, ", "), err)
			}
		}
		key := permission{object: rule[1], action: rule[2]}
		if !seen[key] {
			seen[key] = true
			perms = append(perms, key)
		}
	}

	table := &PolicyTable{sets: make(map[permission]RoleSet, len(perms))}
	for _, key := range perms {
		set := NewRoleSet()
		for _, role := range ValidRoles {
			allowed, err := enforcer.Enforce(string(role), key.object, key.action)
			if err != nil {
				return nil, fmt.Errorf("enforce %s on %s/%s: %w", role, key.object, key.action, err)
			}
			if allowed {
				set[role] = struct{}{}
			}
		}
		table.sets[key] = set
	}

	return table, nil
}

// RolesFor returns the roles admitted for object and action.
// Unknown pairs return an empty set, which admits nobody.
func (t *PolicyTable) RolesFor(object, action string) RoleSet {
	set, ok := t.sets[permission{object: object, action: action}]
	if !ok {
		return NewRoleSet()
	}
	return set
}
