package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyTable_Embedded(t *testing.T) {
	t.Parallel()

	table, err := NewPolicyTable()
	require.NoError(t, err)

	everyone := []Role{RoleUser, RoleAdmin, RoleAgent}
	assert.Equal(t, everyone, table.RolesFor(ObjectProfile, ActionRead).Roles())
	assert.Equal(t, everyone, table.RolesFor(ObjectProfile, ActionUpdate).Roles())
	assert.Equal(t, everyone, table.RolesFor(ObjectFavorites, ActionWrite).Roles())
	assert.Equal(t, []Role{RoleAdmin}, table.RolesFor(ObjectUsers, ActionList).Roles())
	assert.Equal(t, []Role{RoleAdmin}, table.RolesFor(ObjectUsers, ActionSetRole).Roles())
	assert.Equal(t, []Role{RoleAdmin}, table.RolesFor(ObjectConsole, ActionRead).Roles())
}

func TestPolicyTable_UnknownPermissionAdmitsNobody(t *testing.T) {
	t.Parallel()

	table, err := NewPolicyTable()
	require.NoError(t, err)

	set := table.RolesFor("listings", "delete")
	assert.Empty(t, set.Roles())
	assert.ErrorIs(t, Authorize(&Principal{Role: RoleAdmin}, set), ErrForbidden)
}

func TestPolicyTable_RejectsUnknownRole(t *testing.T) {
	t.Parallel()

	_, err := NewPolicyTableFromString("p, superuser, users, list\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestPolicyTable_WildcardSubjectGrantsEveryRole(t *testing.T) {
	t.Parallel()

	table, err := NewPolicyTableFromString("p, *, listings, read\np, agent, listings, write\np, admin, listings, write\n")
	require.NoError(t, err)

	assert.Equal(t, ValidRoles, table.RolesFor("listings", "read").Roles())
	assert.Equal(t, []Role{RoleAdmin, RoleAgent}, table.RolesFor("listings", "write").Roles())
	assert.ErrorIs(t, Authorize(&Principal{Role: RoleUser}, table.RolesFor("listings", "write")), ErrForbidden)
}
