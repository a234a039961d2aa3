package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	t.Parallel()

	adminOnly := NewRoleSet(RoleAdmin)
	staff := NewRoleSet(RoleAdmin, RoleAgent)

	tests := []struct {
		name     string
		role     Role
		required RoleSet
		allowed  bool
	}{
		{name: "admin in admin set", role: RoleAdmin, required: adminOnly, allowed: true},
		{name: "agent not in admin set", role: RoleAgent, required: adminOnly, allowed: false},
		{name: "user not in admin set", role: RoleUser, required: adminOnly, allowed: false},
		{name: "admin in staff set", role: RoleAdmin, required: staff, allowed: true},
		{name: "agent in staff set", role: RoleAgent, required: staff, allowed: true},
		{name: "user not in staff set", role: RoleUser, required: staff, allowed: false},
		{name: "admin not implicitly in agent set", role: RoleAdmin, required: NewRoleSet(RoleAgent), allowed: false},
		{name: "empty set admits nobody", role: RoleAdmin, required: NewRoleSet(), allowed: false},
		{name: "nil set admits nobody", role: RoleUser, required: nil, allowed: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Authorize(&Principal{ID: "p1", Role: tt.role}, tt.required)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrForbidden)
		})
	}
}

func TestAuthorize_MissingPrincipal(t *testing.T) {
	t.Parallel()

	err := Authorize(nil, NewRoleSet(RoleUser))
	require.ErrorIs(t, err, ErrMissingPrincipal)
	assert.NotErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeContext(t *testing.T) {
	t.Parallel()

	err := AuthorizeContext(context.Background(), NewRoleSet(RoleUser))
	require.ErrorIs(t, err, ErrMissingPrincipal)

	ctx := SetPrincipalContext(context.Background(), Principal{ID: "p1", Role: RoleAgent})
	assert.NoError(t, AuthorizeContext(ctx, NewRoleSet(RoleAgent)))
	assert.ErrorIs(t, AuthorizeContext(ctx, NewRoleSet(RoleAdmin)), ErrForbidden)
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"user", "admin", "agent", " agent "} {
		role, err := ParseRole(raw)
		require.NoError(t, err, raw)
		assert.True(t, role.IsValid())
	}

	for _, raw := range []string{"", "Admin", "superuser", "root"} {
		_, err := ParseRole(raw)
		assert.ErrorIs(t, err, ErrInvalidRole, raw)
	}
}

func TestRoleSet_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "{admin, agent}", NewRoleSet(RoleAgent, RoleAdmin).String())
	assert.Equal(t, "{}", NewRoleSet().String())
}
