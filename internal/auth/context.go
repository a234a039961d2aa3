package auth

import (
	"context"
	"time"
)

// Principal is the authenticated identity propagated through the request context.
// It is a snapshot taken at authentication time and is never mutated afterward.
type Principal struct {
	// ID references the backing principal record.
	ID string
	// ExternalID is the identity provider's subject.
	ExternalID string
	Email      string
	// DisplayName is optional.
	DisplayName string
	Role        Role
	// LastLoginAt is the stored login time; nil when it was never recorded.
	LastLoginAt *time.Time
}

type principalContextKey struct{}

// SetPrincipalContext stores the authenticated principal on the context for downstream consumers.
func SetPrincipalContext(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// GetPrincipalFromContext retrieves the authenticated principal from the context.
func GetPrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}
