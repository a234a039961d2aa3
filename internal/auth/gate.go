package auth

import (
	"context"
	"fmt"
)

// Authorize admits the principal when its role is a member of required.
// Membership is exact: admin is not implicitly admitted to a set that omits it.
// A nil principal returns ErrMissingPrincipal.
func Authorize(p *Principal, required RoleSet) error {
	if p == nil {
		return ErrMissingPrincipal
	}
	if !required.Contains(p.Role) {
		return fmt.Errorf("%w: role %q not in %s", ErrForbidden, p.Role, required)
	}
	return nil
}

// AuthorizeContext runs Authorize against the principal stored on ctx.
func AuthorizeContext(ctx context.Context, required RoleSet) error {
	p, ok := GetPrincipalFromContext(ctx)
	if !ok {
		return ErrMissingPrincipal
	}
	return Authorize(&p, required)
}
