package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rs"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/terraconstructs/estate/internal/auth"
)

// IntrospectionVerifier checks opaque tokens at the issuer's RFC 7662 endpoint.
type IntrospectionVerifier struct {
	server rs.ResourceServer
}

// NewIntrospectionVerifier discovers issuer and authenticates to its
// introspection endpoint with client credentials.
func NewIntrospectionVerifier(ctx context.Context, issuer, clientID, clientSecret string) (*IntrospectionVerifier, error) {
	server, err := rs.NewResourceServerClientCredentials(ctx, issuer, clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("create resource server: %w", err)
	}
	return &IntrospectionVerifier{server: server}, nil
}

// Verify introspects token. Transport and endpoint failures are upstream
// failures; an inactive token is invalid.
func (v *IntrospectionVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	resp, err := rs.Introspect[*oidc.IntrospectionResponse](ctx, v.server, token)
	if err != nil {
		return nil, fmt.Errorf("%w: introspect: %v", auth.ErrUpstreamUnavailable, err)
	}
	return claimsFromIntrospection(resp)
}

func claimsFromIntrospection(resp *oidc.IntrospectionResponse) (*Claims, error) {
	if resp == nil || !resp.Active {
		return nil, fmt.Errorf("%w: token is not active", auth.ErrInvalidToken)
	}
	if resp.Subject == "" {
		return nil, fmt.Errorf("%w: introspection response missing sub", auth.ErrInvalidToken)
	}
	var expiry time.Time
	if resp.Expiration > 0 {
		expiry = resp.Expiration.AsTime()
	}
	return &Claims{
		Subject:       resp.Subject,
		Issuer:        resp.Issuer,
		Email:         resp.Email,
		EmailVerified: bool(resp.EmailVerified),
		Name:          resp.Name,
		Picture:       resp.Picture,
		Expiry:        expiry,
	}, nil
}
