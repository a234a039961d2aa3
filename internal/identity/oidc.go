package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/terraconstructs/estate/internal/config"
)

// FirebaseJWKSURL serves the keys that sign Firebase ID tokens.
const FirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

// OIDCVerifier verifies signed ID tokens against an issuer's JWKS.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers issuer and verifies tokens for audience.
// ctx must outlive the verifier; key refreshes run under it.
func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", issuer, err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: audience})}, nil
}

// NewFirebaseVerifier verifies Firebase ID tokens for the configured project.
// Firebase's issuer does not serve a discovery document, so keys are fetched
// from FirebaseJWKSURL directly.
func NewFirebaseVerifier(ctx context.Context, cfg config.IdentityConfig) *OIDCVerifier {
	keys := oidc.NewRemoteKeySet(ctx, FirebaseJWKSURL)
	return NewOIDCVerifierWithKeySet(cfg.FirebaseIssuer(), cfg.ProjectID, keys)
}

// NewOIDCVerifierWithKeySet verifies tokens against a caller-supplied key set.
func NewOIDCVerifierWithKeySet(issuer, audience string, keys oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: audience})}
}

// Verify checks signature, issuer, audience and expiry.
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, Classify(fmt.Errorf("verify token: %w", err))
	}

	var raw map[string]any
	if err := idToken.Claims(&raw); err != nil {
		return nil, Classify(fmt.Errorf("parse claims: %w", err))
	}
	return DecodeClaims(raw)
}
