// Package identity verifies bearer tokens against the external identity
// provider and exposes the provider's user directory where one exists.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/terraconstructs/estate/internal/auth"
)

// Verifier checks a raw bearer token and returns its claims.
//
// Failures wrap auth.ErrInvalidToken when the provider rejected the token and
// auth.ErrUpstreamUnavailable when it could not be asked.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (*Claims, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, token string) (*Claims, error) {
	return f(ctx, token)
}

// IdentityRecord is a user as the provider's directory knows it.
type IdentityRecord struct {
	ExternalID    string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
}

// Directory looks up and annotates provider-side users.
type Directory interface {
	LookupByEmail(ctx context.Context, email string) (*IdentityRecord, error)
	SetCustomClaims(ctx context.Context, externalID string, claims map[string]any) error
}

// Classify maps a raw verification error onto the auth taxonomy. Errors that
// already carry a classification pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUpstreamUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", auth.ErrUpstreamUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", auth.ErrUpstreamUnavailable, err)
	}
	// go-oidc reports JWKS endpoint failures as plain strings.
	if msg := err.Error(); strings.Contains(msg, "fetching keys") || strings.Contains(msg, "get keys failed") {
		return fmt.Errorf("%w: %v", auth.ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
}
