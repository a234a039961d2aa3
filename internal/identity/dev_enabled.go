//go:build devauth

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/config"
)

// DevBuild reports whether this binary includes development authentication.
const DevBuild = true

// DevIssuer is the iss claim of locally minted tokens.
const DevIssuer = "estateapi-dev"

// ResolveDevMode decides the development profile. The bypass needs both
// enabled and skip_verification; local tokens need enabled and a secret.
func ResolveDevMode(cfg config.DevAuthConfig) (DevMode, error) {
	if !cfg.Requested() {
		return DevOff, nil
	}
	if !cfg.Enabled {
		return DevOff, errors.New("auth.dev.skip_verification and auth.dev.secret require auth.dev.enabled")
	}
	if cfg.SkipVerification {
		return DevBypass, nil
	}
	if cfg.Secret == "" {
		return DevOff, errors.New("auth.dev.enabled requires auth.dev.skip_verification or auth.dev.secret")
	}
	return DevTokens, nil
}

// DevVerifier verifies HS256 tokens signed with a shared secret.
type DevVerifier struct {
	secret []byte
}

// NewDevVerifier creates a verifier for tokens minted by MintDevToken.
func NewDevVerifier(secret string) (Verifier, error) {
	if secret == "" {
		return nil, errors.New("dev token secret is required")
	}
	return &DevVerifier{secret: []byte(secret)}, nil
}

// Verify parses and validates an HS256 token.
func (v *DevVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(DevIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	raw, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported claim type %T", auth.ErrInvalidToken, parsed.Claims)
	}
	return DecodeClaims(map[string]any(raw))
}

// DevTokenRequest describes a token minted for local testing.
type DevTokenRequest struct {
	Subject string
	Email   string
	Name    string
	TTL     time.Duration
}

// MintDevToken signs an HS256 token that DevVerifier accepts.
func MintDevToken(secret string, req DevTokenRequest) (string, error) {
	if secret == "" {
		return "", errors.New("dev token secret is required")
	}
	if req.Subject == "" {
		return "", errors.New("subject is required")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            DevIssuer,
		"sub":            req.Subject,
		"iat":            now.Unix(),
		"exp":            now.Add(ttl).Unix(),
		"email_verified": req.Email != "",
	}
	if req.Email != "" {
		claims["email"] = req.Email
	}
	if req.Name != "" {
		claims["name"] = req.Name
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
