// Package identitytest provides in-memory identity provider fakes for tests.
package identitytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/identity"
)

// Verifier accepts the tokens registered with Add.
type Verifier struct {
	mu     sync.Mutex
	tokens map[string]identity.Claims
	err    error
	delay  time.Duration
	calls  int
}

// NewVerifier returns a verifier that knows no tokens.
func NewVerifier() *Verifier {
	return &Verifier{tokens: make(map[string]identity.Claims)}
}

// Add makes token verify to claims.
func (v *Verifier) Add(token string, claims identity.Claims) *Verifier {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = claims
	return v
}

// FailWith makes every verification return err.
func (v *Verifier) FailWith(err error) *Verifier {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.err = err
	return v
}

// Delay makes every verification block for d or until its context ends.
func (v *Verifier) Delay(d time.Duration) *Verifier {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.delay = d
	return v
}

// Calls reports how many verifications ran.
func (v *Verifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// Verify implements identity.Verifier.
func (v *Verifier) Verify(ctx context.Context, token string) (*identity.Claims, error) {
	v.mu.Lock()
	v.calls++
	claims, ok := v.tokens[token]
	err, delay := v.err, v.delay
	v.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", auth.ErrInvalidToken)
	}
	return &claims, nil
}

// Directory is an in-memory provider user directory.
type Directory struct {
	mu     sync.Mutex
	users  map[string]identity.IdentityRecord
	claims map[string]map[string]any
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		users:  make(map[string]identity.IdentityRecord),
		claims: make(map[string]map[string]any),
	}
}

// Add registers a provider user.
func (d *Directory) Add(record identity.IdentityRecord) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[strings.ToLower(record.Email)] = record
	return d
}

// LookupByEmail implements identity.Directory.
func (d *Directory) LookupByEmail(_ context.Context, email string) (*identity.IdentityRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	record, ok := d.users[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("provider user %s: %w", email, auth.ErrNotFound)
	}
	return &record, nil
}

// SetCustomClaims implements identity.Directory.
func (d *Directory) SetCustomClaims(_ context.Context, externalID string, claims map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claims[externalID] = claims
	return nil
}

// CustomClaims returns the claims last set for externalID.
func (d *Directory) CustomClaims(externalID string) map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.claims[externalID]
}
