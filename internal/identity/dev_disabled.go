//go:build !devauth

package identity

import (
	"errors"

	"github.com/terraconstructs/estate/internal/config"
)

// DevBuild reports whether this binary includes development authentication.
const DevBuild = false

var errDevAuthNotBuilt = errors.New("auth.dev settings require a binary built with -tags devauth")

// ResolveDevMode rejects any development setting in production builds.
func ResolveDevMode(cfg config.DevAuthConfig) (DevMode, error) {
	if cfg.Requested() {
		return DevOff, errDevAuthNotBuilt
	}
	return DevOff, nil
}

// NewDevVerifier is unavailable in production builds.
func NewDevVerifier(string) (Verifier, error) {
	return nil, errDevAuthNotBuilt
}
