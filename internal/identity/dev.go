package identity

import "github.com/terraconstructs/estate/internal/auth"

// DevMode is the development authentication profile in effect.
type DevMode int

const (
	// DevOff verifies every token with the configured provider.
	DevOff DevMode = iota
	// DevTokens verifies locally minted HS256 tokens instead of the provider.
	DevTokens
	// DevBypass skips verification and authenticates every request as DevPrincipal.
	DevBypass
)

func (m DevMode) String() string {
	switch m {
	case DevTokens:
		return "tokens"
	case DevBypass:
		return "bypass"
	default:
		return "off"
	}
}

// DevPrincipal is the identity synthesized by the development bypass.
var DevPrincipal = auth.Principal{
	ID:          "dev-admin",
	ExternalID:  "dev-admin",
	Email:       "dev-admin@localhost",
	DisplayName: "Development Admin",
	Role:        auth.RoleAdmin,
}
