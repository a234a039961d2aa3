package identity

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/terraconstructs/estate/internal/auth"
)

// Claims is the verified identity carried by a token.
type Claims struct {
	Subject       string `mapstructure:"sub"`
	Issuer        string `mapstructure:"iss"`
	Email         string `mapstructure:"email"`
	EmailVerified bool   `mapstructure:"email_verified"`
	Name          string `mapstructure:"name"`
	Picture       string `mapstructure:"picture"`
	// Expiry is zero when the provider did not state one.
	Expiry time.Time `mapstructure:"-"`
}

// DecodeClaims builds Claims from a decoded JWT payload. A missing subject is
// an invalid token.
func DecodeClaims(raw map[string]any) (*Claims, error) {
	var claims Claims
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &claims,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create claims decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", auth.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token missing sub claim", auth.ErrInvalidToken)
	}

	if exp, ok := numericDate(raw["exp"]); ok {
		claims.Expiry = exp
	}
	return &claims, nil
}

func numericDate(v any) (time.Time, bool) {
	var seconds float64
	switch n := v.(type) {
	case float64:
		seconds = n
	case int64:
		seconds = float64(n)
	case int:
		seconds = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return time.Time{}, false
		}
		seconds = f
	default:
		return time.Time{}, false
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), true
}
