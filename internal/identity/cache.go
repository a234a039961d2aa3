package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheTTL caps how long a verification is reused.
const DefaultCacheTTL = 5 * time.Minute

// CachingVerifier reuses successful verifications keyed by token digest.
// Entries never outlive the token's own expiry. Failures are not cached.
type CachingVerifier struct {
	next  Verifier
	cache *expirable.LRU[string, Claims]
	now   func() time.Time
}

// NewCachingVerifier wraps next with a cache of at most size entries.
func NewCachingVerifier(next Verifier, size int, ttl time.Duration) *CachingVerifier {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingVerifier{
		next:  next,
		cache: expirable.NewLRU[string, Claims](size, nil, ttl),
		now:   time.Now,
	}
}

// Verify returns cached claims for token or delegates to the wrapped verifier.
func (v *CachingVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	key := tokenDigest(token)
	now := v.now()

	if cached, ok := v.cache.Get(key); ok {
		if cached.Expiry.IsZero() || now.Before(cached.Expiry) {
			return &cached, nil
		}
		v.cache.Remove(key)
	}

	claims, err := v.next.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Expiry.IsZero() || now.Before(claims.Expiry) {
		v.cache.Add(key, *claims)
	}
	return claims, nil
}

// Len reports the number of cached verifications.
func (v *CachingVerifier) Len() int {
	return v.cache.Len()
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
