package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/terraconstructs/estate/internal/auth"
)

// DefaultVerifyTimeout bounds a single verification.
const DefaultVerifyTimeout = 5 * time.Second

// TimeoutVerifier bounds verification with a deadline and classifies errors.
// The deadline holds even if the wrapped verifier ignores its context.
type TimeoutVerifier struct {
	next    Verifier
	timeout time.Duration
}

// WithTimeout wraps next. A non-positive timeout uses DefaultVerifyTimeout.
func WithTimeout(next Verifier, timeout time.Duration) *TimeoutVerifier {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	return &TimeoutVerifier{next: next, timeout: timeout}
}

type verifyResult struct {
	claims *Claims
	err    error
}

// Verify runs the wrapped verifier under the deadline.
func (v *TimeoutVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	done := make(chan verifyResult, 1)
	go func() {
		claims, err := v.next.Verify(ctx, token)
		done <- verifyResult{claims: claims, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, Classify(res.err)
		}
		return res.claims, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: identity provider did not answer within %s", auth.ErrUpstreamUnavailable, v.timeout)
	}
}
