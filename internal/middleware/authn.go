package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/terraconstructs/estate/internal/auth"
)

// Authenticator resolves an Authorization header to a principal.
// iam.Service satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

// NewAuthnMiddleware constructs a Chi middleware that resolves the bearer
// token to a principal and stores it on the request context. Requests that do
// not resolve are rejected with the mapped error; nothing downstream runs.
func NewAuthnMiddleware(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authn.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				if logger != nil {
					logger.DebugContext(r.Context(), "authentication rejected",
						"method", r.Method,
						"path", r.URL.Path,
						"error", err,
					)
				}
				WriteError(w, r, logger, err)
				return
			}

			ctx := auth.SetPrincipalContext(r.Context(), *principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
