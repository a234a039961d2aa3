package middleware

import (
	"log/slog"
	"net/http"

	"github.com/terraconstructs/estate/internal/auth"
)

// RequireRoles admits requests whose principal holds a role in required.
// It must run after NewAuthnMiddleware; a request without a principal is a
// wiring fault and yields MISSING_PRINCIPAL (500).
func RequireRoles(required auth.RoleSet, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.AuthorizeContext(r.Context(), required); err != nil {
				if logger != nil {
					p, _ := auth.GetPrincipalFromContext(r.Context())
					logger.InfoContext(r.Context(), "authorization denied",
						"principal_id", p.ID,
						"role", p.Role,
						"required", required.String(),
						"path", r.URL.Path,
					)
				}
				WriteError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission resolves (object, action) against the policy table and
// gates on the resulting role set.
func RequirePermission(policy *auth.PolicyTable, object, action string, logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireRoles(policy.RolesFor(object, action), logger)
}
