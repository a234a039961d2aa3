package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/config"
	estatemiddleware "github.com/terraconstructs/estate/internal/middleware"
	"github.com/terraconstructs/estate/internal/services/iam"
	"github.com/terraconstructs/estate/internal/telemetry"
)

// RouterOptions controls the construction of the HTTP router.
// IAMService is required; the zero value of every other field is valid.
type RouterOptions struct {
	IAMService iam.Service
	// Policy defaults to the embedded route policy.
	Policy *auth.PolicyTable
	Logger *slog.Logger

	// IdentityProvider names the verifier mode reported by /api/health.
	IdentityProvider string
	CORSOrigins      []string
	RateLimit        config.RateLimitConfig

	HTTPMetrics *telemetry.HTTPMetrics
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	Middleware     []func(http.Handler) http.Handler
	Now            func() time.Time
}

// DefaultCORSOptions returns the CORS policy for the configured origins.
func DefaultCORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the identity routes mounted.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	h, err := newHandlers(opts)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(estatemiddleware.RequestLogger(h.logger, opts.HTTPMetrics))
	r.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(DefaultCORSOptions(opts.CORSOrigins)))
	}
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	authn := estatemiddleware.NewAuthnMiddleware(opts.IAMService, h.logger)
	permit := func(object, action string) func(http.Handler) http.Handler {
		return estatemiddleware.RequirePermission(h.policy, object, action, h.logger)
	}

	r.Route("/auth", func(r chi.Router) {
		// Registration authenticates the token itself; the caller has no principal yet.
		r.With(estatemiddleware.RateLimit(opts.RateLimit)).Post("/register", h.register)

		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.With(permit(auth.ObjectProfile, auth.ActionRead)).Get("/me", h.getMe)
			r.With(permit(auth.ObjectProfile, auth.ActionUpdate)).Put("/me", h.updateMe)

			r.With(permit(auth.ObjectFavorites, auth.ActionWrite)).Post("/favorites/{listingId}", h.addFavorite)
			r.With(permit(auth.ObjectFavorites, auth.ActionWrite)).Delete("/favorites/{listingId}", h.removeFavorite)

			r.With(permit(auth.ObjectUsers, auth.ActionList)).Get("/users", h.listUsers)
			r.With(permit(auth.ObjectUsers, auth.ActionSetRole)).Put("/users/{id}/role", h.setRole)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.With(authn).Get("/protected", h.protected)
		r.With(authn, permit(auth.ObjectConsole, auth.ActionRead)).Get("/admin", h.admin)
	})

	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		estatemiddleware.WriteJSON(w, http.StatusNotFound, estatemiddleware.ErrorBody{
			Error: "Route not found",
			Code:  estatemiddleware.CodeNotFound,
		})
	})

	return r, nil
}

// NewH2CHandler wraps the router with an h2c server to serve HTTP/2 over
// cleartext behind proxies that speak it.
func NewH2CHandler(opts RouterOptions) (http.Handler, error) {
	router, err := NewRouter(opts)
	if err != nil {
		return nil, err
	}
	return h2c.NewHandler(router, &http2.Server{}), nil
}
