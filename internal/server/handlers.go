package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/logging"
	"github.com/terraconstructs/estate/internal/services/iam"
)

const healthPingTimeout = 2 * time.Second

type handlers struct {
	iam              iam.Service
	policy           *auth.PolicyTable
	logger           *slog.Logger
	identityProvider string
	now              func() time.Time
}

func newHandlers(opts RouterOptions) (*handlers, error) {
	if opts.IAMService == nil {
		return nil, errors.New("server: IAM service is required")
	}

	h := &handlers{
		iam:              opts.IAMService,
		policy:           opts.Policy,
		logger:           opts.Logger,
		identityProvider: opts.IdentityProvider,
		now:              opts.Now,
	}
	if h.policy == nil {
		policy, err := auth.NewPolicyTable()
		if err != nil {
			return nil, fmt.Errorf("server: load route policy: %w", err)
		}
		h.policy = policy
	}
	if h.logger == nil {
		h.logger = logging.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h, nil
}

// caller returns the authenticated principal, or nil when the route was
// mounted without the authn middleware. The service turns nil into
// MISSING_PRINCIPAL.
func caller(r *http.Request) *auth.Principal {
	p, ok := auth.GetPrincipalFromContext(r.Context())
	if !ok {
		return nil
	}
	return &p
}

// POST /auth/register
func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	body := func(req *iam.RegisterRequest) error { return decodeBody(r, req) }
	principal, err := h.iam.Register(r.Context(), r.Header.Get("Authorization"), body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPrincipalResponse(principal))
}

// GET /auth/me
func (h *handlers) getMe(w http.ResponseWriter, r *http.Request) {
	principal, err := h.iam.GetProfile(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrincipalResponse(principal))
}

// PUT /auth/me
func (h *handlers) updateMe(w http.ResponseWriter, r *http.Request) {
	var req iam.ProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	principal, err := h.iam.UpdateProfile(r.Context(), caller(r), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrincipalResponse(principal))
}

// POST /auth/favorites/{listingId}
func (h *handlers) addFavorite(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.iam.AddFavorite(r.Context(), caller(r), chi.URLParam(r, "listingId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, favoritesResponse{Message: "Added to favorites", Favorites: favorites})
}

// DELETE /auth/favorites/{listingId}
func (h *handlers) removeFavorite(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.iam.RemoveFavorite(r.Context(), caller(r), chi.URLParam(r, "listingId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, favoritesResponse{Message: "Removed from favorites", Favorites: favorites})
}

// GET /auth/users?role=&filter=
func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	principals, err := h.iam.ListPrincipals(r.Context(), caller(r), iam.ListFilter{
		Role: query.Get("role"),
		Expr: query.Get("filter"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := usersResponse{Users: make([]principalResponse, 0, len(principals)), Count: len(principals)}
	for i := range principals {
		resp.Users = append(resp.Users, toPrincipalResponse(&principals[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// PUT /auth/users/{id}/role
func (h *handlers) setRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	principal, err := h.iam.SetRole(r.Context(), caller(r), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrincipalResponse(principal))
}

// GET /api/health
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	resp := healthResponse{
		Status:           "OK",
		Database:         "connected",
		IdentityProvider: h.identityProvider,
		Timestamp:        h.now().UTC(),
	}
	status := http.StatusOK
	if err := h.iam.Ping(ctx); err != nil {
		h.logger.WarnContext(r.Context(), "health check: store ping failed", "error", err)
		resp.Status = "DEGRADED"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GET /api/protected
func (h *handlers) protected(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	if p == nil {
		writeError(w, r, h.logger, auth.ErrMissingPrincipal)
		return
	}
	user := toCallerResponse(*p)
	writeJSON(w, http.StatusOK, messageResponse{Message: "This is a protected route", User: &user})
}

// GET /api/admin
func (h *handlers) admin(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "This is an admin-only route"})
}
