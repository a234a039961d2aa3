package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/terraconstructs/estate/internal/auth"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeNoToken             = "NO_TOKEN"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeNotRegistered       = "NOT_REGISTERED"
	CodeAlreadyRegistered   = "ALREADY_REGISTERED"
	CodeDuplicateIdentity   = "DUPLICATE_IDENTITY"
	CodeAlreadyFavorited    = "ALREADY_FAVORITED"
	CodeInvalidRole         = "INVALID_ROLE"
	CodeForbidden           = "FORBIDDEN"
	CodeMissingPrincipal    = "MISSING_PRINCIPAL"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters: the first sentinel matched by errors.Is wins.
var errorMappings = []errorMapping{
	{auth.ErrNoToken, http.StatusUnauthorized, CodeNoToken, "No token provided"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, CodeInvalidToken, "Invalid token"},
	{auth.ErrNotRegistered, http.StatusForbidden, CodeNotRegistered, "User not registered"},
	{auth.ErrAlreadyRegistered, http.StatusBadRequest, CodeAlreadyRegistered, "User already registered"},
	{auth.ErrDuplicateIdentity, http.StatusConflict, CodeDuplicateIdentity, "Identity already in use"},
	{auth.ErrAlreadyFavorited, http.StatusBadRequest, CodeAlreadyFavorited, "Listing already in favorites"},
	{auth.ErrInvalidRole, http.StatusBadRequest, CodeInvalidRole, "Invalid role"},
	{auth.ErrForbidden, http.StatusForbidden, CodeForbidden, "Insufficient permissions"},
	{auth.ErrMissingPrincipal, http.StatusInternalServerError, CodeMissingPrincipal, "Authorization misconfigured"},
	{auth.ErrUpstreamUnavailable, http.StatusServiceUnavailable, CodeUpstreamUnavailable, "Identity service unavailable"},
	{auth.ErrNotFound, http.StatusNotFound, CodeNotFound, "Not found"},
	{auth.ErrInvalidRequest, http.StatusBadRequest, CodeInvalidRequest, ""},
}

// StatusFor maps err onto the HTTP status, error code and client message.
// Unknown errors map to 500 INTERNAL with a generic message.
func StatusFor(err error) (int, string, string) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if msg == "" {
			// Validation failures carry the offending field in the message.
			msg = err.Error()
		}
		return m.status, m.code, msg
	}
	return http.StatusInternalServerError, CodeInternal, "Internal server error"
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error body for err. Server-side failures are logged
// with their detail; the client only receives the mapped message.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code, msg := StatusFor(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"code", code,
			"error", err,
		)
	}
	WriteJSON(w, status, ErrorBody{Error: msg, Code: code})
}
