package auth

import "errors"

// Authentication and authorization failures. Callers wrap these with context
// and match them with errors.Is.
var (
	// ErrNoToken means the request carried no usable bearer token.
	ErrNoToken = errors.New("no token provided")

	// ErrInvalidToken means the identity provider rejected the token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotRegistered means the token is valid but no local principal exists.
	ErrNotRegistered = errors.New("user not registered")

	// ErrAlreadyRegistered means a principal already exists for the verified identity.
	ErrAlreadyRegistered = errors.New("user already registered")

	// ErrDuplicateIdentity is returned by stores when a unique constraint rejects a new principal.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrAlreadyFavorited means the listing is already in the favorites set.
	ErrAlreadyFavorited = errors.New("listing already in favorites")

	// ErrInvalidRole means a role string is outside the enumerated set.
	ErrInvalidRole = errors.New("invalid role")

	// ErrForbidden means the principal's role is not admitted.
	ErrForbidden = errors.New("insufficient permissions")

	// ErrMissingPrincipal means the gate ran without a resolved principal.
	// This is a wiring fault, not a client error.
	ErrMissingPrincipal = errors.New("authorization invoked without an authenticated principal")

	// ErrUpstreamUnavailable means the identity provider or store could not answer in time.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound means the addressed principal does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest means the request body or parameters failed validation.
	ErrInvalidRequest = errors.New("invalid request")
)
