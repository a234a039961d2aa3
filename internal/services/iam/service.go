package iam

import (
	"context"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
)

// Service provides all identity and access management operations.
type Service interface {
	// =========================================================================
	// Authentication (Request Path)
	// =========================================================================

	// Authenticate resolves an Authorization header value to a principal.
	//
	// Returns:
	//   - auth.ErrNoToken: header absent or not a bearer token
	//   - auth.ErrInvalidToken: the provider rejected the token
	//   - auth.ErrUpstreamUnavailable: provider or store did not answer in time
	//   - auth.ErrNotRegistered: token valid, no local principal
	//
	// lastLoginAt is refreshed best-effort; a failed write never fails authentication.
	Authenticate(ctx context.Context, authorizationHeader string) (*auth.Principal, error)

	// =========================================================================
	// Registration
	// =========================================================================

	// Register provisions a principal for the verified identity.
	// Claims take precedence over the request body and the role is always user.
	// body is read only after the token verifies.
	Register(ctx context.Context, authorizationHeader string, body RegisterBody) (*models.Principal, error)

	// =========================================================================
	// Self Service
	// =========================================================================

	// GetProfile returns the caller's full record.
	GetProfile(ctx context.Context, caller *auth.Principal) (*models.Principal, error)

	// UpdateProfile applies displayName and phoneNumber only.
	UpdateProfile(ctx context.Context, caller *auth.Principal, req ProfileRequest) (*models.Principal, error)

	// AddFavorite adds listingID to the caller's favorites and returns the set.
	AddFavorite(ctx context.Context, caller *auth.Principal, listingID string) ([]string, error)

	// RemoveFavorite removes listingID if present and returns the set.
	RemoveFavorite(ctx context.Context, caller *auth.Principal, listingID string) ([]string, error)

	// =========================================================================
	// Administration
	// =========================================================================

	// SetRole assigns role to the target principal. The caller must be admitted
	// by the users/set-role permission.
	SetRole(ctx context.Context, caller *auth.Principal, targetID, role string) (*models.Principal, error)

	// ListPrincipals returns principals matching filter, newest first.
	ListPrincipals(ctx context.Context, caller *auth.Principal, filter ListFilter) ([]models.Principal, error)

	// PromoteByEmail is the operator path for role assignment. It does not
	// run the gate; access to the process is the authorization.
	PromoteByEmail(ctx context.Context, req PromoteRequest) (*PromoteResult, error)

	// Ping reports whether the principal store answers.
	Ping(ctx context.Context) error
}

// RegisterRequest is the optional profile supplied at registration.
// Any role in the request body is ignored.
type RegisterRequest struct {
	Email       string `json:"email" validate:"omitempty,email"`
	DisplayName string `json:"displayName" validate:"omitempty,max=256"`
	AvatarURL   string `json:"avatarUrl" validate:"omitempty,url"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,e164"`
}

// RegisterBody fills a RegisterRequest, typically by decoding the HTTP body.
type RegisterBody func(*RegisterRequest) error

// BodyOf wraps an already decoded request.
func BodyOf(req RegisterRequest) RegisterBody {
	return func(dst *RegisterRequest) error {
		*dst = req
		return nil
	}
}

// ProfileRequest carries the self-service fields. Nil fields are unchanged.
type ProfileRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=256"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,e164"`
}

// ListFilter narrows ListPrincipals.
type ListFilter struct {
	// Role restricts results to one role when set.
	Role string
	// Expr is a go-bexpr expression over id, externalId, email,
	// displayName, role, phoneNumber and favorites (count).
	Expr string
}

// PromoteRequest describes an operator role assignment.
type PromoteRequest struct {
	Email string
	Role  string
	// SyncClaims mirrors the role onto the provider's custom claims.
	SyncClaims bool
}

// PromoteResult reports what PromoteByEmail did.
type PromoteResult struct {
	Principal *models.Principal
	// Created is set when the principal was provisioned from the provider directory.
	Created bool
	// Changed is false when the principal already held the role.
	Changed bool
	// ClaimsSynced is set when custom claims were written.
	ClaimsSynced bool
}
