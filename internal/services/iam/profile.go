package iam

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/repository"
	"github.com/terraconstructs/estate/internal/telemetry"
)

// GetProfile returns the caller's full record.
func (s *iamService) GetProfile(ctx context.Context, caller *auth.Principal) (*models.Principal, error) {
	if err := auth.Authorize(caller, s.policy.RolesFor(auth.ObjectProfile, auth.ActionRead)); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	record, err := s.principals.FindByID(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return record, nil
}

// UpdateProfile applies displayName and phoneNumber only.
func (s *iamService) UpdateProfile(ctx context.Context, caller *auth.Principal, req ProfileRequest) (*models.Principal, error) {
	if err := auth.Authorize(caller, s.policy.RolesFor(auth.ObjectProfile, auth.ActionUpdate)); err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		trimmed := strings.TrimSpace(*req.DisplayName)
		req.DisplayName = &trimmed
	}
	if req.PhoneNumber != nil {
		trimmed := strings.TrimSpace(*req.PhoneNumber)
		req.PhoneNumber = &trimmed
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	updated, err := s.principals.UpdateProfile(ctx, caller.ID, repository.ProfileUpdate{
		DisplayName: req.DisplayName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

// AddFavorite adds listingID to the caller's favorites.
func (s *iamService) AddFavorite(ctx context.Context, caller *auth.Principal, listingID string) ([]string, error) {
	return s.mutateFavorites(ctx, caller, listingID, "iam.AddFavorite", s.principals.AddFavorite)
}

// RemoveFavorite removes listingID from the caller's favorites if present.
func (s *iamService) RemoveFavorite(ctx context.Context, caller *auth.Principal, listingID string) ([]string, error) {
	return s.mutateFavorites(ctx, caller, listingID, "iam.RemoveFavorite", s.principals.RemoveFavorite)
}

type favoritesOp func(ctx context.Context, id, listingID string) ([]string, error)

func (s *iamService) mutateFavorites(ctx context.Context, caller *auth.Principal, listingID, spanName string, op favoritesOp) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, spanName,
		attribute.String(telemetry.AttrListingID, listingID),
	)
	defer span.End()

	if err := auth.Authorize(caller, s.policy.RolesFor(auth.ObjectFavorites, auth.ActionWrite)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := validateListingID(listingID); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	favorites, err := op(ctx, caller.ID, listingID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return favorites, nil
}

func validateListingID(listingID string) error {
	if strings.TrimSpace(listingID) == "" {
		return fmt.Errorf("%w: listing id is required", auth.ErrInvalidRequest)
	}
	if len(listingID) > MaxListingIDLength {
		return fmt.Errorf("%w: listing id exceeds %d characters", auth.ErrInvalidRequest, MaxListingIDLength)
	}
	return nil
}
