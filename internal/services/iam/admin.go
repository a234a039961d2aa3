package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/identity"
	"github.com/terraconstructs/estate/internal/repository"
)

// ListPrincipals returns principals matching filter, newest first.
func (s *iamService) ListPrincipals(ctx context.Context, caller *auth.Principal, filter ListFilter) ([]models.Principal, error) {
	if err := auth.Authorize(caller, s.policy.RolesFor(auth.ObjectUsers, auth.ActionList)); err != nil {
		return nil, err
	}

	evaluator, err := auth.CompileFilter(filter.Expr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	var principals []models.Principal
	if filter.Role != "" {
		role, err := auth.ParseRole(filter.Role)
		if err != nil {
			return nil, err
		}
		principals, err = s.principals.ListByRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("list principals: %w", err)
		}
	} else {
		principals, err = s.principals.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list principals: %w", err)
		}
	}

	if evaluator == nil {
		return principals, nil
	}
	matched := make([]models.Principal, 0, len(principals))
	for i := range principals {
		if auth.MatchFilter(evaluator, principals[i].FilterFields()) {
			matched = append(matched, principals[i])
		}
	}
	return matched, nil
}

// PromoteByEmail assigns a role to the principal bound to an email.
//
// With a provider directory the email is confirmed with the provider first and
// a missing local principal is provisioned from the provider record. Without
// one the principal must already be registered.
func (s *iamService) PromoteByEmail(ctx context.Context, req PromoteRequest) (*PromoteResult, error) {
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", auth.ErrInvalidRequest)
	}
	if req.SyncClaims && s.directory == nil {
		return nil, fmt.Errorf("%w: claim sync requires an identity provider directory", auth.ErrInvalidRequest)
	}

	var record *identity.IdentityRecord
	if s.directory != nil {
		record, err = s.directory.LookupByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("lookup provider user: %w", err)
		}
	}

	existing, err := s.findForPromotion(ctx, email, record)
	if err != nil && !errors.Is(err, repository.ErrPrincipalNotFound) {
		return nil, err
	}

	result := &PromoteResult{}
	switch {
	case existing != nil && existing.Role == role:
		result.Principal = existing
	case existing != nil:
		result.Principal, err = s.principals.SetRole(ctx, existing.ID, role)
		if err != nil {
			return nil, fmt.Errorf("set role: %w", err)
		}
		result.Changed = true
	case record != nil:
		principal := &models.Principal{
			ExternalID:  record.ExternalID,
			Email:       normalizeEmail(record.Email),
			DisplayName: record.DisplayName,
			AvatarURL:   record.AvatarURL,
			Role:        role,
			Favorites:   []string{},
		}
		if err := s.principals.Create(ctx, principal); err != nil {
			return nil, fmt.Errorf("create principal: %w", err)
		}
		result.Principal = principal
		result.Created = true
		result.Changed = true
	default:
		return nil, fmt.Errorf("principal %s: %w", email, auth.ErrNotFound)
	}

	if req.SyncClaims {
		if err := s.directory.SetCustomClaims(ctx, result.Principal.ExternalID, identity.RoleClaims(role)); err != nil {
			return result, fmt.Errorf("sync custom claims: %w", err)
		}
		result.ClaimsSynced = true
	}

	if result.Changed {
		s.metrics.RecordRoleChange(role.String())
	}
	s.logger.Info("principal promoted",
		"principal_id", result.Principal.ID,
		"role", role,
		"created", result.Created,
		"claims_synced", result.ClaimsSynced,
	)
	return result, nil
}

// findForPromotion prefers the provider subject and falls back to email.
func (s *iamService) findForPromotion(ctx context.Context, email string, record *identity.IdentityRecord) (*models.Principal, error) {
	if record != nil {
		found, err := s.principals.FindByExternalID(ctx, record.ExternalID)
		if err == nil || !errors.Is(err, repository.ErrPrincipalNotFound) {
			return found, err
		}
	}
	return s.principals.FindByEmail(ctx, email)
}
