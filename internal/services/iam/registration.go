package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/identity"
	"github.com/terraconstructs/estate/internal/repository"
	"github.com/terraconstructs/estate/internal/telemetry"
)

// Register provisions a principal for the verified identity.
func (s *iamService) Register(ctx context.Context, authorizationHeader string, body RegisterBody) (*models.Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Register")
	defer span.End()

	principal, err := s.register(ctx, authorizationHeader, body)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordRegistration(authResult(err))
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrPrincipalID, principal.ID))
	s.metrics.RecordRegistration(telemetry.ResultSuccess)
	s.logger.Info("principal registered", "principal_id", principal.ID, "external_id", principal.ExternalID)
	return principal, nil
}

func (s *iamService) register(ctx context.Context, authorizationHeader string, body RegisterBody) (*models.Principal, error) {
	if s.devBypass {
		return nil, fmt.Errorf("%w: registration is unavailable under the development bypass", auth.ErrInvalidRequest)
	}

	claims, err := s.verify(ctx, authorizationHeader)
	if err != nil {
		return nil, err
	}

	var req RegisterRequest
	if body != nil {
		if err := body(&req); err != nil {
			return nil, err
		}
	}
	if err := s.validate.Struct(fallbackFields(claims, req)); err != nil {
		return nil, validationError(err)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	_, err = s.principals.FindByExternalID(storeCtx, claims.Subject)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: subject %s", auth.ErrAlreadyRegistered, claims.Subject)
	case !errors.Is(err, repository.ErrPrincipalNotFound):
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	principal := newPrincipalFromClaims(claims, req)
	if principal.Email == "" {
		return nil, fmt.Errorf("%w: email is required", auth.ErrInvalidRequest)
	}

	if err := s.principals.Create(storeCtx, principal); err != nil {
		if errors.Is(err, auth.ErrDuplicateIdentity) {
			return nil, fmt.Errorf("%w: %v", auth.ErrAlreadyRegistered, err)
		}
		return nil, fmt.Errorf("create principal: %w", err)
	}
	return principal, nil
}

// fallbackFields keeps only the body fields that newPrincipalFromClaims will
// read, so a body value shadowed by a claim is never validated.
func fallbackFields(claims *identity.Claims, req RegisterRequest) RegisterRequest {
	if firstNonEmpty(claims.Email) != "" {
		req.Email = ""
	}
	if firstNonEmpty(claims.Name) != "" {
		req.DisplayName = ""
	}
	if firstNonEmpty(claims.Picture) != "" {
		req.AvatarURL = ""
	}
	return req
}

// newPrincipalFromClaims prefers verified claims over the request body.
// The role is always user.
func newPrincipalFromClaims(claims *identity.Claims, req RegisterRequest) *models.Principal {
	return &models.Principal{
		ExternalID:  claims.Subject,
		Email:       normalizeEmail(firstNonEmpty(claims.Email, req.Email)),
		DisplayName: firstNonEmpty(claims.Name, req.DisplayName),
		AvatarURL:   firstNonEmpty(claims.Picture, req.AvatarURL),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Role:        auth.RoleUser,
		Favorites:   []string{},
	}
}

// SetRole assigns role to the target principal.
func (s *iamService) SetRole(ctx context.Context, caller *auth.Principal, targetID, role string) (*models.Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.SetRole",
		attribute.String(telemetry.AttrPrincipalID, targetID),
	)
	defer span.End()

	if err := auth.Authorize(caller, s.policy.RolesFor(auth.ObjectUsers, auth.ActionSetRole)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	newRole, err := auth.ParseRole(role)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	updated, err := s.principals.SetRole(storeCtx, targetID, newRole)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("set role: %w", err)
	}

	s.metrics.RecordRoleChange(newRole.String())
	s.logger.Info("role changed",
		"principal_id", updated.ID,
		"role", newRole,
		"changed_by", caller.ID,
	)
	return updated, nil
}
