package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/identity"
	"github.com/terraconstructs/estate/internal/repository"
	"github.com/terraconstructs/estate/internal/telemetry"
)

// Authenticate resolves an Authorization header value to a principal.
func (s *iamService) Authenticate(ctx context.Context, authorizationHeader string) (*auth.Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Authenticate")
	defer span.End()

	if s.devBypass {
		principal := identity.DevPrincipal
		now := s.now().UTC()
		principal.LastLoginAt = &now
		s.metrics.RecordAuthentication(telemetry.ResultSuccess)
		return &principal, nil
	}

	principal, err := s.authenticate(ctx, authorizationHeader)
	result := authResult(err)
	s.metrics.RecordAuthentication(result)
	span.SetAttributes(attribute.String(telemetry.AttrAuthResult, result))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrPrincipalID, principal.ID),
		attribute.String(telemetry.AttrPrincipalRole, principal.Role.String()),
	)
	return principal, nil
}

func (s *iamService) authenticate(ctx context.Context, authorizationHeader string) (*auth.Principal, error) {
	claims, err := s.verify(ctx, authorizationHeader)
	if err != nil {
		return nil, err
	}

	lookupCtx, cancel := s.storeContext(ctx)
	record, err := s.principals.FindByExternalID(lookupCtx, claims.Subject)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return nil, fmt.Errorf("%w: subject %s", auth.ErrNotRegistered, claims.Subject)
		}
		return nil, fmt.Errorf("%w: lookup principal: %v", auth.ErrUpstreamUnavailable, err)
	}

	now := s.now().UTC()
	touchCtx, cancel := s.storeContext(ctx)
	if err := s.principals.TouchLastLogin(touchCtx, record.ID, now); err != nil {
		s.metrics.RecordLastLoginFailure()
		s.logger.Warn("failed to record last login", "principal_id", record.ID, "error", err)
	} else {
		record.LastLoginAt = &now
	}
	cancel()

	principal := record.Snapshot()
	return &principal, nil
}

// verify extracts the bearer token and asks the identity provider about it.
func (s *iamService) verify(ctx context.Context, authorizationHeader string) (*identity.Claims, error) {
	token, err := identity.ExtractBearer(authorizationHeader)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	claims, err := s.verifier.Verify(ctx, token)
	s.metrics.ObserveVerify(time.Since(start))
	if err != nil {
		return nil, identity.Classify(err)
	}
	return claims, nil
}

func authResult(err error) string {
	switch {
	case err == nil:
		return telemetry.ResultSuccess
	case errors.Is(err, auth.ErrNoToken):
		return telemetry.ResultNoToken
	case errors.Is(err, auth.ErrInvalidToken):
		return telemetry.ResultInvalidToken
	case errors.Is(err, auth.ErrNotRegistered):
		return telemetry.ResultNotRegistered
	case errors.Is(err, auth.ErrUpstreamUnavailable):
		return telemetry.ResultUpstream
	default:
		return telemetry.ResultError
	}
}
