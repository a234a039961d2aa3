package repository

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/telemetry"
)

// TracedPrincipalRepository records a span around every store call.
type TracedPrincipalRepository struct {
	next    PrincipalRepository
	backend string
}

// WithTracing wraps next. backend names the engine in the db.system attribute.
func WithTracing(next PrincipalRepository, backend string) *TracedPrincipalRepository {
	return &TracedPrincipalRepository{next: next, backend: backend}
}

func (r *TracedPrincipalRepository) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", r.backend))
	return telemetry.StartSpan(ctx, telemetry.TracerRepository, "principals."+op, attrs...)
}

// finish ends span. Lookup misses are expected outcomes and are not errors.
func finish(span trace.Span, err error) {
	if errors.Is(err, ErrPrincipalNotFound) {
		span.SetAttributes(attribute.Bool("db.not_found", true))
	} else {
		telemetry.RecordError(span, err)
	}
	span.End()
}

func (r *TracedPrincipalRepository) Create(ctx context.Context, principal *models.Principal) (err error) {
	ctx, span := r.start(ctx, "Create", attribute.String(telemetry.AttrExternalID, principal.ExternalID))
	defer func() { finish(span, err) }()
	return r.next.Create(ctx, principal)
}

func (r *TracedPrincipalRepository) FindByID(ctx context.Context, id string) (_ *models.Principal, err error) {
	ctx, span := r.start(ctx, "FindByID", attribute.String(telemetry.AttrPrincipalID, id))
	defer func() { finish(span, err) }()
	return r.next.FindByID(ctx, id)
}

func (r *TracedPrincipalRepository) FindByExternalID(ctx context.Context, externalID string) (_ *models.Principal, err error) {
	ctx, span := r.start(ctx, "FindByExternalID", attribute.String(telemetry.AttrExternalID, externalID))
	defer func() { finish(span, err) }()
	return r.next.FindByExternalID(ctx, externalID)
}

func (r *TracedPrincipalRepository) FindByEmail(ctx context.Context, email string) (_ *models.Principal, err error) {
	ctx, span := r.start(ctx, "FindByEmail")
	defer func() { finish(span, err) }()
	return r.next.FindByEmail(ctx, email)
}

func (r *TracedPrincipalRepository) Save(ctx context.Context, principal *models.Principal) (err error) {
	ctx, span := r.start(ctx, "Save", attribute.String(telemetry.AttrPrincipalID, principal.ID))
	defer func() { finish(span, err) }()
	return r.next.Save(ctx, principal)
}

func (r *TracedPrincipalRepository) ListAll(ctx context.Context) (_ []models.Principal, err error) {
	ctx, span := r.start(ctx, "ListAll")
	defer func() { finish(span, err) }()
	return r.next.ListAll(ctx)
}

func (r *TracedPrincipalRepository) ListByRole(ctx context.Context, role auth.Role) (_ []models.Principal, err error) {
	ctx, span := r.start(ctx, "ListByRole", attribute.String(telemetry.AttrPrincipalRole, role.String()))
	defer func() { finish(span, err) }()
	return r.next.ListByRole(ctx, role)
}

func (r *TracedPrincipalRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) (err error) {
	ctx, span := r.start(ctx, "TouchLastLogin", attribute.String(telemetry.AttrPrincipalID, id))
	defer func() { finish(span, err) }()
	return r.next.TouchLastLogin(ctx, id, at)
}

func (r *TracedPrincipalRepository) SetRole(ctx context.Context, id string, role auth.Role) (_ *models.Principal, err error) {
	ctx, span := r.start(ctx, "SetRole",
		attribute.String(telemetry.AttrPrincipalID, id),
		attribute.String(telemetry.AttrPrincipalRole, role.String()),
	)
	defer func() { finish(span, err) }()
	return r.next.SetRole(ctx, id, role)
}

func (r *TracedPrincipalRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (_ *models.Principal, err error) {
	ctx, span := r.start(ctx, "UpdateProfile", attribute.String(telemetry.AttrPrincipalID, id))
	defer func() { finish(span, err) }()
	return r.next.UpdateProfile(ctx, id, update)
}

func (r *TracedPrincipalRepository) AddFavorite(ctx context.Context, id, listingID string) (_ []string, err error) {
	ctx, span := r.start(ctx, "AddFavorite",
		attribute.String(telemetry.AttrPrincipalID, id),
		attribute.String(telemetry.AttrListingID, listingID),
	)
	defer func() { finish(span, err) }()
	return r.next.AddFavorite(ctx, id, listingID)
}

func (r *TracedPrincipalRepository) RemoveFavorite(ctx context.Context, id, listingID string) (_ []string, err error) {
	ctx, span := r.start(ctx, "RemoveFavorite",
		attribute.String(telemetry.AttrPrincipalID, id),
		attribute.String(telemetry.AttrListingID, listingID),
	)
	defer func() { finish(span, err) }()
	return r.next.RemoveFavorite(ctx, id, listingID)
}

func (r *TracedPrincipalRepository) Ping(ctx context.Context) (err error) {
	ctx, span := r.start(ctx, "Ping")
	defer func() { finish(span, err) }()
	return r.next.Ping(ctx)
}
