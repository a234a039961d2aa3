package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
)

// ErrPrincipalNotFound is returned when the addressed principal does not exist.
// It matches auth.ErrNotFound with errors.Is.
var ErrPrincipalNotFound = fmt.Errorf("principal %w", auth.ErrNotFound)

// ProfileUpdate carries the self-service fields; nil fields are left unchanged.
type ProfileUpdate struct {
	DisplayName *string
	PhoneNumber *string
}

// PrincipalRepository exposes persistence operations for principals.
//
// Create fails with auth.ErrDuplicateIdentity when the external id or email is
// already bound. Save writes the whole record (last writer wins); the
// field-scoped methods only touch their own columns so disjoint concurrent
// updates do not overwrite each other.
type PrincipalRepository interface {
	Create(ctx context.Context, principal *models.Principal) error
	FindByID(ctx context.Context, id string) (*models.Principal, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Principal, error)
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	Save(ctx context.Context, principal *models.Principal) error
	ListAll(ctx context.Context) ([]models.Principal, error)
	ListByRole(ctx context.Context, role auth.Role) ([]models.Principal, error)

	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetRole(ctx context.Context, id string, role auth.Role) (*models.Principal, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*models.Principal, error)

	// AddFavorite fails with auth.ErrAlreadyFavorited when listingID is present.
	AddFavorite(ctx context.Context, id, listingID string) ([]string, error)
	// RemoveFavorite succeeds whether or not listingID is present.
	RemoveFavorite(ctx context.Context, id, listingID string) ([]string, error)

	Ping(ctx context.Context) error
}

// prepareNew fills the generated fields of a principal about to be inserted.
func prepareNew(p *models.Principal, newID func() string) {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = newID()
	}
	if p.Role == "" {
		p.Role = auth.RoleUser
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Favorites == nil {
		p.Favorites = []string{}
	}
}
