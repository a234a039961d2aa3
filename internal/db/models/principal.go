package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/auth"
)

// Principal is the locally owned user record keyed by the identity provider subject.
type Principal struct {
	bun.BaseModel `bun:"table:principals,alias:p"`

	ID          string     `bun:"id,pk,type:varchar(36)"`
	ExternalID  string     `bun:"external_id,notnull,unique"`
	Email       string     `bun:"email,notnull,unique"`
	DisplayName string     `bun:"display_name"`
	AvatarURL   string     `bun:"avatar_url"`
	Role        auth.Role  `bun:"role,notnull,default:'user'"`
	PhoneNumber string     `bun:"phone_number"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastLoginAt *time.Time `bun:"last_login_at"`

	// Favorites is loaded from principal_favorites by the SQL store and
	// embedded in the document by the Mongo store.
	Favorites []string `bun:"-"`
}

// Snapshot returns the immutable context view of the principal.
func (p *Principal) Snapshot() auth.Principal {
	return auth.Principal{
		ID:          p.ID,
		ExternalID:  p.ExternalID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		LastLoginAt: p.LastLoginAt,
	}
}

// FilterFields exposes principal fields to list filter expressions.
func (p *Principal) FilterFields() map[string]any {
	return map[string]any{
		"id":          p.ID,
		"externalId":  p.ExternalID,
		"email":       p.Email,
		"displayName": p.DisplayName,
		"role":        string(p.Role),
		"phoneNumber": p.PhoneNumber,
		"favorites":   len(p.Favorites),
	}
}

// PrincipalFavorite is one member of a principal's favorites set.
// The composite primary key makes insertion of an existing member fail.
type PrincipalFavorite struct {
	bun.BaseModel `bun:"table:principal_favorites,alias:pf"`

	PrincipalID string    `bun:"principal_id,pk,type:varchar(36)"`
	ListingID   string    `bun:"listing_id,pk,type:varchar(128)"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
