package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/db/models"
)

// BunPrincipalRepository implements PrincipalRepository using Bun ORM.
// Favorites live in principal_favorites, one row per member.
type BunPrincipalRepository struct {
	db *bun.DB
}

// NewBunPrincipalRepository creates a new Bun-based principal repository
func NewBunPrincipalRepository(db *bun.DB) *BunPrincipalRepository {
	return &BunPrincipalRepository{db: db}
}

// Create inserts a new principal and its initial favorites in one transaction.
func (r *BunPrincipalRepository) Create(ctx context.Context, principal *models.Principal) error {
	prepareNew(principal, bunx.NewUUIDv7)
	principal.Favorites = dedupe(principal.Favorites)

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(principal).Exec(ctx); err != nil {
			return err
		}
		return insertFavorites(ctx, tx, principal.ID, principal.Favorites)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create principal: %w", auth.ErrDuplicateIdentity)
		}
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

// FindByID retrieves a principal by its ID
func (r *BunPrincipalRepository) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	return r.findOne(ctx, "id", id)
}

// FindByExternalID retrieves a principal by its identity provider subject
func (r *BunPrincipalRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Principal, error) {
	return r.findOne(ctx, "external_id", externalID)
}

// FindByEmail retrieves a principal by its email
func (r *BunPrincipalRepository) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	return r.findOne(ctx, "email", email)
}

func (r *BunPrincipalRepository) findOne(ctx context.Context, column, value string) (*models.Principal, error) {
	principal := new(models.Principal)
	err := r.db.NewSelect().
		Model(principal).
		Where("? = ?", bun.Ident(column), value).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("get principal by %s: %w", column, err)
	}

	favorites, err := r.listFavorites(ctx, r.db, principal.ID)
	if err != nil {
		return nil, err
	}
	principal.Favorites = favorites
	return principal, nil
}

// Save replaces the stored record, favorites included. Whole-record last writer wins.
func (r *BunPrincipalRepository) Save(ctx context.Context, principal *models.Principal) error {
	principal.UpdatedAt = time.Now().UTC()
	principal.Favorites = dedupe(principal.Favorites)

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model(principal).
			ExcludeColumn("id", "created_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if err := requireRow(result); err != nil {
			return err
		}

		if _, err := tx.NewDelete().
			Model((*models.PrincipalFavorite)(nil)).
			Where("principal_id = ?", principal.ID).
			Exec(ctx); err != nil {
			return err
		}
		return insertFavorites(ctx, tx, principal.ID, principal.Favorites)
	})
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return err
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("save principal: %w", auth.ErrDuplicateIdentity)
		}
		return fmt.Errorf("save principal: %w", err)
	}
	return nil
}

// ListAll returns every principal, newest first.
func (r *BunPrincipalRepository) ListAll(ctx context.Context) ([]models.Principal, error) {
	return r.list(ctx, nil)
}

// ListByRole returns the principals holding role, newest first.
func (r *BunPrincipalRepository) ListByRole(ctx context.Context, role auth.Role) ([]models.Principal, error) {
	return r.list(ctx, &role)
}

func (r *BunPrincipalRepository) list(ctx context.Context, role *auth.Role) ([]models.Principal, error) {
	var principals []models.Principal
	q := r.db.NewSelect().
		Model(&principals).
		Order("created_at DESC", "id DESC")
	if role != nil {
		q = q.Where("role = ?", *role)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	if len(principals) == 0 {
		return principals, nil
	}

	ids := make([]string, len(principals))
	for i := range principals {
		ids[i] = principals[i].ID
		principals[i].Favorites = []string{}
	}

	var favorites []models.PrincipalFavorite
	err := r.db.NewSelect().
		Model(&favorites).
		Where("principal_id IN (?)", bun.In(ids)).
		Order("created_at ASC", "listing_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}

	byPrincipal := make(map[string][]string, len(principals))
	for _, f := range favorites {
		byPrincipal[f.PrincipalID] = append(byPrincipal[f.PrincipalID], f.ListingID)
	}
	for i := range principals {
		if favs, ok := byPrincipal[principals[i].ID]; ok {
			principals[i].Favorites = favs
		}
	}
	return principals, nil
}

// TouchLastLogin updates only last_login_at and updated_at.
func (r *BunPrincipalRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*models.Principal)(nil)).
		Set("last_login_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return requireRow(result)
}

// SetRole updates only the role column and returns the updated record.
func (r *BunPrincipalRepository) SetRole(ctx context.Context, id string, role auth.Role) (*models.Principal, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("set role: %w: %q", auth.ErrInvalidRole, role)
	}
	result, err := r.db.NewUpdate().
		Model((*models.Principal)(nil)).
		Set("role = ?", role).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	if err := requireRow(result); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// UpdateProfile sets the provided self-service fields and returns the updated record.
func (r *BunPrincipalRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*models.Principal, error) {
	q := r.db.NewUpdate().
		Model((*models.Principal)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)
	if update.DisplayName != nil {
		q = q.Set("display_name = ?", *update.DisplayName)
	}
	if update.PhoneNumber != nil {
		q = q.Set("phone_number = ?", *update.PhoneNumber)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if err := requireRow(result); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// AddFavorite inserts a favorites row. The composite key rejects a second
// insert of the same listing, so concurrent adds cannot duplicate it.
func (r *BunPrincipalRepository) AddFavorite(ctx context.Context, id, listingID string) ([]string, error) {
	if err := r.requirePrincipal(ctx, id); err != nil {
		return nil, err
	}

	result, err := r.db.NewInsert().
		Model(&models.PrincipalFavorite{PrincipalID: id, ListingID: listingID, CreatedAt: time.Now().UTC()}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("add favorite: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("add favorite %s: %w", listingID, auth.ErrAlreadyFavorited)
	}

	return r.listFavorites(ctx, r.db, id)
}

// RemoveFavorite deletes the favorites row if present.
func (r *BunPrincipalRepository) RemoveFavorite(ctx context.Context, id, listingID string) ([]string, error) {
	if err := r.requirePrincipal(ctx, id); err != nil {
		return nil, err
	}

	_, err := r.db.NewDelete().
		Model((*models.PrincipalFavorite)(nil)).
		Where("principal_id = ?", id).
		Where("listing_id = ?", listingID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("remove favorite: %w", err)
	}

	return r.listFavorites(ctx, r.db, id)
}

// Ping verifies database connectivity.
func (r *BunPrincipalRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *BunPrincipalRepository) requirePrincipal(ctx context.Context, id string) error {
	exists, err := r.db.NewSelect().
		Model((*models.Principal)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check principal: %w", err)
	}
	if !exists {
		return ErrPrincipalNotFound
	}
	return nil
}

func (r *BunPrincipalRepository) listFavorites(ctx context.Context, db bun.IDB, id string) ([]string, error) {
	favorites := []string{}
	err := db.NewSelect().
		Model((*models.PrincipalFavorite)(nil)).
		Column("listing_id").
		Where("principal_id = ?", id).
		Order("created_at ASC", "listing_id ASC").
		Scan(ctx, &favorites)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favorites, nil
}

func insertFavorites(ctx context.Context, db bun.IDB, id string, listingIDs []string) error {
	if len(listingIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]models.PrincipalFavorite, len(listingIDs))
	for i, listingID := range listingIDs {
		rows[i] = models.PrincipalFavorite{PrincipalID: id, ListingID: listingID, CreatedAt: now}
	}
	_, err := db.NewInsert().Model(&rows).Exec(ctx)
	return err
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}
