package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/db/models"
)

// PrincipalsCollection is the MongoDB collection holding principal documents.
const PrincipalsCollection = "principals"

// principalDocument is the stored shape of a principal. Favorites are embedded
// and mutated with $addToSet / $pull.
type principalDocument struct {
	ID          string     `bson:"_id"`
	ExternalID  string     `bson:"externalId"`
	Email       string     `bson:"email"`
	DisplayName string     `bson:"displayName,omitempty"`
	AvatarURL   string     `bson:"avatarUrl,omitempty"`
	Role        string     `bson:"role"`
	PhoneNumber string     `bson:"phoneNumber,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
	LastLoginAt *time.Time `bson:"lastLoginAt,omitempty"`
	Favorites   []string   `bson:"favorites"`
}

func toDocument(p *models.Principal) principalDocument {
	favorites := p.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	return principalDocument{
		ID:          p.ID,
		ExternalID:  p.ExternalID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Role:        string(p.Role),
		PhoneNumber: p.PhoneNumber,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		LastLoginAt: p.LastLoginAt,
		Favorites:   favorites,
	}
}

func (d *principalDocument) toModel() *models.Principal {
	favorites := d.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	return &models.Principal{
		ID:          d.ID,
		ExternalID:  d.ExternalID,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		AvatarURL:   d.AvatarURL,
		Role:        auth.Role(d.Role),
		PhoneNumber: d.PhoneNumber,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		LastLoginAt: d.LastLoginAt,
		Favorites:   favorites,
	}
}

// MongoPrincipalRepository implements PrincipalRepository on a MongoDB collection.
type MongoPrincipalRepository struct {
	coll *mongo.Collection
}

// NewMongoPrincipalRepository creates a repository over db's principals collection.
func NewMongoPrincipalRepository(db *mongo.Database) *MongoPrincipalRepository {
	return &MongoPrincipalRepository{coll: db.Collection(PrincipalsCollection)}
}

// EnsureIndexes creates the unique identity indexes and the role index.
func (r *MongoPrincipalRepository) EnsureIndexes(ctx context.Context) ([]string, error) {
	names, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "externalId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_external_id"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_role"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create principal indexes: %w", err)
	}
	return names, nil
}

// Create inserts a new principal document.
func (r *MongoPrincipalRepository) Create(ctx context.Context, principal *models.Principal) error {
	prepareNew(principal, bunx.NewUUIDv7)

	doc := toDocument(principal)
	doc.Favorites = dedupe(doc.Favorites)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("create principal: %w", auth.ErrDuplicateIdentity)
		}
		return fmt.Errorf("create principal: %w", err)
	}
	principal.Favorites = doc.Favorites
	return nil
}

// FindByID retrieves a principal by its ID
func (r *MongoPrincipalRepository) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "id")
}

// FindByExternalID retrieves a principal by its identity provider subject
func (r *MongoPrincipalRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Principal, error) {
	return r.findOne(ctx, bson.M{"externalId": externalID}, "external id")
}

// FindByEmail retrieves a principal by its email
func (r *MongoPrincipalRepository) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	return r.findOne(ctx, bson.M{"email": email}, "email")
}

func (r *MongoPrincipalRepository) findOne(ctx context.Context, filter bson.M, by string) (*models.Principal, error) {
	var doc principalDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("get principal by %s: %w", by, err)
	}
	return doc.toModel(), nil
}

// Save replaces the stored document. Whole-record last writer wins.
func (r *MongoPrincipalRepository) Save(ctx context.Context, principal *models.Principal) error {
	principal.UpdatedAt = time.Now().UTC()
	doc := toDocument(principal)
	doc.Favorites = dedupe(doc.Favorites)

	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": principal.ID}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("save principal: %w", auth.ErrDuplicateIdentity)
		}
		return fmt.Errorf("save principal: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

// ListAll returns every principal, newest first.
func (r *MongoPrincipalRepository) ListAll(ctx context.Context) ([]models.Principal, error) {
	return r.list(ctx, bson.M{})
}

// ListByRole returns the principals holding role, newest first.
func (r *MongoPrincipalRepository) ListByRole(ctx context.Context, role auth.Role) ([]models.Principal, error) {
	return r.list(ctx, bson.M{"role": string(role)})
}

func (r *MongoPrincipalRepository) list(ctx context.Context, filter bson.M) ([]models.Principal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}

	var docs []principalDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode principals: %w", err)
	}

	principals := make([]models.Principal, len(docs))
	for i := range docs {
		principals[i] = *docs[i].toModel()
	}
	return principals, nil
}

// TouchLastLogin sets only lastLoginAt and updatedAt.
func (r *MongoPrincipalRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"lastLoginAt": at, "updatedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

// SetRole sets only the role and returns the updated record.
func (r *MongoPrincipalRepository) SetRole(ctx context.Context, id string, role auth.Role) (*models.Principal, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("set role: %w: %q", auth.ErrInvalidRole, role)
	}
	return r.updateAndReturn(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"role": string(role), "updatedAt": time.Now().UTC()},
	}, "set role")
}

// UpdateProfile sets the provided self-service fields and returns the updated record.
func (r *MongoPrincipalRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*models.Principal, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.DisplayName != nil {
		set["displayName"] = *update.DisplayName
	}
	if update.PhoneNumber != nil {
		set["phoneNumber"] = *update.PhoneNumber
	}
	return r.updateAndReturn(ctx, bson.M{"_id": id}, bson.M{"$set": set}, "update profile")
}

// AddFavorite adds listingID with a conditional $addToSet. The filter only
// matches documents that do not hold the listing yet, so a miss is either an
// unknown principal or an existing favorite.
func (r *MongoPrincipalRepository) AddFavorite(ctx context.Context, id, listingID string) ([]string, error) {
	updated, err := r.updateAndReturn(ctx,
		bson.M{"_id": id, "favorites": bson.M{"$ne": listingID}},
		bson.M{
			"$addToSet": bson.M{"favorites": listingID},
			"$set":      bson.M{"updatedAt": time.Now().UTC()},
		},
		"add favorite",
	)
	if err == nil {
		return updated.Favorites, nil
	}
	if !errors.Is(err, ErrPrincipalNotFound) {
		return nil, err
	}

	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, fmt.Errorf("add favorite %s: %w", listingID, auth.ErrAlreadyFavorited)
}

// RemoveFavorite removes listingID with $pull; absent ids are a no-op.
func (r *MongoPrincipalRepository) RemoveFavorite(ctx context.Context, id, listingID string) ([]string, error) {
	updated, err := r.updateAndReturn(ctx,
		bson.M{"_id": id},
		bson.M{
			"$pull": bson.M{"favorites": listingID},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
		"remove favorite",
	)
	if err != nil {
		return nil, err
	}
	return updated.Favorites, nil
}

// Ping verifies the deployment answers.
func (r *MongoPrincipalRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *MongoPrincipalRepository) updateAndReturn(ctx context.Context, filter, update bson.M, op string) (*models.Principal, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc principalDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc.toModel(), nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
