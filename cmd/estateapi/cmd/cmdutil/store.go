package cmdutil

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/terraconstructs/estate/internal/config"
	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/db/mongox"
	"github.com/terraconstructs/estate/internal/migrations"
	"github.com/terraconstructs/estate/internal/repository"
)

// Store is an open principal store and the connection behind it.
// Exactly one of SQL and Mongo is set.
type Store struct {
	Principals repository.PrincipalRepository
	SQL        *bun.DB
	Mongo      *mongo.Client
	mongoRepo  *repository.MongoPrincipalRepository
}

// indexTimeout bounds the idempotent index creation done when a Mongo store opens.
const indexTimeout = 10 * time.Second

// OpenStore connects to the configured database driver. A Mongo store is
// returned only once its unique identity indexes exist.
func OpenStore(cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, err := mongox.NewClient(cfg.URL, cfg.MaxConnections)
		if err != nil {
			return nil, err
		}
		repo := repository.NewMongoPrincipalRepository(client.Database(cfg.Name))

		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()
		if _, err := repo.EnsureIndexes(ctx); err != nil {
			_ = mongox.Close(client)
			return nil, err
		}
		return &Store{Principals: repository.WithTracing(repo, "mongodb"), Mongo: client, mongoRepo: repo}, nil
	default:
		db, err := bunx.NewDB(cfg.URL, cfg.MaxConnections)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := repository.NewBunPrincipalRepository(db)
		return &Store{Principals: repository.WithTracing(repo, string(bunx.BackendFor(cfg.URL))), SQL: db}, nil
	}
}

// Migrate brings the schema up to date: SQL migrations under the migration
// lock, or the unique indexes on MongoDB.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	if s.mongoRepo != nil {
		names, err := s.mongoRepo.EnsureIndexes(ctx)
		if err != nil {
			return err
		}
		logger.Info("mongodb indexes ensured", "indexes", names)
		return nil
	}

	group, err := migrations.Apply(ctx, s.SQL)
	if err != nil {
		return err
	}
	if group.ID == 0 {
		logger.Info("no new migrations to apply")
	} else {
		logger.Info("applied migration group", "group", group.ID, "migrations", len(group.Migrations))
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() {
	if s == nil {
		return
	}
	if s.SQL != nil {
		_ = bunx.Close(s.SQL)
	}
	if s.Mongo != nil {
		_ = mongox.Close(s.Mongo)
	}
}
