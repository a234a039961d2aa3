package bunx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

// Backend is the SQL engine behind a principal store URL.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

const (
	defaultPoolSize = 25
	connectTimeout  = 5 * time.Second
)

var postgresSchemes = []string{"postgres://", "postgresql://", "unix://"}

// sqlitePragmas run on the single SQLite connection before first use.
var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
}

// BackendFor reports which engine a URL addresses. Anything that is not a
// PostgreSQL URL is treated as a SQLite path or file: URI.
func BackendFor(url string) Backend {
	for _, scheme := range postgresSchemes {
		if strings.HasPrefix(url, scheme) {
			return BackendPostgres
		}
	}
	return BackendSQLite
}

// NewDB opens the principal store database and verifies it answers.
// poolSize bounds PostgreSQL connections; SQLite is pinned to one connection
// so that in-memory databases survive across queries.
func NewDB(url string, poolSize int) (*bun.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	var (
		db  *bun.DB
		err error
	)
	switch backend := BackendFor(url); backend {
	case BackendPostgres:
		db = openPostgres(url, poolSize)
	case BackendSQLite:
		db, err = openSQLite(ctx, url)
	default:
		err = fmt.Errorf("unsupported backend %q", backend)
	}
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", BackendFor(url), err)
	}
	return db, nil
}

func openPostgres(url string, poolSize int) *bun.DB {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(url)))
	sqldb.SetMaxOpenConns(poolSize)
	sqldb.SetMaxIdleConns(poolSize)
	return bun.NewDB(sqldb, pgdialect.New())
}

func openSQLite(ctx context.Context, url string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", url)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Close is nil-safe.
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
