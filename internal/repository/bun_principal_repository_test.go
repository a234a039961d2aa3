package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/migrations"
)

// setupSQLiteRepo opens a private in-memory database and applies the migrations.
func setupSQLiteRepo(t *testing.T) PrincipalRepository {
	t.Helper()

	db, err := bunx.NewDB("file::memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { bunx.Close(db) })

	_, err = migrations.Apply(context.Background(), db)
	require.NoError(t, err)

	return NewBunPrincipalRepository(db)
}

func TestBunPrincipalRepository_SQLite(t *testing.T) {
	runPrincipalRepositoryContract(t, setupSQLiteRepo)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", errors.New("UNIQUE constraint failed: principals.email"))))
	assert.True(t, isUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_principals_email"`)))
}
