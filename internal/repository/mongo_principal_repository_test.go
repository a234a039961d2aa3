package repository

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/db/mongox"
)

// setupMongoRepo connects to ESTATE_TEST_MONGODB_URI and gives each test its own database.
func setupMongoRepo(t *testing.T) PrincipalRepository {
	t.Helper()

	uri := os.Getenv("ESTATE_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("ESTATE_TEST_MONGODB_URI not set")
	}

	client, err := mongox.NewClient(uri, 4)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	dbName := "estate_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	db := client.Database(dbName)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = mongox.Close(client)
	})

	repo := NewMongoPrincipalRepository(db)
	_, err = repo.EnsureIndexes(context.Background())
	require.NoError(t, err)
	return repo
}

func TestMongoPrincipalRepository(t *testing.T) {
	if os.Getenv("ESTATE_TEST_MONGODB_URI") == "" {
		t.Skip("ESTATE_TEST_MONGODB_URI not set")
	}
	runPrincipalRepositoryContract(t, setupMongoRepo)
}

func TestDedupe(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "b", "a"}))
	require.Equal(t, []string{}, dedupe(nil))
}
