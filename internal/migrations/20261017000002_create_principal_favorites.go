package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261017000002, down_20261017000002)
}

// up_20261017000002 stores favorites as rows so add and remove are single statements.
func up_20261017000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating principal_favorites table...")
	_, err := db.NewCreateTable().
		Model((*models.PrincipalFavorite)(nil)).
		IfNotExists().
		ForeignKey(`("principal_id") REFERENCES "principals" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create principal_favorites table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

func down_20261017000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping principal_favorites table...")
	_, err := db.NewDropTable().
		Model((*models.PrincipalFavorite)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop principal_favorites table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
