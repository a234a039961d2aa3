package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261017000001, down_20261017000001)
}

// up_20261017000001 creates the principals table with its identity constraints.
func up_20261017000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating principals table...")
	_, err := db.NewCreateTable().
		Model((*models.Principal)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create principals table: %w", err)
	}

	// Uniqueness lives in the engine so concurrent registrations cannot both win.
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_principals_external_id ON principals(external_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_principals_email ON principals(email)`,
		`CREATE INDEX IF NOT EXISTS idx_principals_role ON principals(role)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create principals index: %w", err)
		}
	}

	if IsPostgreSQL(db) {
		_, err = db.ExecContext(ctx, `
			ALTER TABLE principals
			ADD CONSTRAINT chk_principals_role CHECK (role IN ('user', 'admin', 'agent'))
		`)
		if err != nil {
			return fmt.Errorf("failed to add principals role check: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}

func down_20261017000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping principals table...")
	_, err := db.NewDropTable().
		Model((*models.Principal)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop principals table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
