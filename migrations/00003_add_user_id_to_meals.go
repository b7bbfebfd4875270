package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddUserIDToMeals, downAddUserIDToMeals)
}

func upAddUserIDToMeals(ctx context.Context, tx *sql.Tx) error {
	query := `
		ALTER TABLE meals
			ADD COLUMN user_id UUID NOT NULL
			REFERENCES users(id) ON DELETE CASCADE ON UPDATE CASCADE;
		CREATE INDEX idx_meals_user_id_date ON meals (user_id, date DESC);
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downAddUserIDToMeals(ctx context.Context, tx *sql.Tx) error {
	query := `
		DROP INDEX IF EXISTS idx_meals_user_id_date;
		ALTER TABLE meals DROP COLUMN IF EXISTS user_id;
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}
