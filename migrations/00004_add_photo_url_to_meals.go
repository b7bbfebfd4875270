package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddPhotoURLToMeals, downAddPhotoURLToMeals)
}

func upAddPhotoURLToMeals(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE meals ADD COLUMN photo_url TEXT;`)
	return err
}

func downAddPhotoURLToMeals(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE meals DROP COLUMN IF EXISTS photo_url;`)
	return err
}
