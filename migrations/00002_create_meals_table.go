package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateMealsTable, downCreateMealsTable)
}

func upCreateMealsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE meals (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			is_on_diet BOOLEAN NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
	`

	_, err := tx.ExecContext(ctx, query)

	if err != nil {
		return err
	}

	return nil
}

func downCreateMealsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS meals;`
	_, err := tx.ExecContext(ctx, query)

	if err != nil {
		return err
	}

	return nil
}
