package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"diet-service/internal/model"
)

type MealRepository interface {
	Create(ctx context.Context, meal *model.Meal) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Meal, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Meal, error)
	Update(ctx context.Context, id uuid.UUID, patch model.MealPatch) error
	Delete(ctx context.Context, id uuid.UUID) error
	Summary(ctx context.Context, userID uuid.UUID) (*model.MealSummary, error)
}

type postgresMealRepository struct {
	db *sqlx.DB
}

func NewPostgresMealRepository(db *sqlx.DB) MealRepository {
	return &postgresMealRepository{db: db}
}

const mealColumns = `id, user_id, name, description, date, time, is_on_diet, photo_url, created_at, updated_at`

func (r *postgresMealRepository) Create(ctx context.Context, meal *model.Meal) error {
	query := `
		INSERT INTO meals (id, user_id, name, description, date, time, is_on_diet)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		meal.ID, meal.UserID, meal.Name, meal.Description, meal.Date, meal.Time, meal.IsOnDiet,
	)
	return err
}

func (r *postgresMealRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Meal, error) {
	var meal model.Meal
	query := `SELECT ` + mealColumns + ` FROM meals WHERE id = $1`
	err := r.db.GetContext(ctx, &meal, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &meal, nil
}

func (r *postgresMealRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Meal, error) {
	var meals []model.Meal
	query := `SELECT ` + mealColumns + ` FROM meals WHERE user_id = $1 ORDER BY date DESC`
	if err := r.db.SelectContext(ctx, &meals, query, userID); err != nil {
		return nil, err
	}

	if meals == nil {
		meals = []model.Meal{}
	}

	return meals, nil
}

func (r *postgresMealRepository) Update(ctx context.Context, id uuid.UUID, patch model.MealPatch) error {
	var setClauses []string
	var args []interface{}
	argId := 1

	set := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argId))
		args = append(args, value)
		argId++
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Date != nil {
		set("date", *patch.Date)
	}
	if patch.Time != nil {
		set("time", *patch.Time)
	}
	if patch.IsOnDiet != nil {
		set("is_on_diet", *patch.IsOnDiet)
	}
	if patch.PhotoURL != nil {
		set("photo_url", *patch.PhotoURL)
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, "updated_at = now()")
	query := fmt.Sprintf("UPDATE meals SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argId)
	args = append(args, id)

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *postgresMealRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM meals WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *postgresMealRepository) Summary(ctx context.Context, userID uuid.UUID) (*model.MealSummary, error) {
	var summary model.MealSummary
	totalsQuery := `
		SELECT
			COUNT(*) AS total_of_meals,
			COUNT(*) FILTER (WHERE is_on_diet) AS total_in_diet,
			COUNT(*) FILTER (WHERE NOT is_on_diet) AS total_off_diet
		FROM meals
		WHERE user_id = $1
	`
	if err := r.db.GetContext(ctx, &summary, totalsQuery, userID); err != nil {
		return nil, err
	}

	// Grouped by the day the row was recorded, not by the meal's own date column.
	var best int
	bestQuery := `
		SELECT COUNT(*) AS diet_sequence
		FROM meals
		WHERE user_id = $1 AND is_on_diet = true
		GROUP BY DATE(created_at)
		ORDER BY diet_sequence DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &best, bestQuery, userID)
	switch {
	case err == nil:
		summary.BestDietSequence = &best
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, err
	}

	return &summary, nil
}
