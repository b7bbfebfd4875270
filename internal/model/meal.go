package model

import (
	"time"

	"github.com/google/uuid"
)

type Meal struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Date        string    `db:"date" json:"date"`
	Time        string    `db:"time" json:"time"`
	IsOnDiet    bool      `db:"is_on_diet" json:"is_on_diet"`
	PhotoURL    *string   `db:"photo_url" json:"photo_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// MealPatch holds the fields of a sparse meal update. Nil fields are left untouched.
type MealPatch struct {
	Name        *string
	Description *string
	Date        *string
	Time        *string
	IsOnDiet    *bool
	PhotoURL    *string
}

func (p MealPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Date == nil &&
		p.Time == nil && p.IsOnDiet == nil && p.PhotoURL == nil
}

type MealSummary struct {
	TotalOfMeals int `db:"total_of_meals"`
	TotalInDiet  int `db:"total_in_diet"`
	TotalOffDiet int `db:"total_off_diet"`
	// BestDietSequence is the highest number of on-diet meals recorded on a single
	// day. Nil when the user has no on-diet meals at all.
	BestDietSequence *int
}
