package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"diet-service/internal/model"
)

// MemoryStore keeps users and meals in process memory. It mirrors the Postgres
// repositories closely enough to stand in for them in tests: unknown users come
// back as sql.ErrNoRows, duplicate emails and dangling user ids fail with the same
// SQLSTATE codes the database would raise.
type MemoryStore struct {
	mu    sync.RWMutex
	users []model.User
	meals map[uuid.UUID]model.Meal

	// Now stamps created_at and updated_at. Tests override it to spread meals over days.
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		meals: make(map[uuid.UUID]model.Meal),
		Now:   time.Now,
	}
}

func (s *MemoryStore) Users() UserRepository { return memoryUserRepository{s} }

func (s *MemoryStore) Meals() MealRepository { return memoryMealRepository{s} }

type memoryUserRepository struct{ s *MemoryStore }

func (r memoryUserRepository) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"users_email_key\""}
		}
	}

	stored := *user
	stored.CreatedAt = r.s.Now()
	r.s.users = append(r.s.users, stored)
	return nil
}

func (r memoryUserRepository) FindAll(_ context.Context) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]model.User, len(r.s.users))
	copy(users, r.s.users)
	return users, nil
}

func (r memoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

func (r memoryUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r memoryUserRepository) FindBySessionID(_ context.Context, sessionID uuid.UUID) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.SessionID == sessionID })
}

func (r memoryUserRepository) find(match func(model.User) bool) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memoryMealRepository struct{ s *MemoryStore }

func (r memoryMealRepository) Create(_ context.Context, meal *model.Meal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	owned := false
	for _, u := range r.s.users {
		if u.ID == meal.UserID {
			owned = true
			break
		}
	}
	if !owned {
		return &pgconn.PgError{Code: "23503", Message: "insert or update on table \"meals\" violates foreign key constraint"}
	}

	stored := *meal
	stored.CreatedAt = r.s.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.s.meals[stored.ID] = stored
	return nil
}

func (r memoryMealRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Meal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	meal, ok := r.s.meals[id]
	if !ok {
		return nil, nil
	}
	return &meal, nil
}

func (r memoryMealRepository) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Meal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	meals := []model.Meal{}
	for _, m := range r.s.meals {
		if m.UserID == userID {
			meals = append(meals, m)
		}
	}
	sort.SliceStable(meals, func(i, j int) bool { return meals[i].Date > meals[j].Date })
	return meals, nil
}

func (r memoryMealRepository) Update(_ context.Context, id uuid.UUID, patch model.MealPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	meal, ok := r.s.meals[id]
	if !ok {
		return nil
	}

	if patch.Name != nil {
		meal.Name = *patch.Name
	}
	if patch.Description != nil {
		meal.Description = *patch.Description
	}
	if patch.Date != nil {
		meal.Date = *patch.Date
	}
	if patch.Time != nil {
		meal.Time = *patch.Time
	}
	if patch.IsOnDiet != nil {
		meal.IsOnDiet = *patch.IsOnDiet
	}
	if patch.PhotoURL != nil {
		photoURL := *patch.PhotoURL
		meal.PhotoURL = &photoURL
	}
	meal.UpdatedAt = r.s.Now()

	r.s.meals[id] = meal
	return nil
}

func (r memoryMealRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.meals, id)
	return nil
}

func (r memoryMealRepository) Summary(_ context.Context, userID uuid.UUID) (*model.MealSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var summary model.MealSummary
	perDay := map[string]int{}

	for _, m := range r.s.meals {
		if m.UserID != userID {
			continue
		}
		summary.TotalOfMeals++
		if !m.IsOnDiet {
			summary.TotalOffDiet++
			continue
		}
		summary.TotalInDiet++
		perDay[m.CreatedAt.Format("2006-01-02")]++
	}

	for _, count := range perDay {
		if summary.BestDietSequence == nil || count > *summary.BestDietSequence {
			best := count
			summary.BestDietSequence = &best
		}
	}

	return &summary, nil
}
