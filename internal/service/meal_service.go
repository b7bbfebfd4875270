package service

import (
	"context"

	"github.com/google/uuid"

	"diet-service/internal/events"
	"diet-service/internal/model"
	"diet-service/internal/repository"
)

type CreateMealDTO struct {
	Name        string
	Description string
	Date        string
	Time        string
	IsOnDiet    bool
}

type MealService interface {
	ListMeals(ctx context.Context, userID uuid.UUID) ([]model.Meal, error)
	GetMeal(ctx context.Context, mealID uuid.UUID) (*model.Meal, error)
	GetSummary(ctx context.Context, userID uuid.UUID) (*model.MealSummary, error)
	CreateMeal(ctx context.Context, userID uuid.UUID, dto CreateMealDTO) (*model.Meal, error)
	UpdateMeal(ctx context.Context, mealID uuid.UUID, patch model.MealPatch) error
	DeleteMeal(ctx context.Context, mealID uuid.UUID) error
}

type mealService struct {
	mealRepo  repository.MealRepository
	publisher events.EventPublisher
}

func NewMealService(mealRepo repository.MealRepository, publisher events.EventPublisher) MealService {
	return &mealService{mealRepo: mealRepo, publisher: publisher}
}

func (s *mealService) ListMeals(ctx context.Context, userID uuid.UUID) ([]model.Meal, error) {
	return s.mealRepo.ListByUserID(ctx, userID)
}

// GetMeal looks the meal up by id alone. Ownership is not checked here or in
// UpdateMeal/DeleteMeal: any session holder can reach any meal by id.
func (s *mealService) GetMeal(ctx context.Context, mealID uuid.UUID) (*model.Meal, error) {
	meal, err := s.mealRepo.FindByID(ctx, mealID)
	if err != nil {
		return nil, err
	}
	if meal == nil {
		return nil, ErrMealNotFound
	}
	return meal, nil
}

func (s *mealService) GetSummary(ctx context.Context, userID uuid.UUID) (*model.MealSummary, error) {
	return s.mealRepo.Summary(ctx, userID)
}

func (s *mealService) CreateMeal(ctx context.Context, userID uuid.UUID, dto CreateMealDTO) (*model.Meal, error) {
	meal := &model.Meal{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        dto.Name,
		Description: dto.Description,
		Date:        dto.Date,
		Time:        dto.Time,
		IsOnDiet:    dto.IsOnDiet,
	}

	if err := s.mealRepo.Create(ctx, meal); err != nil {
		// The owner was deleted between session resolution and the insert.
		if hasPgCode(err, pgForeignKeyViolation) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	go s.publisher.PublishMealCreated(meal)

	return meal, nil
}

func (s *mealService) UpdateMeal(ctx context.Context, mealID uuid.UUID, patch model.MealPatch) error {
	meal, err := s.GetMeal(ctx, mealID)
	if err != nil {
		return err
	}

	if err := s.mealRepo.Update(ctx, mealID, patch); err != nil {
		return err
	}

	if !patch.IsEmpty() {
		go s.publisher.PublishMealUpdated(meal.ID, meal.UserID)
	}

	return nil
}

func (s *mealService) DeleteMeal(ctx context.Context, mealID uuid.UUID) error {
	meal, err := s.GetMeal(ctx, mealID)
	if err != nil {
		return err
	}

	if err := s.mealRepo.Delete(ctx, mealID); err != nil {
		return err
	}

	go s.publisher.PublishMealDeleted(meal.ID, meal.UserID)

	return nil
}
