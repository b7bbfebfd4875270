package api

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"diet-service/internal/model"
	"diet-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// PhotoPresigner hands out direct-to-storage upload URLs for meal photos.
type PhotoPresigner interface {
	PresignMealPhotoUpload(ctx context.Context, mealID uuid.UUID) (uploadURL string, finalURL string, err error)
}

type MealHandler struct {
	mealService service.MealService
	userService service.UserService
	presigner   PhotoPresigner
	validate    *validator.Validate
}

// NewMealHandler builds the meal endpoints. presigner may be nil, in which case
// photo upload URLs are unavailable.
func NewMealHandler(mealService service.MealService, userService service.UserService, presigner PhotoPresigner) *MealHandler {
	return &MealHandler{
		mealService: mealService,
		userService: userService,
		presigner:   presigner,
		validate:    validator.New(),
	}
}

type CreateMealRequest struct {
	Name        *string `json:"name" validate:"required"`
	Description *string `json:"description" validate:"required"`
	Date        *string `json:"date" validate:"required,min=10,contains=-"`
	Time        *string `json:"time" validate:"required,min=5,contains=:"`
	IsOnDiet    *bool   `json:"is_on_diet" validate:"required"`
}

type UpdateMealRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Date        *string `json:"date,omitempty" validate:"omitnil,min=10,contains=-"`
	Time        *string `json:"time,omitempty" validate:"omitnil,min=5,contains=:"`
	IsOnDiet    *bool   `json:"is_on_diet,omitempty"`
	PhotoURL    *string `json:"photo_url,omitempty" validate:"omitnil,url"`
}

type ListMealsResponse struct {
	Meals []model.Meal `json:"meals"`
}

type GetMealResponse struct {
	Meal *model.Meal `json:"meal"`
}

type DietSequence struct {
	DietSequence int `json:"dietSequence"`
}

// SummaryResponse.BestDietSequence is either a DietSequence row or the number 0
// when the user has never recorded an on-diet meal.
type SummaryResponse struct {
	TotalOfMeals     int `json:"totalOfMeals"`
	TotalInDiet      int `json:"totalInDiet"`
	TotalOffdiet     int `json:"totalOffdiet"`
	BestDietSequence any `json:"bestDietSequence"`
}

type PhotoUploadURLResponse struct {
	UploadURL     string `json:"upload_url"`
	FinalImageURL string `json:"final_image_url"`
}

func (h *MealHandler) ListMeals(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return h.handleError(c, err, "Could not fetch meals")
	}

	meals, err := h.mealService.ListMeals(c.UserContext(), user.ID)
	if err != nil {
		return h.handleError(c, err, "Could not fetch meals")
	}

	return c.Status(fiber.StatusOK).JSON(ListMealsResponse{Meals: meals})
}

func (h *MealHandler) GetMeal(c *fiber.Ctx) error {
	mealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid meal ID format"})
	}

	if _, err := h.currentUser(c); err != nil {
		return h.handleError(c, err, "Could not fetch meal")
	}

	meal, err := h.mealService.GetMeal(c.UserContext(), mealID)
	if err != nil {
		return h.handleError(c, err, "Could not fetch meal")
	}

	return c.Status(fiber.StatusOK).JSON(GetMealResponse{Meal: meal})
}

func (h *MealHandler) GetSummary(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return h.handleError(c, err, "Could not compute summary")
	}

	summary, err := h.mealService.GetSummary(c.UserContext(), user.ID)
	if err != nil {
		return h.handleError(c, err, "Could not compute summary")
	}

	var best any = 0
	if summary.BestDietSequence != nil {
		best = DietSequence{DietSequence: *summary.BestDietSequence}
	}

	return c.Status(fiber.StatusOK).JSON(SummaryResponse{
		TotalOfMeals:     summary.TotalOfMeals,
		TotalInDiet:      summary.TotalInDiet,
		TotalOffdiet:     summary.TotalOffDiet,
		BestDietSequence: best,
	})
}

func (h *MealHandler) CreateMeal(c *fiber.Ctx) error {
	var request CreateMealRequest

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input", "details": err.Error()})
	}

	user, err := h.currentUser(c)
	if err != nil {
		return h.handleError(c, err, "Could not create meal")
	}

	meal, err := h.mealService.CreateMeal(c.UserContext(), user.ID, service.CreateMealDTO{
		Name:        *request.Name,
		Description: *request.Description,
		Date:        *request.Date,
		Time:        *request.Time,
		IsOnDiet:    *request.IsOnDiet,
	})
	if err != nil {
		return h.handleError(c, err, "Could not create meal")
	}

	mealsRecordedTotal.WithLabelValues(strconv.FormatBool(meal.IsOnDiet)).Inc()

	c.Status(fiber.StatusCreated)
	return nil
}

func (h *MealHandler) UpdateMeal(c *fiber.Ctx) error {
	mealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid meal ID format"})
	}

	var request UpdateMealRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input", "details": err.Error()})
	}

	if _, err := h.currentUser(c); err != nil {
		return h.handleError(c, err, "Could not update meal")
	}

	err = h.mealService.UpdateMeal(c.UserContext(), mealID, model.MealPatch{
		Name:        request.Name,
		Description: request.Description,
		Date:        request.Date,
		Time:        request.Time,
		IsOnDiet:    request.IsOnDiet,
		PhotoURL:    request.PhotoURL,
	})
	if err != nil {
		return h.handleError(c, err, "Could not update meal")
	}

	c.Status(fiber.StatusNoContent)
	return nil
}

func (h *MealHandler) DeleteMeal(c *fiber.Ctx) error {
	mealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid meal ID format"})
	}

	if _, err := h.currentUser(c); err != nil {
		return h.handleError(c, err, "Could not delete meal")
	}

	if err := h.mealService.DeleteMeal(c.UserContext(), mealID); err != nil {
		return h.handleError(c, err, "Could not delete meal")
	}

	c.Status(fiber.StatusOK)
	return nil
}

func (h *MealHandler) GetPhotoUploadURL(c *fiber.Ctx) error {
	mealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid meal ID format"})
	}

	if h.presigner == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Photo uploads are not configured"})
	}

	if _, err := h.currentUser(c); err != nil {
		return h.handleError(c, err, "Could not generate upload URL")
	}

	meal, err := h.mealService.GetMeal(c.UserContext(), mealID)
	if err != nil {
		return h.handleError(c, err, "Could not generate upload URL")
	}

	uploadURL, finalURL, err := h.presigner.PresignMealPhotoUpload(c.UserContext(), meal.ID)
	if err != nil {
		return h.handleError(c, err, "Could not generate upload URL")
	}

	return c.Status(fiber.StatusOK).JSON(PhotoUploadURLResponse{
		UploadURL:     uploadURL,
		FinalImageURL: finalURL,
	})
}

func (h *MealHandler) currentUser(c *fiber.Ctx) (*model.User, error) {
	return h.userService.ResolveSession(c.UserContext(), GetSessionID(c))
}

func (h *MealHandler) handleError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found."})
	case errors.Is(err, service.ErrMealNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Meal not found."})
	default:
		slog.ErrorContext(c.UserContext(), fallback, slog.String("error", err.Error()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
	}
}
