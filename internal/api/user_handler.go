package api

import (
	"errors"
	"log/slog"

	"diet-service/internal/model"
	"diet-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type UserHandler struct {
	userService  service.UserService
	validate     *validator.Validate
	cookieSecure bool
}

func NewUserHandler(userService service.UserService, cookieSecure bool) *UserHandler {
	return &UserHandler{
		userService:  userService,
		validate:     validator.New(),
		cookieSecure: cookieSecure,
	}
}

type RegisterUserRequest struct {
	Name  *string `json:"name" validate:"required"`
	Email string  `json:"email" validate:"required,email"`
}

type ListUsersResponse struct {
	Users []model.User `json:"users"`
}

// GetUserResponse leaves out the user key entirely when the id is unknown.
type GetUserResponse struct {
	User *model.User `json:"user,omitempty"`
}

func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.userService.ListUsers(c.UserContext())
	if err != nil {
		slog.ErrorContext(c.UserContext(), "Error listing users", slog.String("error", err.Error()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch users"})
	}

	return c.Status(fiber.StatusOK).JSON(ListUsersResponse{Users: users})
}

func (h *UserHandler) GetUserByID(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID format"})
	}

	user, err := h.userService.GetUserByID(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Status(fiber.StatusOK).JSON(GetUserResponse{})
		}
		slog.ErrorContext(c.UserContext(), "Error getting user by ID", slog.String("error", err.Error()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch user"})
	}

	return c.Status(fiber.StatusOK).JSON(GetUserResponse{User: user})
}

func (h *UserHandler) Register(c *fiber.Ctx) error {
	var request RegisterUserRequest

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input", "details": err.Error()})
	}

	// An unreadable cookie is treated like a missing one and gets replaced.
	sessionID, err := uuid.Parse(c.Cookies(SessionCookieName))
	if err != nil {
		sessionID = uuid.Nil
	}

	user, err := h.userService.RegisterUser(c.UserContext(), service.RegisterUserDTO{
		Name:      *request.Name,
		Email:     request.Email,
		SessionID: sessionID,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailInUse) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Email already in use"})
		}
		slog.ErrorContext(c.UserContext(), "Error registering user", slog.String("error", err.Error()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not register user"})
	}

	if sessionID == uuid.Nil {
		c.Cookie(&fiber.Cookie{
			Name:     SessionCookieName,
			Value:    user.SessionID.String(),
			Path:     "/",
			MaxAge:   int(SessionDuration.Seconds()),
			HTTPOnly: true,
			Secure:   h.cookieSecure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	c.Status(fiber.StatusCreated)
	return nil
}
