package api

import (
	"time"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "diet-service"

type Dependencies struct {
	UserHandler *UserHandler
	MealHandler *MealHandler

	// RateLimitMax of zero disables the limiter.
	RateLimitMax        int
	RateLimitExpiration time.Duration
}

func NewApp(dep Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: errorHandler,
	})

	app.Use(otelfiber.Middleware())
	app.Use(PrometheusMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": serviceName})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if dep.RateLimitMax > 0 {
		app.Use(RateLimitMiddleware(dep.RateLimitMax, dep.RateLimitExpiration))
	}

	SetupRoutes(app, dep.UserHandler, dep.MealHandler)

	return app
}

func SetupRoutes(app *fiber.App, userHandler *UserHandler, mealHandler *MealHandler) {
	users := app.Group("/users")
	users.Get("/", userHandler.ListUsers)
	users.Get("/:id", userHandler.GetUserByID)
	users.Post("/", userHandler.Register)

	meals := app.Group("/meals")
	meals.Use(SessionMiddleware())
	meals.Get("/", mealHandler.ListMeals)
	meals.Get("/summary", mealHandler.GetSummary)
	meals.Get("/:id", mealHandler.GetMeal)
	meals.Post("/", mealHandler.CreateMeal)
	meals.Post("/:id/photo/upload-url", mealHandler.GetPhotoUploadURL)
	meals.Put("/:id", mealHandler.UpdateMeal)
	meals.Delete("/:id", mealHandler.DeleteMeal)
}
