package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"diet-service/internal/api"
	"diet-service/internal/config"
	"diet-service/internal/events"
	"diet-service/internal/repository"
	"diet-service/internal/s3"
	"diet-service/internal/service"
	"diet-service/internal/tracing"
	_ "diet-service/migrations"
)

func main() {
	cfg := config.MustLoad()

	api.SetupGlobalHandler("diet-service", cfg.SlogLevel())

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		handleMigrations(cfg)
		return
	}

	shutdownTracer, err := tracing.InitTracerProvider("diet-service", cfg.OtelEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Error("Error shutting down tracer provider", slog.String("error", err.Error()))
		}
	}()

	db := connectDB(cfg)
	defer db.Close()

	publisher := newEventPublisher(cfg)

	var presigner api.PhotoPresigner
	if cfg.S3Enabled() {
		filePresigner, err := s3.NewFilePresigner(context.Background(), s3.Options{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.AWSRegion,
			BucketName:   cfg.S3BucketName,
			AccessKey:    cfg.AWSAccessKeyID,
			SecretKey:    cfg.AWSSecretAccessKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			log.Fatalf("Failed to initialize S3 presigner: %v", err)
		}
		slog.Info("Successfully initialized S3 presigner.", slog.String("bucket", cfg.S3BucketName))
		presigner = filePresigner
	}

	userRepo := repository.NewPostgresUserRepository(db)
	mealRepo := repository.NewPostgresMealRepository(db)

	userService := service.NewUserService(userRepo, publisher)
	mealService := service.NewMealService(mealRepo, publisher)

	app := api.NewApp(api.Dependencies{
		UserHandler:         api.NewUserHandler(userService, cfg.CookieSecure),
		MealHandler:         api.NewMealHandler(mealService, userService, presigner),
		RateLimitMax:        cfg.RateLimitMax,
		RateLimitExpiration: cfg.RateLimitExpiration,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("Shutting down diet-service...")
		if err := app.Shutdown(); err != nil {
			slog.Error("Error shutting down server", slog.String("error", err.Error()))
		}
	}()

	slog.Info("Listening diet-service", slog.String("port", cfg.AppPort))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func connectDB(cfg *config.Config) *sqlx.DB {
	db, err := sqlx.Connect("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	slog.Info("Successfully connected to the database.")
	return db
}

func newEventPublisher(cfg *config.Config) events.EventPublisher {
	if cfg.NatsURL == "" {
		slog.Info("NATS_URL not set, domain events are disabled")
		return events.NoopPublisher{}
	}

	publisher, err := events.NewNatsPublisher(cfg.NatsURL)
	if err != nil {
		slog.Warn("Failed to connect to NATS, domain events are disabled", slog.String("error", err.Error()))
		return events.NoopPublisher{}
	}
	slog.Info("Successfully connected to NATS.")

	return publisher
}

func handleMigrations(cfg *config.Config) {
	slog.Info("Running database migrations...")

	db, err := sql.Open("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("failed to connect to database for migration: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set goose dialect: %v", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		log.Fatalf("goose: failed to run migrations: %v", err)
	}

	slog.Info("Migrations applied successfully!")
}
