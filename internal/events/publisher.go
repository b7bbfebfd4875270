package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"diet-service/internal/model"
)

const (
	SubjectUserRegistered = "user.registered"
	SubjectMealCreated    = "meal.created"
	SubjectMealUpdated    = "meal.updated"
	SubjectMealDeleted    = "meal.deleted"
)

type EventPublisher interface {
	PublishUserRegistered(user *model.User) error
	PublishMealCreated(meal *model.Meal) error
	PublishMealUpdated(mealID, userID uuid.UUID) error
	PublishMealDeleted(mealID, userID uuid.UUID) error
}

type UserRegisteredEvent struct {
	EventType    string    `json:"event_type"`
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

type MealCreatedEvent struct {
	EventType string    `json:"event_type"`
	MealID    uuid.UUID `json:"meal_id"`
	UserID    uuid.UUID `json:"user_id"`
	Date      string    `json:"date"`
	IsOnDiet  bool      `json:"is_on_diet"`
}

// MealChangedEvent covers updates and deletions.
type MealChangedEvent struct {
	EventType string    `json:"event_type"`
	MealID    uuid.UUID `json:"meal_id"`
	UserID    uuid.UUID `json:"user_id"`
	ChangedAt time.Time `json:"changed_at"`
}

type NatsPublisher struct {
	conn *nats.Conn
}

func NewNatsPublisher(natsURL string) (*NatsPublisher, error) {
	nc, err := nats.Connect(natsURL, nats.Name("diet-service"))

	if err != nil {
		return nil, err
	}

	return &NatsPublisher{conn: nc}, nil
}

func (p *NatsPublisher) PublishUserRegistered(user *model.User) error {
	return p.publish(SubjectUserRegistered, UserRegisteredEvent{
		EventType:    SubjectUserRegistered,
		UserID:       user.ID,
		Email:        user.Email,
		RegisteredAt: time.Now(),
	})
}

func (p *NatsPublisher) PublishMealCreated(meal *model.Meal) error {
	return p.publish(SubjectMealCreated, MealCreatedEvent{
		EventType: SubjectMealCreated,
		MealID:    meal.ID,
		UserID:    meal.UserID,
		Date:      meal.Date,
		IsOnDiet:  meal.IsOnDiet,
	})
}

func (p *NatsPublisher) PublishMealUpdated(mealID, userID uuid.UUID) error {
	return p.publish(SubjectMealUpdated, MealChangedEvent{
		EventType: SubjectMealUpdated,
		MealID:    mealID,
		UserID:    userID,
		ChangedAt: time.Now(),
	})
}

func (p *NatsPublisher) PublishMealDeleted(mealID, userID uuid.UUID) error {
	return p.publish(SubjectMealDeleted, MealChangedEvent{
		EventType: SubjectMealDeleted,
		MealID:    mealID,
		UserID:    userID,
		ChangedAt: time.Now(),
	})
}

func (p *NatsPublisher) publish(subject string, event any) error {
	eventJSON, err := json.Marshal(event)

	if err != nil {
		slog.Error("Error marshalling event JSON", slog.String("subject", subject), slog.String("error", err.Error()))
		return err
	}

	err = p.conn.Publish(subject, eventJSON)

	if err != nil {
		slog.Error("Error publishing to NATS", slog.String("subject", subject), slog.String("error", err.Error()))
		return err
	}

	slog.Debug("Published event to NATS", slog.String("subject", subject))

	return nil
}

func (p *NatsPublisher) Close() {
	p.conn.Close()
}

// NoopPublisher drops every event. Used when NATS_URL is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishUserRegistered(*model.User) error { return nil }

func (NoopPublisher) PublishMealCreated(*model.Meal) error { return nil }

func (NoopPublisher) PublishMealUpdated(uuid.UUID, uuid.UUID) error { return nil }

func (NoopPublisher) PublishMealDeleted(uuid.UUID, uuid.UUID) error { return nil }
