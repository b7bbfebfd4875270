package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"diet-service/internal/events"
	"diet-service/internal/model"
	"diet-service/internal/repository"
)

type RegisterUserDTO struct {
	Name  string
	Email string
	// SessionID is the caller's existing session, uuid.Nil when it has none.
	SessionID uuid.UUID
}

type UserService interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error)
	RegisterUser(ctx context.Context, dto RegisterUserDTO) (*model.User, error)
	ResolveSession(ctx context.Context, sessionID string) (*model.User, error)
}

type userService struct {
	userRepo  repository.UserRepository
	publisher events.EventPublisher
}

func NewUserService(userRepo repository.UserRepository, publisher events.EventPublisher) UserService {
	return &userService{userRepo: userRepo, publisher: publisher}
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.userRepo.FindAll(ctx)
}

func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	return user, nil
}

// RegisterUser checks the email before a session is allocated, so a rejected
// registration never hands out an identifier.
func (s *userService) RegisterUser(ctx context.Context, dto RegisterUserDTO) (*model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, dto.Email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailInUse
	}

	sessionID := dto.SessionID
	if sessionID == uuid.Nil {
		sessionID = uuid.New()
	}

	user := &model.User{
		ID:        uuid.New(),
		Name:      dto.Name,
		Email:     dto.Email,
		SessionID: sessionID,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if hasPgCode(err, pgUniqueViolation) {
			return nil, ErrEmailInUse
		}

		return nil, err
	}

	go s.publisher.PublishUserRegistered(user)

	return user, nil
}

func (s *userService) ResolveSession(ctx context.Context, sessionID string) (*model.User, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	user, err := s.userRepo.FindBySessionID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	return user, nil
}
