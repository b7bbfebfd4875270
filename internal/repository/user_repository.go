package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"diet-service/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindAll(ctx context.Context) ([]model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.User, error)
}

type postgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, name, email, session_id) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.SessionID)
	return err
}

func (r *postgresUserRepository) FindAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	query := `SELECT id, name, email, session_id, created_at FROM users ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, err
	}

	if users == nil {
		users = []model.User{}
	}

	return users, nil
}

func (r *postgresUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	query := `SELECT id, name, email, session_id, created_at FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &user, query, id)

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *postgresUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	query := `SELECT id, name, email, session_id, created_at FROM users WHERE email = $1`
	err := r.db.GetContext(ctx, &user, query, email)

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// FindBySessionID returns the earliest registered user holding the session. A browser
// that registers twice without clearing its cookie ends up with two users on one session.
func (r *postgresUserRepository) FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.User, error) {
	var user model.User
	query := `SELECT id, name, email, session_id, created_at FROM users WHERE session_id = $1 ORDER BY created_at LIMIT 1`
	err := r.db.GetContext(ctx, &user, query, sessionID)

	if err != nil {
		return nil, err
	}

	return &user, nil
}
