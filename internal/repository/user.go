package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumia-app/lumia/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id model.ID) (*model.User, error)
	ByIDs(ctx context.Context, ids []model.ID) ([]*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	UpdateLogin(ctx context.Context, id model.ID, name, picture string, at time.Time) error
	UpdateTier(ctx context.Context, id model.ID, tier model.Tier) error
}

type userRepository struct {
	db Querier
}

func NewUserRepository(db Querier) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, google_id, email, name, picture, subscription_tier, created_at, last_login_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.GoogleID,
		user.Email,
		user.Name,
		user.Picture,
		user.SubscriptionTier,
		user.CreatedAt,
		user.LastLoginAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id model.ID) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, user, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) ByIDs(ctx context.Context, ids []model.ID) ([]*model.User, error) {
	var users []*model.User
	if len(ids) == 0 {
		return users, nil
	}

	query, args, err := in(r.db, `SELECT * FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	err = r.db.SelectContext(ctx, &users, query, args...)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, user, query, email)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) ByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE google_id = $1`

	err := r.db.GetContext(ctx, user, query, googleID)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) UpdateLogin(ctx context.Context, id model.ID, name, picture string, at time.Time) error {
	query := `UPDATE users SET name = $1, picture = $2, last_login_at = $3 WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, name, picture, at, id)
	if err != nil {
		return err
	}

	return expectRows(result, ErrUserNotFound)
}

func (r *userRepository) UpdateTier(ctx context.Context, id model.ID, tier model.Tier) error {
	query := `UPDATE users SET subscription_tier = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, tier, id)
	if err != nil {
		return err
	}

	return expectRows(result, ErrUserNotFound)
}
