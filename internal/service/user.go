package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/repository"
	"github.com/lumia-app/lumia/internal/validation"
)

// WelcomeMailer greets users on their first login.
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, to, name string) error
}

type UserService struct {
	store  *repository.Store
	mailer WelcomeMailer
}

func NewUserService(store *repository.Store, mailer WelcomeMailer) *UserService {
	return &UserService{store: store, mailer: mailer}
}

// Subscription describes the user's tier and the tiers available.
type Subscription struct {
	Current model.TierPolicy   `json:"current"`
	Tiers   []model.TierPolicy `json:"tiers"`
}

// Login finds or creates the user for a provider identity. Returning
// users get their profile and last login refreshed.
func (s *UserService) Login(ctx context.Context, identity OAuthUser) (*model.User, error) {
	if identity.Subject == "" {
		return nil, apperr.Unauthorized("identity provider returned no subject")
	}
	if !identity.EmailVerified {
		return nil, apperr.Unauthorized("email address is not verified")
	}

	email := validation.NormalizeEmail(identity.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperr.Unauthorized("identity provider returned an invalid email")
	}

	now := model.Now()
	user, err := s.store.Users.ByGoogleID(ctx, identity.Subject)
	if err == nil {
		err = s.store.Users.UpdateLogin(ctx, user.ID, identity.Name, identity.Picture, now)
		if err != nil {
			return nil, apperr.Internal(err, "failed to update user")
		}
		user.Name, user.Picture, user.LastLoginAt = identity.Name, identity.Picture, now

		slog.Info("user logged in", "user_id", user.ID)
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.Internal(err, "failed to look up user")
	}

	user = &model.User{
		ID:               model.NewID(),
		GoogleID:         identity.Subject,
		Email:            email,
		Name:             identity.Name,
		Picture:          identity.Picture,
		SubscriptionTier: model.TierLite,
		CreatedAt:        now,
		LastLoginAt:      now,
	}

	err = s.store.Users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, apperr.Conflict("an account with this email already exists")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to create user")
	}

	slog.Info("new user created", "user_id", user.ID)

	if s.mailer != nil {
		if err := s.mailer.SendWelcomeEmail(ctx, user.Email, user.DisplayName()); err != nil {
			slog.Warn("failed to send welcome email", "error", err, "user_id", user.ID)
		}
	}

	return user, nil
}

func (s *UserService) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.store.Users.ByEmail(ctx, validation.NormalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load user")
	}
	return user, nil
}

// SetTier changes a user's subscription tier. Files already stored keep
// the processing they got on upload.
func (s *UserService) SetTier(ctx context.Context, email, tier string) (*model.User, error) {
	t, ok := model.ParseTier(tier)
	if !ok {
		return nil, apperr.Validation("unknown tier %q", tier)
	}

	user, err := s.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.store.Users.UpdateTier(ctx, user.ID, t); err != nil {
		return nil, apperr.Internal(err, "failed to update tier")
	}
	user.SubscriptionTier = t

	slog.Info("subscription tier changed", "user_id", user.ID, "tier", t)
	return user, nil
}

func (s *UserService) Subscription(user *model.User) Subscription {
	return Subscription{
		Current: user.SubscriptionTier.Policy(),
		Tiers:   model.Tiers(),
	}
}
