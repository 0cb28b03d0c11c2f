package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/repository"
	"golang.org/x/sync/singleflight"
)

const (
	AuthCookieName  = "auth_token"
	StateCookieName = "oauth_state"
)

var ErrInvalidToken = errors.New("invalid token")

type AuthService struct {
	users        repository.UserRepository
	jwtSecret    string
	jwtExpiry    time.Duration
	isProduction bool

	// resolving collapses concurrent lookups of the same token into one
	resolving singleflight.Group
}

func NewAuthService(users repository.UserRepository, jwtSecret string, jwtExpiry time.Duration, isProduction bool) *AuthService {
	return &AuthService{
		users:        users,
		jwtSecret:    jwtSecret,
		jwtExpiry:    jwtExpiry,
		isProduction: isProduction,
	}
}

func (s *AuthService) GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateJWT returns a signed session token and its expiry.
func (s *AuthService) GenerateJWT(user *model.User) (string, time.Time, error) {
	now := time.Now()
	expiry := now.Add(s.jwtExpiry)

	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"exp":     expiry.Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiry, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// ResolveUser returns the user a session token belongs to. Concurrent
// calls for the same token share one verification and lookup.
func (s *AuthService) ResolveUser(ctx context.Context, token string) (*model.User, error) {
	v, err, _ := s.resolving.Do(token, func() (any, error) {
		claims, err := s.VerifyJWT(token)
		if err != nil {
			return nil, apperr.Unauthorized("invalid or expired session")
		}

		raw, _ := claims["user_id"].(string)
		id, err := model.ParseID(raw)
		if err != nil {
			return nil, apperr.Unauthorized("invalid session")
		}

		user, err := s.users.ByID(ctx, id)
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.Unauthorized("user no longer exists")
		}
		if err != nil {
			return nil, apperr.Internal(err, "failed to load user")
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers may mutate the user; give each its own copy.
	user := *v.(*model.User)
	return &user, nil
}

// Credentials extracts the session token from the request. Bearer
// tokens take precedence over the cookie.
func (s *AuthService) Credentials(r *http.Request) (token string, bearer bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}

	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		return c.Value, false
	}
	return "", false
}

func (s *AuthService) SetJWTCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) SetStateCookie(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})
}

func (s *AuthService) ClearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   StateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
