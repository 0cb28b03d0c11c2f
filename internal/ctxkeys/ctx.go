package ctxkeys

import (
	"context"

	"github.com/lumia-app/lumia/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	UserKey       contextKey = "user"
	RequestIDKey  contextKey = "request_id"
	BearerAuthKey contextKey = "bearer_auth"
)

func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserKey).(*model.User)
	return user
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// BearerAuth reports whether the request authenticated with an
// Authorization header rather than the session cookie.
func BearerAuth(ctx context.Context) bool {
	bearer, _ := ctx.Value(BearerAuthKey).(bool)
	return bearer
}

func WithBearerAuth(ctx context.Context, bearer bool) context.Context {
	return context.WithValue(ctx, BearerAuthKey, bearer)
}
