package middleware

import (
	"log/slog"
	"net/http"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/ctxkeys"
	"github.com/lumia-app/lumia/internal/handler"
	"github.com/lumia-app/lumia/internal/service"
)

// Authenticate resolves the session token (cookie or bearer) and adds the
// user to the context. Requests without a valid token continue anonymously.
func Authenticate(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, bearer := authService.Credentials(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := authService.ResolveUser(r.Context(), token)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindInternal {
					handler.WriteError(w, r, err)
					return
				}

				slog.Debug("rejected session token", "error", err, "bearer", bearer)
				if !bearer {
					// Stale cookie: clear it and continue anonymously
					authService.ClearJWTCookie(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithUser(r.Context(), user)
			ctx = ctxkeys.WithBearerAuth(ctx, bearer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			handler.WriteError(w, r, apperr.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	}
}
