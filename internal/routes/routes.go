package routes

import (
	"net/http"

	"github.com/lumia-app/lumia/internal/app"
	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/handler"
	"github.com/lumia-app/lumia/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.Store)
	auth := handler.NewAuthHandler(app.AuthService, app.UserService, app.GoogleProvider, app.Cfg.ClientURL)
	user := handler.NewUserHandler(app.UserService, app.MediaService)
	media := handler.NewMediaHandler(app.MediaService, app.Cfg.MaxUploadBytes)
	album := handler.NewAlbumHandler(app.AlbumService)
	circle := handler.NewCircleHandler(app.CircleService, app.TimelineService)

	authLimit := middleware.RateLimitFunc(app.AuthLimiter, "auth")
	uploadLimit := middleware.RateLimitFunc(app.UploadLimiter, "upload")
	protected := middleware.RequireAuth

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Check)

	// OAuth (rate limited)
	mux.HandleFunc("GET /auth/google", authLimit(auth.GoogleAuth))
	mux.HandleFunc("GET /auth/google/callback", authLimit(auth.GoogleCallback))
	mux.HandleFunc("POST /auth/logout", auth.Logout)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	// User
	mux.HandleFunc("GET /auth/me", protected(auth.Me))
	mux.HandleFunc("GET /user/quota", protected(user.Quota))
	mux.HandleFunc("GET /user/subscription", protected(user.Subscription))

	// Files
	mux.HandleFunc("POST /upload", uploadLimit(protected(media.Upload)))
	mux.HandleFunc("GET /files", protected(media.List))
	mux.HandleFunc("GET /files/{id}", protected(media.Get))
	mux.HandleFunc("GET /files/{id}/content", protected(media.Content))
	mux.HandleFunc("GET /files/{id}/thumbnail", protected(media.Thumbnail))
	mux.HandleFunc("PUT /files/{id}/share", protected(media.Share))
	mux.HandleFunc("DELETE /files/{id}", protected(media.Delete))

	// Albums
	mux.HandleFunc("GET /albums", protected(album.List))
	mux.HandleFunc("POST /albums", protected(album.Create))
	mux.HandleFunc("GET /albums/{id}", protected(album.Get))
	mux.HandleFunc("PUT /albums/{id}", protected(album.Rename))
	mux.HandleFunc("DELETE /albums/{id}", protected(album.Delete))
	mux.HandleFunc("GET /albums/{id}/media", protected(album.Media))
	mux.HandleFunc("POST /albums/{id}/media", protected(album.AddMedia))
	mux.HandleFunc("DELETE /albums/{id}/media/{mediaId}", protected(album.RemoveMedia))
	mux.HandleFunc("PUT /albums/{id}/thumbnail", protected(album.SetThumbnail))
	mux.HandleFunc("PUT /albums/{id}/share", protected(album.Share))

	// Circles
	mux.HandleFunc("GET /circles", protected(circle.List))
	mux.HandleFunc("POST /circles", protected(circle.Create))
	mux.HandleFunc("GET /circles/invitations", protected(circle.Invitations))
	mux.HandleFunc("DELETE /circles/invitations/{token}", protected(circle.DeclineInvitation))
	mux.HandleFunc("GET /circles/{id}", protected(circle.Get))
	mux.HandleFunc("PUT /circles/{id}", protected(circle.Update))
	mux.HandleFunc("DELETE /circles/{id}", protected(circle.Delete))
	mux.HandleFunc("GET /circles/{id}/albums", protected(circle.Albums))
	mux.HandleFunc("GET /circles/{id}/timeline", protected(circle.Timeline))
	mux.HandleFunc("DELETE /circles/{id}/members/{userId}", protected(circle.RemoveMember))
	// invite, make-admin and POST /circles/invitations/{token}
	mux.HandleFunc("POST /circles/{id}/{action}", protected(circle.Action))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, r, apperr.NotFound("route not found"))
	})

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.Recover,
		middleware.RequestID,
		middleware.RequestLogging,
		middleware.CORS(app.Cfg.ClientURL),
		middleware.Authenticate(app.AuthService),
		middleware.CSRFProtection(app.Cfg.IsProduction()),
		middleware.RateLimit(app.GeneralLimiter, "api"),
	)
}
