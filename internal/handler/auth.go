package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/ctxkeys"
	"github.com/lumia-app/lumia/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
	provider    service.IdentityProvider
	clientURL   string
}

// NewAuthHandler wires the Google login flow. provider may be nil when
// Google credentials are not configured.
func NewAuthHandler(authService *service.AuthService, userService *service.UserService, provider service.IdentityProvider, clientURL string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		provider:    provider,
		clientURL:   clientURL,
	}
}

// GoogleAuth redirects user to Google OAuth consent screen
func (h *AuthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		WriteJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   string(apperr.KindInternal),
			Message: "google sign-in is not configured",
		})
		return
	}

	state, err := h.authService.GenerateState()
	if err != nil {
		WriteError(w, r, apperr.Internal(err, "failed to start login"))
		return
	}

	h.authService.SetStateCookie(w, state)
	http.Redirect(w, r, h.provider.LoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback finishes the login and sends the browser back to the client
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		h.loginFailed(w, r, "not_configured")
		return
	}

	// Validate state parameter for CSRF protection
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(service.StateCookieName)
	if err != nil || cookie.Value != state || state == "" {
		slog.Warn("google oauth state validation failed", "error", err)
		h.loginFailed(w, r, "invalid_state")
		return
	}
	h.authService.ClearStateCookie(w)

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("google oauth callback missing code", "error_param", r.URL.Query().Get("error"))
		h.loginFailed(w, r, "access_denied")
		return
	}

	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("google oauth exchange failed", "error", err)
		h.loginFailed(w, r, "exchange_failed")
		return
	}

	user, err := h.userService.Login(r.Context(), identity)
	if err != nil {
		slog.Error("oauth login failed", "error", err)
		h.loginFailed(w, r, "login_failed")
		return
	}

	token, expiry, err := h.authService.GenerateJWT(user)
	if err != nil {
		slog.Error("failed to generate JWT", "error", err, "user_id", user.ID)
		h.loginFailed(w, r, "login_failed")
		return
	}

	h.authService.SetJWTCookie(w, token, expiry)
	http.Redirect(w, r, h.clientURL, http.StatusSeeOther)
}

// Me returns the signed-in user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ctxkeys.User(r.Context()))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, reason string) {
	target := h.clientURL + "/login?error=" + url.QueryEscape(reason)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
