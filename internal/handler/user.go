package handler

import (
	"net/http"

	"github.com/lumia-app/lumia/internal/ctxkeys"
	"github.com/lumia-app/lumia/internal/service"
)

type UserHandler struct {
	userService  *service.UserService
	mediaService *service.MediaService
}

func NewUserHandler(userService *service.UserService, mediaService *service.MediaService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		mediaService: mediaService,
	}
}

func (h *UserHandler) Quota(w http.ResponseWriter, r *http.Request) {
	quota, err := h.mediaService.Quota(r.Context(), ctxkeys.User(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, quota)
}

func (h *UserHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.userService.Subscription(ctxkeys.User(r.Context())))
}
