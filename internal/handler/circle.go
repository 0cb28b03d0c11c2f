package handler

import (
	"net/http"
	"time"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/ctxkeys"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/service"
)

type CircleHandler struct {
	circleService   *service.CircleService
	timelineService *service.TimelineService
}

func NewCircleHandler(circleService *service.CircleService, timelineService *service.TimelineService) *CircleHandler {
	return &CircleHandler{
		circleService:   circleService,
		timelineService: timelineService,
	}
}

type circleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type circleUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type inviteRequest struct {
	Email string `json:"email"`
}

type memberRequest struct {
	UserID string `json:"userId"`
}

func (h *CircleHandler) List(w http.ResponseWriter, r *http.Request) {
	circles, err := h.circleService.List(r.Context(), ctxkeys.User(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, circles)
}

func (h *CircleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req circleRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	circle, err := h.circleService.Create(r.Context(), ctxkeys.User(r.Context()), req.Name, req.Description)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, circle)
}

func (h *CircleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	circle, err := h.circleService.Get(r.Context(), ctxkeys.User(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, circle)
}

func (h *CircleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req circleUpdateRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	circle, err := h.circleService.Update(r.Context(), ctxkeys.User(r.Context()), id, service.CircleUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, circle)
}

func (h *CircleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.circleService.Delete(r.Context(), ctxkeys.User(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *CircleHandler) Invite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req inviteRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	invitation, err := h.circleService.Invite(r.Context(), ctxkeys.User(r.Context()), id, req.Email)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, invitation)
}

// Action serves POST /circles/{id}/{action}. The invitation accept route
// shares that shape, and ServeMux rejects the overlapping patterns.
func (h *CircleHandler) Action(w http.ResponseWriter, r *http.Request) {
	id, action := r.PathValue("id"), r.PathValue("action")
	switch {
	case id == "invitations":
		r.SetPathValue("token", action)
		h.AcceptInvitation(w, r)
	case action == "invite":
		h.Invite(w, r)
	case action == "make-admin":
		h.MakeAdmin(w, r)
	default:
		WriteError(w, r, apperr.NotFound("route not found"))
	}
}

// Invitations lists pending invitations addressed to the signed-in user
func (h *CircleHandler) Invitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.circleService.Invitations(r.Context(), ctxkeys.User(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, invitations)
}

func (h *CircleHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	circle, err := h.circleService.AcceptInvitation(r.Context(), ctxkeys.User(r.Context()), r.PathValue("token"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, circle)
}

func (h *CircleHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	if err := h.circleService.DeclineInvitation(r.Context(), ctxkeys.User(r.Context()), r.PathValue("token")); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CircleHandler) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req memberRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	targetID, err := bodyID("userId", req.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.circleService.MakeAdmin(r.Context(), ctxkeys.User(r.Context()), id, targetID); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CircleHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	targetID, err := pathID(r, "userId")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.circleService.RemoveMember(r.Context(), ctxkeys.User(r.Context()), id, targetID); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CircleHandler) Albums(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	albums, err := h.circleService.Albums(r.Context(), ctxkeys.User(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, albums)
}

// Timeline pages through a circle's shared media. ?cursor is the
// nextCursor of the previous page.
func (h *CircleHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	cursor, err := queryCursor(r, "cursor")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	page, err := h.timelineService.Timeline(r.Context(), ctxkeys.User(r.Context()), id, cursor)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// queryCursor parses an optional timeline cursor as returned in nextCursor.
func queryCursor(r *http.Request, name string) (*model.TimelineCursor, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	c, err := model.ParseTimelineCursor(raw)
	if err != nil {
		return nil, apperr.Validation("invalid %s", name)
	}
	return &c, nil
}

// queryTime parses an optional RFC 3339 query parameter.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, apperr.Validation("invalid %s: expected an RFC 3339 timestamp", name)
	}
	t = t.UTC()
	return &t, nil
}
