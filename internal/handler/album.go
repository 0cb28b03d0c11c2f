package handler

import (
	"net/http"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/ctxkeys"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/service"
)

type AlbumHandler struct {
	albumService *service.AlbumService
}

func NewAlbumHandler(albumService *service.AlbumService) *AlbumHandler {
	return &AlbumHandler{albumService: albumService}
}

type albumNameRequest struct {
	Name string `json:"name"`
}

type albumMediaRequest struct {
	MediaIDs []string `json:"mediaIds"`
}

type albumThumbnailRequest struct {
	ThumbnailID string `json:"thumbnailId"`
}

// shareRequest replaces a share list. An explicit empty array unshares;
// a missing or null circleIds is rejected.
type shareRequest struct {
	CircleIDs *[]string `json:"circleIds"`
}

func (req shareRequest) circleIDs() ([]model.ID, error) {
	if req.CircleIDs == nil {
		return nil, apperr.Validation("circleIds must be an array")
	}
	return bodyIDs("circleIds", *req.CircleIDs)
}

func (h *AlbumHandler) List(w http.ResponseWriter, r *http.Request) {
	albums, err := h.albumService.List(r.Context(), ctxkeys.User(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, albums)
}

func (h *AlbumHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req albumNameRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	album, err := h.albumService.Create(r.Context(), ctxkeys.User(r.Context()), req.Name)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, album)
}

func (h *AlbumHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	album, err := h.albumService.Get(r.Context(), ctxkeys.User(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, album)
}

func (h *AlbumHandler) Media(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	files, err := h.albumService.Files(r.Context(), ctxkeys.User(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, files)
}

func (h *AlbumHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req albumNameRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	album, err := h.albumService.Rename(r.Context(), ctxkeys.User(r.Context()), id, req.Name)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, album)
}

func (h *AlbumHandler) AddMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req albumMediaRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	fileIDs, err := bodyIDs("mediaIds", req.MediaIDs)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.albumService.AddFiles(r.Context(), ctxkeys.User(r.Context()), id, fileIDs)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *AlbumHandler) RemoveMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	fileID, err := pathID(r, "mediaId")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.albumService.RemoveFile(r.Context(), ctxkeys.User(r.Context()), id, fileID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *AlbumHandler) SetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req albumThumbnailRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	fileID, err := bodyID("thumbnailId", req.ThumbnailID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	album, err := h.albumService.SetThumbnail(r.Context(), ctxkeys.User(r.Context()), id, fileID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, album)
}

func (h *AlbumHandler) Share(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req shareRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	circleIDs, err := req.circleIDs()
	if err != nil {
		WriteError(w, r, err)
		return
	}

	album, err := h.albumService.Share(r.Context(), ctxkeys.User(r.Context()), id, circleIDs)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, album)
}

func (h *AlbumHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.albumService.Delete(r.Context(), ctxkeys.User(r.Context()), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
