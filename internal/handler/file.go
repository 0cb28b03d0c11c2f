package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/ctxkeys"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/service"
)

// multipart framing allowance on top of the file itself
const uploadOverhead = 1 << 20

type MediaHandler struct {
	mediaService   *service.MediaService
	maxUploadBytes int64
}

func NewMediaHandler(mediaService *service.MediaService, maxUploadBytes int64) *MediaHandler {
	return &MediaHandler{
		mediaService:   mediaService,
		maxUploadBytes: maxUploadBytes,
	}
}

type uploadResponse struct {
	ID           model.ID  `json:"id"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
	Duplicate    bool      `json:"duplicate"`
	AlbumError   string    `json:"albumError,omitempty"`
}

// Upload accepts a multipart form with a "file" part and an optional
// "albumId" field.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+uploadOverhead)

	reader, err := r.MultipartReader()
	if err != nil {
		WriteError(w, r, apperr.Validation("expected a multipart/form-data body"))
		return
	}

	in := service.UploadInput{}
	var haveFile bool
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			WriteError(w, r, uploadReadError(err))
			return
		}

		switch part.FormName() {
		case "file":
			data, err := io.ReadAll(io.LimitReader(part, h.maxUploadBytes+1))
			if err != nil {
				part.Close()
				WriteError(w, r, uploadReadError(err))
				return
			}
			if int64(len(data)) > h.maxUploadBytes {
				part.Close()
				WriteError(w, r, apperr.Validation("file exceeds the %d byte upload limit", h.maxUploadBytes))
				return
			}
			in.Filename = part.FileName()
			in.Data = data
			haveFile = true
		case "albumId":
			raw, err := io.ReadAll(io.LimitReader(part, 128))
			if err != nil {
				part.Close()
				WriteError(w, r, uploadReadError(err))
				return
			}
			if len(raw) > 0 {
				albumID, err := bodyID("albumId", string(raw))
				if err != nil {
					part.Close()
					WriteError(w, r, err)
					return
				}
				in.AlbumID = &albumID
			}
		}
		part.Close()
	}

	if !haveFile {
		WriteError(w, r, apperr.Validation("missing file"))
		return
	}

	result, err := h.mediaService.Upload(r.Context(), ctxkeys.User(r.Context()), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	WriteJSON(w, status, uploadResponse{
		ID:           result.File.ID,
		OriginalName: result.File.OriginalName,
		MimeType:     result.File.MimeType,
		Size:         result.File.Size,
		CreatedAt:    result.File.CreatedAt,
		Duplicate:    result.Duplicate,
		AlbumError:   result.AlbumError,
	})
}

func uploadReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperr.Validation("upload exceeds the %d byte limit", maxErr.Limit)
	}
	return apperr.Validation("malformed multipart body")
}

// List returns the caller's own media, newest first. Supports ?before
// (RFC 3339) and ?limit.
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	before, err := queryTime(r, "before")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			WriteError(w, r, apperr.Validation("invalid limit"))
			return
		}
	}

	files, err := h.mediaService.List(r.Context(), ctxkeys.User(r.Context()), before, limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, files)
}

func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	file, err := h.mediaService.Get(r.Context(), ctxkeys.User(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, file)
}

func (h *MediaHandler) Content(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	file, body, err := h.mediaService.Content(r.Context(), ctxkeys.User(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("media stream interrupted", "error", err, "file_id", file.ID)
	}
}

func (h *MediaHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	data, err := h.mediaService.Thumbnail(r.Context(), ctxkeys.User(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *MediaHandler) Share(w http.ResponseWriter, r *http.Request) {
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

	file, err := h.mediaService.Share(r.Context(), ctxkeys.User(r.Context()), id, circleIDs)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, file)
}

func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.mediaService.Delete(r.Context(), ctxkeys.User(r.Context()), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
