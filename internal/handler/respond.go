package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/ctxkeys"
	"github.com/lumia-app/lumia/internal/model"
)

const maxJSONBody = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindUnauthorized:  http.StatusUnauthorized,
	apperr.KindForbidden:     http.StatusForbidden,
	apperr.KindNotFound:      http.StatusNotFound,
	apperr.KindValidation:    http.StatusBadRequest,
	apperr.KindConflict:      http.StatusConflict,
	apperr.KindQuotaExceeded: http.StatusInsufficientStorage,
	apperr.KindInternal:      http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteError writes err as a JSON error body. Internal errors are logged
// with request context and reported without detail.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		slog.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", ctxkeys.RequestID(r.Context()),
		)
	}

	WriteJSON(w, StatusFor(kind), ErrorResponse{
		Error:   string(kind),
		Message: apperr.Message(err),
	})
}

// ReadJSON decodes a JSON body into out. Unknown fields are ignored.
func ReadJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

// pathID parses a path wildcard as an ID.
func pathID(r *http.Request, name string) (model.ID, error) {
	id, err := model.ParseID(r.PathValue(name))
	if err != nil {
		return "", apperr.Validation("invalid %s", name)
	}
	return id, nil
}

// bodyIDs parses an id list from a request body field.
func bodyIDs(field string, values []string) ([]model.ID, error) {
	ids, err := model.ParseIDs(values)
	if err != nil {
		return nil, apperr.Validation("%s contains an invalid id", field)
	}
	return ids, nil
}

func bodyID(field, value string) (model.ID, error) {
	id, err := model.ParseID(strings.TrimSpace(value))
	if err != nil {
		return "", apperr.Validation("invalid %s", field)
	}
	return id, nil
}
