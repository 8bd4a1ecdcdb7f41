package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/culturearts/portal/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonSuccess writes {"success": true, "message": ...} merged with extra.
func jsonSuccess(w http.ResponseWriter, status int, message string, extra map[string]any) {
	body := map[string]any{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	jsonResponse(w, status, body)
}

// jsonError writes {"success": false, "message": ...}.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]any{"success": false, "message": message})
}

// writeStoreError maps a store error to its HTTP status. Unexpected errors
// are logged with action and answered with a generic 500.
func writeStoreError(w http.ResponseWriter, err error, action string) {
	var verr *store.ValidationError
	var ierr *store.InsufficientError
	var uerr *store.InUseError
	switch {
	case errors.As(err, &verr):
		jsonError(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, store.ErrValidation):
		jsonError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, store.ErrForbidden):
		jsonError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.As(err, &ierr):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"success":   false,
			"message":   ierr.Error(),
			"item_id":   ierr.ItemID,
			"requested": ierr.Requested,
			"available": ierr.Available,
		})
	case errors.As(err, &uerr):
		jsonError(w, http.StatusConflict, uerr.Msg)
	case errors.Is(err, store.ErrConflict):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"success":   false,
			"message":   "conflicting change, please retry",
			"retryable": true,
		})
	default:
		slog.Error(action, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// emptyIfNil keeps list responses as [] instead of null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
