package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/store"
)

// EventsHandler handles cultural event endpoints.
type EventsHandler struct {
	DB     *sql.DB
	Policy *access.Policy
}

type eventIDRequest struct {
	EventID int64 `json:"event_id"`
}

// parseDateParam accepts YYYY-MM-DD or RFC 3339. A bare date used as an
// upper bound covers the whole day.
func parseDateParam(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}

// List handles GET /api/events?status=&q=&from=&to=.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDateParam(q.Get("from"), false)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := parseDateParam(q.Get("to"), true)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid to date")
		return
	}

	events, err := store.ListEvents(r.Context(), h.DB, GetAccess(r.Context()), store.EventFilter{
		Status: q.Get("status"),
		Query:  q.Get("q"),
		From:   from,
		To:     to,
	})
	if err != nil {
		writeStoreError(w, err, "listing events")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"events": emptyIfNil(events)})
}

// Get handles GET /api/events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "event")
	if !ok {
		return
	}
	event, err := store.GetEvent(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "getting event")
		return
	}
	if event == nil || !GetAccess(r.Context()).Allows(event.Campus) {
		jsonError(w, http.StatusNotFound, "event not found")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"event": event})
}

// Create handles POST /api/events.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in store.EventInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc := GetAccess(r.Context())
	campus, allowed := targetCampus(h.Policy, acc, in.Campus)
	if !allowed {
		jsonError(w, http.StatusForbidden, "campus is outside your scope")
		return
	}
	in.Campus = campus

	actor := GetActor(r.Context())
	event, err := store.CreateEvent(r.Context(), h.DB, in, actor.UserID)
	if err != nil {
		writeStoreError(w, err, "creating event")
		return
	}

	slog.Info("event created", "user", actor.Email, "event_id", event.ID, "campus", event.Campus)
	jsonSuccess(w, http.StatusCreated, "event created", map[string]any{"event_id": event.ID, "event": event})
}

// Update handles PUT /api/events/{id}.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "event")
	if !ok {
		return
	}
	var in store.EventInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc := GetAccess(r.Context())
	campus, allowed := targetCampus(h.Policy, acc, in.Campus)
	if !allowed {
		jsonError(w, http.StatusForbidden, "campus is outside your scope")
		return
	}
	in.Campus = campus

	event, err := store.UpdateEvent(r.Context(), h.DB, acc, id, in)
	if err != nil {
		writeStoreError(w, err, "updating event")
		return
	}

	slog.Info("event updated", "user", GetActor(r.Context()).Email, "event_id", id)
	jsonSuccess(w, http.StatusOK, "event updated", map[string]any{"event": event})
}

// Archive handles POST /api/events/archive.
func (h *EventsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req eventIDRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, req.EventID, "event_id") {
		return
	}

	event, err := store.ArchiveEvent(r.Context(), h.DB, GetAccess(r.Context()), req.EventID)
	if err != nil {
		writeStoreError(w, err, "archiving event")
		return
	}

	slog.Info("event archived", "user", GetActor(r.Context()).Email, "event_id", req.EventID)
	jsonSuccess(w, http.StatusOK, "event archived", map[string]any{"event": event})
}

// Restore handles POST /api/events/restore.
func (h *EventsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req eventIDRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, req.EventID, "event_id") {
		return
	}

	event, err := store.RestoreEvent(r.Context(), h.DB, GetAccess(r.Context()), req.EventID)
	if err != nil {
		writeStoreError(w, err, "restoring event")
		return
	}

	slog.Info("event restored", "user", GetActor(r.Context()).Email, "event_id", req.EventID, "status", event.Status)
	jsonSuccess(w, http.StatusOK, "event restored", map[string]any{"event": event})
}

// Delete handles DELETE /api/events/{id}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "event")
	if !ok {
		return
	}
	if err := store.DeleteEvent(r.Context(), h.DB, GetAccess(r.Context()), id); err != nil {
		writeStoreError(w, err, "deleting event")
		return
	}

	slog.Info("event deleted", "user", GetActor(r.Context()).Email, "event_id", id)
	jsonSuccess(w, http.StatusOK, "event deleted", nil)
}
