package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/store"
)

// ApplicationsHandler handles membership applications.
type ApplicationsHandler struct {
	DB     *sql.DB
	Policy *access.Policy
}

type applicationIDRequest struct {
	ApplicationID int64 `json:"application_id"`
}

// List handles GET /api/applications?status=.
func (h *ApplicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := store.ListApplications(r.Context(), h.DB, GetAccess(r.Context()), r.URL.Query().Get("status"))
	if err != nil {
		writeStoreError(w, err, "listing applications")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"applications": emptyIfNil(apps)})
}

// Get handles GET /api/applications/{id}.
func (h *ApplicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "application")
	if !ok {
		return
	}
	app, err := store.GetApplication(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "getting application")
		return
	}
	if app == nil || !GetAccess(r.Context()).Allows(app.Campus) {
		jsonError(w, http.StatusNotFound, "application not found")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"application": app})
}

// Create handles POST /api/applications.
func (h *ApplicationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in store.ApplicationInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	campus, allowed := targetCampus(h.Policy, GetAccess(r.Context()), in.Campus)
	if !allowed {
		jsonError(w, http.StatusForbidden, "campus is outside your scope")
		return
	}
	in.Campus = campus

	app, err := store.CreateApplication(r.Context(), h.DB, in)
	if err != nil {
		writeStoreError(w, err, "creating application")
		return
	}

	slog.Info("application filed", "user", GetActor(r.Context()).Email, "application_id", app.ID, "campus", app.Campus)
	jsonSuccess(w, http.StatusCreated, "application submitted", map[string]any{"application_id": app.ID, "application": app})
}

// Approve handles POST /api/applications/approve.
func (h *ApplicationsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req applicationIDRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, req.ApplicationID, "application_id") {
		return
	}

	actor := GetActor(r.Context())
	app, err := store.ApproveApplication(r.Context(), h.DB, GetAccess(r.Context()), req.ApplicationID, actor.UserID)
	if err != nil {
		writeStoreError(w, err, "approving application")
		return
	}

	slog.Info("application approved", "user", actor.Email, "application_id", app.ID, "student_id", app.StudentID)
	jsonSuccess(w, http.StatusOK, "application approved", map[string]any{"application": app})
}

// Reject handles POST /api/applications/reject.
func (h *ApplicationsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req applicationIDRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, req.ApplicationID, "application_id") {
		return
	}

	actor := GetActor(r.Context())
	app, err := store.RejectApplication(r.Context(), h.DB, GetAccess(r.Context()), req.ApplicationID, actor.UserID)
	if err != nil {
		writeStoreError(w, err, "rejecting application")
		return
	}

	slog.Info("application rejected", "user", actor.Email, "application_id", app.ID)
	jsonSuccess(w, http.StatusOK, "application rejected", map[string]any{"application": app})
}
