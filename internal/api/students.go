package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/store"
)

// StudentsHandler handles the artist roster.
type StudentsHandler struct {
	DB     *sql.DB
	Policy *access.Policy
}

type studentIDRequest struct {
	StudentID int64 `json:"student_id"`
}

// List handles GET /api/students?status=&q=.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	students, err := store.ListStudents(r.Context(), h.DB, GetAccess(r.Context()), store.StudentFilter{
		Status: q.Get("status"),
		Query:  q.Get("q"),
	})
	if err != nil {
		writeStoreError(w, err, "listing students")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"students": emptyIfNil(students)})
}

// Get handles GET /api/students/{id}.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "student")
	if !ok {
		return
	}
	student, err := store.GetStudent(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "getting student")
		return
	}
	if student == nil || !GetAccess(r.Context()).Allows(student.Campus) {
		jsonError(w, http.StatusNotFound, "student not found")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"student": student})
}

// Create handles POST /api/students.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in store.StudentInput
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

	student, err := store.CreateStudent(r.Context(), h.DB, in)
	if err != nil {
		writeStoreError(w, err, "creating student")
		return
	}

	slog.Info("student created", "user", GetActor(r.Context()).Email, "student_id", student.ID, "campus", student.Campus)
	jsonSuccess(w, http.StatusCreated, "student created", map[string]any{"student_id": student.ID, "student": student})
}

// Update handles PUT /api/students/{id}.
func (h *StudentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "student")
	if !ok {
		return
	}
	var in store.StudentInput
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

	student, err := store.UpdateStudent(r.Context(), h.DB, acc, id, in)
	if err != nil {
		writeStoreError(w, err, "updating student")
		return
	}

	slog.Info("student updated", "user", GetActor(r.Context()).Email, "student_id", id)
	jsonSuccess(w, http.StatusOK, "student updated", map[string]any{"student": student})
}

// Archive handles POST /api/students/archive.
func (h *StudentsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req studentIDRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, req.StudentID, "student_id") {
		return
	}

	student, err := store.ArchiveStudent(r.Context(), h.DB, GetAccess(r.Context()), req.StudentID)
	if err != nil {
		writeStoreError(w, err, "archiving student")
		return
	}

	slog.Info("student archived", "user", GetActor(r.Context()).Email, "student_id", req.StudentID)
	jsonSuccess(w, http.StatusOK, "student archived", map[string]any{"student": student})
}

// Restore handles POST /api/students/restore.
func (h *StudentsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req studentIDRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !requireID(w, req.StudentID, "student_id") {
		return
	}

	student, err := store.RestoreStudent(r.Context(), h.DB, GetAccess(r.Context()), req.StudentID)
	if err != nil {
		writeStoreError(w, err, "restoring student")
		return
	}

	slog.Info("student restored", "user", GetActor(r.Context()).Email, "student_id", req.StudentID, "status", student.Status)
	jsonSuccess(w, http.StatusOK, "student restored", map[string]any{"student": student})
}
