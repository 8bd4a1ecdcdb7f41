package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/culturearts/portal/internal/store"
)

// DashboardHandler serves the landing page counts.
type DashboardHandler struct {
	DB *sql.DB
}

// Get handles GET /api/dashboard.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := store.GetDashboard(r.Context(), h.DB, GetAccess(r.Context()), time.Now().UTC())
	if err != nil {
		writeStoreError(w, err, "loading dashboard")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"dashboard": d})
}
