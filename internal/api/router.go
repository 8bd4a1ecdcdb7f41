package api

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/auth"
	"github.com/culturearts/portal/internal/model"
	"github.com/culturearts/portal/internal/queue"
	"github.com/culturearts/portal/internal/session"
)

// Config carries the dependencies of the API router.
type Config struct {
	DB         *sql.DB
	JWTSecret  string
	Policy     *access.Policy
	Sessions   session.Store
	Limiter    session.Limiter
	Publisher  queue.Publisher
	SessionTTL time.Duration
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	if cfg.Policy == nil {
		cfg.Policy = access.DefaultPolicy()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = auth.TokenExpiry
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewMemoryStore(cfg.SessionTTL)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = queue.LogPublisher{}
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{
		DB: cfg.DB, JWTSecret: cfg.JWTSecret, Policy: cfg.Policy,
		Sessions: cfg.Sessions, Limiter: cfg.Limiter, TTL: cfg.SessionTTL, SecureCookie: cfg.SecureCookie,
	}
	usersHandler := &UsersHandler{DB: cfg.DB, Policy: cfg.Policy, Sessions: cfg.Sessions}
	inventoryHandler := &InventoryHandler{DB: cfg.DB, Policy: cfg.Policy}
	borrowingHandler := &BorrowingHandler{DB: cfg.DB, Publisher: cfg.Publisher}
	eventsHandler := &EventsHandler{DB: cfg.DB, Policy: cfg.Policy}
	studentsHandler := &StudentsHandler{DB: cfg.DB, Policy: cfg.Policy}
	applicationsHandler := &ApplicationsHandler{DB: cfg.DB, Policy: cfg.Policy}
	dashboardHandler := &DashboardHandler{DB: cfg.DB}

	authMW := AuthMiddleware(cfg.JWTSecret, cfg.Sessions, cfg.Policy)
	requireAdmin := RequireRole(model.RoleAdmin)
	read := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	write := func(h http.HandlerFunc) http.Handler { return authMW(RequireManage(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	mux.Handle("POST /api/auth/logout", read(authHandler.Logout))
	mux.Handle("GET /api/auth/me", read(authHandler.Me))
	mux.Handle("PUT /api/auth/password", read(authHandler.ChangePassword))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Inventory: read (campus scoped), write (manage).
	mux.Handle("GET /api/inventory", read(inventoryHandler.List))
	mux.Handle("POST /api/inventory", write(inventoryHandler.Create))
	mux.Handle("GET /api/inventory/{id}", read(inventoryHandler.Get))
	mux.Handle("PUT /api/inventory/{id}", write(inventoryHandler.Update))
	mux.Handle("DELETE /api/inventory/{id}", write(inventoryHandler.Delete))
	mux.Handle("POST /api/inventory/archive", write(inventoryHandler.Archive))
	mux.Handle("POST /api/inventory/restore", write(inventoryHandler.Restore))

	// Borrowing, returns and repairs.
	mux.Handle("GET /api/borrowing", read(borrowingHandler.List))
	mux.Handle("POST /api/borrowing", write(borrowingHandler.Create))
	mux.Handle("GET /api/borrowing/{id}", read(borrowingHandler.Get))
	mux.Handle("POST /api/borrowing/approve", write(borrowingHandler.Approve))
	mux.Handle("POST /api/borrowing/reject", write(borrowingHandler.Reject))
	mux.Handle("POST /api/borrowing/return", write(borrowingHandler.SubmitReturn))
	mux.Handle("GET /api/returns", read(borrowingHandler.ListReturns))
	mux.Handle("POST /api/returns/confirm", write(borrowingHandler.ConfirmReturn))
	mux.Handle("GET /api/repairs", read(borrowingHandler.ListRepairs))
	mux.Handle("POST /api/repairs/complete", write(borrowingHandler.CompleteRepair))

	// Events.
	mux.Handle("GET /api/events", read(eventsHandler.List))
	mux.Handle("POST /api/events", write(eventsHandler.Create))
	mux.Handle("GET /api/events/{id}", read(eventsHandler.Get))
	mux.Handle("PUT /api/events/{id}", write(eventsHandler.Update))
	mux.Handle("DELETE /api/events/{id}", write(eventsHandler.Delete))
	mux.Handle("POST /api/events/archive", write(eventsHandler.Archive))
	mux.Handle("POST /api/events/restore", write(eventsHandler.Restore))

	// Students.
	mux.Handle("GET /api/students", read(studentsHandler.List))
	mux.Handle("POST /api/students", write(studentsHandler.Create))
	mux.Handle("GET /api/students/{id}", read(studentsHandler.Get))
	mux.Handle("PUT /api/students/{id}", write(studentsHandler.Update))
	mux.Handle("POST /api/students/archive", write(studentsHandler.Archive))
	mux.Handle("POST /api/students/restore", write(studentsHandler.Restore))

	// Applications.
	mux.Handle("GET /api/applications", read(applicationsHandler.List))
	mux.Handle("POST /api/applications", write(applicationsHandler.Create))
	mux.Handle("GET /api/applications/{id}", read(applicationsHandler.Get))
	mux.Handle("POST /api/applications/approve", write(applicationsHandler.Approve))
	mux.Handle("POST /api/applications/reject", write(applicationsHandler.Reject))

	mux.Handle("GET /api/dashboard", read(dashboardHandler.Get))

	return jsonFallback(mux)
}

// jsonFallback answers requests no pattern matched (404 and 405) with the
// JSON envelope instead of ServeMux's plain text. The Allow header is kept.
func jsonFallback(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := mux.Handler(r)
		if pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}
		fw := &fallbackWriter{header: http.Header{}, status: http.StatusNotFound}
		h.ServeHTTP(fw, r)
		if allow := fw.header.Get("Allow"); allow != "" {
			w.Header().Set("Allow", allow)
		}
		jsonError(w, fw.status, strings.ToLower(http.StatusText(fw.status)))
	})
}

// fallbackWriter records the status of ServeMux's built-in replies and
// discards their bodies.
type fallbackWriter struct {
	header http.Header
	status int
}

func (f *fallbackWriter) Header() http.Header         { return f.header }
func (f *fallbackWriter) Write(b []byte) (int, error) { return len(b), nil }
func (f *fallbackWriter) WriteHeader(status int)      { f.status = status }
