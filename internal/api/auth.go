package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/auth"
	"github.com/culturearts/portal/internal/model"
	"github.com/culturearts/portal/internal/session"
	"github.com/culturearts/portal/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB           *sql.DB
	JWTSecret    string
	Policy       *access.Policy
	Sessions     session.Store
	Limiter      session.Limiter
	TTL          time.Duration
	SecureCookie bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	ctx := r.Context()
	if h.Limiter != nil {
		ok, err := h.Limiter.Allow(ctx, req.Email)
		if err != nil {
			slog.Error("checking login limit", "error", err)
		} else if !ok {
			slog.Warn("login rate limited", "email", req.Email, "remote", r.RemoteAddr)
			jsonError(w, http.StatusTooManyRequests, "too many failed attempts, try again later")
			return
		}
	}

	user, err := store.GetUserByEmail(ctx, h.DB, req.Email)
	if err != nil {
		writeStoreError(w, err, "looking up user")
		return
	}
	if user == nil || user.DeletedAt != nil ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		if h.Limiter != nil {
			if err := h.Limiter.Fail(ctx, req.Email); err != nil {
				slog.Error("recording failed login", "error", err)
			}
		}
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if h.Limiter != nil {
		if err := h.Limiter.Reset(ctx, req.Email); err != nil {
			slog.Error("resetting login limit", "error", err)
		}
	}

	actor := access.Actor{UserID: user.ID, Email: user.Email, Role: user.Role, Campus: user.Campus}
	sess, err := h.Sessions.Create(ctx, actor)
	if err != nil {
		slog.Error("creating session", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, sess.ID, user.ID, user.Email, h.TTL)
	if err != nil {
		slog.Error("signing token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	slog.Info("user logged in", "user", user.Email, "role", user.Role, "campus", user.Campus)
	jsonSuccess(w, http.StatusOK, "logged in", map[string]any{
		"token":  token,
		"user":   user,
		"access": h.Policy.Resolve(actor),
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	if err := h.Sessions.Delete(r.Context(), sess.ID); err != nil {
		slog.Error("deleting session", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.clearCookie(w)
	slog.Info("user logged out", "user", sess.Actor.Email)
	jsonSuccess(w, http.StatusOK, "logged out", nil)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{
		"actor":  GetActor(r.Context()),
		"access": GetAccess(r.Context()),
	})
}

// ChangePassword handles PUT /api/auth/password. All sessions of the user
// are revoked afterwards.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor := GetActor(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, actor.UserID)
	if err != nil {
		writeStoreError(w, err, "loading user")
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := store.UpdateUserPassword(r.Context(), h.DB, user.ID, string(hash)); err != nil {
		writeStoreError(w, err, "updating password")
		return
	}
	if err := h.Sessions.RevokeAllForUser(r.Context(), user.ID); err != nil {
		slog.Error("revoking sessions", "error", err)
	}
	h.clearCookie(w)

	slog.Info("user changed own password", "user", actor.Email)
	jsonSuccess(w, http.StatusOK, "password updated, please sign in again", nil)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
