package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/model"
	"github.com/culturearts/portal/internal/session"
	"github.com/culturearts/portal/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB       *sql.DB
	Policy   *access.Policy
	Sessions session.Store
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Campus   string `json:"campus"`
}

type updateUserRequest struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Campus string `json:"campus"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		writeStoreError(w, err, "listing users")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"users": emptyIfNil(users)})
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" || req.Role == "" || req.Campus == "" {
		jsonError(w, http.StatusBadRequest, "email, password, role, and campus required")
		return
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	campus := h.Policy.Canonical(req.Campus)
	user, err := store.CreateUser(r.Context(), h.DB, req.Email, req.Name, string(hash), req.Role, campus)
	if err != nil {
		writeStoreError(w, err, "creating user")
		return
	}

	slog.Info("user created", "user", GetActor(r.Context()).Email, "new_user", user.Email, "role", user.Role, "campus", campus)
	jsonSuccess(w, http.StatusCreated, "user created", map[string]any{"user": user})
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeStoreError(w, err, "getting user")
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonSuccess(w, http.StatusOK, "ok", map[string]any{"user": user})
}

// Update handles PUT /api/users/{id}. The user's sessions are revoked so
// the new role and campus apply from their next login.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if req.Campus == "" {
		jsonError(w, http.StatusBadRequest, "campus required")
		return
	}

	ctx := r.Context()
	target, err := store.GetUser(ctx, h.DB, id)
	if err != nil {
		writeStoreError(w, err, "getting user")
		return
	}
	if target == nil || target.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	if target.Role == model.RoleAdmin && req.Role != model.RoleAdmin {
		if last, err := h.isLastAdmin(ctx); err != nil {
			writeStoreError(w, err, "counting admins")
			return
		} else if last {
			jsonError(w, http.StatusBadRequest, "cannot demote the last admin")
			return
		}
	}

	campus := h.Policy.Canonical(req.Campus)
	if err := store.UpdateUser(ctx, h.DB, id, req.Name, req.Role, campus); err != nil {
		writeStoreError(w, err, "updating user")
		return
	}
	if err := h.Sessions.RevokeAllForUser(ctx, id); err != nil {
		slog.Error("revoking sessions", "error", err, "user_id", id)
	}

	user, err := store.GetUser(ctx, h.DB, id)
	if err != nil {
		writeStoreError(w, err, "getting user")
		return
	}
	slog.Info("user updated", "user", GetActor(ctx).Email, "target_user", target.Email, "role", req.Role, "campus", campus)
	jsonSuccess(w, http.StatusOK, "user updated", map[string]any{"user": user})
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	ctx := r.Context()
	if err := store.UpdateUserPassword(ctx, h.DB, id, string(hash)); err != nil {
		writeStoreError(w, err, "resetting password")
		return
	}
	if err := h.Sessions.RevokeAllForUser(ctx, id); err != nil {
		slog.Error("revoking sessions", "error", err, "user_id", id)
	}

	slog.Info("user password reset", "user", GetActor(ctx).Email, "target_user_id", id)
	jsonSuccess(w, http.StatusOK, "password reset", nil)
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	ctx := r.Context()
	actor := GetActor(ctx)
	if actor.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	target, err := store.GetUser(ctx, h.DB, id)
	if err != nil {
		writeStoreError(w, err, "getting user")
		return
	}
	if target == nil || target.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	if target.Role == model.RoleAdmin {
		if last, err := h.isLastAdmin(ctx); err != nil {
			writeStoreError(w, err, "counting admins")
			return
		} else if last {
			jsonError(w, http.StatusBadRequest, "cannot delete the last admin")
			return
		}
	}

	if err := store.DeleteUser(ctx, h.DB, id); err != nil {
		writeStoreError(w, err, "deleting user")
		return
	}
	if err := h.Sessions.RevokeAllForUser(ctx, id); err != nil {
		slog.Error("revoking sessions", "error", err, "user_id", id)
	}

	slog.Info("user deleted", "user", actor.Email, "deleted_user", target.Email)
	jsonSuccess(w, http.StatusOK, "user deleted", nil)
}

func (h *UsersHandler) isLastAdmin(ctx context.Context) (bool, error) {
	n, err := store.CountAdmins(ctx, h.DB)
	if err != nil {
		return false, err
	}
	return n <= 1, nil
}
