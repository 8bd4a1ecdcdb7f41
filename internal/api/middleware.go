package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/auth"
	"github.com/culturearts/portal/internal/session"
)

type contextKey string

const (
	sessionKey contextKey = "session"
	accessKey  contextKey = "access"
)

// SessionCookie is the cookie carrying the session token for browsers.
const SessionCookie = "portal_session"

// tokenFromRequest returns the bearer token, falling back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// AuthMiddleware validates the session token, loads the session and adds
// the actor and its resolved access to the context.
func AuthMiddleware(secret string, sessions session.Store, policy *access.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			claims, err := auth.ValidateToken(secret, tokenStr)
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			sess, err := sessions.Get(r.Context(), claims.ID)
			if errors.Is(err, session.ErrNotFound) {
				jsonError(w, http.StatusUnauthorized, "session expired")
				return
			}
			if err != nil {
				slog.Error("loading session", "error", err)
				jsonError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if sess.Actor.UserID != claims.UserID || sess.Actor.Role == "" {
				jsonError(w, http.StatusUnauthorized, "invalid session")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			ctx = context.WithValue(ctx, accessKey, policy.Resolve(sess.Actor))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that admits only the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := GetSession(r.Context())
			if sess == nil {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !slices.Contains(roles, sess.Actor.Role) {
				jsonError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireManage rejects actors whose access is view-only.
func RequireManage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSession(r.Context()) == nil {
			jsonError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !GetAccess(r.Context()).CanManage {
			jsonError(w, http.StatusForbidden, "this account is view-only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSession retrieves the session from the context.
func GetSession(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey).(*session.Session)
	return sess
}

// GetActor returns the signed-in actor, or the zero Actor.
func GetActor(ctx context.Context) access.Actor {
	if sess := GetSession(ctx); sess != nil {
		return sess.Actor
	}
	return access.Actor{}
}

// GetAccess returns the resolved access of the request. Without a session
// it grants nothing.
func GetAccess(ctx context.Context) access.Access {
	acc, _ := ctx.Value(accessKey).(access.Access)
	return acc
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs HTTP requests with method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
