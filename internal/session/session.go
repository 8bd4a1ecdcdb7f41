// Package session keeps signed-in actors keyed by an opaque session ID.
//
// Production deployments use Redis so sessions survive restarts and are
// shared between instances; MemoryStore serves single-process setups and
// tests.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/culturearts/portal/internal/access"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is the stored state of one login.
type Session struct {
	ID        string       `json:"id"`
	Actor     access.Actor `json:"actor"`
	IssuedAt  time.Time    `json:"iat"`
	ExpiresAt time.Time    `json:"exp"`
}

// Store persists sessions.
type Store interface {
	// Create stores a new session for actor and returns it.
	Create(ctx context.Context, actor access.Actor) (*Session, error)
	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Delete removes one session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error
	// RevokeAllForUser removes every session of a user.
	RevokeAllForUser(ctx context.Context, userID int64) error
}

func newSession(actor access.Actor, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Actor:     actor,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}
