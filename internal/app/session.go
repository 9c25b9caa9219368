package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionTTL is the sliding expiry window for sessions.
const SessionTTL = 7 * 24 * time.Hour

var ErrSessionInvalid = errors.New("session invalid or expired")

// Session binds an opaque id to a player with a sliding expiry.
type Session struct {
	ID             string    `json:"id"`
	PlayerID       string    `json:"player_id"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// SessionStore resolves and refreshes sessions. Resolve slides the expiry
// forward on every successful read.
type SessionStore interface {
	Create(ctx context.Context, playerID string) (Session, error)
	Resolve(ctx context.Context, sessionID string) (Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemorySessionStore is the in-memory SessionStore used for tests and
// single-node deployments without Redis.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemorySessionStore constructs an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

// Create mints a session for the player.
func (s *MemorySessionStore) Create(_ context.Context, playerID string) (Session, error) {
	now := time.Now().UTC()
	sess := Session{
		ID:             uuid.NewString(),
		PlayerID:       playerID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(SessionTTL),
		LastAccessedAt: now,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Resolve returns the session and slides its expiry.
func (s *MemorySessionStore) Resolve(_ context.Context, sessionID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	now := time.Now().UTC()
	if !ok || now.After(sess.ExpiresAt) {
		delete(s.sessions, sessionID)
		return Session{}, ErrSessionInvalid
	}
	sess.LastAccessedAt = now
	sess.ExpiresAt = now.Add(SessionTTL)
	s.sessions[sessionID] = sess
	return sess, nil
}

// Delete drops a session. Idempotent.
func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}
