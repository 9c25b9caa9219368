// Package redisstore backs the session store with Redis so sessions survive
// a process restart and can be shared across instances.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ychleo102615/hanahuda-server/internal/app"
)

const keyPrefix = "koikoi:session:"

// SessionStore implements app.SessionStore over a Redis client, with the
// sliding expiry expressed as a key TTL refreshed on every resolve.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore wraps an existing client.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Create mints a session and stores it under its TTL.
func (s *SessionStore) Create(ctx context.Context, playerID string) (app.Session, error) {
	now := time.Now().UTC()
	sess := app.Session{
		ID:             uuid.NewString(),
		PlayerID:       playerID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(app.SessionTTL),
		LastAccessedAt: now,
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return app.Session{}, fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sess.ID, raw, app.SessionTTL).Err(); err != nil {
		return app.Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Resolve loads the session and slides its expiry forward.
func (s *SessionStore) Resolve(ctx context.Context, sessionID string) (app.Session, error) {
	key := keyPrefix + sessionID
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return app.Session{}, app.ErrSessionInvalid
	}
	if err != nil {
		return app.Session{}, fmt.Errorf("load session: %w", err)
	}
	var sess app.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return app.Session{}, app.ErrSessionInvalid
	}

	now := time.Now().UTC()
	sess.LastAccessedAt = now
	sess.ExpiresAt = now.Add(app.SessionTTL)
	updated, err := json.Marshal(sess)
	if err != nil {
		return app.Session{}, fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, key, updated, app.SessionTTL).Err(); err != nil {
		return app.Session{}, fmt.Errorf("refresh session: %w", err)
	}
	return sess, nil
}

// Delete drops the session key. Idempotent.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
