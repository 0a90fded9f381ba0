package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// SessionStore persists the server-side session records that back the
// stateless tokens. Records are keyed by the token's jti, carry the
// token fingerprint, and are soft-invalidated rather than deleted so the
// audit trail survives logout.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Create writes a new active record expiring together with its token.
func (s *SessionStore) Create(ctx context.Context, id, userID, tokenHash string, ttl time.Duration, meta RequestMeta) (*SessionRecord, error) {
	now := time.Now().UTC()
	record := &SessionRecord{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(ttl),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.save(ctx, record, ttl); err != nil {
		return nil, err
	}
	return record, nil
}

// FindByID returns the record or nil when none exists.
func (s *SessionStore) FindByID(ctx context.Context, id string) (*SessionRecord, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var record SessionRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &record, nil
}

// Invalidate flips the record to inactive, keeping its TTL. Invalidating
// a missing or already-inactive session is not an error.
func (s *SessionStore) Invalidate(ctx context.Context, id string) error {
	record, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil || !record.IsActive {
		return nil
	}

	record.IsActive = false
	record.UpdatedAt = time.Now().UTC()
	return s.save(ctx, record, redis.KeepTTL)
}

// Usable applies the validity rule: active, unexpired, and fingerprint
// matching the presented token. The hash check stops a stolen session id
// from being replayed with a different token.
func (r *SessionRecord) Usable(tokenHash string, now time.Time) bool {
	return r != nil && r.IsActive && now.Before(r.ExpiresAt) && r.TokenHash == tokenHash
}

func (s *SessionStore) save(ctx context.Context, record *SessionRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+record.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
