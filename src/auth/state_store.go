package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "oauth_state:"

// StateStore keeps the single-use CSRF nonces for in-flight logins.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{client: client, ttl: ttl}
}

// TTL returns the nonce lifetime, which the handler mirrors onto the
// state cookie.
func (s *StateStore) TTL() time.Duration {
	return s.ttl
}

// Generate produces a cryptographically random nonce and stores it.
func (s *StateStore) Generate(ctx context.Context) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(b)

	entry := OAuthState{
		State:     state,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+state, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to save state: %w", err)
	}
	return state, nil
}

// Consume checks that the nonce exists and has not expired, deleting it
// regardless of outcome. A nonce is good for exactly one callback.
func (s *StateStore) Consume(ctx context.Context, state string) (bool, error) {
	key := stateKeyPrefix + state

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get state: %w", err)
	}
	s.client.Del(ctx, key)

	var entry OAuthState
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return false, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if time.Now().After(entry.ExpiresAt) {
		return false, nil
	}
	return true, nil
}
