package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateAndFind(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	meta := RequestMeta{IP: "203.0.113.9", UserAgent: "test-agent"}
	record, err := store.Create(ctx, "sid-1", "user-1", "hash-1", 24*time.Hour, meta)
	require.NoError(t, err)
	assert.True(t, record.IsActive)
	assert.Equal(t, "sid-1", record.ID)

	found, err := store.FindByID(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "user-1", found.UserID)
	assert.Equal(t, "hash-1", found.TokenHash)
	assert.Equal(t, "203.0.113.9", found.IPAddress)
	assert.Equal(t, "test-agent", found.UserAgent)
}

func TestSessionStore_FindMissing(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)

	record, err := store.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSessionStore_Invalidate_SoftAndIdempotent(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	_, err := store.Create(ctx, "sid-1", "user-1", "hash-1", 24*time.Hour, RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(ctx, "sid-1"))

	// The record survives invalidation, flipped inactive.
	record, err := store.FindByID(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.False(t, record.IsActive)

	// Invalidating again, or invalidating something unknown, is fine.
	require.NoError(t, store.Invalidate(ctx, "sid-1"))
	require.NoError(t, store.Invalidate(ctx, "never-existed"))
}

func TestSessionStore_ExpiresWithTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	_, err := store.Create(ctx, "sid-1", "user-1", "hash-1", time.Minute, RequestMeta{})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	record, err := store.FindByID(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSessionRecord_Usable(t *testing.T) {
	now := time.Now()
	record := &SessionRecord{
		ID:        "sid-1",
		TokenHash: "hash-1",
		ExpiresAt: now.Add(time.Hour),
		IsActive:  true,
	}

	assert.True(t, record.Usable("hash-1", now))
	assert.False(t, record.Usable("other-hash", now), "stolen id with a different token must fail")
	assert.False(t, record.Usable("hash-1", now.Add(2*time.Hour)), "expired record must fail")

	record.IsActive = false
	assert.False(t, record.Usable("hash-1", now))

	var missing *SessionRecord
	assert.False(t, missing.Usable("hash-1", now))
}
