package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestStateStore_GenerateAndConsume(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewStateStore(client, 10*time.Minute)
	ctx := context.Background()

	state, err := store.Generate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, state)

	ok, err := store.Consume(ctx, state)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStateStore_SingleUse(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewStateStore(client, 10*time.Minute)
	ctx := context.Background()

	state, err := store.Generate(ctx)
	require.NoError(t, err)

	ok, err := store.Consume(ctx, state)
	require.NoError(t, err)
	require.True(t, ok)

	// Second consumption of the same nonce must fail.
	ok, err = store.Consume(ctx, state)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateStore_UnknownState(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewStateStore(client, 10*time.Minute)

	ok, err := store.Consume(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateStore_ExpiredState(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewStateStore(client, time.Minute)
	ctx := context.Background()

	state, err := store.Generate(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	ok, err := store.Consume(ctx, state)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateStore_DistinctStates(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewStateStore(client, time.Minute)
	ctx := context.Background()

	a, err := store.Generate(ctx)
	require.NoError(t, err)
	b, err := store.Generate(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
