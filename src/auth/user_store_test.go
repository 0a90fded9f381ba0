package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func googleIdentity() *GoogleUserInfo {
	return &GoogleUserInfo{
		ID:            "g1",
		Email:         "a@x.com",
		VerifiedEmail: true,
		Name:          "A",
		Picture:       "https://pic/a",
	}
}

func TestUserStore_Upsert_NewUser(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewUserStore(client)
	ctx := context.Background()

	user, isNew, err := store.Upsert(ctx, googleIdentity())
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "g1", user.ID, "internal id must not be the provider id")
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, UserStatusActive, user.Status)
	require.NotNil(t, user.LastLoginAt)
}

func TestUserStore_Upsert_ReturningUser(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewUserStore(client)
	ctx := context.Background()

	first, isNew, err := store.Upsert(ctx, googleIdentity())
	require.NoError(t, err)
	require.True(t, isNew)
	firstLogin := *first.LastLoginAt

	time.Sleep(5 * time.Millisecond)

	updated := googleIdentity()
	updated.Name = "A Renamed"
	updated.Picture = "https://pic/new"

	second, isNew, err := store.Upsert(ctx, updated)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "A Renamed", second.Name)
	assert.Equal(t, "https://pic/new", second.Picture)
	assert.True(t, second.LastLoginAt.After(firstLogin))
}

func TestUserStore_Upsert_LostCreateRace(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewUserStore(client)
	ctx := context.Background()

	// Another request created the user between our existence check and
	// the index claim. Seed that winner directly.
	winner, isNew, err := store.Upsert(ctx, googleIdentity())
	require.NoError(t, err)
	require.True(t, isNew)

	// A second upsert must fall back to updating the winner, not error
	// out or mint a second id.
	loser, isNew, err := store.Upsert(ctx, googleIdentity())
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, winner.ID, loser.ID)
}

func TestUserStore_FindByEmail_Missing(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewUserStore(client)

	user, err := store.FindByEmail(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestUserStore_FindByID_Missing(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewUserStore(client)

	user, err := store.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, user)
}
