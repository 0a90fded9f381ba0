package auth

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisAuditLog_RecordAndRecent(t *testing.T) {
	client, _ := setupTestRedis(t)
	trail := NewRedisAuditLog(client, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		trail.Record(ctx, AuditEntry{
			Action:     ActionUserLogin,
			UserID:     "user-" + strconv.Itoa(i),
			ResourceID: "session-" + strconv.Itoa(i),
			IPAddress:  "203.0.113.9",
		})
	}

	entries, err := trail.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first.
	assert.Equal(t, "user-4", entries[0].UserID)
	assert.Equal(t, "user-2", entries[2].UserID)
	assert.Equal(t, "auth", entries[0].ResourceType)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestRedisAuditLog_RecentEmpty(t *testing.T) {
	client, _ := setupTestRedis(t)
	trail := NewRedisAuditLog(client, zap.NewNop())

	entries, err := trail.Recent(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
