package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const auditLogKey = "audit:log"

// AuditLog is the append-only trail of security-relevant events. Record
// never fails the caller: losing an audit entry must not break a login,
// so write failures are logged and swallowed.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry)
}

// RedisAuditLog appends entries to a redis list and mirrors them to the
// structured log.
type RedisAuditLog struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisAuditLog(client *redis.Client, log *zap.Logger) *RedisAuditLog {
	return &RedisAuditLog{client: client, log: log}
}

// Recent returns the newest limit entries, newest first. Feeds the admin
// dashboard's activity view.
func (a *RedisAuditLog) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := a.client.LRange(ctx, auditLogKey, int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]AuditEntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var e AuditEntry
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			a.log.Warn("skipping unreadable audit entry", zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (a *RedisAuditLog) Record(ctx context.Context, entry AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ResourceType == "" {
		entry.ResourceType = "auth"
	}

	a.log.Info("audit",
		zap.String("action", entry.Action),
		zap.String("user_id", entry.UserID),
		zap.String("resource_type", entry.ResourceType),
		zap.String("resource_id", entry.ResourceID),
		zap.String("ip", entry.IPAddress),
	)

	data, err := json.Marshal(entry)
	if err != nil {
		a.log.Error("failed to marshal audit entry", zap.Error(err))
		return
	}
	if err := a.client.RPush(ctx, auditLogKey, data).Err(); err != nil {
		a.log.Error("failed to append audit entry", zap.Error(err), zap.String("action", entry.Action))
	}
}
