package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
)

const userKeyPrefix = "approval:user:"

// CachedDirectory keeps resolved profiles in Redis for ttl.
// Redis failures fall through to the wrapped directory.
type CachedDirectory struct {
	next   port.UserDirectory
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDirectory wraps next. A nil client disables caching.
func NewCachedDirectory(next port.UserDirectory, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedDirectory{next: next, client: client, ttl: ttl, logger: logger}
}

func (d *CachedDirectory) LookupUser(ctx context.Context, userID string) (*entity.User, error) {
	if d.client == nil || userID == "" {
		return d.next.LookupUser(ctx, userID)
	}

	key := userKeyPrefix + userID
	data, err := d.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var u entity.User
		if jsonErr := json.Unmarshal(data, &u); jsonErr == nil {
			return &u, nil
		}
		d.logger.Warn("Discarding unreadable cached profile", zap.String("userid", userID))
	case !errors.Is(err, redis.Nil):
		d.logger.Warn("Profile cache read failed", zap.String("userid", userID), zap.Error(err))
	}

	u, err := d.next.LookupUser(ctx, userID)
	if err != nil || u == nil {
		return u, err
	}

	if encoded, err := json.Marshal(u); err == nil {
		if err := d.client.Set(ctx, key, encoded, d.ttl).Err(); err != nil {
			d.logger.Warn("Profile cache write failed", zap.String("userid", userID), zap.Error(err))
		}
	}
	return u, nil
}
