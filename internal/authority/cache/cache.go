// Package cache memoizes roster fetches in Redis for a short TTL so a burst
// of sync triggers for the same academy hits the authoritative system once.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"rostersync/internal/authority"
)

const keyPrefix = "roster:academy:"

// RosterCache wraps a RosterSource with a read-through Redis cache. Cache
// failures degrade to a direct fetch; the cache is never load-bearing.
type RosterCache struct {
	source authority.RosterSource
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New builds a caching decorator around source.
func New(source authority.RosterSource, client *redis.Client, ttl time.Duration, logger *slog.Logger) *RosterCache {
	return &RosterCache{source: source, client: client, ttl: ttl, logger: logger}
}

func (c *RosterCache) FetchActiveRoster(ctx context.Context, academyID int64) ([]authority.Member, error) {
	key := fmt.Sprintf("%s%d", keyPrefix, academyID)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var members []authority.Member
		if err := json.Unmarshal(raw, &members); err == nil {
			return members, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable roster cache entry", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "roster cache read failed, fetching directly", "error", err)
	}

	members, err := c.source.FetchActiveRoster(ctx, academyID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(members); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "roster cache write failed", "error", err)
		}
	}
	return members, nil
}

// Invalidate drops the cached roster for an academy; called after a
// conversion creates a new authoritative member.
func (c *RosterCache) Invalidate(ctx context.Context, academyID int64) {
	key := fmt.Sprintf("%s%d", keyPrefix, academyID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.WarnContext(ctx, "roster cache invalidation failed", "key", key, "error", err)
	}
}
