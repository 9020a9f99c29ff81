// Package cache is a best-effort redis layer for hot feed pools. Every
// error degrades to a miss; a nil *Cache (redis not configured) behaves the
// same way, so callers never branch on availability.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/flopap/backend/internal/domain"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// New returns nil when addr is empty; the zero value of the API is a
// permanent miss.
func New(addr, password string, db int, ttl time.Duration, log zerolog.Logger) *Cache {
	if addr == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
		log: log,
	}
}

func TodayPoolKey(userID uuid.UUID) string { return fmt.Sprintf("today_pool:%s", userID) }
func WeekPoolKey(userID uuid.UUID) string  { return fmt.Sprintf("week_pool:%s", userID) }

func (c *Cache) GetPool(ctx context.Context, key string) ([]domain.ScoredPaper, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug().Err(err).Str("key", key).Msg("cache get failed")
		}
		return nil, false
	}
	var items []domain.ScoredPaper
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (c *Cache) SetPool(ctx context.Context, key string, items []domain.ScoredPaper) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// InvalidateUser drops both pool entries for the user, called on every
// feedback event.
func (c *Cache) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, TodayPoolKey(userID), WeekPoolKey(userID)).Err(); err != nil {
		c.log.Debug().Err(err).Str("user_id", userID.String()).Msg("cache invalidate failed")
	}
}
