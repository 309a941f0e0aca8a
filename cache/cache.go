// Package cache holds the Redis read-through cache and the geographic
// indexes used for nearby point searches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ecoleta/models"

	"github.com/redis/go-redis/v9"
)

const (
	itemsKey       = "items:all"
	itemsTTL       = 24 * time.Hour
	pointKeyPrefix = "point:"
	pointTTL       = 10 * time.Minute
)

// Cache stores catalog and point details. A nil *Cache is a valid, always
// missing cache so callers need no Redis to run.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Connect builds a Redis client and checks it answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (c *Cache) Items(ctx context.Context) ([]models.Item, bool) {
	var items []models.Item
	if !c.get(ctx, itemsKey, &items) {
		return nil, false
	}
	return items, true
}

func (c *Cache) SetItems(ctx context.Context, items []models.Item) {
	c.set(ctx, itemsKey, items, itemsTTL)
}

func (c *Cache) InvalidateItems(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, itemsKey).Err(); err != nil {
		slog.Warn("redis del failed", "key", itemsKey, "error", err)
	}
}

func (c *Cache) PointDetail(ctx context.Context, id int64) (models.PointDetail, bool) {
	var detail models.PointDetail
	if !c.get(ctx, pointKey(id), &detail) {
		return models.PointDetail{}, false
	}
	return detail, true
}

func (c *Cache) SetPointDetail(ctx context.Context, detail models.PointDetail) {
	c.set(ctx, pointKey(detail.Point.ID), detail, pointTTL)
}

func (c *Cache) get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("redis get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("cached value is not valid JSON", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("marshal cache value failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		slog.Warn("redis set failed", "key", key, "error", err)
	}
}

func pointKey(id int64) string {
	return fmt.Sprintf("%s%d", pointKeyPrefix, id)
}
