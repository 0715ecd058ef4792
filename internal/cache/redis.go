package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdf360/planview/pkg/core"
	"github.com/redis/go-redis/v9"
)

// RedisConfig selects the Redis instance backing the marker cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisMarkerCache stores marker lists as JSON with a TTL, shared between server instances
type RedisMarkerCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMarkerCache connects lazily to cfg.Addr
func NewRedisMarkerCache(cfg RedisConfig) *RedisMarkerCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisMarkerCache{client: client, ttl: cfg.TTL}
}

func markersKey(planID uint) string {
	return fmt.Sprintf("markers:plan:%d", planID)
}

// Ping checks the connection
func (c *RedisMarkerCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisMarkerCache) Get(ctx context.Context, planID uint) ([]core.Marker, bool, error) {
	data, err := c.client.Get(ctx, markersKey(planID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var markers []core.Marker
	if err := json.Unmarshal(data, &markers); err != nil {
		return nil, false, fmt.Errorf("error decoding cached markers for plan %d: %w", planID, err)
	}
	return markers, true, nil
}

func (c *RedisMarkerCache) Set(ctx context.Context, planID uint, markers []core.Marker) error {
	data, err := json.Marshal(markers)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, markersKey(planID), data, c.ttl).Err()
}

func (c *RedisMarkerCache) Invalidate(ctx context.Context, planID uint) error {
	return c.client.Del(ctx, markersKey(planID)).Err()
}

// Close closes the client
func (c *RedisMarkerCache) Close() error {
	return c.client.Close()
}
