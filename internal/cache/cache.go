/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based read-through cache for event records.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/models"
)

// Default TTL values for different cache types
const (
	DefaultEventListTTL = 5 * time.Minute
	DefaultEventTTL     = 30 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyPrefix    = "slotplanner:cache:"
	KeyEventList = KeyPrefix + "events"
	KeyEvent     = KeyPrefix + "event:" // + event_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EventListTTL time.Duration
	EventTTL     time.Duration

	// DisableOnError turns the cache off after the first Redis error.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		EventListTTL:   DefaultEventListTTL,
		EventTTL:       DefaultEventTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A disabled
// cache misses on every read and ignores writes.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a cache. An unreachable Redis yields a disabled cache, not an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	logger = logger.With().Str("component", "cache").Logger()
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Warn().Err(err).Msg("redis cache unavailable, running without caching")
		return &Cache{logger: logger, config: cfg, disabled: true}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("redis cache initialized")
	return &Cache{client: client, logger: logger, config: cfg}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.handleError(err, "get")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

func (c *Cache) delete(ctx context.Context, keys ...string) error {
	if !c.IsAvailable() {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}
	return nil
}

// CachedEvent is an event record including its serialised slot collection.
type CachedEvent struct {
	Event models.Event `json:"event"`
	Slots string       `json:"slots"`
}

// GetEventList returns the cached event list.
func (c *Cache) GetEventList(ctx context.Context) ([]models.Event, bool) {
	var list []models.Event
	ok := c.get(ctx, KeyEventList, &list)
	return list, ok
}

// SetEventList caches the event list.
func (c *Cache) SetEventList(ctx context.Context, list []models.Event) error {
	return c.set(ctx, KeyEventList, list, c.config.EventListTTL)
}

// InvalidateEventList drops the cached event list.
func (c *Cache) InvalidateEventList(ctx context.Context) error {
	return c.delete(ctx, KeyEventList)
}

// GetEvent returns a cached event with its slot blob restored.
func (c *Cache) GetEvent(ctx context.Context, eventID string) (*models.Event, bool) {
	var cached CachedEvent
	if !c.get(ctx, KeyEvent+eventID, &cached) {
		return nil, false
	}
	event := cached.Event
	event.Slots = cached.Slots
	return &event, true
}

// SetEvent caches an event record.
func (c *Cache) SetEvent(ctx context.Context, event *models.Event) error {
	return c.set(ctx, KeyEvent+event.ID, CachedEvent{Event: *event, Slots: event.Slots}, c.config.EventTTL)
}

// InvalidateEvent drops one event and the event list.
func (c *Cache) InvalidateEvent(ctx context.Context, eventID string) error {
	return c.delete(ctx, KeyEvent+eventID, KeyEventList)
}

// FlushAll removes every cache key.
func (c *Cache) FlushAll(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, KeyPrefix+"*", 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
