/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/events"
)

// ErrCircuitOpen is returned while a publisher has tripped after repeated failures.
var ErrCircuitOpen = errors.New("eventbus: publisher circuit open")

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker
	MaxFailures   int
	RetryInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      10,
		DialTimeout:   5 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		RetryInterval: 30 * time.Second,
	}
}

// RedisPublisher publishes events on Redis pub/sub channels named by Subject.
type RedisPublisher struct {
	client *redis.Client
	nodeID string
	logger zerolog.Logger

	mu        sync.Mutex
	failCount int
	maxFails  int
	openUntil time.Time
	retry     time.Duration
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig, nodeID string, logger zerolog.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("redis event publisher initialized")
	return newRedisPublisher(client, cfg, nodeID, logger), nil
}

func newRedisPublisher(client *redis.Client, cfg RedisConfig, nodeID string, logger zerolog.Logger) *RedisPublisher {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 30 * time.Second
	}
	return &RedisPublisher{
		client:   client,
		nodeID:   nodeID,
		logger:   logger.With().Str("component", "redis_publisher").Logger(),
		maxFails: cfg.MaxFailures,
		retry:    cfg.RetryInterval,
	}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, eventType events.EventType, payload events.Payload) error {
	if p.circuitOpen() {
		return ErrCircuitOpen
	}

	data, err := marshalMessage(eventType, payload, p.nodeID)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, Subject(eventType), data).Err(); err != nil {
		p.recordFailure()
		return fmt.Errorf("redis publish %s: %w", eventType, err)
	}

	p.mu.Lock()
	p.failCount = 0
	p.mu.Unlock()
	return nil
}

func (p *RedisPublisher) circuitOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Now().Before(p.openUntil)
}

// recordFailure opens the circuit for the retry interval once the failure
// threshold is reached.
func (p *RedisPublisher) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failCount++
	if p.failCount >= p.maxFails {
		p.openUntil = time.Now().Add(p.retry)
		p.failCount = 0
		p.logger.Warn().Dur("retry_in", p.retry).Msg("redis failure threshold reached, pausing publishes")
	}
}

// Close closes the Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
