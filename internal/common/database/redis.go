// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"book-availability/internal/common/config"

	"github.com/redis/go-redis/v9"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// RedisClient wraps the Redis client shared by the cache and the rate limiter.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a Redis client. No connection is made until first use.
func NewRedis(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Status reports connected or disconnected for health output.
func (c *RedisClient) Status(ctx context.Context) string {
	if c == nil || c.Client == nil {
		return StatusDisconnected
	}
	if err := c.Ping(ctx); err != nil {
		return StatusDisconnected
	}
	return StatusConnected
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
