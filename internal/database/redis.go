package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/config"
)

// Redis wraps the go-redis client used for conversation state.
type Redis struct {
	Client *redis.Client
	logger *zap.Logger
}

// NewRedis creates and verifies a Redis connection.
func NewRedis(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("redis connection established",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
	)

	return &Redis{Client: client, logger: logger}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() {
	if r.Client != nil {
		if err := r.Client.Close(); err != nil {
			r.logger.Warn("redis close failed", zap.Error(err))
			return
		}
		r.logger.Info("redis connection closed")
	}
}

// Ping checks the Redis connection (implements handler.HealthChecker).
func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
