package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rp-jtw/storefront/internal/config"
)

// RedisOptions parses REDIS_URL and applies the storefront's client settings.
func RedisOptions(cfg config.Config) (*redis.Options, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.RedisPoolSize > 0 {
		opt.PoolSize = cfg.RedisPoolSize
	}
	if opt.ClientName == "" && cfg.AppName != "" {
		opt.ClientName = strings.ToLower(strings.ReplaceAll(cfg.AppName, " ", "-"))
	}
	return opt, nil
}

// NewRedisClient connects the client shared by the store, idempotency and
// OTP rate limiting.
func NewRedisClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	opt, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
