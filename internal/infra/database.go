package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rp-jtw/storefront/internal/config"
)

// PostgresConfig parses DATABASE_URL and applies the storefront's pool settings.
func PostgresConfig(cfg config.Config) (*pgxpool.Config, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
	}
	if cfg.AppName != "" {
		if _, set := poolCfg.ConnConfig.RuntimeParams["application_name"]; !set {
			poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
		}
	}
	return poolCfg, nil
}

// NewPostgresPool opens the pool backing the session store and verifies it.
func NewPostgresPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := PostgresConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
