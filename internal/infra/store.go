package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rp-jtw/storefront/internal/config"
	"github.com/rp-jtw/storefront/internal/store"
)

// NewStore picks the session store named by STORE_BACKEND. The matching
// connection must already be open. With SEAL_STORE set, values are
// encrypted under the session secret.
func NewStore(ctx context.Context, cfg config.Config, db *pgxpool.Pool, cache *redis.Client) (store.Store, error) {
	var s store.Store
	switch cfg.StoreBackend {
	case config.StoreRedis:
		if cache == nil {
			return nil, fmt.Errorf("redis store selected without a redis client")
		}
		s = store.NewRedis(cache)
	case config.StorePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres store selected without a database pool")
		}
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		s = pg
	default:
		s = store.NewMemory()
	}

	if cfg.SealStore {
		sealed, err := store.NewSealed(s, cfg.SessionSecret)
		if err != nil {
			return nil, fmt.Errorf("seal store: %w", err)
		}
		return sealed, nil
	}
	return s, nil
}
