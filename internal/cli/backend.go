package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/config"
	"mathsprint-service/internal/infra/bolt"
	"mathsprint-service/internal/infra/memory"
	pgstore "mathsprint-service/internal/infra/postgres"
	redisinfra "mathsprint-service/internal/infra/redis"
	"mathsprint-service/internal/infra/sqlite"
	"mathsprint-service/internal/store"
)

// backend bundles the store selected by store.backend with the resources it holds.
type backend struct {
	store  store.Store
	redis  *redis.Client
	closer []func()
}

func (b *backend) Close() {
	for i := len(b.closer) - 1; i >= 0; i-- {
		b.closer[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	b := &backend{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		client := b.redis
		b.closer = append(b.closer, func() { _ = client.Close() })
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		b.store = memory.NewStore()
	case config.BackendRedis:
		if b.redis == nil {
			b.Close()
			return nil, fmt.Errorf("redis backend needs redis.addr")
		}
		b.store = redisinfra.NewStore(b.redis)
	case config.BackendBolt:
		s, err := bolt.Open(cfg.Bolt.Path)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.store = s
		b.closer = append(b.closer, func() { _ = s.Close() })
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.store = s
		b.closer = append(b.closer, func() { _ = s.Close() })
	case config.BackendPostgres:
		if cfg.Postgres.URL == "" {
			b.Close()
			return nil, fmt.Errorf("postgres backend needs postgres.url")
		}
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			b.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.store = pgstore.NewStore(pool)
		b.closer = append(b.closer, pool.Close)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	log.Info("store ready", zap.String("backend", cfg.Store.Backend))
	return b, nil
}

// leaderboard puts a cache in front of records: shared in redis when configured,
// per process otherwise.
func (b *backend) leaderboard(records *app.Records, ttl time.Duration) app.LeaderboardRepository {
	if b.redis != nil {
		return redisinfra.NewLeaderboardCache(b.redis, records, ttl)
	}
	return memory.NewLeaderboardCache(records, ttl)
}

// players claims users in redis when it is configured, so two instances never run
// engines for the same user. The claims are refreshed until the backend is closed.
func (b *backend) players(ctx context.Context, ttl time.Duration) app.PlayerRepository {
	if b.redis == nil {
		return memory.NewPlayerStore()
	}
	store := redisinfra.NewPlayerStore(b.redis, ttl)
	ctx, cancel := context.WithCancel(ctx)
	b.closer = append(b.closer, cancel)
	go store.KeepAlive(ctx, ttl/3)
	return store
}
