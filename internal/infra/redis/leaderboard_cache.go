package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/domain"
)

const leaderboardGenerationKey = keyPrefix + "leaderboard:generation"

// LeaderboardCache keeps a JSON snapshot of the raw leaderboard entries in Redis so
// every instance shares one cached copy. Misses fall back to the loader.
//
//	mathsprint:leaderboard:snapshot    JSON array of entries, expires after ttl plus jitter
//	mathsprint:leaderboard:generation  bumped by Invalidate; a load only stores its snapshot
//	                                   if the generation it started under is still current
type LeaderboardCache struct {
	client *redis.Client
	loader app.LeaderboardRepository
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLeaderboardCache(client *redis.Client, loader app.LeaderboardRepository, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) Entries(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if entries, ok := c.cached(ctx); ok {
		return entries, nil
	}

	gen, err := c.generation(ctx)
	if err != nil {
		// without a generation the snapshot cannot be guarded, so skip caching
		return c.loader.Entries(ctx)
	}

	result, err, _ := c.sf.Do(c.snapshotKey()+":"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if entries, ok := c.cached(ctx); ok {
			return entries, nil
		}

		entries, err := c.loader.Entries(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(entries); err == nil {
			// a failed or skipped cache write only costs a reload
			_ = c.store(ctx, gen, raw)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

// Invalidate bumps the generation and deletes the shared snapshot.
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	_, _ = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey())
		pipe.Del(ctx, c.snapshotKey())
		return nil
	})
	c.loader.Invalidate(ctx)
}

// store writes raw as the snapshot unless the generation moved past gen.
func (c *LeaderboardCache) store(ctx context.Context, gen uint64, raw []byte) error {
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.snapshotKey(), raw, c.ttlWithJitter())
			return nil
		})
		return err
	}, c.generationKey())
}

func (c *LeaderboardCache) generation(ctx context.Context) (uint64, error) {
	return readGeneration(ctx, c.client)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, r getter) (uint64, error) {
	gen, err := r.Get(ctx, leaderboardGenerationKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *LeaderboardCache) cached(ctx context.Context) ([]domain.LeaderboardEntry, bool) {
	raw, err := c.client.Get(ctx, c.snapshotKey()).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *LeaderboardCache) snapshotKey() string {
	return keyPrefix + "leaderboard:snapshot"
}

func (c *LeaderboardCache) generationKey() string {
	return leaderboardGenerationKey
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
