package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/domain"
)

const leaderboardKey = "leaderboard"

// LeaderboardCache keeps the raw leaderboard entries with a TTL so a burst of
// game-over screens does not rescan the store for every player.
type LeaderboardCache struct {
	loader app.LeaderboardRepository
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu        sync.RWMutex
	rnd       *rand.Rand
	loaded    bool
	entries   []domain.LeaderboardEntry
	expiresAt time.Time
	// version is bumped by Invalidate so an in-flight load cannot store stale entries
	version uint64
}

func NewLeaderboardCache(loader app.LeaderboardRepository, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) Entries(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if entries, ok := c.cached(c.clock()); ok {
		return entries, nil
	}

	c.mu.RLock()
	version := c.version
	c.mu.RUnlock()

	// loads are shared per version, so a read after Invalidate never joins an older load
	result, err, _ := c.sf.Do(leaderboardKey+":"+strconv.FormatUint(version, 10), func() (interface{}, error) {
		now := c.clock()
		if entries, ok := c.cached(now); ok {
			return entries, nil
		}

		entries, err := c.loader.Entries(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.version == version {
			c.loaded = true
			c.entries = entries
			c.expiresAt = now.Add(c.ttlWithJitter())
		}
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

// Invalidate drops the cached entries.
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.loaded = false
	c.entries = nil
	c.expiresAt = time.Time{}
	c.version++
	c.mu.Unlock()
	c.loader.Invalidate(ctx)
}

func (c *LeaderboardCache) cached(now time.Time) ([]domain.LeaderboardEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loaded && c.expiresAt.After(now) {
		return c.entries, true
	}
	return nil, false
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
