package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/domain"
)

// releaseScript deletes a claim only while this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PlayerStore is a Redis-aware implementation of app.PlayerRepository.
// Notes:
//   - Engines hold timers and goroutines, so players themselves stay in a local map.
//   - Each player is claimed in Redis by the instance that runs its engine, so a user
//     never gets two engines on two instances. KeepAlive refreshes the claims; a crashed
//     instance loses them after ttl.
type PlayerStore struct {
	client   *redis.Client
	ttl      time.Duration
	instance string
	mu       sync.RWMutex
	players  map[string]*app.Player
}

func NewPlayerStore(client *redis.Client, ttl time.Duration) *PlayerStore {
	return &PlayerStore{
		client:   client,
		ttl:      ttl,
		instance: uuid.NewString(),
		players:  make(map[string]*app.Player),
	}
}

func (s *PlayerStore) GetOrCreate(ctx context.Context, userID string, newPlayer func() *app.Player) (*app.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player, ok := s.players[userID]; ok {
		// best-effort refresh, KeepAlive covers a miss
		_ = s.client.Expire(ctx, s.key(userID), s.ttl).Err()
		return player, nil
	}

	claimed, err := s.client.SetNX(ctx, s.key(userID), s.instance, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claim player %s: %w", userID, err)
	}
	if !claimed {
		owner, err := s.client.Get(ctx, s.key(userID)).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// the other claim expired between SETNX and GET
			if err := s.client.Set(ctx, s.key(userID), s.instance, s.ttl).Err(); err != nil {
				return nil, fmt.Errorf("claim player %s: %w", userID, err)
			}
		case err != nil:
			return nil, fmt.Errorf("claim player %s: %w", userID, err)
		case owner != s.instance:
			return nil, domain.ErrPlayerElsewhere
		}
	}

	player := newPlayer()
	s.players[userID] = player
	return player, nil
}

func (s *PlayerStore) Get(userID string) (*app.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[userID]
	return player, ok
}

func (s *PlayerStore) DeleteIfIdle(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[userID]
	if !ok {
		return
	}
	if player.IsIdle() {
		delete(s.players, userID)
		_ = releaseScript.Run(context.Background(), s.client, []string{s.key(userID)}, s.instance).Err()
	}
}

// KeepAlive refreshes this instance's claims every interval until ctx is done.
func (s *PlayerStore) KeepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *PlayerStore) refresh(ctx context.Context) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.players))
	for userID := range s.players {
		keys = append(keys, s.key(userID))
	}
	s.mu.RUnlock()
	if len(keys) == 0 {
		return
	}
	_, _ = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Expire(ctx, k, s.ttl)
		}
		return nil
	})
}

func (s *PlayerStore) key(userID string) string {
	return keyPrefix + "player:" + userID
}
