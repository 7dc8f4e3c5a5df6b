package memory

import (
	"context"
	"sync"

	"mathsprint-service/internal/app"
)

// PlayerStore is an in-memory implementation of app.PlayerRepository.
type PlayerStore struct {
	mu      sync.RWMutex
	players map[string]*app.Player
}

func NewPlayerStore() *PlayerStore {
	return &PlayerStore{
		players: make(map[string]*app.Player),
	}
}

func (s *PlayerStore) GetOrCreate(_ context.Context, userID string, newPlayer func() *app.Player) (*app.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player, ok := s.players[userID]; ok {
		return player, nil
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
	}
}
