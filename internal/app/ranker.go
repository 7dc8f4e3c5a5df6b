package app

import (
	"sort"
	"time"

	"mathsprint-service/internal/domain"
)

// Rank orders entries by descending score and keeps the first limit; limit <= 0 keeps
// all. The full set is sorted before truncation, and equal scores keep their input order.
func Rank(entries []domain.LeaderboardEntry, limit int) []domain.LeaderboardEntry {
	out := make([]domain.LeaderboardEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// BuildLeaderboard ranks entries and numbers them from 1.
func BuildLeaderboard(entries []domain.LeaderboardEntry, limit int, now time.Time) domain.Leaderboard {
	ranked := Rank(entries, limit)
	lb := domain.Leaderboard{
		Entries:   make([]domain.RankedEntry, 0, len(ranked)),
		NoData:    len(ranked) == 0,
		UpdatedAt: now,
	}
	for i, e := range ranked {
		lb.Entries = append(lb.Entries, domain.RankedEntry{Rank: i + 1, LeaderboardEntry: e})
	}
	return lb
}
