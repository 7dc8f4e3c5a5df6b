package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/domain"
)

func entry(id string, score int) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{UserID: id, DisplayName: id, Score: score, Timestamp: clockEpoch}
}

func idsOf(entries []domain.LeaderboardEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.UserID)
	}
	return out
}

func TestRankDescendingByScore(t *testing.T) {
	ranked := app.Rank([]domain.LeaderboardEntry{entry("a", 10), entry("b", 30), entry("c", 20)}, 0)
	assert.Equal(t, []string{"b", "c", "a"}, idsOf(ranked))
}

func TestRankTiesKeepInsertionOrder(t *testing.T) {
	ranked := app.Rank([]domain.LeaderboardEntry{entry("A", 5), entry("B", 5)}, 0)
	assert.Equal(t, []string{"A", "B"}, idsOf(ranked))

	ranked = app.Rank([]domain.LeaderboardEntry{
		entry("x", 1), entry("A", 7), entry("y", 9), entry("B", 7), entry("C", 7),
	}, 0)
	assert.Equal(t, []string{"y", "A", "B", "C", "x"}, idsOf(ranked))
}

func TestRankLimitAppliesAfterSorting(t *testing.T) {
	in := []domain.LeaderboardEntry{entry("a", 1), entry("b", 2), entry("c", 50), entry("d", 40)}

	ranked := app.Rank(in, 2)
	assert.Equal(t, []string{"c", "d"}, idsOf(ranked))
	assert.Equal(t, []string{"a", "b", "c", "d"}, idsOf(in), "input must not be reordered")
	assert.Len(t, app.Rank(in, 10), 4)
	assert.Empty(t, app.Rank(nil, 5))
}

func TestBuildLeaderboardNumbersRanks(t *testing.T) {
	lb := app.BuildLeaderboard([]domain.LeaderboardEntry{entry("a", 3), entry("b", 9)}, 5, clockEpoch)
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, "b", lb.Entries[0].UserID)
	assert.Equal(t, 2, lb.Entries[1].Rank)
	assert.False(t, lb.NoData)
	assert.Equal(t, clockEpoch, lb.UpdatedAt)

	empty := app.BuildLeaderboard(nil, 5, clockEpoch)
	assert.True(t, empty.NoData)
	assert.Empty(t, empty.Entries)
}
