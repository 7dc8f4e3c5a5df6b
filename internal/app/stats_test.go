package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/domain"
)

func results(scores ...int) []domain.SessionResult {
	out := make([]domain.SessionResult, 0, len(scores))
	for i, s := range scores {
		out = append(out, domain.SessionResult{Score: s, Timestamp: clockEpoch.Add(time.Duration(i) * time.Minute)})
	}
	return out
}

func TestSummarizeEmptyHistory(t *testing.T) {
	s := app.Summarize(nil, domain.UserCounters{})

	assert.Equal(t, 0, s.GamesPlayed)
	assert.Equal(t, 0, s.BestScore)
	assert.Equal(t, 0.0, s.AverageScore)
	assert.Equal(t, 0.0, s.Accuracy)
	assert.True(t, s.NoData)
}

func TestSummarizeComputesAverageAndAccuracy(t *testing.T) {
	s := app.Summarize(results(10, 20), domain.UserCounters{TotalProblems: 10, CorrectAnswers: 5})

	assert.Equal(t, 2, s.GamesPlayed)
	assert.Equal(t, 20, s.BestScore)
	assert.Equal(t, 15.0, s.AverageScore)
	assert.Equal(t, 50.0, s.Accuracy)
	assert.Equal(t, 10, s.TotalProblems)
	assert.Equal(t, 5, s.CorrectAnswers)
	assert.False(t, s.NoData)
}

func TestSummarizeRoundsToOneDecimal(t *testing.T) {
	s := app.Summarize(results(1, 2, 2), domain.UserCounters{TotalProblems: 3, CorrectAnswers: 2})

	assert.Equal(t, 1.7, s.AverageScore)
	assert.Equal(t, 66.7, s.Accuracy)
}

func TestSummarizeCountersWithoutHistory(t *testing.T) {
	s := app.Summarize(nil, domain.UserCounters{TotalProblems: 4, CorrectAnswers: 4})

	assert.Equal(t, 100.0, s.Accuracy)
	assert.Equal(t, 0.0, s.AverageScore)
}

func TestRecentHistoryNewestFirst(t *testing.T) {
	h := results(1, 2, 3, 4, 5, 6)

	recent := app.RecentHistory(h, 3)
	assert.Equal(t, []int{6, 5, 4}, scoresOf(recent))

	assert.Equal(t, []int{6, 5, 4, 3, 2, 1}, scoresOf(app.RecentHistory(h, 0)))
	assert.Equal(t, []int{6, 5, 4, 3, 2, 1}, scoresOf(app.RecentHistory(h, 50)))
	assert.Empty(t, app.RecentHistory(nil, 5))
	// the input is left untouched
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, scoresOf(h))
}

func scoresOf(rs []domain.SessionResult) []int {
	out := make([]int, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Score)
	}
	return out
}
