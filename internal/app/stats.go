package app

import (
	"math"

	"mathsprint-service/internal/domain"
)

// Summarize derives a user's statistics from their full history (oldest first) and
// counters. Averages and accuracy are rounded to one decimal.
func Summarize(history []domain.SessionResult, counters domain.UserCounters) domain.Summary {
	s := domain.Summary{
		GamesPlayed:    len(history),
		TotalProblems:  counters.TotalProblems,
		CorrectAnswers: counters.CorrectAnswers,
		NoData:         len(history) == 0,
	}

	total := 0
	for _, r := range history {
		total += r.Score
		if r.Score > s.BestScore {
			s.BestScore = r.Score
		}
	}
	if s.GamesPlayed > 0 {
		s.AverageScore = roundTenth(float64(total) / float64(s.GamesPlayed))
	}
	if counters.TotalProblems > 0 {
		s.Accuracy = roundTenth(float64(counters.CorrectAnswers) / float64(counters.TotalProblems) * 100)
	}
	return s
}

// RecentHistory returns at most limit results, newest first. limit <= 0 returns all.
func RecentHistory(history []domain.SessionResult, limit int) []domain.SessionResult {
	n := len(history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.SessionResult, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, history[i])
	}
	return out
}

func roundTenth(x float64) float64 {
	return math.Round(x*10) / 10
}
