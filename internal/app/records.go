package app

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mathsprint-service/internal/domain"
	"mathsprint-service/internal/store"
)

const leaderboardPath = "leaderboard"

func usernamePath(userID string) string { return "users/" + userID + "/username" }
func statsPath(userID string) string    { return "users/" + userID + "/stats" }
func scoresPath(userID string) string   { return "users/" + userID + "/scores" }

// Records maps the game's persistent data onto store paths:
//
//	users/{uid}/username  display name
//	users/{uid}/stats     cumulative counters
//	users/{uid}/scores    per-user results, append only
//	leaderboard           global results, append only
type Records struct {
	store store.Store
	async store.Async
}

func NewRecords(s store.Store) *Records {
	return &Records{store: s, async: store.Async{Store: s}}
}

// SetDisplayName stores the name shown on the leaderboard.
func (r *Records) SetDisplayName(ctx context.Context, userID, name string) error {
	return r.writeJSON(ctx, usernamePath(userID), name)
}

// DisplayName returns the stored name or "" when none was set.
func (r *Records) DisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	if _, err := r.readJSON(ctx, usernamePath(userID), &name); err != nil {
		return "", err
	}
	return name, nil
}

// Counters returns the user's counters; a missing record reads as zero.
func (r *Records) Counters(ctx context.Context, userID string) (domain.UserCounters, error) {
	var c domain.UserCounters
	if _, err := r.readJSON(ctx, statsPath(userID), &c); err != nil {
		return domain.UserCounters{}, err
	}
	return c, nil
}

// IncrementCounters adds one correct answer to both counters. The read and the write
// are separate store calls; callers serialize increments per user.
func (r *Records) IncrementCounters(ctx context.Context, userID string) error {
	c, err := r.Counters(ctx, userID)
	if err != nil {
		return err
	}
	c.TotalProblems++
	c.CorrectAnswers++
	return r.writeJSON(ctx, statsPath(userID), c)
}

// AppendResult records a finished session in the user's history and the global
// leaderboard. Both appends run concurrently.
func (r *Records) AppendResult(ctx context.Context, userID, displayName string, result domain.SessionResult) error {
	if displayName == "" {
		displayName = userID
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.appendJSON(ctx, scoresPath(userID), result)
	})
	g.Go(func() error {
		return r.appendJSON(ctx, leaderboardPath, domain.LeaderboardEntry{
			UserID:      userID,
			DisplayName: displayName,
			Score:       result.Score,
			Timestamp:   result.Timestamp,
		})
	})
	return g.Wait()
}

// History returns the user's last limit results in chronological order; limit <= 0
// returns all of them.
func (r *Records) History(ctx context.Context, userID string, limit int) ([]domain.SessionResult, error) {
	docs, err := r.store.QueryOrderedByKey(ctx, scoresPath(userID), limit)
	if err != nil {
		return nil, err
	}
	return decodeDocs[domain.SessionResult](docs)
}

// Entries returns every leaderboard entry ordered by ascending score, ties in insertion order.
func (r *Records) Entries(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	docs, err := r.store.QueryOrderedByField(ctx, leaderboardPath, "score", 0)
	if err != nil {
		return nil, err
	}
	return decodeDocs[domain.LeaderboardEntry](docs)
}

// Invalidate is a no-op; Records always reads through to the store.
func (r *Records) Invalidate(context.Context) {}

// Profile loads the full history and the counters concurrently.
func (r *Records) Profile(ctx context.Context, userID string) ([]domain.SessionResult, domain.UserCounters, error) {
	historyF := r.async.QueryOrderedByKey(ctx, scoresPath(userID), 0)
	countersF := r.async.ReadOnce(ctx, statsPath(userID))

	docs, err := historyF.Await(ctx)
	if err != nil {
		return nil, domain.UserCounters{}, err
	}
	history, err := decodeDocs[domain.SessionResult](docs)
	if err != nil {
		return nil, domain.UserCounters{}, err
	}

	res, err := countersF.Await(ctx)
	if err != nil {
		return nil, domain.UserCounters{}, err
	}
	var counters domain.UserCounters
	if res.Found {
		if err := json.Unmarshal(res.Doc, &counters); err != nil {
			return nil, domain.UserCounters{}, fmt.Errorf("decode %s: %w", statsPath(userID), err)
		}
	}
	return history, counters, nil
}

func (r *Records) readJSON(ctx context.Context, path string, v any) (bool, error) {
	raw, found, err := r.store.ReadOnce(ctx, path)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (r *Records) writeJSON(ctx context.Context, path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.store.Write(ctx, path, raw)
}

func (r *Records) appendJSON(ctx context.Context, collection string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.store.Append(ctx, collection, raw)
	return err
}

func decodeDocs[T any](docs []store.Doc) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
