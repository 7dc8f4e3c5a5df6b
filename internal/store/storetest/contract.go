// Package storetest holds the behavior every store.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathsprint-service/internal/store"
)

// Run exercises newStore against the store contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("ReadMissing", func(t *testing.T) {
		s := newStore(t)
		doc, found, err := s.ReadOnce(context.Background(), "users/u1/stats")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, doc)
	})

	t.Run("WriteOverwrites", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Write(ctx, "users/u1/stats", []byte(`{"totalProblems":1,"correctAnswers":1}`)))
		require.NoError(t, s.Write(ctx, "users/u1/stats", []byte(`{"totalProblems":2,"correctAnswers":2}`)))

		doc, found, err := s.ReadOnce(ctx, "users/u1/stats")
		require.NoError(t, err)
		require.True(t, found)
		assert.JSONEq(t, `{"totalProblems":2,"correctAnswers":2}`, string(doc))
	})

	t.Run("AppendKeysAreOrdered", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		var keys []string
		for _, doc := range []string{`{"score":1}`, `{"score":2}`, `{"score":3}`} {
			key, err := s.Append(ctx, "users/u1/scores", []byte(doc))
			require.NoError(t, err)
			keys = append(keys, key)
		}
		assert.Less(t, keys[0], keys[1])
		assert.Less(t, keys[1], keys[2])

		docs, err := s.QueryOrderedByKey(ctx, "users/u1/scores", 0)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		for i, d := range docs {
			assert.Equal(t, keys[i], d.Key)
		}

		last, err := s.QueryOrderedByKey(ctx, "users/u1/scores", 2)
		require.NoError(t, err)
		require.Len(t, last, 2)
		assert.JSONEq(t, `{"score":2}`, string(last[0].Value))
		assert.JSONEq(t, `{"score":3}`, string(last[1].Value))
	})

	t.Run("OrderedByField", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		docs := []string{
			`{"uid":"a","score":10}`,
			`{"uid":"b","score":30}`,
			`{"uid":"c","score":20}`,
			`{"uid":"d","score":30}`,
		}
		for _, doc := range docs {
			_, err := s.Append(ctx, "leaderboard", []byte(doc))
			require.NoError(t, err)
		}

		all, err := s.QueryOrderedByField(ctx, "leaderboard", "score", 0)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.JSONEq(t, docs[0], string(all[0].Value))
		assert.JSONEq(t, docs[2], string(all[1].Value))
		assert.JSONEq(t, docs[1], string(all[2].Value))
		assert.JSONEq(t, docs[3], string(all[3].Value))

		top, err := s.QueryOrderedByField(ctx, "leaderboard", "score", 2)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.JSONEq(t, docs[1], string(top[0].Value))
		assert.JSONEq(t, docs[3], string(top[1].Value))
	})

	t.Run("CollectionsAreIsolated", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, err := s.Append(ctx, "users/a/scores", []byte(`{"score":1}`))
		require.NoError(t, err)
		require.NoError(t, s.Write(ctx, "users/b/stats", []byte(`{"totalProblems":1}`)))

		docs, err := s.QueryOrderedByKey(ctx, "users/b/scores", 0)
		require.NoError(t, err)
		assert.Empty(t, docs)

		docs, err = s.QueryOrderedByField(ctx, "missing", "score", 5)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, _, err := s.ReadOnce(ctx, "")
		assert.ErrorIs(t, err, store.ErrInvalidPath)
		assert.ErrorIs(t, s.Write(ctx, " / ", []byte(`{}`)), store.ErrInvalidPath)
		_, err = s.Append(ctx, "", []byte(`{}`))
		assert.ErrorIs(t, err, store.ErrInvalidPath)
	})
}
