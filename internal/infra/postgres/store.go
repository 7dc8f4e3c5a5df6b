package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mathsprint-service/internal/store"
)

// Store implements store.Store on Postgres JSONB. Tables come from the bun migrations in
// the migrations package.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) ReadOnce(ctx context.Context, path string) ([]byte, bool, error) {
	p, err := store.CleanPath(path)
	if err != nil {
		return nil, false, err
	}
	var raw string
	err = s.pool.QueryRow(ctx, `SELECT body::text FROM documents WHERE path=$1`, p).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", p, err)
	}
	return []byte(raw), true, nil
}

func (s *Store) Write(ctx context.Context, path string, doc []byte) error {
	p, err := store.CleanPath(path)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO documents (path, body) VALUES ($1, $2::jsonb)
ON CONFLICT (path) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`, p, string(doc))
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, collection string, doc []byte) (string, error) {
	c, err := store.CleanPath(collection)
	if err != nil {
		return "", err
	}
	var seq int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO collection_items (collection, body) VALUES ($1, $2::jsonb) RETURNING seq`,
		c, string(doc)).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("append %s: %w", c, err)
	}
	return store.FormatKey(uint64(seq)), nil
}

func (s *Store) QueryOrderedByKey(ctx context.Context, collection string, limitToLast int) ([]store.Doc, error) {
	c, err := store.CleanPath(collection)
	if err != nil {
		return nil, err
	}
	// LIMIT NULL means no limit
	var limit *int64
	if limitToLast > 0 {
		n := int64(limitToLast)
		limit = &n
	}
	return s.query(ctx, `
SELECT seq, body FROM (
    SELECT seq, body::text AS body FROM collection_items WHERE collection=$1 ORDER BY seq DESC LIMIT $2
) last ORDER BY seq ASC`, c, limit)
}

func (s *Store) QueryOrderedByField(ctx context.Context, collection, field string, limitToLast int) ([]store.Doc, error) {
	c, err := store.CleanPath(collection)
	if err != nil {
		return nil, err
	}
	docs, err := s.query(ctx, `SELECT seq, body::text FROM collection_items WHERE collection=$1 ORDER BY seq ASC`, c)
	if err != nil {
		return nil, err
	}
	// jsonb ordering ranks types differently from the store contract, so sort here
	store.SortByField(docs, field)
	return store.LimitToLast(docs, limitToLast), nil
}

func (s *Store) query(ctx context.Context, sql string, args ...interface{}) ([]store.Doc, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	docs := []store.Doc{}
	for rows.Next() {
		var (
			seq  int64
			body string
		)
		if err := rows.Scan(&seq, &body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		docs = append(docs, store.Doc{Key: store.FormatKey(uint64(seq)), Value: []byte(body)})
	}
	return docs, rows.Err()
}
