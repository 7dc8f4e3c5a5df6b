// Package sqlite implements the document store on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"mathsprint-service/internal/store"
)

//go:embed schema.sql
var schemaSQL string

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// Store keeps documents in a table keyed by path and collection children in an
// autoincrement table, so append keys are never reused.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ReadOnce(ctx context.Context, path string) ([]byte, bool, error) {
	p, err := store.CleanPath(path)
	if err != nil {
		return nil, false, err
	}
	query, args, err := sqlBuilder.Select("body").From("documents").Where(squirrel.Eq{"path": p}).ToSql()
	if err != nil {
		return nil, false, err
	}
	var body string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(body), true, nil
}

func (s *Store) Write(ctx context.Context, path string, doc []byte) error {
	p, err := store.CleanPath(path)
	if err != nil {
		return err
	}
	query, args, err := sqlBuilder.Insert("documents").
		Columns("path", "body").
		Values(p, string(doc)).
		Suffix("ON CONFLICT(path) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) Append(ctx context.Context, collection string, doc []byte) (string, error) {
	c, err := store.CleanPath(collection)
	if err != nil {
		return "", err
	}
	query, args, err := sqlBuilder.Insert("items").Columns("collection", "body").Values(c, string(doc)).ToSql()
	if err != nil {
		return "", err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return store.FormatKey(uint64(seq)), nil
}

func (s *Store) QueryOrderedByKey(ctx context.Context, collection string, limitToLast int) ([]store.Doc, error) {
	c, err := store.CleanPath(collection)
	if err != nil {
		return nil, err
	}
	q := sqlBuilder.Select("seq", "body").From("items").Where(squirrel.Eq{"collection": c})
	if limitToLast > 0 {
		q = q.OrderBy("seq DESC").Limit(uint64(limitToLast))
	} else {
		q = q.OrderBy("seq ASC")
	}
	docs, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	if limitToLast > 0 {
		for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
			docs[i], docs[j] = docs[j], docs[i]
		}
	}
	return docs, nil
}

func (s *Store) QueryOrderedByField(ctx context.Context, collection, field string, limitToLast int) ([]store.Doc, error) {
	c, err := store.CleanPath(collection)
	if err != nil {
		return nil, err
	}
	docs, err := s.query(ctx, sqlBuilder.Select("seq", "body").From("items").
		Where(squirrel.Eq{"collection": c}).
		OrderBy("seq ASC"))
	if err != nil {
		return nil, err
	}
	// json_extract ordering differs from the store's mixed-type order, so sort here
	store.SortByField(docs, field)
	return store.LimitToLast(docs, limitToLast), nil
}

func (s *Store) query(ctx context.Context, q squirrel.SelectBuilder) ([]store.Doc, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []store.Doc{}
	for rows.Next() {
		var (
			seq  int64
			body string
		)
		if err := rows.Scan(&seq, &body); err != nil {
			return nil, err
		}
		docs = append(docs, store.Doc{Key: store.FormatKey(uint64(seq)), Value: []byte(body)})
	}
	return docs, rows.Err()
}
