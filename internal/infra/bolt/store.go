// Package bolt implements the document store on an embedded bbolt file.
package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"mathsprint-service/internal/store"
)

const (
	docBucket        = "docs"
	collectionBucket = "collections"
)

// Store provides a BoltDB-backed document store. Documents live in one bucket keyed by
// path; every collection is a nested bucket whose keys come from its own sequence.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ReadOnce(ctx context.Context, path string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p, err := store.CleanPath(path)
	if err != nil {
		return nil, false, err
	}

	var out []byte
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(docBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", docBucket)
		}
		if v := bucket.Get([]byte(p)); v != nil {
			// bolt values are only valid for the life of the transaction
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *Store) Write(ctx context.Context, path string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := store.CleanPath(path)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(docBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", docBucket)
		}
		return bucket.Put([]byte(p), doc)
	})
}

func (s *Store) Append(ctx context.Context, collection string, doc []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c, err := store.CleanPath(collection)
	if err != nil {
		return "", err
	}

	var key string
	err = s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(collectionBucket))
		if root == nil {
			return fmt.Errorf("%s bucket is missing", collectionBucket)
		}
		bucket, err := root.CreateBucketIfNotExists([]byte(c))
		if err != nil {
			return fmt.Errorf("create collection %s: %w", c, err)
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key = store.FormatKey(seq)
		return bucket.Put([]byte(key), doc)
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) QueryOrderedByKey(ctx context.Context, collection string, limitToLast int) ([]store.Doc, error) {
	docs, err := s.scan(ctx, collection)
	if err != nil {
		return nil, err
	}
	// bolt iterates keys in byte order, which is append order for formatted keys
	return store.LimitToLast(docs, limitToLast), nil
}

func (s *Store) QueryOrderedByField(ctx context.Context, collection, field string, limitToLast int) ([]store.Doc, error) {
	docs, err := s.scan(ctx, collection)
	if err != nil {
		return nil, err
	}
	store.SortByField(docs, field)
	return store.LimitToLast(docs, limitToLast), nil
}

func (s *Store) scan(ctx context.Context, collection string) ([]store.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := store.CleanPath(collection)
	if err != nil {
		return nil, err
	}

	docs := []store.Doc{}
	err = s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(collectionBucket))
		if root == nil {
			return fmt.Errorf("%s bucket is missing", collectionBucket)
		}
		bucket := root.Bucket([]byte(c))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			docs = append(docs, store.Doc{Key: string(k), Value: append([]byte(nil), v...)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{docBucket, collectionBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
