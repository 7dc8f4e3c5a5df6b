package memory

import (
	"context"
	"sync"

	"mathsprint-service/internal/store"
)

// Store is an in-process implementation of store.Store.
type Store struct {
	mu          sync.RWMutex
	docs        map[string][]byte
	collections map[string][]store.Doc
	seq         uint64
}

func NewStore() *Store {
	return &Store{
		docs:        make(map[string][]byte),
		collections: make(map[string][]store.Doc),
	}
}

func (s *Store) ReadOnce(ctx context.Context, path string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p, err := store.CleanPath(path)
	if err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[p]
	if !ok {
		return nil, false, nil
	}
	return clone(doc), true, nil
}

func (s *Store) Write(ctx context.Context, path string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := store.CleanPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[p] = clone(doc)
	return nil
}

func (s *Store) Append(ctx context.Context, collection string, doc []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := store.CleanPath(collection)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// one sequence for the whole store keeps keys monotonic across collections
	s.seq++
	key := store.FormatKey(s.seq)
	s.collections[p] = append(s.collections[p], store.Doc{Key: key, Value: clone(doc)})
	return key, nil
}

func (s *Store) QueryOrderedByKey(ctx context.Context, collection string, limitToLast int) ([]store.Doc, error) {
	docs, err := s.snapshot(ctx, collection)
	if err != nil {
		return nil, err
	}
	return store.LimitToLast(docs, limitToLast), nil
}

func (s *Store) QueryOrderedByField(ctx context.Context, collection, field string, limitToLast int) ([]store.Doc, error) {
	docs, err := s.snapshot(ctx, collection)
	if err != nil {
		return nil, err
	}
	store.SortByField(docs, field)
	return store.LimitToLast(docs, limitToLast), nil
}

func (s *Store) snapshot(ctx context.Context, collection string) ([]store.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := store.CleanPath(collection)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.collections[p]
	docs := make([]store.Doc, len(src))
	for i, d := range src {
		docs[i] = store.Doc{Key: d.Key, Value: clone(d.Value)}
	}
	return docs, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
