package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mathsprint-service/internal/store"
)

const keyPrefix = "mathsprint:"

// Store implements store.Store on Redis.
//
//	mathsprint:doc:{path}  string, the document at path
//	mathsprint:seq:{coll}  counter handing out append keys
//	mathsprint:col:{coll}  hash of key -> document
//	mathsprint:idx:{coll}  sorted set of keys scored by sequence, for key-ordered range reads
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) ReadOnce(ctx context.Context, path string) ([]byte, bool, error) {
	p, err := store.CleanPath(path)
	if err != nil {
		return nil, false, err
	}
	raw, err := s.client.Get(ctx, keyPrefix+"doc:"+p).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *Store) Write(ctx context.Context, path string, doc []byte) error {
	p, err := store.CleanPath(path)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+"doc:"+p, doc, 0).Err()
}

func (s *Store) Append(ctx context.Context, collection string, doc []byte) (string, error) {
	c, err := store.CleanPath(collection)
	if err != nil {
		return "", err
	}
	seq, err := s.client.Incr(ctx, keyPrefix+"seq:"+c).Result()
	if err != nil {
		return "", err
	}
	key := store.FormatKey(uint64(seq))
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, keyPrefix+"col:"+c, key, doc)
		pipe.ZAdd(ctx, keyPrefix+"idx:"+c, redis.Z{Score: float64(seq), Member: key})
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) QueryOrderedByKey(ctx context.Context, collection string, limitToLast int) ([]store.Doc, error) {
	c, err := store.CleanPath(collection)
	if err != nil {
		return nil, err
	}
	start := int64(0)
	if limitToLast > 0 {
		start = -int64(limitToLast)
	}
	keys, err := s.client.ZRange(ctx, keyPrefix+"idx:"+c, start, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []store.Doc{}, nil
	}
	values, err := s.client.HMGet(ctx, keyPrefix+"col:"+c, keys...).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]store.Doc, 0, len(keys))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("collection %s: missing document %s", c, keys[i])
		}
		docs = append(docs, store.Doc{Key: keys[i], Value: []byte(str)})
	}
	return docs, nil
}

func (s *Store) QueryOrderedByField(ctx context.Context, collection, field string, limitToLast int) ([]store.Doc, error) {
	c, err := store.CleanPath(collection)
	if err != nil {
		return nil, err
	}
	all, err := s.client.HGetAll(ctx, keyPrefix+"col:"+c).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]store.Doc, 0, len(all))
	for k, v := range all {
		docs = append(docs, store.Doc{Key: k, Value: []byte(v)})
	}
	store.SortByField(docs, field)
	return store.LimitToLast(docs, limitToLast), nil
}
