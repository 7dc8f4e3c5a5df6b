package store

import (
	"context"

	"mathsprint-service/internal/async"
)

// Async exposes a Store whose operations return futures.
type Async struct {
	Store Store
}

// ReadOnceResult is the value carried by a ReadOnce future.
type ReadOnceResult struct {
	Doc   []byte
	Found bool
}

func (a Async) ReadOnce(ctx context.Context, path string) *async.Future[ReadOnceResult] {
	return async.Go(func() (ReadOnceResult, error) {
		doc, found, err := a.Store.ReadOnce(ctx, path)
		return ReadOnceResult{Doc: doc, Found: found}, err
	})
}

func (a Async) Write(ctx context.Context, path string, doc []byte) *async.Future[struct{}] {
	return async.Go(func() (struct{}, error) {
		return struct{}{}, a.Store.Write(ctx, path, doc)
	})
}

func (a Async) Append(ctx context.Context, collection string, doc []byte) *async.Future[string] {
	return async.Go(func() (string, error) {
		return a.Store.Append(ctx, collection, doc)
	})
}

func (a Async) QueryOrderedByKey(ctx context.Context, collection string, limitToLast int) *async.Future[[]Doc] {
	return async.Go(func() ([]Doc, error) {
		return a.Store.QueryOrderedByKey(ctx, collection, limitToLast)
	})
}

func (a Async) QueryOrderedByField(ctx context.Context, collection, field string, limitToLast int) *async.Future[[]Doc] {
	return async.Go(func() ([]Doc, error) {
		return a.Store.QueryOrderedByField(ctx, collection, field, limitToLast)
	})
}
