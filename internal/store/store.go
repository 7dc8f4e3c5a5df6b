// Package store defines the document store contract the game core persists through.
//
// Paths are slash separated ("users/u1/stats"). A collection is a path whose children are
// created by Append; child ids are zero-padded sequence numbers, so lexical order is
// insertion order. Values are JSON documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned for empty or malformed paths.
var ErrInvalidPath = errors.New("invalid store path")

// Doc is one child of a collection.
type Doc struct {
	Key   string
	Value []byte
}

// Store is the document store consumed by the game core. Every operation either
// happens completely or not at all; a returned error means "did not happen".
type Store interface {
	// ReadOnce returns the document at path; found is false when nothing is stored there.
	ReadOnce(ctx context.Context, path string) (doc []byte, found bool, err error)
	// Write overwrites the document at path.
	Write(ctx context.Context, path string, doc []byte) error
	// Append adds doc to collection under a new, monotonically increasing key.
	Append(ctx context.Context, collection string, doc []byte) (string, error)
	// QueryOrderedByKey returns the collection in key order; limitToLast > 0 keeps the last N.
	QueryOrderedByKey(ctx context.Context, collection string, limitToLast int) ([]Doc, error)
	// QueryOrderedByField returns the collection ordered by a child field, ties by key;
	// limitToLast > 0 keeps the last N.
	QueryOrderedByField(ctx context.Context, collection, field string, limitToLast int) ([]Doc, error)
}

const keyWidth = 20

// FormatKey renders a sequence number as an append key.
func FormatKey(seq uint64) string {
	return fmt.Sprintf("%0*d", keyWidth, seq)
}

// ParseKey is the inverse of FormatKey.
func ParseKey(key string) (uint64, error) {
	return strconv.ParseUint(key, 10, 64)
}

// CleanPath validates and normalizes a path.
func CleanPath(path string) (string, error) {
	p := strings.Trim(strings.TrimSpace(path), "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(p, "/") {
		if part == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return p, nil
}

// LimitToLast keeps the last n docs; n <= 0 keeps all.
func LimitToLast(docs []Doc, n int) []Doc {
	if n <= 0 || n >= len(docs) {
		return docs
	}
	return docs[len(docs)-n:]
}
