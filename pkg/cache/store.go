// Package cache provides the persistent key/value stores backing the query cache
package cache

import "context"

// Store is the cache collaborator used by the query layer.
// Implementations must be safe for concurrent use and must never expose a
// partially written value to a reader.
type Store interface {
	// Get returns the value stored under key. ok is false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
}

// Stats reports cache contents and lookup counters since the store was opened.
type Stats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Maintainer is implemented by stores that can report on and prune their contents.
type Maintainer interface {
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context, expiredOnly bool) (int64, error)
}
