package metrics

import "context"

// Cache lookup outcomes
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheCorrupt = "corrupt"
)

// Collector is the interface for metrics collection.
// Implementations include the Prometheus-backed collector and the no-op
// collector (default build without the metrics tag).
type Collector interface {
	RecordOperation(ctx context.Context, operation string, status string, durationMs int64)
	RecordStage(ctx context.Context, operation string, stage string, durationMs int64)
	RecordError(ctx context.Context, operation string, errorType string)
	RecordCacheLookup(ctx context.Context, result string)
	SetCacheEntries(ctx context.Context, count int64)
}
