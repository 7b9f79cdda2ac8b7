// Package airesponse ties the query cache layer and the structured extractor
// to configuration, logging, metrics and trace export.
package airesponse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dan-solli/airesponse/pkg/cache"
	"github.com/dan-solli/airesponse/pkg/config"
	"github.com/dan-solli/airesponse/pkg/extract"
	"github.com/dan-solli/airesponse/pkg/llm"
	"github.com/dan-solli/airesponse/pkg/metrics"
	"github.com/dan-solli/airesponse/pkg/query"
	"github.com/dan-solli/airesponse/pkg/trace"
)

// Client is the main entry point: it owns the model client, the cache store
// and the observability sinks built from a config.Config.
type Client struct {
	cfg      config.Config
	querier  *query.Querier
	store    cache.Store
	metrics  metrics.Collector
	exporter trace.Exporter
	logger   *slog.Logger
}

// New builds a Client from cfg: an OpenAI/Azure completer, the SQLite cache
// when enabled, the metrics collector when enabled and the trace exporter.
// A nil cfg means config.Default().
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	completer := llm.NewOpenAIClient(cfg.Credentials)
	completer.BaseURL = cfg.Client.BaseURL
	completer.MaxRetries = cfg.Client.MaxRetries
	completer.StrictFinish = cfg.Client.StrictFinish
	if cfg.Client.RetryDelay > 0 {
		completer.RetryDelay = cfg.Client.RetryDelay
	}
	if cfg.Client.RequestTimeout > 0 {
		completer.RequestTimeout = cfg.Client.RequestTimeout
	}

	var store cache.Store
	if cfg.Cache.Enabled {
		s, err := cache.NewSQLiteStore(cfg.Cache.Path, cache.SQLiteOptions{
			Driver: cfg.Cache.Driver,
			TTL:    cfg.Cache.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCache, err)
		}
		store = s
	}

	c, err := NewWithClients(cfg, completer, store)
	if err != nil {
		if closer, ok := store.(io.Closer); ok {
			closer.Close()
		}
		return nil, err
	}
	return c, nil
}

// NewWithClients builds a Client around an existing completer and store.
// A nil store disables caching. Used by tests and by callers with their own transport.
func NewWithClients(cfg *config.Config, completer llm.Completer, store cache.Store) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}

	q := query.New(completer, store)
	if cfg.Query.MaxParallel > 0 {
		q.MaxParallel = cfg.Query.MaxParallel
	}
	if cfg.Query.DefaultOptions != nil {
		q.Defaults = cfg.Query.DefaultOptions
	}

	exporter, err := trace.NewFileExporter(cfg.TracePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	c := &Client{
		cfg:      *cfg,
		querier:  q,
		store:    store,
		exporter: exporter,
	}
	if cfg.Metrics {
		c.metrics = metrics.Default()
		q.Metrics = c.metrics
	}
	return c, nil
}

// WithLogger sets the logger for the client and every component it owns.
// A nil logger discards output.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	c.querier.WithLogger(logger)
	if oc, ok := c.querier.Completer.(*llm.OpenAIClient); ok {
		oc.Logger = logger
	}
	return c
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Metrics returns the active collector, or nil when metrics are disabled
func (c *Client) Metrics() metrics.Collector {
	return c.metrics
}

// Close flushes the trace exporter and closes the cache store.
func (c *Client) Close() error {
	var errs []error
	if err := c.exporter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close trace exporter: %w", err))
	}
	if closer, ok := c.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%w: close store: %w", ErrCache, err))
		}
	}
	return errors.Join(errs...)
}

// CacheStats reports the store's entry count and lookup counters.
func (c *Client) CacheStats(ctx context.Context) (cache.Stats, error) {
	m, ok := c.store.(cache.Maintainer)
	if !ok {
		return cache.Stats{}, fmt.Errorf("%w: store does not report stats", ErrCache)
	}
	stats, err := m.Stats(ctx)
	if err != nil {
		return cache.Stats{}, fmt.Errorf("%w: %w", ErrCache, err)
	}
	return stats, nil
}

// ClearCache removes cached responses, or only expired ones when expiredOnly
// is set, and returns how many were removed.
func (c *Client) ClearCache(ctx context.Context, expiredOnly bool) (int64, error) {
	m, ok := c.store.(cache.Maintainer)
	if !ok {
		return 0, fmt.Errorf("%w: store cannot be cleared", ErrCache)
	}
	n, err := m.Clear(ctx, expiredOnly)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCache, err)
	}
	c.log().Info("cache cleared", "removed", n, "expired_only", expiredOnly)
	c.updateCacheGauge(ctx)
	return n, nil
}

// finish records metrics and exports the trace for one operation.
func (c *Client) finish(ctx context.Context, operation string, start time.Time, t *OperationTrace, err error, ids map[string]interface{}) {
	t.TotalDurationMs = time.Since(start).Milliseconds()

	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
			c.metrics.RecordError(ctx, operation, ClassifyError(err))
		}
		c.metrics.RecordOperation(ctx, operation, status, t.TotalDurationMs)
		for _, s := range t.Spans {
			c.metrics.RecordStage(ctx, operation, s.Name, s.DurationMs)
		}
	}

	if exportErr := c.exporter.Export(ctx, t.record(operation, start, err, ids)); exportErr != nil {
		c.log().Warn("failed to export trace", "operation", operation, "error", exportErr)
	}
}

func (c *Client) updateCacheGauge(ctx context.Context) {
	if c.metrics == nil {
		return
	}
	m, ok := c.store.(cache.Maintainer)
	if !ok {
		return
	}
	if stats, err := m.Stats(ctx); err == nil {
		c.metrics.SetCacheEntries(ctx, stats.Entries)
	}
}

func (c *Client) extractOptions(observe func(stage string, elapsed time.Duration)) []extract.Option {
	opts := []extract.Option{extract.WithStageObserver(observe)}
	if c.cfg.Extract.CoerceStringArrays {
		opts = append(opts, extract.WithStringArrayCoercion())
	}
	return opts
}
