// Package query dispatches prompts to a remote model and caches the
// responses, so that an identical request is answered from the cache instead
// of the network.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dan-solli/airesponse/pkg/cache"
	"github.com/dan-solli/airesponse/pkg/llm"
	"github.com/dan-solli/airesponse/pkg/metrics"
)

// Stage names recorded on a Result
const (
	StageValidate = "validate"
	StageCacheGet = "cache-get"
	StageComplete = "complete"
	StageCacheSet = "cache-set"
)

// Stage is the timing of one step of a query
type Stage struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Result carries the responses plus what happened while producing them
type Result struct {
	Responses RawResponse
	Key       string
	// Cached is set when the responses came from the store
	Cached bool
	// Shared is set when the responses came from a concurrent identical call
	Shared bool
	Stages []Stage
}

func (r *Result) addStage(name string, start time.Time, err error) {
	r.Stages = append(r.Stages, Stage{Name: name, Duration: time.Since(start), Err: err})
}

// Querier answers requests from Store when possible and from Completer otherwise.
type Querier struct {
	Completer llm.Completer
	// Store is optional; nil disables caching
	Store cache.Store
	// MaxParallel bounds concurrent Complete calls per request (default 100)
	MaxParallel int
	// Defaults are merged into request options for keys the caller did not set
	Defaults map[string]any

	Logger  *slog.Logger
	Metrics metrics.Collector

	flights singleflight.Group
}

// New creates a Querier with the default options and parallelism
func New(completer llm.Completer, store cache.Store) *Querier {
	return &Querier{
		Completer:   completer,
		Store:       store,
		MaxParallel: DefaultMaxParallel,
		Defaults:    DefaultOptions(),
	}
}

// WithLogger sets the logger and returns q for chaining
func (q *Querier) WithLogger(logger *slog.Logger) *Querier {
	q.Logger = logger
	return q
}

func (q *Querier) log() *slog.Logger {
	if q.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return q.Logger
}

func (q *Querier) recordLookup(ctx context.Context, result string) {
	if q.Metrics != nil {
		q.Metrics.RecordCacheLookup(ctx, result)
	}
}

// Query is a convenience wrapper: a fresh Querier per call. A nil store
// disables caching.
func Query(ctx context.Context, completer llm.Completer, store cache.Store, req Request) (RawResponse, error) {
	return New(completer, store).Query(ctx, req)
}

// Query returns one response per user prompt, in prompt order.
func (q *Querier) Query(ctx context.Context, req Request) (RawResponse, error) {
	res, err := q.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Responses, nil
}

// Do is Query with the per-stage details exposed.
//
// A cached entry that cannot be read is treated as a miss. When any prompt
// fails nothing is cached and the error is returned. A failed cache write is
// logged and the responses are still returned.
func (q *Querier) Do(ctx context.Context, req Request) (*Result, error) {
	if q.Completer == nil {
		return nil, fmt.Errorf("query: no completer configured")
	}
	res := &Result{}

	start := time.Now()
	p, err := prepare(req, q.Defaults)
	res.addStage(StageValidate, start, err)
	if err != nil {
		return res, err
	}
	res.Key = p.key

	if q.Store != nil {
		start = time.Now()
		responses, ok := q.lookup(ctx, p)
		res.addStage(StageCacheGet, start, nil)
		if ok {
			res.Responses = responses
			res.Cached = true
			return res, nil
		}
	}

	v, err, shared := q.flights.Do(p.key, func() (any, error) {
		return q.fetch(ctx, p)
	})
	f, _ := v.(*flight)
	if f != nil {
		res.Stages = append(res.Stages, f.stages...)
	}
	if err != nil {
		return res, err
	}

	res.Shared = shared
	res.Responses = append(RawResponse(nil), f.responses...)
	return res, nil
}

// lookup reads and decodes the entry for p. Anything unusable is a miss.
func (q *Querier) lookup(ctx context.Context, p *prepared) (RawResponse, bool) {
	logger := q.log().With("key", shortKey(p.key))

	data, ok, err := q.Store.Get(ctx, p.key)
	if err != nil {
		logger.Warn("cache read failed, treating as miss", "error", err)
		q.recordLookup(ctx, metrics.CacheCorrupt)
		return nil, false
	}
	if !ok {
		logger.Debug("cache miss")
		q.recordLookup(ctx, metrics.CacheMiss)
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		logger.Warn("undecodable cache entry, treating as miss", "error", err)
		q.recordLookup(ctx, metrics.CacheCorrupt)
		return nil, false
	}
	if len(entry.Responses) != len(p.req.UserPrompts) || (entry.Key != "" && entry.Key != p.key) {
		logger.Warn("cache entry does not match request, treating as miss",
			"responses", len(entry.Responses),
			"prompts", len(p.req.UserPrompts))
		q.recordLookup(ctx, metrics.CacheCorrupt)
		return nil, false
	}

	logger.Debug("cache hit", "stored_at", entry.StoredAt)
	q.recordLookup(ctx, metrics.CacheHit)
	return RawResponse(entry.Responses), true
}

// flight is the outcome shared by concurrent identical requests
type flight struct {
	responses RawResponse
	stages    []Stage
}

func (q *Querier) fetch(ctx context.Context, p *prepared) (*flight, error) {
	f := &flight{}

	start := time.Now()
	responses, err := q.complete(ctx, p)
	f.stages = append(f.stages, Stage{Name: StageComplete, Duration: time.Since(start), Err: err})
	if err != nil {
		return f, err
	}
	f.responses = responses

	if q.Store != nil {
		start = time.Now()
		err := q.save(ctx, p, responses)
		f.stages = append(f.stages, Stage{Name: StageCacheSet, Duration: time.Since(start), Err: err})
	}
	return f, nil
}

// complete dispatches every prompt, at most MaxParallel at a time. Results are
// stored by index so order follows the prompts, not completion time.
func (q *Querier) complete(ctx context.Context, p *prepared) (RawResponse, error) {
	responses := make(RawResponse, len(p.req.UserPrompts))

	limit := q.MaxParallel
	if limit <= 0 {
		limit = DefaultMaxParallel
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, prompt := range p.req.UserPrompts {
		g.Go(func() error {
			out, err := q.Completer.Complete(gctx, llm.CompletionRequest{
				Backend:      p.req.Backend,
				Model:        p.req.Model,
				SystemPrompt: p.req.SystemPrompt,
				UserPrompt:   prompt.Text,
				ImageURL:     p.images[i].URL,
				Options:      p.req.Options,
			})
			if err != nil {
				return fmt.Errorf("prompt %d: %w", i, err)
			}
			responses[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

func (q *Querier) save(ctx context.Context, p *prepared, responses RawResponse) error {
	data, err := json.Marshal(CacheEntry{
		Key:       p.key,
		Responses: responses,
		StoredAt:  time.Now().UTC(),
	})
	if err == nil {
		err = q.Store.Set(ctx, p.key, data)
	}
	if err != nil {
		q.log().Warn("failed to write cache entry", "key", shortKey(p.key), "error", err)
		return err
	}
	return nil
}

// shortKey keeps log lines readable
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
