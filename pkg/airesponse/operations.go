package airesponse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dan-solli/airesponse/pkg/extract"
	"github.com/dan-solli/airesponse/pkg/llm"
	"github.com/dan-solli/airesponse/pkg/query"
)

// Mode selects which node Extract returns
type Mode string

const (
	// ModeRoot validates the located value itself
	ModeRoot Mode = "root"
	// ModeFirst returns the first nested object or array that satisfies the schema
	ModeFirst Mode = "first"
	// ModeAll returns every nested object or array that satisfies the schema
	ModeAll Mode = "all"
)

// ParseMode converts a user supplied name into a Mode. Empty means ModeRoot.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRoot:
		return ModeRoot, nil
	case ModeFirst, ModeAll:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown extract mode %q (want root, first or all)", s)
	}
}

// QueryResult holds the responses of a Query call.
type QueryResult struct {
	Responses query.RawResponse
	Key       string
	Cached    bool
	Trace     *OperationTrace
}

// ExtractResult holds the values found by Extract. Root and first modes yield
// exactly one value; all mode may yield none.
type ExtractResult struct {
	// Mode is the mode actually applied after configuration defaults
	Mode   Mode
	Values []extract.Value

	// Source and Offset locate the parsed region in the raw text
	Source  string
	Offset  int
	Coerced bool
	Trace   *OperationTrace
}

// QueryExtractResult pairs each response with what was extracted from it.
type QueryExtractResult struct {
	Responses query.RawResponse
	Cached    bool
	Extracted []*ExtractResult
	Trace     *OperationTrace
}

// applyDefaults fills model and backend from the configuration
func (c *Client) applyDefaults(req query.Request) query.Request {
	if req.Model == "" {
		req.Model = c.cfg.Query.DefaultModel
	}
	if req.Backend == "" {
		req.Backend = llm.Backend(c.cfg.Query.DefaultBackend)
	}
	return req
}

// resolveMode falls back to the configured extract mode when mode is empty
func (c *Client) resolveMode(mode Mode) (Mode, error) {
	if mode != "" {
		return ParseMode(string(mode))
	}
	return ParseMode(c.cfg.Extract.Mode)
}

// runQuery executes req and appends the query stages to t
func (c *Client) runQuery(ctx context.Context, req query.Request, t *OperationTrace) (*query.Result, error) {
	res, err := c.querier.Do(ctx, req)
	if res != nil {
		for _, s := range res.Stages {
			var counters map[string]int64
			if s.Name == query.StageComplete {
				counters = map[string]int64{"prompts": int64(len(req.UserPrompts))}
			}
			t.addSpan(s.Name, s.Duration, s.Err, counters)
		}
	}
	return res, err
}

// Query sends every user prompt of req (model and backend default from the
// configuration) and returns one response per prompt, answering from the
// cache when an identical request was seen before.
func (c *Client) Query(ctx context.Context, req query.Request) (*QueryResult, error) {
	start := time.Now()
	t := newTrace()
	req = c.applyDefaults(req)

	res, err := c.runQuery(ctx, req, t)

	ids := map[string]interface{}{}
	if res != nil && res.Key != "" {
		ids["cacheKey"] = res.Key
	}
	c.finish(ctx, OpQuery, start, t, err, ids)

	if err != nil {
		c.log().Warn("query failed",
			"model", req.Model,
			"backend", req.Backend,
			"prompts", len(req.UserPrompts),
			"error_type", ClassifyError(err),
			"error", err)
		return nil, err
	}

	c.log().Info("query completed",
		"model", req.Model,
		"backend", req.Backend,
		"prompts", len(req.UserPrompts),
		"cached", res.Cached,
		"duration_ms", t.TotalDurationMs)
	if !res.Cached {
		c.updateCacheGauge(ctx)
	}

	return &QueryResult{
		Responses: res.Responses,
		Key:       res.Key,
		Cached:    res.Cached,
		Trace:     t,
	}, nil
}

// Extract pulls the structured value out of raw and checks it against schema
// (nil skips validation) according to mode. An empty mode uses extract.mode
// from the configuration.
func (c *Client) Extract(ctx context.Context, raw string, schema *extract.Schema, mode Mode) (*ExtractResult, error) {
	start := time.Now()
	t := newTrace()

	mode, err := c.resolveMode(mode)
	if err != nil {
		err = llm.NewError(llm.KindInvalidRequest, err)
		c.finish(ctx, OpExtract, start, t, err, nil)
		return nil, err
	}

	out, err := c.extractInto(raw, schema, mode, t)
	c.finish(ctx, OpExtract, start, t, err, map[string]interface{}{"mode": string(mode)})
	if err != nil {
		c.log().Debug("extraction failed", "mode", mode, "error_type", ClassifyError(err), "error", err)
		return nil, err
	}

	c.log().Debug("extraction completed", "mode", mode, "values", len(out.Values), "offset", out.Offset)
	out.Trace = t
	return out, nil
}

// QueryAndExtract runs Query and then Extract on each response. The first
// extraction failure is returned, wrapped with the response index; the
// responses are cached either way. An empty mode uses extract.mode from the
// configuration.
func (c *Client) QueryAndExtract(ctx context.Context, req query.Request, schema *extract.Schema, mode Mode) (*QueryExtractResult, error) {
	start := time.Now()
	t := newTrace()
	req = c.applyDefaults(req)

	mode, err := c.resolveMode(mode)
	if err != nil {
		err = llm.NewError(llm.KindInvalidRequest, err)
		c.finish(ctx, OpQueryExtract, start, t, err, nil)
		return nil, err
	}

	res, err := c.runQuery(ctx, req, t)
	if err != nil {
		c.finish(ctx, OpQueryExtract, start, t, err, nil)
		return nil, err
	}
	if !res.Cached {
		c.updateCacheGauge(ctx)
	}

	out := &QueryExtractResult{
		Responses: res.Responses,
		Cached:    res.Cached,
		Extracted: make([]*ExtractResult, 0, len(res.Responses)),
		Trace:     t,
	}
	for i, raw := range res.Responses {
		r, err := c.extractInto(raw, schema, mode, t)
		if err != nil {
			err = fmt.Errorf("response %d: %w", i, err)
			c.finish(ctx, OpQueryExtract, start, t, err, map[string]interface{}{"cacheKey": res.Key})
			return nil, err
		}
		out.Extracted = append(out.Extracted, r)
	}

	c.finish(ctx, OpQueryExtract, start, t, nil, map[string]interface{}{"cacheKey": res.Key})
	c.log().Info("query completed",
		"model", req.Model,
		"backend", req.Backend,
		"prompts", len(req.UserPrompts),
		"cached", res.Cached,
		"duration_ms", t.TotalDurationMs)
	return out, nil
}

// extractInto runs one extraction, recording its stages on t.
func (c *Client) extractInto(raw string, schema *extract.Schema, mode Mode, t *OperationTrace) (*ExtractResult, error) {
	opts := c.extractOptions(func(stage string, elapsed time.Duration) {
		t.addSpan(stage, elapsed, nil, nil)
	})

	var (
		out = &ExtractResult{Mode: mode}
		err error
	)
	switch mode {
	case ModeAll:
		out.Values, err = extract.All(raw, schema, opts...)
	case ModeFirst, ModeRoot:
		find := extract.Extract
		if mode == ModeFirst {
			find = extract.First
		}
		var obj *extract.Object
		obj, err = find(raw, schema, opts...)
		if err == nil {
			out.Values = []extract.Value{obj.Value}
			out.Source, out.Offset, out.Coerced = obj.Source, obj.Offset, obj.Coerced
		}
	default:
		err = llm.NewError(llm.KindInvalidRequest, fmt.Errorf("unknown extract mode %q", mode))
	}

	if err != nil {
		t.failLast(failedStage(err), err)
		return nil, err
	}
	return out, nil
}

// failedStage names the extract stage that produced err
func failedStage(err error) string {
	switch {
	case errors.Is(err, extract.ErrNoStructuredData):
		return extract.StageLocate
	case errors.Is(err, extract.ErrMalformedData):
		return extract.StageParse
	default:
		return extract.StageValidate
	}
}
