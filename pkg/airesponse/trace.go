package airesponse

import (
	"time"

	"github.com/dan-solli/airesponse/pkg/trace"
)

// Operation names used in traces, metrics and logs
const (
	OpQuery        = "query"
	OpExtract      = "extract"
	OpQueryExtract = "query_extract"
)

// OperationTrace captures timing data for a Query, Extract or QueryAndExtract call.
type OperationTrace struct {
	// Spans contains timing data for each stage of the operation
	Spans []Span `json:"spans"`

	// TotalDurationMs is the wall time of the operation in milliseconds
	TotalDurationMs int64 `json:"totalDurationMs"`
}

// Span represents a single timed stage within an operation.
// Stage names are stable:
//   - "validate": request validation and key derivation, or schema validation
//   - "cache-get": cache lookup
//   - "complete": remote model calls
//   - "cache-set": cache write
//   - "locate": scanning for a bracketed region
//   - "parse": relaxed parsing of candidate regions
type Span struct {
	Name string `json:"name"`

	// DurationMs is the elapsed time for this span in milliseconds
	DurationMs int64 `json:"durationMs"`

	OK bool `json:"ok"`

	// ErrorType is the ClassifyError label when OK is false
	ErrorType string `json:"errorType,omitempty"`

	// Counters provides additional numbers for the span (optional)
	// Example keys: "prompts", "responses", "matches"
	Counters map[string]int64 `json:"counters,omitempty"`
}

func newTrace() *OperationTrace {
	return &OperationTrace{
		Spans: make([]Span, 0),
	}
}

func (t *OperationTrace) addSpan(name string, d time.Duration, err error, counters map[string]int64) {
	span := Span{
		Name:       name,
		DurationMs: d.Milliseconds(),
		OK:         err == nil,
		Counters:   counters,
	}
	if err != nil {
		span.ErrorType = ClassifyError(err)
	}
	t.Spans = append(t.Spans, span)
}

// failLast marks the most recent span with the given name as failed.
// Used for stages whose observer reports only timing.
func (t *OperationTrace) failLast(name string, err error) {
	for i := len(t.Spans) - 1; i >= 0; i-- {
		if t.Spans[i].Name == name {
			t.Spans[i].OK = false
			t.Spans[i].ErrorType = ClassifyError(err)
			return
		}
	}
}

// record converts the trace into an exportable record. ids must not carry content.
func (t *OperationTrace) record(operation string, start time.Time, err error, ids map[string]interface{}) *trace.TraceRecord {
	rec := trace.NewRecord(operation, start)
	rec.DurationMs = t.TotalDurationMs
	rec.Status = "success"
	if err != nil {
		rec.Status = "error"
		rec.ErrorType = ClassifyError(err)
	}
	for _, s := range t.Spans {
		rec.Spans = append(rec.Spans, trace.SpanRecord{
			Name:       s.Name,
			DurationMs: s.DurationMs,
			OK:         s.OK,
			ErrorType:  s.ErrorType,
			Counters:   s.Counters,
		})
	}
	if len(ids) > 0 {
		rec.IDs = ids
	}
	return rec
}
