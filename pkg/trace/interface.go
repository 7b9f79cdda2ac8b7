package trace

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Exporter defines the interface for exporting operation traces.
// Implementations must be safe for concurrent use.
type Exporter interface {
	// Export writes a trace record to the configured destination.
	Export(ctx context.Context, record *TraceRecord) error

	// Close flushes any buffered records and releases resources.
	Close() error
}

// TraceRecord represents a sanitized operation trace ready for export.
// It never carries prompt text, responses, extracted data or credentials.
type TraceRecord struct {
	// Timestamp is the operation start time
	Timestamp time.Time `json:"timestamp"`

	// OperationID uniquely identifies this operation (for correlation)
	OperationID string `json:"operationId"`

	// Operation is "query", "extract" or "query_extract"
	Operation string `json:"operation"`

	// DurationMs is the total operation duration in milliseconds
	DurationMs int64 `json:"durationMs"`

	// Status is "success" or "error"
	Status string `json:"status"`

	// Spans contains per-stage timing and status
	Spans []SpanRecord `json:"spans"`

	// ErrorType classifies the error (if Status == "error")
	ErrorType string `json:"errorType,omitempty"`

	// IDs contains operation-specific identifiers such as the cache key (no content)
	IDs map[string]interface{} `json:"ids,omitempty"`
}

// SpanRecord represents a single stage within an operation.
type SpanRecord struct {
	// Name is the stage name (validate, cache-get, complete, cache-set, locate, parse)
	Name string `json:"name"`

	DurationMs int64 `json:"durationMs"`

	OK bool `json:"ok"`

	// ErrorType classifies the error (if OK == false)
	ErrorType string `json:"errorType,omitempty"`

	// Counters provides stage-specific numbers (e.g. prompts, responses)
	Counters map[string]int64 `json:"counters,omitempty"`
}

// NewRecord starts a record with a fresh operation ID
func NewRecord(operation string, start time.Time) *TraceRecord {
	return &TraceRecord{
		Timestamp:   start.UTC(),
		OperationID: uuid.NewString(),
		Operation:   operation,
		Spans:       make([]SpanRecord, 0),
	}
}

// FileExporterOption configures a FileExporter.
// This type is available in both tracing and non-tracing builds to maintain API compatibility.
type FileExporterOption func(interface{})
