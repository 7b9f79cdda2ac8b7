package airesponse

import (
	"context"
	"errors"

	"github.com/dan-solli/airesponse/pkg/extract"
	"github.com/dan-solli/airesponse/pkg/llm"
)

// Error type labels for metrics and traces
const (
	ErrTypeAuthentication   = "authentication"
	ErrTypeInvalidRequest   = "invalid_request"
	ErrTypeTransient        = "transient"
	ErrTypeNoStructuredData = "no_structured_data"
	ErrTypeMalformedData    = "malformed_data"
	ErrTypeSchemaValidation = "schema_validation"
	ErrTypeCache            = "cache"
	ErrTypeUnknown          = "unknown"
)

// ErrCache marks failures of cache maintenance and of opening the cache.
// Lookups and writes during a query never fail the query.
var ErrCache = errors.New("cache error")

// ClassifyError returns a stable label for err, or "" for nil.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, llm.ErrAuthentication):
		return ErrTypeAuthentication
	case errors.Is(err, llm.ErrInvalidRequest):
		return ErrTypeInvalidRequest
	case errors.Is(err, llm.ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrTypeTransient
	case errors.Is(err, extract.ErrNoStructuredData):
		return ErrTypeNoStructuredData
	case errors.Is(err, extract.ErrMalformedData):
		return ErrTypeMalformedData
	case errors.Is(err, extract.ErrSchemaValidation):
		return ErrTypeSchemaValidation
	case errors.Is(err, ErrCache):
		return ErrTypeCache
	default:
		return ErrTypeUnknown
	}
}
