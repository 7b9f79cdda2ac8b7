package llm

import (
	"errors"
	"fmt"
)

// Kind classifies a query-layer failure
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindInvalidRequest
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication error"
	case KindInvalidRequest:
		return "invalid request"
	case KindTransient:
		return "transient service error"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrAuthentication = errors.New("authentication error")
	ErrInvalidRequest = errors.New("invalid request")
	ErrTransient      = errors.New("transient service error")

	// ErrIncompleteResponse is wrapped when the model stopped for a reason other than "stop"
	ErrIncompleteResponse = errors.New("incomplete response")
)

// Error is the typed failure returned by Completer implementations and the query layer
type Error struct {
	Kind       Kind
	Backend    Backend
	StatusCode int
	Err        error
}

// NewError wraps err with the given kind
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Backend != "" {
		msg = string(e.Backend) + ": " + msg
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Kind == KindAuthentication
	case ErrInvalidRequest:
		return e.Kind == KindInvalidRequest
	case ErrTransient:
		return e.Kind == KindTransient
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth another attempt
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
