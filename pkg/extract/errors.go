package extract

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNoStructuredData means the text contains no '{' or '[' at all
	ErrNoStructuredData = errors.New("no structured data found")

	// ErrMalformedData means candidates exist but none could be parsed
	ErrMalformedData = errors.New("malformed structured data")

	// ErrSchemaValidation means the parsed value does not fit the schema
	ErrSchemaValidation = errors.New("schema validation failed")
)

// Position locates a byte offset in the raw text. Line and Column are 1-based.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// positionAt computes line/column for offset within text
func positionAt(text string, offset int) Position {
	line, col := 1, 1
	for i := 0; i < offset && i < len(text); i++ {
		if text[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return Position{Offset: offset, Line: line, Column: col}
}

// MalformedDataError describes the first unrecoverable problem in a candidate region
type MalformedDataError struct {
	Pos    Position
	Reason string
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("malformed structured data at %s (offset %d): %s", e.Pos, e.Pos.Offset, e.Reason)
}

func (e *MalformedDataError) Unwrap() error { return ErrMalformedData }

// Constraint names the schema rule a value broke
type Constraint string

const (
	ConstraintMissingKey    Constraint = "missing_key"
	ConstraintWrongType     Constraint = "wrong_type"
	ConstraintUnexpectedKey Constraint = "unexpected_key"
	ConstraintEnum          Constraint = "enum"
)

// SchemaValidationError reports the first violation found. Path is rooted at "$".
type SchemaValidationError struct {
	Path       string
	Constraint Constraint
	Key        string
	Expected   string
	Actual     string
}

func (e *SchemaValidationError) Error() string {
	switch e.Constraint {
	case ConstraintMissingKey:
		return fmt.Sprintf("schema validation failed at %s: missing required key %s", e.Path, strconv.Quote(e.Key))
	case ConstraintUnexpectedKey:
		return fmt.Sprintf("schema validation failed at %s: unexpected key %s", e.Path, strconv.Quote(e.Key))
	case ConstraintEnum:
		return fmt.Sprintf("schema validation failed at %s: %s is not one of %s", e.Path, e.Actual, e.Expected)
	default:
		return fmt.Sprintf("schema validation failed at %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
	}
}

func (e *SchemaValidationError) Unwrap() error { return ErrSchemaValidation }
