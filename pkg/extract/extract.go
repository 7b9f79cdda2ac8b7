// Package extract pulls a structured object out of free-form model output.
//
// Model replies wrap data in prose, markdown fences and comments, and often use
// relaxed notation (unquoted keys, single quotes, trailing commas, Python
// literals). Extract finds the leftmost bracketed region that parses under
// those relaxed rules, then optionally checks it against a Schema.
package extract

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage names reported to a stage observer
const (
	StageLocate   = "locate"
	StageParse    = "parse"
	StageValidate = "validate"
)

// Object is an extracted value plus where it came from
type Object struct {
	Value Value
	// Source is the exact substring that was parsed
	Source string
	// Offset is the byte offset of Source in the raw text
	Offset int
	// Coerced is set when string-array coercion changed the value
	Coerced bool
}

// Option configures extraction
type Option func(*options)

type options struct {
	coerce   bool
	observer func(stage string, elapsed time.Duration)
}

func (o *options) observe(stage string, elapsed time.Duration) {
	if o.observer != nil {
		o.observer(stage, elapsed)
	}
}

// WithStringArrayCoercion joins string arrays where the schema expects a
// string, before validation.
func WithStringArrayCoercion() Option {
	return func(o *options) { o.coerce = true }
}

// WithStageObserver receives the time spent in each stage
func WithStageObserver(fn func(stage string, elapsed time.Duration)) Option {
	return func(o *options) { o.observer = fn }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extract locates, parses and (when schema is non-nil) validates the
// structured object in raw.
//
// Errors match ErrNoStructuredData, ErrMalformedData (*MalformedDataError) or
// ErrSchemaValidation (*SchemaValidationError).
func Extract(raw string, schema *Schema, opts ...Option) (*Object, error) {
	o := buildOptions(opts)

	obj, err := locate(raw, o)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return obj, nil
	}

	start := time.Now()
	defer func() { o.observe(StageValidate, time.Since(start)) }()

	if o.coerce {
		obj.Value, obj.Coerced = CoerceStringArrays(obj.Value, schema)
	}
	if err := Validate(obj.Value, schema); err != nil {
		return nil, err
	}
	return obj, nil
}

// First returns the first node, in a pre-order walk over objects and arrays
// starting at the root, that satisfies schema. When none does, the root's
// violation is returned.
func First(raw string, schema *Schema, opts ...Option) (*Object, error) {
	o := buildOptions(opts)

	obj, err := locate(raw, o)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return obj, nil
	}

	start := time.Now()
	defer func() { o.observe(StageValidate, time.Since(start)) }()

	var rootErr error
	var found *Value
	walk(obj.Value, func(node Value) bool {
		candidate, coerced := node, false
		if o.coerce {
			candidate, coerced = CoerceStringArrays(node, schema)
		}
		if err := Validate(candidate, schema); err != nil {
			if rootErr == nil {
				rootErr = err
			}
			return true
		}
		found = &candidate
		obj.Coerced = coerced
		return false
	})

	if found == nil {
		return nil, rootErr
	}
	obj.Value = *found
	return obj, nil
}

// All returns every node, in pre-order, that satisfies schema. The result may
// be empty. A nil schema returns the root alone.
func All(raw string, schema *Schema, opts ...Option) ([]Value, error) {
	o := buildOptions(opts)

	obj, err := locate(raw, o)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return []Value{obj.Value}, nil
	}

	start := time.Now()
	defer func() { o.observe(StageValidate, time.Since(start)) }()

	matches := []Value{}
	walk(obj.Value, func(node Value) bool {
		if o.coerce {
			node, _ = CoerceStringArrays(node, schema)
		}
		if Validate(node, schema) == nil {
			matches = append(matches, node)
		}
		return true
	})
	return matches, nil
}

// Into extracts and validates, then decodes the value into dst with encoding/json
func Into(raw string, schema *Schema, dst any, opts ...Option) error {
	obj, err := Extract(raw, schema, opts...)
	if err != nil {
		return err
	}
	data, err := obj.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode extracted value: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode extracted value: %w", err)
	}
	return nil
}

// walk visits containers in pre-order until fn returns false
func walk(v Value, fn func(Value) bool) bool {
	if v.Kind() != KindObject && v.Kind() != KindArray {
		return true
	}
	if !fn(v) {
		return false
	}
	switch v.Kind() {
	case KindObject:
		for _, m := range v.obj {
			if !walk(m.Value, fn) {
				return false
			}
		}
	case KindArray:
		for _, e := range v.arr {
			if !walk(e, fn) {
				return false
			}
		}
	}
	return true
}
