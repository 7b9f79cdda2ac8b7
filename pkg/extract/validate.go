package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks v against s and returns the first violation as a
// *SchemaValidationError. A nil schema accepts everything.
func Validate(v Value, s *Schema) error {
	if err := validateAt("$", v, s); err != nil {
		return err
	}
	return nil
}

func validateAt(path string, v Value, s *Schema) *SchemaValidationError {
	if s == nil {
		return nil
	}
	if v.IsNull() && s.Nullable {
		return nil
	}

	want := s.effectiveType()
	if !typeMatches(want, v) {
		return &SchemaValidationError{
			Path:       path,
			Constraint: ConstraintWrongType,
			Expected:   string(want),
			Actual:     typeName(v),
		}
	}

	if len(s.Enum) > 0 && !inEnum(v, s.Enum) {
		return &SchemaValidationError{
			Path:       path,
			Constraint: ConstraintEnum,
			Expected:   enumString(s.Enum),
			Actual:     v.String(),
		}
	}

	switch v.Kind() {
	case KindObject:
		return validateObject(path, v, s)
	case KindArray:
		if s.Items == nil {
			return nil
		}
		for i, elem := range v.Elements() {
			if err := validateAt(path+"["+strconv.Itoa(i)+"]", elem, s.Items); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateObject(path string, v Value, s *Schema) *SchemaValidationError {
	for _, key := range s.Required {
		if _, ok := v.Get(key); !ok {
			return &SchemaValidationError{
				Path:       path,
				Constraint: ConstraintMissingKey,
				Key:        key,
			}
		}
	}

	for _, m := range v.Members() {
		child := childPath(path, m.Key)

		if ps, ok := s.Properties[m.Key]; ok {
			if err := validateAt(child, m.Value, ps); err != nil {
				return err
			}
			continue
		}
		if t, ok := s.Types[m.Key]; ok {
			if !typeMatches(t, m.Value) {
				return &SchemaValidationError{
					Path:       child,
					Constraint: ConstraintWrongType,
					Expected:   string(t),
					Actual:     typeName(m.Value),
				}
			}
			continue
		}
		if s.AdditionalProperties != nil && !*s.AdditionalProperties {
			return &SchemaValidationError{
				Path:       path,
				Constraint: ConstraintUnexpectedKey,
				Key:        m.Key,
			}
		}
	}
	return nil
}

func typeMatches(t Type, v Value) bool {
	switch t {
	case TypeAny:
		return true
	case TypeObject:
		return v.Kind() == KindObject
	case TypeArray:
		return v.Kind() == KindArray
	case TypeString:
		return v.Kind() == KindString
	case TypeNumber:
		return v.Kind() == KindNumber
	case TypeInteger:
		return v.IsInteger()
	case TypeBoolean:
		return v.Kind() == KindBool
	case TypeNull:
		return v.IsNull()
	}
	return false
}

// typeName reports integral numbers as "integer" so messages read naturally
func typeName(v Value) string {
	if v.Kind() == KindNumber && v.IsInteger() {
		return string(TypeInteger)
	}
	return v.Kind().String()
}

func inEnum(v Value, enum []any) bool {
	for _, e := range enum {
		ev, err := FromInterface(e)
		if err == nil && v.Equal(ev) {
			return true
		}
	}
	return false
}

func enumString(enum []any) string {
	parts := make([]string, 0, len(enum))
	for _, e := range enum {
		ev, err := FromInterface(e)
		if err != nil {
			parts = append(parts, fmt.Sprint(e))
			continue
		}
		parts = append(parts, ev.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// childPath appends key to a "$"-rooted path, quoting keys that are not identifiers
func childPath(path, key string) string {
	if isPlainKey(key) {
		return path + "." + key
	}
	return path + "[" + strconv.Quote(key) + "]"
}

func isPlainKey(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		if r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}
