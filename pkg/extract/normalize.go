package extract

import "strings"

// CoerceStringArrays joins arrays of strings with ", " wherever the schema
// expects a string. Models often answer {"tags": ["a", "b"]} when asked for
// {"tags": "a, b"}. The root value is never joined. The bool reports whether
// anything changed.
func CoerceStringArrays(v Value, s *Schema) (Value, bool) {
	changed := false
	out := coerceValue(v, s, &changed)
	return out, changed
}

func coerceValue(v Value, s *Schema, changed *bool) Value {
	if s == nil {
		return v
	}

	switch v.Kind() {
	case KindObject:
		members := make([]Member, len(v.obj))
		for i, m := range v.obj {
			val := m.Value
			if s.propertyType(m.Key) == TypeString && isStringArray(val) {
				val = joinStringArray(val)
				*changed = true
			} else if ps, ok := s.Properties[m.Key]; ok {
				val = coerceValue(val, ps, changed)
			}
			members[i] = Member{Key: m.Key, Value: val}
		}
		return Value{kind: KindObject, obj: members}

	case KindArray:
		if s.Items == nil {
			return v
		}
		elems := make([]Value, len(v.arr))
		for i, e := range v.arr {
			if s.Items.effectiveType() == TypeString && isStringArray(e) {
				elems[i] = joinStringArray(e)
				*changed = true
				continue
			}
			elems[i] = coerceValue(e, s.Items, changed)
		}
		return Value{kind: KindArray, arr: elems}
	}
	return v
}

// isStringArray reports whether v is an array holding only strings. An empty
// array counts.
func isStringArray(v Value) bool {
	if v.Kind() != KindArray {
		return false
	}
	for _, e := range v.arr {
		if e.Kind() != KindString {
			return false
		}
	}
	return true
}

func joinStringArray(v Value) Value {
	strs := make([]string, len(v.arr))
	for i, e := range v.arr {
		strs[i] = e.str
	}
	return String(strings.Join(strs, ", "))
}
