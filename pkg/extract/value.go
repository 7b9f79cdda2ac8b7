package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Member is one key/value pair of an object, in source order
type Member struct {
	Key   string
	Value Value
}

// Value is a parsed structured-data tree. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  string // strict JSON number literal
	str  string
	arr  []Value
	obj  []Member
}

// Null returns the null value
func Null() Value { return Value{} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int wraps an integer
func Int(i int64) Value { return Value{kind: KindNumber, num: strconv.FormatInt(i, 10)} }

// Float wraps a finite float
func Float(f float64) Value {
	return Value{kind: KindNumber, num: strconv.FormatFloat(f, 'g', -1, 64)}
}

// ArrayOf builds an array value
func ArrayOf(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, arr: elems}
}

// ObjectOf builds an object value. Later duplicates of a key replace earlier ones.
func ObjectOf(members ...Member) Value {
	v := Value{kind: KindObject, obj: make([]Member, 0, len(members))}
	for _, m := range members {
		v.obj = setMember(v.obj, m.Key, m.Value)
	}
	return v
}

func setMember(members []Member, key string, val Value) []Member {
	for i := range members {
		if members[i].Key == key {
			members[i].Value = val
			return members
		}
	}
	return append(members, Member{Key: key, Value: val})
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean, false for other kinds
func (v Value) AsBool() bool { return v.kind == KindBool && v.b }

// AsString returns the string, "" for other kinds
func (v Value) AsString() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// NumberText returns the normalized number literal, "" for other kinds
func (v Value) NumberText() string {
	if v.kind != KindNumber {
		return ""
	}
	return v.num
}

// Float64 returns the number as a float, 0 for other kinds
func (v Value) Float64() float64 {
	if v.kind != KindNumber {
		return 0
	}
	f, _ := strconv.ParseFloat(v.num, 64)
	return f
}

// Int64 returns the number as an integer when it has no fractional part and fits
func (v Value) Int64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if i, err := strconv.ParseInt(v.num, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(v.num, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// IsInteger reports whether v is a number with an integral value (3 and 3.0 both count)
func (v Value) IsInteger() bool {
	if v.kind != KindNumber {
		return false
	}
	if !strings.ContainsAny(v.num, ".eE") {
		return true
	}
	f, err := strconv.ParseFloat(v.num, 64)
	return err == nil && !math.IsInf(f, 0) && f == math.Trunc(f)
}

// Len returns the number of elements or members
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	case KindString:
		return len(v.str)
	}
	return 0
}

// Index returns the i-th array element, or null when out of range
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}
	}
	return v.arr[i]
}

// Elements returns the array elements
func (v Value) Elements() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Members returns object members in source order
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Get looks up an object member
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.obj {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Keys returns object keys in source order
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.obj))
	for _, m := range v.obj {
		keys = append(keys, m.Key)
	}
	return keys
}

// Interface converts v into plain Go values: map[string]any, []any, string,
// bool, nil, int64 for integers that fit and float64 otherwise.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if !strings.ContainsAny(v.num, ".eE") {
			if i, err := strconv.ParseInt(v.num, 10, 64); err == nil {
				return i
			}
		}
		return v.Float64()
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for _, m := range v.obj {
			out[m.Key] = m.Value.Interface()
		}
		return out
	}
	return nil
}

// FromInterface converts plain Go values (as produced by encoding/json or
// yaml.v3) into a Value. Map keys are sorted.
func FromInterface(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Value{}, fmt.Errorf("non-finite number %v", t)
		}
		return Float(t), nil
	case json.Number:
		return Value{kind: KindNumber, num: t.String()}, nil
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return ArrayOf(elems...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]Member, 0, len(keys))
		for _, k := range keys {
			mv, err := FromInterface(t[k])
			if err != nil {
				return Value{}, err
			}
			members = append(members, Member{Key: k, Value: mv})
		}
		return ObjectOf(members...), nil
	default:
		return Value{}, fmt.Errorf("unsupported type %T", x)
	}
}

// Equal compares structurally. Numbers compare by value, object member order is ignored.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.num == o.num || v.Float64() == o.Float64()
	case KindString:
		return v.str == o.str
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for _, m := range v.obj {
			ov, ok := o.Get(m.Key)
			if !ok || !m.Value.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON writes strict JSON, preserving object member order
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(v.num)
	case KindString:
		return encodeString(buf, v.str)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// encodeString writes s as a JSON string without HTML escaping
func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // Encode appends a newline
	return nil
}

// String returns compact JSON
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid value: %v>", err)
	}
	return string(b)
}
