package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Accessors(t *testing.T) {
	obj, err := Extract(`{n: 42, f: 1.5, big: 1e400, s: 'x', b: true, list: [1, 2], nothing: null}`, nil)
	require.NoError(t, err)
	v := obj.Value

	assert.Equal(t, KindObject, v.Kind())
	assert.Equal(t, 7, v.Len())
	assert.Equal(t, []string{"n", "f", "big", "s", "b", "list", "nothing"}, v.Keys())

	n, _ := v.Get("n")
	i, ok := n.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(42), i)

	f, _ := v.Get("f")
	assert.InDelta(t, 1.5, f.Float64(), 1e-9)
	_, ok = f.Int64()
	assert.False(t, ok)

	s, _ := v.Get("s")
	assert.Equal(t, "x", s.AsString())

	b, _ := v.Get("b")
	assert.True(t, b.AsBool())

	list, _ := v.Get("list")
	assert.Equal(t, 2, list.Len())
	assert.Equal(t, "2", list.Index(1).NumberText())
	assert.True(t, list.Index(5).IsNull())

	nothing, ok := v.Get("nothing")
	assert.True(t, ok)
	assert.True(t, nothing.IsNull())

	_, ok = v.Get("absent")
	assert.False(t, ok)
}

func TestValue_Interface(t *testing.T) {
	obj, err := Extract(`{a: 1, b: [true, 'x', 2.5], c: {d: null}}`, nil)
	require.NoError(t, err)

	want := map[string]any{
		"a": int64(1),
		"b": []any{true, "x", 2.5},
		"c": map[string]any{"d": nil},
	}
	assert.Equal(t, want, obj.Value.Interface())
}

func TestValue_EqualIgnoresMemberOrder(t *testing.T) {
	a := ObjectOf(Member{Key: "x", Value: Int(1)}, Member{Key: "y", Value: Float(2)})
	b := ObjectOf(Member{Key: "y", Value: Int(2)}, Member{Key: "x", Value: Int(1)})
	assert.True(t, a.Equal(b))

	c := ObjectOf(Member{Key: "x", Value: Int(1)}, Member{Key: "y", Value: String("2")})
	assert.False(t, a.Equal(c))
	assert.False(t, Null().Equal(Bool(false)))
}

func TestValue_MarshalJSON(t *testing.T) {
	v := ObjectOf(
		Member{Key: "z", Value: Int(1)},
		Member{Key: "a", Value: ArrayOf()},
	)

	data, err := json.Marshal(map[string]any{"wrapped": v})
	require.NoError(t, err)
	assert.JSONEq(t, `{"wrapped":{"z":1,"a":[]}}`, string(data))
	assert.Equal(t, `{"z":1,"a":[]}`, v.String())
}

func TestFromInterface(t *testing.T) {
	v, err := FromInterface(map[string]any{"b": []any{1, "x"}, "a": json.Number("3.25")})
	require.NoError(t, err)
	assert.Equal(t, `{"a":3.25,"b":[1,"x"]}`, v.String())

	_, err = FromInterface(struct{}{})
	assert.Error(t, err)
}
