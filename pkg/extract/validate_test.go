package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personSchema() *Schema {
	return &Schema{
		Required: []string{"name", "age"},
		Types:    map[string]Type{"name": TypeString, "age": TypeInteger},
	}
}

func TestExtract_PersonSchema(t *testing.T) {
	obj, err := Extract(`{name: 'Ann', age: 3,}`, personSchema())
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ann","age":3}`, obj.Value.String())
}

func TestExtract_MissingRequiredKey(t *testing.T) {
	_, err := Extract(`{"name": "Ann"}`, personSchema())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaValidation))

	var sve *SchemaValidationError
	require.True(t, errors.As(err, &sve))
	assert.Equal(t, "$", sve.Path)
	assert.Equal(t, ConstraintMissingKey, sve.Constraint)
	assert.Equal(t, "age", sve.Key)
	assert.Contains(t, err.Error(), `"age"`)
}

func TestValidate(t *testing.T) {
	no := false

	tests := []struct {
		name       string
		raw        string
		schema     *Schema
		path       string
		constraint Constraint
		key        string
		expected   string
		actual     string
	}{
		{
			name:       "wrong scalar type",
			raw:        `{name: 'Ann', age: 'three'}`,
			schema:     personSchema(),
			path:       "$.age",
			constraint: ConstraintWrongType,
			expected:   "integer",
			actual:     "string",
		},
		{
			name:       "fractional number is not an integer",
			raw:        `{name: 'Ann', age: 3.5}`,
			schema:     personSchema(),
			path:       "$.age",
			constraint: ConstraintWrongType,
			expected:   "integer",
			actual:     "number",
		},
		{
			name:       "root of the wrong kind",
			raw:        `[1, 2]`,
			schema:     personSchema(),
			path:       "$",
			constraint: ConstraintWrongType,
			expected:   "object",
			actual:     "array",
		},
		{
			name: "unexpected key",
			raw:  `{name: 'Ann', age: 3, extra: true}`,
			schema: &Schema{
				Types:                map[string]Type{"name": TypeString, "age": TypeInteger},
				AdditionalProperties: &no,
			},
			path:       "$",
			constraint: ConstraintUnexpectedKey,
			key:        "extra",
		},
		{
			name: "enum",
			raw:  `{color: 'blue'}`,
			schema: &Schema{Properties: map[string]*Schema{
				"color": {Type: TypeString, Enum: []any{"red", "green"}},
			}},
			path:       "$.color",
			constraint: ConstraintEnum,
			expected:   `["red", "green"]`,
			actual:     `"blue"`,
		},
		{
			name: "array items",
			raw:  `{people: [{name: 'a'}, {}]}`,
			schema: &Schema{Properties: map[string]*Schema{
				"people": {Type: TypeArray, Items: &Schema{Required: []string{"name"}}},
			}},
			path:       "$.people[1]",
			constraint: ConstraintMissingKey,
			key:        "name",
		},
		{
			name: "wrong nesting",
			raw:  `{address: 'Main St'}`,
			schema: &Schema{Properties: map[string]*Schema{
				"address": {Required: []string{"street"}},
			}},
			path:       "$.address",
			constraint: ConstraintWrongType,
			expected:   "object",
			actual:     "string",
		},
		{
			name: "quoted path segment",
			raw:  `{"first name": 7}`,
			schema: &Schema{Types: map[string]Type{
				"first name": TypeString,
			}},
			path:       `$["first name"]`,
			constraint: ConstraintWrongType,
			expected:   "string",
			actual:     "integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.raw, tt.schema)
			var sve *SchemaValidationError
			require.True(t, errors.As(err, &sve), "error = %v", err)

			assert.Equal(t, tt.path, sve.Path)
			assert.Equal(t, tt.constraint, sve.Constraint)
			assert.Equal(t, tt.key, sve.Key)
			assert.Equal(t, tt.expected, sve.Expected)
			assert.Equal(t, tt.actual, sve.Actual)
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		schema *Schema
	}{
		{"integral float counts as integer", `{name: 'Ann', age: 3.0}`, personSchema()},
		{"extra keys allowed by default", `{name: 'Ann', age: 3, note: 'x'}`, personSchema()},
		{"nil schema", `[1, 'a', null]`, nil},
		{
			"nullable property",
			`{tags: null}`,
			&Schema{Properties: map[string]*Schema{"tags": {Type: TypeArray, Nullable: true}}},
		},
		{
			"numeric enum",
			`{level: 2.0}`,
			&Schema{Properties: map[string]*Schema{"level": {Enum: []any{1, 2, 3}}}},
		},
		{
			"any type",
			`{v: [1, {}]}`,
			&Schema{Types: map[string]Type{"v": TypeAny}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.raw, tt.schema)
			assert.NoError(t, err)
		})
	}
}

func TestExtract_StringArrayCoercion(t *testing.T) {
	raw := `{name: ['Ann', 'Lee'], age: 3}`

	_, err := Extract(raw, personSchema())
	var sve *SchemaValidationError
	require.True(t, errors.As(err, &sve))
	assert.Equal(t, "$.name", sve.Path)

	obj, err := Extract(raw, personSchema(), WithStringArrayCoercion())
	require.NoError(t, err)
	assert.True(t, obj.Coerced)
	name, _ := obj.Value.Get("name")
	assert.Equal(t, "Ann, Lee", name.AsString())
}

func TestCoerceStringArrays_LeavesOtherArrays(t *testing.T) {
	schema := &Schema{
		Types: map[string]Type{"title": TypeString, "scores": TypeArray},
	}
	v := ObjectOf(
		Member{Key: "title", Value: ArrayOf(String("a"), Int(1))},
		Member{Key: "scores", Value: ArrayOf(String("x"), String("y"))},
	)

	out, changed := CoerceStringArrays(v, schema)
	assert.False(t, changed)
	assert.True(t, out.Equal(v))
}

func TestFirstAndAll(t *testing.T) {
	raw := `Found these:
{"results": [{"name": "a", "age": 1}, {"name": "b", "age": 2}], "meta": {"count": 2}}`

	first, err := First(raw, personSchema())
	require.NoError(t, err)
	assert.Equal(t, `{"name":"a","age":1}`, first.Value.String())
	assert.Equal(t, 13, first.Offset, "provenance stays on the located region")

	all, err := All(raw, personSchema())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, `{"name":"b","age":2}`, all[1].String())

	countSchema := &Schema{Required: []string{"count"}}
	all, err = All(raw, countSchema)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, `{"count":2}`, all[0].String())
}

func TestFirst_NoMatchReturnsRootViolation(t *testing.T) {
	_, err := First(`{a: [{b: 1}]}`, personSchema())
	var sve *SchemaValidationError
	require.True(t, errors.As(err, &sve))
	assert.Equal(t, "$", sve.Path)
	assert.Equal(t, "name", sve.Key)

	all, err := All(`{a: [{b: 1}]}`, personSchema())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestInto(t *testing.T) {
	type person struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	var p person
	require.NoError(t, Into("```\n{name: 'Ann', age: 3}\n```", personSchema(), &p))
	assert.Equal(t, person{Name: "Ann", Age: 3}, p)

	err := Into(`{name: 'Ann'}`, personSchema(), &p)
	assert.ErrorIs(t, err, ErrSchemaValidation)
}

func TestExtract_StageObserver(t *testing.T) {
	stages := map[string]time.Duration{}
	observe := func(stage string, elapsed time.Duration) { stages[stage] += elapsed }

	_, err := Extract(`{name: 'Ann', age: 3}`, personSchema(), WithStageObserver(observe))
	require.NoError(t, err)
	assert.Contains(t, stages, StageLocate)
	assert.Contains(t, stages, StageParse)
	assert.Contains(t, stages, StageValidate)
}

func TestParseSchema(t *testing.T) {
	t.Run("yaml shorthand", func(t *testing.T) {
		s, err := ParseSchema([]byte("required: [name, age]\ntypes:\n  name: string\n  age: int\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "age"}, s.Required)
		assert.Equal(t, TypeInteger, s.Types["age"])
		assert.Equal(t, TypeObject, s.effectiveType())
	})

	t.Run("json schema subset", func(t *testing.T) {
		s, err := ParseSchema([]byte(`{
			"type": "object",
			"properties": {
				"tags": {"type": ["array", "null"], "items": {"type": "string"}},
				"level": {"enum": [1, 2]}
			},
			"additionalProperties": false
		}`))
		require.NoError(t, err)
		require.NotNil(t, s.AdditionalProperties)
		assert.False(t, *s.AdditionalProperties)

		tags := s.Properties["tags"]
		require.NotNil(t, tags)
		assert.Equal(t, TypeArray, tags.Type)
		assert.True(t, tags.Nullable)
		assert.Equal(t, TypeString, tags.Items.Type)

		_, err = Extract(`{tags: null, level: 2}`, s)
		assert.NoError(t, err)
		_, err = Extract(`{tags: [], level: 5}`, s)
		assert.ErrorIs(t, err, ErrSchemaValidation)
	})

	t.Run("errors", func(t *testing.T) {
		for _, doc := range []string{
			``,
			`{"type": "wat"}`,
			`{"type": ["string", "integer"]}`,
			`required: name`,
			`- a list`,
		} {
			_, err := ParseSchema([]byte(doc))
			assert.Error(t, err, "doc %q", doc)
		}
	})
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "person.yaml")
	require.NoError(t, os.WriteFile(path, []byte("required: [name]\n"), 0o644))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, s.Required)

	_, err = LoadSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
