package extract

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExtract_RelaxedNotation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "unquoted keys, single quotes and trailing comma",
			raw:  `{name: 'Ann', age: 3,}`,
			want: `{"name":"Ann","age":3}`,
		},
		{
			name: "strict JSON",
			raw:  `{"a": [1, 2.5, "x"], "b": {"c": null}}`,
			want: `{"a":[1,2.5,"x"],"b":{"c":null}}`,
		},
		{
			name: "markdown fence with prose",
			raw:  "Sure! Here you go:\n```json\n{\"a\": [1, 2, 3]}\n```\nHope it helps.",
			want: `{"a":[1,2,3]}`,
		},
		{
			name: "comments and python literals",
			raw:  "{\n  // the name\n  name: \"Bo\", /* inline */ ok: True, off: False, missing: None, u: undefined\n}",
			want: `{"name":"Bo","ok":true,"off":false,"missing":null,"u":null}`,
		},
		{
			name: "loose numbers",
			raw:  `[0x1F, +1, .5, 5., -0, 1e3, 007, -2.50]`,
			want: `[31,1,0.5,5,0,1e3,7,-2.50]`,
		},
		{
			name: "escapes",
			raw:  `{'s': 'it\'s', "x": "\x41é", "q": "say \"hi\""}`,
			want: `{"s":"it's","x":"Aé","q":"say \"hi\""}`,
		},
		{
			name: "duplicate key keeps position, last value wins",
			raw:  `{a: 1, b: 2, a: 3}`,
			want: `{"a":3,"b":2}`,
		},
		{
			name: "hyphenated and dollar keys",
			raw:  `{date-of-birth: "2001", $ref: 'x', _id: 7}`,
			want: `{"date-of-birth":"2001","$ref":"x","_id":7}`,
		},
		{
			name: "numeric keys",
			raw:  `{1: 'one', 2: 'two'}`,
			want: `{"1":"one","2":"two"}`,
		},
		{
			name: "root array",
			raw:  `The list is [1, 'two', [3]] as requested.`,
			want: `[1,"two",[3]]`,
		},
		{
			name: "empty containers",
			raw:  `{a: {}, b: []}`,
			want: `{"a":{},"b":[]}`,
		},
		{
			name: "non-ASCII keys and HTML characters",
			raw:  `{名前: '<b>&</b>'}`,
			want: `{"名前":"<b>&</b>"}`,
		},
		{
			name: "earlier unparseable braces are skipped",
			raw:  `Use {braces} wisely. {"a": 1}`,
			want: `{"a":1}`,
		},
		{
			name: "brackets inside strings do not unbalance",
			raw:  `{text: "a } b ] c {", n: 1}`,
			want: `{"text":"a } b ] c {","n":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := Extract(tt.raw, nil)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if got := obj.Value.String(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExtract_RawNewlineInString(t *testing.T) {
	obj, err := Extract("{\"poem\": \"line one\nline two\"}", nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	poem, _ := obj.Value.Get("poem")
	if poem.AsString() != "line one\nline two" {
		t.Errorf("poem = %q", poem.AsString())
	}
}

func TestExtract_Provenance(t *testing.T) {
	raw := "Result: {a: 1} done"
	obj, err := Extract(raw, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if obj.Offset != 8 {
		t.Errorf("Offset = %d, want 8", obj.Offset)
	}
	if obj.Source != "{a: 1}" {
		t.Errorf("Source = %q", obj.Source)
	}
}

func TestExtract_NoStructuredData(t *testing.T) {
	for _, raw := range []string{"no data here", "", "just (parentheses) and <angles>"} {
		_, err := Extract(raw, nil)
		if !errors.Is(err, ErrNoStructuredData) {
			t.Errorf("Extract(%q) error = %v, want ErrNoStructuredData", raw, err)
		}
	}
}

func TestExtract_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		offset int
		line   int
		column int
	}{
		{name: "unclosed object", raw: `{name: 'Ann'`, offset: 0, line: 1, column: 1},
		{name: "missing comma", raw: `{a: 1 2}`, offset: 6, line: 1, column: 7},
		{name: "bad token on second line", raw: "x\n{a: @}", offset: 6, line: 2, column: 5},
		{name: "non-finite number", raw: `{a: NaN}`, offset: 4, line: 1, column: 5},
		{name: "number glued to unit", raw: `{width: 3px}`, offset: 8, line: 1, column: 9},
		{name: "mismatched closer", raw: `{a: [1, 2}`, offset: 0, line: 1, column: 1},
		{name: "truncated object holding a complete array", raw: `{name: 'Ann', tags: ['x']`, offset: 0, line: 1, column: 1},
		{name: "unparseable wrapper around a complete object", raw: `{"person": {"name": "Ann", "age": 3}, "note": oops}`, offset: 46, line: 1, column: 47},
		{name: "truncated after a complete nested object", raw: "Here:\n{\"a\": {\"b\": 1},", offset: 6, line: 2, column: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.raw, nil)
			if !errors.Is(err, ErrMalformedData) {
				t.Fatalf("error = %v, want ErrMalformedData", err)
			}
			var mde *MalformedDataError
			if !errors.As(err, &mde) {
				t.Fatalf("error %T is not *MalformedDataError", err)
			}
			if mde.Pos.Offset != tt.offset || mde.Pos.Line != tt.line || mde.Pos.Column != tt.column {
				t.Errorf("position = %+v, want offset %d at %d:%d", mde.Pos, tt.offset, tt.line, tt.column)
			}
			if mde.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestExtract_ParseFailureOutranksUnbalanced(t *testing.T) {
	// the first region balances but is not data, the second never closes
	_, err := Extract(`{x y} then {oops`, nil)
	var mde *MalformedDataError
	if !errors.As(err, &mde) {
		t.Fatalf("error = %v, want *MalformedDataError", err)
	}
	if mde.Pos.Offset != 3 {
		t.Errorf("Offset = %d, want 3 (the 'y' inside the balanced region)", mde.Pos.Offset)
	}
}

func TestExtract_UnclosedRegionHidesNestedMatches(t *testing.T) {
	raw := `{"person": {"name": "Ann", "age": 3}, "note": "cut off`
	schema := &Schema{Required: []string{"name", "age"}}

	for _, find := range []func(string, *Schema, ...Option) (*Object, error){Extract, First} {
		if _, err := find(raw, schema); !errors.Is(err, ErrMalformedData) {
			t.Errorf("error = %v, want ErrMalformedData", err)
		}
	}
	if _, err := All(raw, schema); !errors.Is(err, ErrMalformedData) {
		t.Errorf("All error = %v, want ErrMalformedData", err)
	}
}

func TestExtract_SkipsFailedRegionWhole(t *testing.T) {
	// the inner {b: 2} must not be picked out of the broken first region
	obj, err := Extract(`{a: {b: 2} c} and then {d: 4}`, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := obj.Value.String(); got != `{"d":4}` {
		t.Errorf("got %s, want {\"d\":4}", got)
	}
	if obj.Offset != 23 {
		t.Errorf("Offset = %d, want 23", obj.Offset)
	}
}

func TestExtract_DepthLimit(t *testing.T) {
	deep := strings.Repeat("[", maxDepth+1) + strings.Repeat("]", maxDepth+1)
	_, err := Extract(deep, nil)
	var mde *MalformedDataError
	if !errors.As(err, &mde) {
		t.Fatalf("error = %v, want *MalformedDataError", err)
	}
	if !strings.Contains(mde.Reason, "nesting") {
		t.Errorf("reason = %q", mde.Reason)
	}
}

func TestExtract_LargeUnclosedInputIsLinear(t *testing.T) {
	inputs := map[string]string{
		"unclosed openers":     strings.Repeat("[", 1<<20),
		"unparseable regions":  strings.Repeat("{x y} ", 1<<17),
		"openers inside prose": strings.Repeat("see [note ", 1<<17),
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			_, err := Extract(raw, nil)
			if !errors.Is(err, ErrMalformedData) {
				t.Fatalf("error = %v, want ErrMalformedData", err)
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("took %v on %d bytes", elapsed, len(raw))
			}
		})
	}
}

func TestParseRegion_DepthLimit(t *testing.T) {
	deep := strings.Repeat("[", maxDepth+1) + strings.Repeat("]", maxDepth+1)

	_, err := parseRegion(deep)
	var pe *parseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *parseError", err)
	}
	if !strings.Contains(pe.reason, "nesting") {
		t.Errorf("reason = %q", pe.reason)
	}

	ok := strings.Repeat("[", maxDepth) + strings.Repeat("]", maxDepth)
	if _, err := parseRegion(ok); err != nil {
		t.Errorf("depth %d should parse: %v", maxDepth, err)
	}
}
