package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type is a schema type name
type Type string

const (
	TypeAny     Type = ""
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeNull    Type = "null"
)

// ParseType normalizes a type name. Common aliases (int, float, bool, str,
// list, dict) are accepted.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return TypeAny, nil
	case "object", "dict", "map":
		return TypeObject, nil
	case "array", "list":
		return TypeArray, nil
	case "string", "str":
		return TypeString, nil
	case "integer", "int":
		return TypeInteger, nil
	case "number", "float", "double":
		return TypeNumber, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "null", "none":
		return TypeNull, nil
	default:
		return "", fmt.Errorf("unknown schema type %q", s)
	}
}

// Schema describes the expected shape of extracted data. It is a small subset
// of JSON Schema plus a Types shorthand mapping keys straight to scalar types.
//
// When Type is empty the shape is implied: Required, Properties or Types make
// it an object, Items makes it an array.
type Schema struct {
	Type                 Type               `json:"type,omitempty" yaml:"type,omitempty"`
	Required             []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Types                map[string]Type    `json:"types,omitempty" yaml:"types,omitempty"`
	Items                *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
	Enum                 []any              `json:"enum,omitempty" yaml:"enum,omitempty"`
	Nullable             bool               `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

// effectiveType resolves the implied type
func (s *Schema) effectiveType() Type {
	switch {
	case s.Type != TypeAny:
		return s.Type
	case len(s.Required) > 0 || len(s.Properties) > 0 || len(s.Types) > 0 || s.AdditionalProperties != nil:
		return TypeObject
	case s.Items != nil:
		return TypeArray
	}
	return TypeAny
}

// propertyType returns the declared type for key, if any
func (s *Schema) propertyType(key string) Type {
	if p, ok := s.Properties[key]; ok && p != nil {
		return p.effectiveType()
	}
	return s.Types[key]
}

// ParseSchema reads a schema written as JSON or YAML
func ParseSchema(data []byte) (*Schema, error) {
	var raw map[string]any

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty schema")
	}
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("schema must be a mapping")
	}

	return schemaFromMap(raw, "$")
}

// LoadSchema reads a schema file
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	s, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func schemaFromMap(m map[string]any, at string) (*Schema, error) {
	s := &Schema{}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := m[key]
		var err error
		switch key {
		case "type":
			err = s.setType(raw)
		case "required":
			s.Required, err = stringList(raw)
		case "properties":
			s.Properties, err = propertiesFromAny(raw, at)
		case "types":
			s.Types, err = typesFromAny(raw)
		case "items":
			im, ok := raw.(map[string]any)
			if !ok {
				err = fmt.Errorf("must be a mapping")
				break
			}
			s.Items, err = schemaFromMap(im, at+"[]")
		case "additionalProperties":
			switch v := raw.(type) {
			case bool:
				s.AdditionalProperties = &v
			case map[string]any:
				// a sub-schema allows extra keys; their values are not checked
				allowed := true
				s.AdditionalProperties = &allowed
			default:
				err = fmt.Errorf("must be a boolean")
			}
		case "enum":
			list, ok := raw.([]any)
			if !ok {
				err = fmt.Errorf("must be a list")
				break
			}
			s.Enum = list
		case "nullable":
			b, ok := raw.(bool)
			if !ok {
				err = fmt.Errorf("must be a boolean")
				break
			}
			s.Nullable = s.Nullable || b
		}
		if err != nil {
			return nil, fmt.Errorf("schema %s: %s: %w", at, key, err)
		}
	}
	return s, nil
}

// setType accepts a single name or a list. A list may pair one type with "null".
func (s *Schema) setType(raw any) error {
	switch v := raw.(type) {
	case string:
		t, err := ParseType(v)
		if err != nil {
			return err
		}
		if t == TypeNull {
			s.Nullable = true
		}
		s.Type = t
		return nil
	case []any:
		names, err := stringList(v)
		if err != nil {
			return err
		}
		var chosen []Type
		for _, n := range names {
			t, err := ParseType(n)
			if err != nil {
				return err
			}
			if t == TypeNull {
				s.Nullable = true
				continue
			}
			chosen = append(chosen, t)
		}
		switch len(chosen) {
		case 0:
			s.Type = TypeNull
		case 1:
			s.Type = chosen[0]
		default:
			return fmt.Errorf("unions of several non-null types are not supported")
		}
		return nil
	default:
		return fmt.Errorf("must be a string or list of strings")
	}
}

func stringList(raw any) ([]string, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a list of strings")
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("must be a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func propertiesFromAny(raw any, at string) (map[string]*Schema, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("must be a mapping")
	}
	props := make(map[string]*Schema, len(m))
	for name, sub := range m {
		sm, ok := sub.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("property %q must be a mapping", name)
		}
		ps, err := schemaFromMap(sm, childPath(at, name))
		if err != nil {
			return nil, err
		}
		props[name] = ps
	}
	return props, nil
}

func typesFromAny(raw any) (map[string]Type, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("must be a mapping")
	}
	types := make(map[string]Type, len(m))
	for name, v := range m {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("type of %q must be a string", name)
		}
		t, err := ParseType(s)
		if err != nil {
			return nil, err
		}
		types[name] = t
	}
	return types, nil
}
