package flow

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func mustSchema(t *testing.T, raw string) *Schema {
	t.Helper()
	var s Schema
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("parsing schema: %v", err)
	}
	return &s
}

func TestSchemaCompactAcceptance(t *testing.T) {
	s := mustSchema(t, `{"foo": "string", "bar": "number"}`)
	if err := s.Validate(map[string]any{"foo": "x", "bar": float64(1)}); err != nil {
		t.Errorf("conforming value rejected: %v", err)
	}
}

func TestSchemaCompactRejectsWrongTypes(t *testing.T) {
	s := mustSchema(t, `{"foo": "string", "bar": "number"}`)
	tests := []struct {
		name  string
		value map[string]any
		field string
	}{
		{"swapped foo", map[string]any{"foo": float64(1), "bar": float64(1)}, "foo"},
		{"swapped bar", map[string]any{"foo": "x", "bar": "oops"}, "bar"},
		{"missing field", map[string]any{"foo": "x"}, "bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.value)
			if err == nil {
				t.Fatal("expected validation failure")
			}
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Errorf("error kind = %v, want ErrSchemaMismatch", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("diagnostic %q does not name field %q", err.Error(), tt.field)
			}
		})
	}
}

func TestSchemaJSONSchemaForm(t *testing.T) {
	s := mustSchema(t, `{
		"type": "object",
		"properties": {
			"label": {"type": "string"},
			"meta": {
				"type": "object",
				"properties": {"score": {"type": "number"}}
			}
		}
	}`)
	if err := s.Validate(map[string]any{
		"label": "ok",
		"meta":  map[string]any{"score": float64(0.5)},
	}); err != nil {
		t.Errorf("conforming nested value rejected: %v", err)
	}
	// Declared fields are required, including nested ones.
	err := s.Validate(map[string]any{
		"label": "ok",
		"meta":  map[string]any{},
	})
	if err == nil {
		t.Fatal("missing nested field should fail")
	}
	if !strings.Contains(err.Error(), "score") {
		t.Errorf("diagnostic should name score: %q", err.Error())
	}
}

func TestSchemaArrayType(t *testing.T) {
	s := mustSchema(t, `{"emails": "array"}`)
	if err := s.Validate(map[string]any{"emails": []any{map[string]any{"unread": true}}}); err != nil {
		t.Errorf("array of any rejected: %v", err)
	}
	if err := s.Validate(map[string]any{"emails": "not-a-list"}); err == nil {
		t.Error("non-array should fail")
	}
}

func TestSchemaUnknownTypeIsAny(t *testing.T) {
	s := mustSchema(t, `{"blob": "whatever"}`)
	for _, v := range []any{"s", float64(1), true, []any{}, map[string]any{}} {
		if err := s.Validate(map[string]any{"blob": v}); err != nil {
			t.Errorf("unknown type should accept %T: %v", v, err)
		}
	}
	if err := s.Validate(map[string]any{}); err == nil {
		t.Error("declared field is still required")
	}
}

func TestSchemaNilValidatesEverything(t *testing.T) {
	var s *Schema
	if err := s.Validate(map[string]any{"anything": 1}); err != nil {
		t.Errorf("nil schema should accept everything: %v", err)
	}
	if s.Document() != nil {
		t.Error("nil schema has no document")
	}
}

func TestSchemaDescribeNamesFields(t *testing.T) {
	s := mustSchema(t, `{"label": "string", "count": "number"}`)
	desc := s.Describe()
	for _, want := range []string{`"label" must be a string`, `"count" must be a number`} {
		if !strings.Contains(desc, want) {
			t.Errorf("Describe() missing %q:\n%s", want, desc)
		}
	}
}

func TestSchemaExampleIsValid(t *testing.T) {
	s := mustSchema(t, `{"label": "string", "tags": "array", "n": "number", "ok": "boolean"}`)
	var value any
	if err := json.Unmarshal([]byte(s.Example()), &value); err != nil {
		t.Fatalf("example is not JSON: %v", err)
	}
	if err := s.Validate(value); err != nil {
		t.Errorf("example does not satisfy its own schema: %v", err)
	}
}
