package flow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema describes the expected shape of a structured value produced by
// browser_query.extract or cognition.
//
// Two input shapes are accepted everywhere a schema is accepted:
//
//	compact:     {"emails": "array", "count": "number"}
//	JSON Schema: {"type": "object", "properties": {...}}
//
// Both normalize to a JSON-Schema document in which every declared field is
// required. Unknown type names map to "any" (an unconstrained subschema);
// "array" defaults to an array of any.
type Schema struct {
	doc map[string]any
}

// knownTypes is the closed set of compact type names.
var knownTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"array": true, "object": true, "integer": true,
}

// NewSchema normalizes a raw schema value (compact or JSON-Schema form).
// A nil input yields a nil schema, meaning "no validation".
func NewSchema(raw map[string]any) *Schema {
	if raw == nil {
		return nil
	}
	return &Schema{doc: normalizeSchema(raw)}
}

// UnmarshalJSON accepts either schema shape from workflow documents.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema must be an object: %w", err)
	}
	s.doc = normalizeSchema(raw)
	return nil
}

// normalizeSchema converts either accepted shape into a JSON-Schema document
// with all declared fields required.
func normalizeSchema(raw map[string]any) map[string]any {
	if isFullSchema(raw) {
		return requireAll(deepClone(raw).(map[string]any))
	}
	props := make(map[string]any, len(raw))
	required := make([]string, 0, len(raw))
	for field, v := range raw {
		typeName, _ := v.(string)
		props[field] = typeSchema(typeName)
		required = append(required, field)
	}
	sort.Strings(required)
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   toAnySlice(required),
	}
}

// isFullSchema reports whether raw is already in JSON-Schema form: a "type"
// key naming a JSON type, or a "properties" key.
func isFullSchema(raw map[string]any) bool {
	if _, ok := raw["properties"]; ok {
		return true
	}
	if t, ok := raw["type"].(string); ok {
		return knownTypes[t] || t == "null"
	}
	return false
}

// typeSchema maps a compact type name to a subschema. Unknown names are
// unconstrained.
func typeSchema(name string) map[string]any {
	switch name {
	case "string", "number", "boolean", "integer", "object":
		return map[string]any{"type": name}
	case "array":
		return map[string]any{"type": "array", "items": map[string]any{}}
	default:
		return map[string]any{}
	}
}

// requireAll fills in a required list covering every declared property, on
// the document and every nested object schema. Declared fields must be
// present in validated results.
func requireAll(doc map[string]any) map[string]any {
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		return doc
	}
	if _, has := doc["required"]; !has {
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		doc["required"] = toAnySlice(names)
	}
	for _, sub := range props {
		if subDoc, ok := sub.(map[string]any); ok {
			requireAll(subDoc)
		}
	}
	if items, ok := doc["items"].(map[string]any); ok {
		requireAll(items)
	}
	return doc
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Document returns the normalized JSON-Schema document. Callers must not
// mutate it; the browser façade receives this form on extract calls.
func (s *Schema) Document() map[string]any {
	if s == nil {
		return nil
	}
	return s.doc
}

// Validate checks value against the schema. On failure it returns a
// PrimitiveError of kind ErrSchemaMismatch whose message names every failing
// field, suitable for feeding back to the LLM on a retry.
func (s *Schema) Validate(value any) error {
	if s == nil {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(s.doc),
		gojsonschema.NewGoLoader(value),
	)
	if err != nil {
		return newError(ErrSchemaMismatch, "", fmt.Sprintf("schema validation could not run: %v", err), err)
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		details = append(details, fmt.Sprintf("field %q: %s", re.Field(), re.Description()))
	}
	return newError(ErrSchemaMismatch, "", strings.Join(details, "; "), nil)
}

// Describe renders the schema for inclusion in an LLM prompt: the JSON
// document plus one "must be a <type>" clause per top-level field.
func (s *Schema) Describe() string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	encoded, _ := json.MarshalIndent(s.doc, "", "  ")
	b.Write(encoded)
	props, ok := s.doc["properties"].(map[string]any)
	if !ok {
		return b.String()
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		typeName := "value"
		if sub, ok := props[name].(map[string]any); ok {
			if t, ok := sub["type"].(string); ok {
				typeName = t
			}
		}
		fmt.Fprintf(&b, "\n- %q must be a %s", name, typeName)
	}
	return b.String()
}

// Example produces a small literal exemplar of a well-formed response, used
// to anchor the LLM's output format.
func (s *Schema) Example() string {
	if s == nil {
		return "{}"
	}
	b, err := json.Marshal(exampleValue(s.doc))
	if err != nil {
		return "{}"
	}
	return string(b)
}

func exampleValue(doc map[string]any) any {
	t, _ := doc["type"].(string)
	switch t {
	case "string":
		return "example"
	case "number", "integer":
		return 1
	case "boolean":
		return true
	case "array":
		if items, ok := doc["items"].(map[string]any); ok && len(items) > 0 {
			return []any{exampleValue(items)}
		}
		return []any{}
	case "object":
		out := map[string]any{}
		if props, ok := doc["properties"].(map[string]any); ok {
			for name, sub := range props {
				if subDoc, ok := sub.(map[string]any); ok {
					out[name] = exampleValue(subDoc)
				}
			}
		}
		return out
	default:
		return "example"
	}
}
