package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
)

// Validate checks raw arguments against the schema and returns a copy with
// guaranteed types. It returns a *SchemaValidationError describing the
// first failure: a missing required field, a value of the wrong type, or a
// field the schema does not declare (unknown fields are rejected).
//
// Fields are checked in declaration order. Unknown fields are reported in
// sorted order so that the reported error is deterministic. A null value
// counts as absent.
func Validate(schema Schema, raw map[string]any) (Arguments, error) {
	args := make(Arguments, len(schema.Fields))

	for _, f := range schema.Fields {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			if f.Required {
				return nil, NewValidationError(f.Name, "field required")
			}
			continue
		}
		coerced, err := coerce(f.Type, v)
		if err != nil {
			return nil, NewValidationError(f.Name, err.Error())
		}
		args[f.Name] = coerced
	}

	var unknown []string
	for name := range raw {
		if _, ok := schema.Field(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, NewValidationError(unknown[0], "unknown field")
	}

	return args, nil
}

// DecodeArguments parses a JSON arguments payload into a generic map.
// An empty payload or JSON null yields an empty map. Numbers are kept as
// json.Number so that integer arguments do not lose precision.
func DecodeArguments(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	if trimmed[0] != '{' {
		return nil, NewValidationError("", "arguments must be a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, NewValidationError("", fmt.Sprintf("malformed JSON: %v", err))
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, NewValidationError("", "malformed JSON: unexpected data after arguments object")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// coerce converts v to the canonical Go representation of t, or returns an
// error describing the mismatch.
func coerce(t FieldType, v any) (any, error) {
	switch t {
	case FieldString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case FieldBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case FieldNumber:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case FieldInteger:
		if n, isNum := v.(json.Number); isNum {
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
		}
		if f, ok := toFloat(v); ok {
			if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
				return nil, fmt.Errorf("expected integer, got number with fraction")
			}
			// float64(math.MaxInt64) rounds up to 2^63.
			if f >= math.MaxInt64 || f < math.MinInt64 {
				return nil, fmt.Errorf("integer out of range")
			}
			return int64(f), nil
		}
	case FieldArray:
		if a, ok := v.([]any); ok {
			return a, nil
		}
	case FieldObject:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
	default:
		return nil, fmt.Errorf("unsupported schema type %q", t)
	}
	return nil, fmt.Errorf("expected %s, got %s", t, jsonTypeName(v))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// jsonTypeName names the JSON type of a decoded value for error messages.
func jsonTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int32, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
