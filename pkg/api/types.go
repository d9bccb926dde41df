package api

import (
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// FieldType is the primitive JSON type of a schema field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// Field describes a single named argument.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
}

// Schema is a structural description of a tool's arguments. Fields keep
// their declaration order, which is also the advertised property order.
type Schema struct {
	Fields []Field
}

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// JSONSchema renders the schema as an object schema suitable for the
// inputSchema of an advertised tool. Unknown properties are disallowed.
func (s Schema) JSONSchema() *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		props[f.Name] = &jsonschema.Schema{
			Type:        string(f.Type),
			Description: f.Description,
		}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
		// {"not": {}} marshals as the boolean schema false.
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

// ToolDescriptor describes an advertised tool. Descriptors are immutable
// once registered.
type ToolDescriptor struct {
	// Name is the unique, non-empty tool name (e.g., "run_code").
	Name string

	// Description is the human-readable description shown to clients.
	Description string

	// Schema describes the accepted arguments.
	Schema Schema
}

// CallRequest is a single tool invocation as received from a client.
type CallRequest struct {
	ToolName  string
	Arguments map[string]any
}

// Arguments is an argument map that passed schema validation. Values have
// the types declared by the schema, so the typed accessors never need to
// report a mismatch for declared fields.
type Arguments map[string]any

// String returns the string argument with the given name, or "" if the
// argument is absent.
func (a Arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the integer argument with the given name, or 0.
func (a Arguments) Int(name string) int64 {
	n, _ := a[name].(int64)
	return n
}

// Float returns the number argument with the given name, or 0.
func (a Arguments) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// Bool returns the boolean argument with the given name, or false.
func (a Arguments) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Has reports whether the argument was supplied.
func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// ExecutionResult is the captured output of one sandbox execution.
type ExecutionResult struct {
	Stdout string
	Stderr string

	// ExitCode is the process exit code reported by the sandbox, -1 when
	// the process did not exit normally (e.g., timeout).
	ExitCode int

	// Duration is the execution time reported by the sandbox.
	Duration time.Duration

	// Files holds output files produced by the execution, if any.
	Files []File
}

// File is an output file produced inside the sandbox.
type File struct {
	Name string
	Data []byte
}
