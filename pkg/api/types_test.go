package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSchema_JSONSchema(t *testing.T) {
	s := Schema{Fields: []Field{
		{Name: "code", Type: FieldString, Required: true, Description: "Python code to execute"},
		{Name: "timeout", Type: FieldInteger},
	}}

	js := s.JSONSchema()
	if js.Type != "object" {
		t.Errorf("Type = %q, want object", js.Type)
	}
	if len(js.Required) != 1 || js.Required[0] != "code" {
		t.Errorf("Required = %v, want [code]", js.Required)
	}
	code, ok := js.Properties["code"]
	if !ok {
		t.Fatal("missing property code")
	}
	if code.Type != "string" {
		t.Errorf("code.Type = %q, want string", code.Type)
	}
	if code.Description != "Python code to execute" {
		t.Errorf("code.Description = %q", code.Description)
	}
	if js.AdditionalProperties == nil {
		t.Error("expected additionalProperties to be set")
	}

	data, err := json.Marshal(js)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"type":"object"`, `"required":["code"]`, `"additionalProperties"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema JSON %s does not contain %s", data, want)
		}
	}
}

func TestSchema_Field(t *testing.T) {
	s := Schema{Fields: []Field{{Name: "code", Type: FieldString}}}
	if _, ok := s.Field("code"); !ok {
		t.Error("expected field code")
	}
	if _, ok := s.Field("other"); ok {
		t.Error("unexpected field other")
	}
}

func TestContentKinds(t *testing.T) {
	items := []Content{
		&TextContent{Text: "hi"},
		&ImageContent{Data: []byte{0x89, 0x50}, MIMEType: "image/png"},
		&ResourceContent{URI: "sandbox://files/out.csv", Text: "a,b"},
	}
	want := []ContentKind{ContentKindText, ContentKindImage, ContentKindResource}
	for i, c := range items {
		if c.Kind() != want[i] {
			t.Errorf("items[%d].Kind() = %q, want %q", i, c.Kind(), want[i])
		}
	}
}

func TestErrors(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unknown tool", &UnknownToolError{Name: "nope"}, "unknown tool: nope"},
		{"duplicate", &DuplicateToolError{Name: "run_code"}, `tool "run_code" is already registered`},
		{"validation", NewValidationError("code", "field required"), "invalid arguments: code: field required"},
		{"validation without field", NewValidationError("", "arguments must be a JSON object"), "invalid arguments: arguments must be a JSON object"},
		{"provider", &ExecutionProviderError{Provider: "http", Cause: cause}, "sandbox execution failed (http): connection refused"},
		{"provider unnamed", &ExecutionProviderError{Cause: cause}, "sandbox execution failed: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecutionProviderError_Unwrap(t *testing.T) {
	cause := errors.New("quota exceeded")
	wrapped := fmt.Errorf("run_code: %w", &ExecutionProviderError{Provider: "http", Cause: cause})

	var perr *ExecutionProviderError
	if !errors.As(wrapped, &perr) {
		t.Fatal("errors.As failed for *ExecutionProviderError")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should reach the cause")
	}
}
