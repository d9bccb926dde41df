package runcode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rhuss/sandbox-mcp/pkg/api"
	"github.com/rhuss/sandbox-mcp/pkg/dispatch"
	"github.com/rhuss/sandbox-mcp/pkg/tools/registry"
)

// stubExecutor returns a canned result and records calls.
type stubExecutor struct {
	result *api.ExecutionResult
	err    error
	calls  int
	code   string
}

func (s *stubExecutor) Execute(_ context.Context, code string) (*api.ExecutionResult, error) {
	s.calls++
	s.code = code
	return s.result, s.err
}

func setup(t *testing.T, exec *stubExecutor, opts ...Option) *dispatch.Dispatcher {
	t.Helper()
	reg := registry.New()
	d := dispatch.New(reg)
	if err := New(exec, opts...).Register(reg, d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return d
}

func TestRunCode_Output(t *testing.T) {
	exec := &stubExecutor{result: &api.ExecutionResult{Stdout: "2\n", Stderr: ""}}
	d := setup(t, exec)

	content, err := d.HandleCallTool(context.Background(), "run_code", map[string]any{"code": "print(1+1)"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(content) != 1 {
		t.Fatalf("content items = %d, want 1", len(content))
	}
	text, ok := content[0].(*api.TextContent)
	if !ok {
		t.Fatalf("content[0] = %T, want *api.TextContent", content[0])
	}

	want := "{\n  \"stdout\": \"2\\n\",\n  \"stderr\": \"\"\n}"
	if text.Text != want {
		t.Errorf("text =\n%s\nwant\n%s", text.Text, want)
	}
	if exec.code != "print(1+1)" {
		t.Errorf("code = %q, want unmodified", exec.code)
	}
}

func TestRunCode_KeyOrder(t *testing.T) {
	exec := &stubExecutor{result: &api.ExecutionResult{Stdout: "a", Stderr: "b"}}
	d := setup(t, exec)

	content, err := d.HandleCallTool(context.Background(), "run_code", map[string]any{"code": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := content[0].(*api.TextContent).Text

	var doc map[string]string
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(doc) != 2 || doc["stdout"] != "a" || doc["stderr"] != "b" {
		t.Errorf("doc = %v", doc)
	}
	if strings.Index(text, `"stdout"`) > strings.Index(text, `"stderr"`) {
		t.Errorf("stdout must come before stderr: %s", text)
	}
}

func TestRunCode_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing code", map[string]any{}},
		{"numeric code", map[string]any{"code": 5.0}},
		{"null code", map[string]any{"code": nil}},
		{"extra field", map[string]any{"code": "x", "timeout": 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &stubExecutor{result: &api.ExecutionResult{}}
			d := setup(t, exec)

			_, err := d.HandleCallTool(context.Background(), "run_code", tt.args)
			var verr *api.SchemaValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want SchemaValidationError", err)
			}
			if exec.calls != 0 {
				t.Errorf("executor called %d times, want 0", exec.calls)
			}
		})
	}
}

func TestRunCode_ProviderError(t *testing.T) {
	perr := &api.ExecutionProviderError{Provider: "http", Cause: errors.New("sandbox at capacity")}
	exec := &stubExecutor{err: perr}
	d := setup(t, exec)

	_, err := d.HandleCallTool(context.Background(), "run_code", map[string]any{"code": "print(1)"})
	var got *api.ExecutionProviderError
	if !errors.As(err, &got) {
		t.Fatalf("error = %v, want ExecutionProviderError", err)
	}
	if exec.calls != 1 {
		t.Errorf("executor called %d times, want 1", exec.calls)
	}
}

func TestRunCode_Files(t *testing.T) {
	result := &api.ExecutionResult{
		Stdout: "done\n",
		Files: []api.File{
			{Name: "chart.png", Data: []byte{0x89, 'P', 'N', 'G'}},
			{Name: "data.csv", Data: []byte("a,b\n")},
			{Name: "model.bin", Data: []byte{0, 1}},
		},
	}

	t.Run("excluded by default", func(t *testing.T) {
		d := setup(t, &stubExecutor{result: result})
		content, err := d.HandleCallTool(context.Background(), "run_code", map[string]any{"code": "x"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(content) != 1 {
			t.Errorf("content items = %d, want 1", len(content))
		}
	})

	t.Run("included", func(t *testing.T) {
		d := setup(t, &stubExecutor{result: result}, WithFiles(true))
		content, err := d.HandleCallTool(context.Background(), "run_code", map[string]any{"code": "x"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(content) != 4 {
			t.Fatalf("content items = %d, want 4", len(content))
		}
		if content[0].Kind() != api.ContentKindText {
			t.Errorf("first item kind = %s, want text", content[0].Kind())
		}

		img, ok := content[1].(*api.ImageContent)
		if !ok || img.MIMEType != "image/png" {
			t.Errorf("content[1] = %#v, want png image", content[1])
		}

		csv, ok := content[2].(*api.ResourceContent)
		if !ok || csv.URI != "sandbox://files/data.csv" || csv.Text != "a,b\n" {
			t.Errorf("content[2] = %#v, want text resource", content[2])
		}

		bin, ok := content[3].(*api.ResourceContent)
		if !ok || bin.Blob == nil || bin.MIMEType != "application/octet-stream" {
			t.Errorf("content[3] = %#v, want blob resource", content[3])
		}
	})
}

func TestFormatOutput_NoHTMLEscaping(t *testing.T) {
	got, err := FormatOutput(&api.ExecutionResult{Stdout: "<b>&</b>\n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, `"<b>&</b>\n"`) {
		t.Errorf("output = %s", got)
	}
}

func TestFormatOutput_RawUTF8(t *testing.T) {
	got, err := FormatOutput(&api.ExecutionResult{Stdout: "héllo 世界\n", Stderr: "ünïcode"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "{\n  \"stdout\": \"héllo 世界\\n\",\n  \"stderr\": \"ünïcode\"\n}"
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if strings.Contains(got, `\u`) {
		t.Errorf("output contains \\u escapes: %s", got)
	}
}

func TestDescriptor(t *testing.T) {
	if Descriptor.Name != "run_code" {
		t.Errorf("name = %q", Descriptor.Name)
	}
	f, ok := Descriptor.Schema.Field("code")
	if !ok || f.Type != api.FieldString || !f.Required {
		t.Errorf("code field = %+v", f)
	}
	if len(Descriptor.Schema.Fields) != 1 {
		t.Errorf("fields = %d, want 1", len(Descriptor.Schema.Fields))
	}
}

func TestRegister_Duplicate(t *testing.T) {
	reg := registry.New()
	d := dispatch.New(reg)
	tool := New(&stubExecutor{})
	if err := tool.Register(reg, d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	var dup *api.DuplicateToolError
	if err := tool.Register(reg, d); !errors.As(err, &dup) {
		t.Errorf("error = %v, want DuplicateToolError", err)
	}
}
