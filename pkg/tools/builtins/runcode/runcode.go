// Package runcode provides the run_code tool, which executes Python code
// in a sandbox and returns the captured stdout and stderr.
package runcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/rhuss/sandbox-mcp/pkg/api"
	"github.com/rhuss/sandbox-mcp/pkg/dispatch"
	"github.com/rhuss/sandbox-mcp/pkg/tools/registry"
)

// ToolName is the advertised name of the tool.
const ToolName = "run_code"

const description = "Run python code in a secure sandbox. Using the Jupyter Notebook syntax."

// Descriptor is the run_code tool descriptor.
var Descriptor = api.ToolDescriptor{
	Name:        ToolName,
	Description: description,
	Schema: api.Schema{Fields: []api.Field{
		{Name: "code", Type: api.FieldString, Required: true, Description: "Python code to execute"},
	}},
}

// Executor runs code in a sandbox.
type Executor interface {
	Execute(ctx context.Context, code string) (*api.ExecutionResult, error)
}

// Tool executes run_code calls.
type Tool struct {
	executor     Executor
	includeFiles bool
}

// Option configures a Tool.
type Option func(*Tool)

// WithFiles appends files produced by the execution to the result, after
// the output text.
func WithFiles(enabled bool) Option {
	return func(t *Tool) { t.includeFiles = enabled }
}

// New creates the run_code tool backed by executor.
func New(executor Executor, opts ...Option) *Tool {
	t := &Tool{executor: executor}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register adds the descriptor to reg and binds the handler on d.
func (t *Tool) Register(reg *registry.Registry, d *dispatch.Dispatcher) error {
	if err := reg.Register(Descriptor); err != nil {
		return err
	}
	return d.Bind(ToolName, t.Handle)
}

// Handle executes args["code"] and returns one text item holding the
// JSON document {"stdout": ..., "stderr": ...}.
func (t *Tool) Handle(ctx context.Context, args api.Arguments) ([]api.Content, error) {
	result, err := t.executor.Execute(ctx, args.String("code"))
	if err != nil {
		return nil, err
	}

	text, err := FormatOutput(result)
	if err != nil {
		return nil, fmt.Errorf("format output: %w", err)
	}

	content := []api.Content{&api.TextContent{Text: text}}
	if t.includeFiles {
		content = append(content, fileContent(result.Files)...)
	}
	return content, nil
}

// output fixes the key order of the rendered document.
type output struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// FormatOutput renders stdout and stderr as a two-space indented JSON
// object, stdout first.
func FormatOutput(r *api.ExecutionResult) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{Stdout: r.Stdout, Stderr: r.Stderr}); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

var imageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
}

var textExts = map[string]string{
	".csv":  "text/csv",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".json": "application/json",
	".html": "text/html",
}

func fileContent(files []api.File) []api.Content {
	var out []api.Content
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if mimeType, ok := imageExts[ext]; ok {
			out = append(out, &api.ImageContent{Data: f.Data, MIMEType: mimeType})
			continue
		}

		mimeType, ok := textExts[ext]
		if !ok {
			mimeType = mime.TypeByExtension(ext)
		}
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		rc := &api.ResourceContent{URI: "sandbox://files/" + f.Name, MIMEType: mimeType}
		if strings.HasPrefix(mimeType, "text/") || mimeType == "application/json" {
			rc.Text = string(f.Data)
		} else {
			rc.Blob = f.Data
		}
		out = append(out, rc)
	}
	return out
}
