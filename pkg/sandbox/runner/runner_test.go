package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"

	"github.com/rhuss/sandbox-mcp/pkg/api"
	"github.com/rhuss/sandbox-mcp/pkg/dispatch"
	"github.com/rhuss/sandbox-mcp/pkg/sandbox"
	"github.com/rhuss/sandbox-mcp/pkg/tools/builtins/runcode"
	"github.com/rhuss/sandbox-mcp/pkg/tools/registry"
)

func requireBash(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping subprocess test in short mode")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *sandbox.Client) {
	t.Helper()
	if cfg.Mode == "" {
		cfg.Mode = ModeShell
	}
	srv := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv, sandbox.NewClient(sandbox.WithAPIKey(cfg.APIKey))
}

func TestServer_Execute(t *testing.T) {
	requireBash(t)
	srv, client := newTestServer(t, Config{})

	tests := []struct {
		name       string
		code       string
		wantStatus string
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{"stdout", "echo 2", sandbox.StatusSuccess, 0, "2\n", ""},
		{"stderr", "echo oops >&2", sandbox.StatusSuccess, 0, "", "oops\n"},
		{"non-zero exit", "echo partial; exit 3", sandbox.StatusError, 3, "partial\n", ""},
		{"empty code", "", sandbox.StatusSuccess, 0, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.Execute(context.Background(), srv.URL, &sandbox.Request{Code: tt.code, TimeoutSeconds: 10})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.ExitCode != tt.wantExit {
				t.Errorf("exit_code = %d, want %d", resp.ExitCode, tt.wantExit)
			}
			if resp.Stdout != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", resp.Stdout, tt.wantStdout)
			}
			if resp.Stderr != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", resp.Stderr, tt.wantStderr)
			}
		})
	}
}

func TestServer_Timeout(t *testing.T) {
	requireBash(t)
	srv, client := newTestServer(t, Config{})

	resp, err := client.Execute(context.Background(), srv.URL, &sandbox.Request{Code: "sleep 5", TimeoutSeconds: 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Status != sandbox.StatusTimeout {
		t.Errorf("status = %q, want %q", resp.Status, sandbox.StatusTimeout)
	}
	if resp.ExitCode != -1 {
		t.Errorf("exit_code = %d, want -1", resp.ExitCode)
	}
	if !strings.Contains(resp.Stderr, "timed out") {
		t.Errorf("stderr = %q, want timeout message", resp.Stderr)
	}
}

func TestServer_OutputFiles(t *testing.T) {
	requireBash(t)
	srv, client := newTestServer(t, Config{})

	resp, err := client.Execute(context.Background(), srv.URL, &sandbox.Request{
		Code:           `printf 'a,b' > "$OUTPUT_DIR/result.csv"`,
		TimeoutSeconds: 10,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.FilesProduced["result.csv"] != "YSxi" {
		t.Errorf("files_produced = %v", resp.FilesProduced)
	}
}

func TestServer_InputFiles(t *testing.T) {
	requireBash(t)
	srv, client := newTestServer(t, Config{})

	resp, err := client.Execute(context.Background(), srv.URL, &sandbox.Request{
		Code:           "cat data.txt",
		TimeoutSeconds: 10,
		Files:          map[string]string{"../../data.txt": "aGVsbG8="},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Stdout != "hello" {
		t.Errorf("stdout = %q, want %q", resp.Stdout, "hello")
	}
}

func TestServer_EndToEndThroughExecutor(t *testing.T) {
	requireBash(t)
	srv, client := newTestServer(t, Config{})

	executor := sandbox.NewExecutor(sandbox.NewHTTPProvider("http", sandbox.StaticURL(srv.URL), client, 0))
	result, err := executor.Execute(context.Background(), "echo $((1+1))")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Stdout != "2\n" || result.Stderr != "" {
		t.Errorf("result = %+v", result)
	}
}

func TestServer_EmptyCodeThroughDispatcher(t *testing.T) {
	requireBash(t)
	srv, client := newTestServer(t, Config{})

	executor := sandbox.NewExecutor(sandbox.NewHTTPProvider("http", sandbox.StaticURL(srv.URL), client, 0))
	reg := registry.New()
	d := dispatch.New(reg)
	if err := runcode.New(executor).Register(reg, d); err != nil {
		t.Fatalf("Register: %v", err)
	}

	content, err := d.HandleCallTool(context.Background(), runcode.ToolName, map[string]any{"code": ""})
	if err != nil {
		t.Fatalf("HandleCallTool: %v", err)
	}
	if len(content) != 1 {
		t.Fatalf("content = %d items, want 1", len(content))
	}
	text, ok := content[0].(*api.TextContent)
	if !ok {
		t.Fatalf("content[0] = %T, want *api.TextContent", content[0])
	}
	want := "{\n  \"stdout\": \"\",\n  \"stderr\": \"\"\n}"
	if text.Text != want {
		t.Errorf("text = %q, want %q", text.Text, want)
	}
}

func TestServer_RejectsBadRequests(t *testing.T) {
	srv := httptest.NewServer(New(Config{Mode: ModeShell}).Handler())
	defer srv.Close()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing code", `{"timeout_seconds": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/execute", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestServer_AtCapacity(t *testing.T) {
	s := New(Config{Mode: ModeShell, MaxConcurrent: 1})
	s.load.Store(1)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	_, err := sandbox.NewClient().Execute(context.Background(), srv.URL, &sandbox.Request{Code: "echo 1"})
	if !errors.Is(err, sandbox.ErrAtCapacity) {
		t.Errorf("error = %v, want ErrAtCapacity", err)
	}
}

func TestServer_APIKey(t *testing.T) {
	srv := httptest.NewServer(New(Config{Mode: ModeShell, APIKey: "secret"}).Handler())
	defer srv.Close()

	_, err := sandbox.NewClient(sandbox.WithAPIKey("wrong")).Execute(context.Background(), srv.URL, &sandbox.Request{Code: "echo 1"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v, want HTTP 401", err)
	}
}

func TestServer_Health(t *testing.T) {
	srv := httptest.NewServer(New(Config{Mode: ModeShell, MaxConcurrent: 5}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var h sandbox.Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != "healthy" || h.Mode != ModeShell || h.Capacity != 5 {
		t.Errorf("health = %+v", h)
	}
}

func TestValidateMode(t *testing.T) {
	if err := ValidateMode("cobol"); err == nil {
		t.Error("expected error for unsupported mode")
	}
}

func TestRuntimeFor(t *testing.T) {
	tests := []struct {
		mode string
		ext  string
		cmd  string
	}{
		{ModePython, ".py", "python3"},
		{ModeGolang, ".go", "go"},
		{ModeNode, ".js", "node"},
		{ModeShell, ".sh", "bash"},
		{"", ".py", "python3"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			rt := runtimeFor(tt.mode, "/tmp/w", "/tmp/w/output")
			if rt.ext != tt.ext || rt.command[0] != tt.cmd {
				t.Errorf("runtimeFor(%q) = %+v", tt.mode, rt)
			}
			if rt.env[0] != "OUTPUT_DIR=/tmp/w/output" {
				t.Errorf("env = %v", rt.env)
			}
		})
	}
}
