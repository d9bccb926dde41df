// Package runner implements the sandbox server: an HTTP service that runs
// submitted code in a subprocess and returns its captured output. It is
// the backend that sandbox.Client talks to.
package runner

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rhuss/sandbox-mcp/pkg/debug"
	"github.com/rhuss/sandbox-mcp/pkg/sandbox"
)

const (
	defaultTimeoutSeconds = 30
	maxRequestBytes       = 10 * 1024 * 1024
)

// Config configures a Server.
type Config struct {
	// Mode selects the runtime: python, golang, node or shell.
	Mode string

	// MaxConcurrent caps simultaneous executions; excess requests get 429.
	MaxConcurrent int

	// PythonIndex is the package index used for requirements in python mode.
	PythonIndex string

	// OutputDir is the directory name, relative to the work dir, whose
	// files are returned as files_produced.
	OutputDir string

	// APIKey, when set, is required as a bearer token on /execute.
	APIKey string
}

// Server executes code for sandbox clients.
type Server struct {
	cfg            Config
	runtimeVersion string
	load           atomic.Int32
	startTime      time.Time
}

// New creates a Server. The mode must already be validated.
func New(cfg Config) *Server {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.PythonIndex == "" {
		cfg.PythonIndex = "https://pypi.org/simple/"
	}
	return &Server{
		cfg:            cfg,
		runtimeVersion: RuntimeVersion(cfg.Mode),
		startTime:      time.Now(),
	}
}

// Handler returns the HTTP handler serving POST /execute and GET /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", s.handleExecute)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}

	current := s.load.Add(1)
	defer s.load.Add(-1)
	if int(current) > s.cfg.MaxConcurrent {
		writeError(w, http.StatusTooManyRequests,
			fmt.Sprintf("at capacity (%d/%d concurrent executions)", current, s.cfg.MaxConcurrent))
		return
	}

	// Code shadows the embedded field so a missing key can be told apart
	// from empty code, which is valid and runs an empty program.
	var body struct {
		sandbox.Request
		Code *string `json:"code"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if body.Code == nil {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	req := body.Request
	req.Code = *body.Code
	if req.TimeoutSeconds <= 0 {
		req.TimeoutSeconds = defaultTimeoutSeconds
	}

	slog.Info("execute request",
		"request_id", r.Header.Get("X-Request-ID"),
		"code", debug.Truncate(req.Code, 120),
		"timeout", req.TimeoutSeconds,
		"requirements", len(req.Requirements),
		"files", len(req.Files),
	)

	resp, status, err := s.execute(r.Context(), &req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	slog.Info("execute complete",
		"request_id", r.Header.Get("X-Request-ID"),
		"status", resp.Status,
		"exit_code", resp.ExitCode,
		"duration_ms", resp.ExecutionTimeMs,
		"stdout_len", len(resp.Stdout),
		"files_produced", len(resp.FilesProduced),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// execute runs one request in a fresh temporary directory. The returned
// HTTP status is only meaningful when err is non-nil.
func (s *Server) execute(ctx context.Context, req *sandbox.Request) (*sandbox.Response, int, error) {
	workDir, err := os.MkdirTemp("", "sandbox-exec-*")
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	outputDir := filepath.Join(workDir, s.cfg.OutputDir)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to create output dir: %w", err)
	}

	for name, encoded := range req.Files {
		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("failed to decode file %q: %w", name, err)
		}
		// Base name only; input files cannot escape the work dir.
		if err := os.WriteFile(filepath.Join(workDir, filepath.Base(name)), content, 0o644); err != nil {
			return nil, http.StatusInternalServerError, fmt.Errorf("failed to write file %q: %w", name, err)
		}
	}

	if len(req.Requirements) > 0 {
		if err := s.installRequirements(ctx, workDir, req.Requirements, req.TimeoutSeconds); err != nil {
			return &sandbox.Response{
				Status:   sandbox.StatusError,
				Stderr:   "package installation failed: " + err.Error(),
				ExitCode: -1,
			}, http.StatusOK, nil
		}
	}

	rt := runtimeFor(s.cfg.Mode, workDir, outputDir)
	scriptPath := filepath.Join(workDir, "script"+rt.ext)
	if err := os.WriteFile(scriptPath, []byte(req.Code), 0o644); err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to write code: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(req.TimeoutSeconds)*time.Second)
	defer cancel()

	args := append(append([]string{}, rt.command[1:]...), scriptPath)
	cmd := exec.CommandContext(runCtx, rt.command[0], args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), rt.env...)
	// Orphaned children may hold the output pipes after the kill.
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	resp := &sandbox.Response{Status: sandbox.StatusSuccess}
	if runErr != nil {
		resp.Status = sandbox.StatusError
		resp.ExitCode = -1
		// The deadline takes precedence over the exit error it causes.
		if runCtx.Err() == context.DeadlineExceeded {
			resp.Status = sandbox.StatusTimeout
			if stderr.Len() == 0 {
				fmt.Fprintf(&stderr, "execution timed out after %d seconds", req.TimeoutSeconds)
			}
		} else if exitErr, ok := runErr.(*exec.ExitError); ok {
			resp.ExitCode = exitErr.ExitCode()
		}
	}

	resp.Stdout = stdout.String()
	resp.Stderr = stderr.String()
	resp.ExecutionTimeMs = elapsed.Milliseconds()
	resp.FilesProduced = collectOutputFiles(outputDir)
	return resp, http.StatusOK, nil
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.APIKey == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIKey)) == 1
}

func (s *Server) installRequirements(ctx context.Context, workDir string, requirements []string, timeoutSecs int) error {
	var name string
	var args []string
	switch s.cfg.Mode {
	case ModePython:
		name = "uv"
		args = []string{"pip", "install", "--system", "--target", filepath.Join(workDir, ".pylibs"), "--index-url", s.cfg.PythonIndex}
	case ModeNode:
		name = "npm"
		args = []string{"install"}
	default:
		// Go and shell have no package step.
		return nil
	}

	installCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(installCtx, name, append(args, requirements...)...)
	cmd.Dir = workDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}

// collectOutputFiles reads regular files from dir, base64 encoded.
func collectOutputFiles(dir string) map[string]string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files map[string]string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if files == nil {
			files = make(map[string]string)
		}
		files[entry.Name()] = base64.StdEncoding.EncodeToString(content)
	}
	return files
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sandbox.Health{
		Status:         "healthy",
		Mode:           s.cfg.Mode,
		RuntimeVersion: s.runtimeVersion,
		Capacity:       s.cfg.MaxConcurrent,
		CurrentLoad:    int(s.load.Load()),
		UptimeSecs:     int64(time.Since(s.startTime).Seconds()),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
