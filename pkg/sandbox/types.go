// Package sandbox is the execution client adapter: it runs code in an
// external sandbox server and returns captured output. Sandboxes are
// reached over the sandbox server REST API, either at a static URL or
// through pods acquired per session (see the kubernetes subpackage).
package sandbox

import (
	"context"

	"github.com/rhuss/sandbox-mcp/pkg/api"
)

// Provider creates sandbox sessions.
type Provider interface {
	// Name identifies the backend in errors, logs and metrics.
	Name() string

	// NewSession opens a fresh sandbox session.
	NewSession(ctx context.Context) (Session, error)
}

// Session is one isolated sandbox. A session runs one execution at a time.
type Session interface {
	ID() string

	// Run executes code and returns its captured output. A non-zero exit
	// code of the user's program is a result, not an error.
	Run(ctx context.Context, code string) (*api.ExecutionResult, error)

	// Close releases the sandbox. Close is idempotent.
	Close() error
}

// Acquirer abstracts how a sandbox server is obtained. Implementations exist
// for static URL mode and SandboxClaim mode.
type Acquirer interface {
	// Acquire returns a sandbox URL to use for execution.
	// The release function must be called when the sandbox is no longer used.
	Acquire(ctx context.Context) (sandboxURL string, release func(), err error)
}

// Request is the request body for POST /execute on the sandbox server.
type Request struct {
	Code           string            `json:"code"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Requirements   []string          `json:"requirements,omitempty"`
	Files          map[string]string `json:"files,omitempty"`
}

// Execution status values reported by the sandbox server.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Response is the response from POST /execute on the sandbox server.
// FilesProduced values are base64 encoded.
type Response struct {
	Status          string            `json:"status"`
	Stdout          string            `json:"stdout"`
	Stderr          string            `json:"stderr"`
	ExitCode        int               `json:"exit_code"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	FilesProduced   map[string]string `json:"files_produced,omitempty"`
}

// Health is the response from GET /health on the sandbox server.
type Health struct {
	Status         string `json:"status"`
	Mode           string `json:"mode"`
	RuntimeVersion string `json:"runtime_version"`
	Capacity       int    `json:"capacity"`
	CurrentLoad    int    `json:"current_load"`
	UptimeSecs     int64  `json:"uptime_seconds"`
}
