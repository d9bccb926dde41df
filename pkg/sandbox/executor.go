package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rhuss/sandbox-mcp/pkg/api"
	"github.com/rhuss/sandbox-mcp/pkg/debug"
	"github.com/rhuss/sandbox-mcp/pkg/observability"
)

// Executor runs code through a Provider. By default every execution gets
// its own session, which is closed afterwards. With WithPool, sessions
// are reused across executions.
//
// Executor never retries: each Execute makes at most one sandbox call.
type Executor struct {
	provider Provider
	pool     *Pool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPool enables session reuse with at most size concurrent sessions.
func WithPool(size int) ExecutorOption {
	return func(e *Executor) {
		e.pool = NewPool(e.provider, size)
	}
}

// NewExecutor creates an executor for the given provider.
func NewExecutor(provider Provider, opts ...ExecutorOption) *Executor {
	e := &Executor{provider: provider}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Provider returns the name of the underlying provider.
func (e *Executor) Provider() string {
	return e.provider.Name()
}

// Execute runs code in a sandbox. The code is passed through unmodified.
// Any failure is returned as *api.ExecutionProviderError.
func (e *Executor) Execute(ctx context.Context, code string) (*api.ExecutionResult, error) {
	name := e.provider.Name()
	start := time.Now()

	result, err := e.execute(ctx, code)

	observability.SandboxLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		status := "error"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = "cancelled"
		}
		observability.SandboxExecutionsTotal.WithLabelValues(name, status).Inc()
		slog.Warn("sandbox execution failed", "provider", name, "error", err.Error())
		return nil, &api.ExecutionProviderError{Provider: name, Cause: err}
	}

	observability.SandboxExecutionsTotal.WithLabelValues(name, "success").Inc()
	debug.Log("sandbox", "execution complete", "provider", name,
		"exit_code", result.ExitCode, "stdout_len", len(result.Stdout),
		"stderr_len", len(result.Stderr), "files", len(result.Files))
	return result, nil
}

func (e *Executor) execute(ctx context.Context, code string) (*api.ExecutionResult, error) {
	if e.pool != nil {
		s, err := e.pool.Get(ctx)
		if err != nil {
			return nil, err
		}
		// A session whose Run failed or panicked is not reused.
		healthy := false
		defer func() { e.pool.Put(s, !healthy) }()

		result, err := s.Run(ctx, code)
		healthy = err == nil
		return result, err
	}

	s, err := e.provider.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Run(ctx, code)
}

// Close releases pooled sessions.
func (e *Executor) Close() error {
	if e.pool != nil {
		return e.pool.Close()
	}
	return nil
}
