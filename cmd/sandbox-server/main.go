// Command sandbox-server runs the sandbox HTTP server that executes code
// in isolated subprocesses. It is deployed inside sandbox pods and used by
// sandbox-mcp for local development.
//
// Configuration:
//
//	SANDBOX_PORT           - Listen port (default: 8080)
//	SANDBOX_MODE           - Runtime mode: python, golang, node, shell (default: auto-detect)
//	SANDBOX_MAX_CONCURRENT - Max concurrent executions (default: 3)
//	SANDBOX_PYTHON_INDEX   - Python package index URL (default: https://pypi.org/simple/)
//	SANDBOX_OUTPUT_DIR     - Output directory name within the work dir (default: output)
//	SANDBOX_API_KEY        - Bearer token required on /execute (default: none)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rhuss/sandbox-mcp/pkg/debug"
	"github.com/rhuss/sandbox-mcp/pkg/sandbox/runner"
)

func main() {
	debug.Init("", "", "")
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	port := envOr("SANDBOX_PORT", "8080")

	mode := os.Getenv("SANDBOX_MODE")
	if mode == "" {
		mode = runner.DetectMode()
		if mode == "" {
			return errors.New("no supported runtime found in PATH (tried: python3, go, node, bash)")
		}
	} else if err := runner.ValidateMode(mode); err != nil {
		return err
	}

	srv := runner.New(runner.Config{
		Mode:          mode,
		MaxConcurrent: envOrInt("SANDBOX_MAX_CONCURRENT", 3),
		PythonIndex:   os.Getenv("SANDBOX_PYTHON_INDEX"),
		OutputDir:     os.Getenv("SANDBOX_OUTPUT_DIR"),
		APIKey:        os.Getenv("SANDBOX_API_KEY"),
	})

	httpSrv := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("sandbox server starting", "port", port, "mode", mode, "runtime", runner.RuntimeVersion(mode))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return n
}
