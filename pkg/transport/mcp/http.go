package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/sandbox-mcp/pkg/observability"
	"github.com/rhuss/sandbox-mcp/pkg/transport"
)

// HTTPConfig configures the streamable HTTP endpoint.
type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string
}

// NewHTTPHandler serves srv over streamable HTTP on /mcp, a liveness probe
// on /healthz and, optionally, Prometheus metrics.
func NewHTTPHandler(srv *mcp.Server, cfg HTTPConfig) http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return srv
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", observability.MetricsMiddleware(streamable))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	if cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	return transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(nil),
	)(mux)
}

// HTTPServer runs the HTTP endpoint with graceful shutdown.
type HTTPServer struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPServer creates an HTTP server for srv.
func NewHTTPServer(srv *mcp.Server, cfg HTTPConfig) *HTTPServer {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &HTTPServer{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewHTTPHandler(srv, cfg),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("MCP HTTP server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	slog.Info("shutting down gracefully", "timeout", s.shutdownTimeout)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// ServeStdio serves srv on stdin/stdout until the client disconnects or
// ctx is done.
func ServeStdio(ctx context.Context, srv *mcp.Server) error {
	slog.Info("MCP stdio server starting")
	return srv.Run(ctx, &mcp.StdioTransport{})
}
