package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/rhuss/sandbox-mcp/pkg/config"
	"github.com/rhuss/sandbox-mcp/pkg/debug"
	"github.com/rhuss/sandbox-mcp/pkg/dispatch"
	"github.com/rhuss/sandbox-mcp/pkg/observability"
	"github.com/rhuss/sandbox-mcp/pkg/sandbox"
	"github.com/rhuss/sandbox-mcp/pkg/sandbox/kubernetes"
	"github.com/rhuss/sandbox-mcp/pkg/tools/builtins/runcode"
	"github.com/rhuss/sandbox-mcp/pkg/tools/registry"
	mcpserver "github.com/rhuss/sandbox-mcp/pkg/transport/mcp"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio or streamable HTTP",
		RunE:  runServe,
	}

	cmd.Flags().String("config", "", "Path to config.yaml")
	cmd.Flags().String("transport", "", "MCP transport: stdio or http (overrides config)")
	cmd.Flags().IntP("port", "p", 0, "HTTP listen port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("transport") {
		cfg.Server.Transport, _ = cmd.Flags().GetString("transport")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.Tracing.Enabled {
		shutdown, err := observability.SetupTracing(ctx, observability.TracingConfig{
			Endpoint:    cfg.Observability.Tracing.Endpoint,
			ServiceName: cfg.Observability.Tracing.ServiceName,
		})
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Warn("tracer shutdown failed", "error", err)
			}
		}()
		slog.Info("tracing enabled", "endpoint", cfg.Observability.Tracing.Endpoint)
	}

	executor, err := newExecutor(ctx, cfg)
	if err != nil {
		return err
	}
	defer executor.Close()

	d, err := newDispatcher(executor, cfg)
	if err != nil {
		return err
	}

	srv := mcpserver.NewServer(d, mcpserver.Info{Name: "sandbox-mcp", Version: version})

	slog.Info("sandbox-mcp starting",
		"version", version,
		"transport", cfg.Server.Transport,
		"sandbox_mode", cfg.Sandbox.Mode,
		"reuse_sessions", cfg.Sandbox.ReuseSessions,
	)

	if cfg.Server.Transport == "stdio" {
		return mcpserver.ServeStdio(ctx, srv)
	}

	httpCfg := mcpserver.HTTPConfig{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if cfg.Observability.Metrics.Enabled {
		httpCfg.MetricsPath = cfg.Observability.Metrics.Path
	}
	return mcpserver.NewHTTPServer(srv, httpCfg).ListenAndServe(ctx)
}

// newExecutor builds the sandbox executor for the configured mode.
func newExecutor(ctx context.Context, cfg *config.Config) (*sandbox.Executor, error) {
	sc := cfg.Sandbox
	httpClient := sandbox.NewClient(
		sandbox.WithAPIKey(sc.APIKey),
		// Leave headroom over the sandbox-side limit for dependency installs.
		sandbox.WithHTTPClient(&http.Client{Timeout: sc.ExecutionTimeout + 30*time.Second}),
	)

	var acquirer sandbox.Acquirer
	switch sc.Mode {
	case config.SandboxModeURL:
		acquirer = sandbox.StaticURL(sc.URL)
		checkHealth(ctx, httpClient, sc.URL)

	case config.SandboxModeClaim:
		restCfg, err := ctrlconfig.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig: %w", err)
		}
		scheme, err := kubernetes.NewScheme()
		if err != nil {
			return nil, err
		}
		k8sClient, err := client.New(restCfg, client.Options{Scheme: scheme})
		if err != nil {
			return nil, fmt.Errorf("creating kubernetes client: %w", err)
		}
		acquirer = kubernetes.NewClaimAcquirer(k8sClient, kubernetes.Config{
			Template:  sc.Template,
			Namespace: sc.Namespace,
			Timeout:   sc.ClaimTimeout,
		})
		slog.Info("using sandbox claims", "template", sc.Template, "namespace", sc.Namespace)

	default:
		return nil, fmt.Errorf("unknown sandbox mode %q", sc.Mode)
	}

	provider := sandbox.NewHTTPProvider(sc.Mode, acquirer, httpClient, sc.ExecutionTimeout)

	var opts []sandbox.ExecutorOption
	if sc.ReuseSessions {
		opts = append(opts, sandbox.WithPool(sc.PoolSize))
	}
	return sandbox.NewExecutor(provider, opts...), nil
}

// checkHealth probes a fixed sandbox URL. An unreachable sandbox is not
// fatal; calls fail individually until it comes up.
func checkHealth(ctx context.Context, c *sandbox.Client, url string) {
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	h, err := c.Health(hctx, url)
	if err != nil {
		slog.Warn("sandbox health check failed", "url", url, "error", err)
		return
	}
	slog.Info("sandbox reachable", "url", url, "mode", h.Mode, "runtime", h.RuntimeVersion, "capacity", h.Capacity)
}

// newDispatcher registers the built-in tools against executor.
func newDispatcher(executor runcode.Executor, cfg *config.Config) (*dispatch.Dispatcher, error) {
	reg := registry.New()
	d := dispatch.New(reg)

	tool := runcode.New(executor, runcode.WithFiles(cfg.Sandbox.IncludeFiles))
	if err := tool.Register(reg, d); err != nil {
		return nil, fmt.Errorf("registering %s: %w", runcode.ToolName, err)
	}
	return d, nil
}
