// Command server runs sandbox-mcp, an MCP server exposing the run_code tool
// backed by a remote code sandbox.
//
// Configuration is read from a YAML file and SANDBOX_MCP_* environment
// variables; see pkg/config. The most common settings:
//
//	SANDBOX_MCP_TRANSPORT         - "stdio" (default) or "http"
//	SANDBOX_MCP_PORT              - HTTP listen port (default: 8000)
//	SANDBOX_MCP_SANDBOX_MODE      - "url" (default) or "claim"
//	SANDBOX_MCP_SANDBOX_URL       - sandbox server URL (url mode)
//	SANDBOX_MCP_SANDBOX_TEMPLATE  - SandboxTemplate name (claim mode)
//	SANDBOX_API_KEY               - bearer token for the sandbox server
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("sandbox-mcp failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sandbox-mcp",
		Short: "MCP server that runs code in a remote sandbox",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("sandbox-mcp version %s\n", version))

	root.AddCommand(newServeCmd())
	root.AddCommand(newToolsCmd())
	return root
}
