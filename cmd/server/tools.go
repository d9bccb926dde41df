package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/sandbox-mcp/pkg/config"
	"github.com/rhuss/sandbox-mcp/pkg/sandbox"
	mcpserver "github.com/rhuss/sandbox-mcp/pkg/transport/mcp"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the MCP tool definitions as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Defaults()
			// Listing never executes code, so the provider is never contacted.
			executor := sandbox.NewExecutor(sandbox.NewHTTPProvider(cfg.Sandbox.Mode, sandbox.StaticURL(cfg.Sandbox.URL), nil, cfg.Sandbox.ExecutionTimeout))
			d, err := newDispatcher(executor, &cfg)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(mcpserver.Tools(d), "", "  ")
			if err != nil {
				return fmt.Errorf("encoding tools: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
