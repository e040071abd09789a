package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as MCP stdio server",
	Long: `Run as an MCP (Model Context Protocol) server on stdio for AI coding
assistants. Exposes the same commands as the TCP gateway, dispatched through
the same pipeline, so feature flags and validation behave identically on
both surfaces.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return err
	}
	registry, _, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    appName,
			Version: appVersion,
		},
		&mcp.ServerOptions{
			HasTools: true,
			Instructions: `Gateway to a PrivateGPT backend. Call login first to obtain a bearer
token, then pass that token to the other tools. Chat tools search either the
public space or the given groups; source tools manage markdown documents;
group and user tools require the corresponding upstream permissions.`,
		},
	)

	gt := tools.NewGatewayTools(registry)
	tools.RegisterGatewayTools(server, gt)

	logger.Info("starting MCP server", "upstream", cfg.Upstream.BaseURL)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		if ctx.Err() == nil {
			return err
		}
	}
	logger.Info("MCP server stopped")
	return nil
}
