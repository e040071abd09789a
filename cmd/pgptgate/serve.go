package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the TCP gateway",
	Long: `Run the TCP gateway until SIGINT/SIGTERM.

Each connection carries one JSON request and receives one JSON response;
the connection is closed after the reply.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
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

	srv := gateway.NewServer(cfg, registry, logger)
	if err := srv.Start(); err != nil {
		return err
	}

	logger.Info("gateway running", "port", cfg.Server.Port, "upstream", cfg.Upstream.BaseURL)
	<-ctx.Done()
	logger.Info("shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return srv.Stop(stopCtx)
}
