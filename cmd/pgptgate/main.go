package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	appName    = "pgptgate"
	appVersion = "1.0.0"
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "TCP and MCP gateway for a PrivateGPT backend",
	Long: `Pgptgate exposes a PrivateGPT REST backend over two surfaces:
  - a one-shot JSON/TCP protocol for headless clients
  - an MCP stdio server for AI coding assistants

The gateway is stateless: every request carries its own bearer token and
maps to exactly one upstream REST call.`,
	Version: appVersion,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the KDL config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, appVersion))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
