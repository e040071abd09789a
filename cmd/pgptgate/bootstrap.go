package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/config"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/gateway"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/pgpt"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/secrets"
)

// newLogger builds the root logger. MCP mode must keep stdout clean for the
// protocol, so everything logs to stderr.
func newLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          appName,
	})
}

// loadConfig reads and validates the configuration. Validation problems are
// reported together; warnings are logged and don't block startup.
func loadConfig(cmd *cobra.Command, logger *log.Logger) (*config.Config, error) {
	flagPath, _ := cmd.Flags().GetString("config")
	path := config.Resolve(flagPath)

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid configuration in %s:\n%w", path, err)
	}
	return cfg, nil
}

// buildRegistry wires the keypair, the upstream client and the dispatch
// registry from a validated configuration.
func buildRegistry(cfg *config.Config, logger *log.Logger) (*gateway.Registry, *secrets.Codec, error) {
	var publicPath, privatePath string
	if cfg.NeedsPublicKey() {
		publicPath = cfg.Security.PublicKeyPath
	}
	if cfg.NeedsPrivateKey() {
		privatePath = cfg.Security.PrivateKeyPath
	}
	codec, err := secrets.Load(publicPath, privatePath)
	if err != nil {
		return nil, nil, err
	}

	accessHeader := ""
	if cfg.Proxy.UseProxy {
		accessHeader = cfg.Proxy.AccessHeader
		if cfg.Proxy.HeaderEncrypted {
			// An access header that doesn't decrypt means every upstream
			// call would fail; better to refuse to start.
			accessHeader, err = codec.Decrypt(accessHeader)
			if err != nil {
				return nil, nil, fmt.Errorf("proxy access-header does not decrypt with the configured private key")
			}
		}
	}

	api := pgpt.New(pgpt.Options{
		BaseURL:      cfg.Upstream.BaseURL,
		SSLValidate:  cfg.Upstream.SSLValidate,
		Timeout:      cfg.Upstream.Timeout,
		AccessHeader: accessHeader,
		Logger:       logger,
	})
	if !cfg.Upstream.SSLValidate {
		logger.Warn("TLS certificate verification is disabled for upstream calls")
	}

	return gateway.NewRegistry(cfg, api, codec, logger), codec, nil
}
