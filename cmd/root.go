// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for polenta.
// It serves the MCP gateway over HTTP and gRPC and offers interactive
// commands (ask, shell, schemas) that run the same query pipeline locally
// or against a remote gateway.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"polenta/gateway/internal/config"
	"polenta/gateway/internal/logging"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	cfgFile     string

	// Set by the root PersistentPreRunE for every subcommand.
	cfg    *config.Config
	logger *slog.Logger
	loader *config.Loader
)

// flagKeys maps persistent and command flags onto config keys. Only flags the
// user actually set override the file and the environment.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-format":       "log.format",
	"http-addr":        "server.http_addr",
	"grpc-addr":        "server.grpc_addr",
	"refresh-interval": "metadata.refresh_interval",
	"max-rows":         "engine.max_rows",
}

// rootCmd is the entry point of the polenta CLI.
var rootCmd = &cobra.Command{
	Use:   "polenta",
	Short: "MCP gateway for a distributed SQL query engine",
	Long: `polenta exposes a distributed SQL query engine to MCP clients. It answers raw SQL
and loosely structured natural-language requests ("show tables", "describe sales.orders",
"lista de países") over JSON-RPC and gRPC, with a cached view of the catalog.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loader = &config.Loader{File: cfgFile, Flags: cmd.Flags(), FlagKeys: flagKeys}
		c, err := loader.Load()
		if err != nil {
			return err
		}
		cfg = c
		logger = logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		slog.SetDefault(logger)
		if used := loader.FileUsed(); used != "" {
			logger.Debug("config loaded", "file", used)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("polenta %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, logging.PresentError("", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/polenta/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}
