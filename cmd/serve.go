// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polenta/gateway/internal/rpc"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP gateway over HTTP and gRPC",
	Long: `The serve command starts the gateway. JSON-RPC requests are accepted on
POST /mcp of the HTTP listener, which also exposes /healthz and /metrics. When
server.grpc_addr is set, the polenta.v1.Dispatcher gRPC service, the standard
health service and server reflection are served there as well.

The catalog snapshot is loaded at startup unless metadata.load_on_start is false,
and refreshed every metadata.refresh_interval when that is positive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		gw, err := openGateway(ctx, cfg, logger, true)
		if err != nil {
			return err
		}
		defer func() { _ = gw.Close() }()

		if cfg.Metadata.LoadOnStart {
			start := time.Now()
			if err := gw.catalog.Load(ctx); err != nil {
				// Serve anyway: name resolution falls back to live discovery.
				logger.Warn("initial metadata load failed", "error", err)
			} else {
				logger.Info("metadata loaded",
					"schemas", len(gw.catalog.Schemas()),
					"tables", len(gw.catalog.AllTables()),
					"duration", time.Since(start).Round(time.Millisecond))
			}
		}

		srv := rpc.NewServer(rpc.ServerConfig{
			HTTPAddr:       cfg.Server.HTTPAddr,
			GRPCAddr:       cfg.Server.GRPCAddr,
			HealthInterval: cfg.Server.HealthInterval,
			Logger:         logger,
		}, gw.dispatcher, gw.engine, gw.metrics.Handler())

		eg, egctx := errgroup.WithContext(ctx)
		eg.Go(func() error { return srv.Serve(egctx) })
		if interval := cfg.Metadata.RefreshInterval; interval > 0 {
			eg.Go(func() error {
				gw.catalog.Run(egctx, interval)
				return nil
			})
		}
		err = eg.Wait()
		if err == nil || errors.Is(err, context.Canceled) {
			logger.Info("gateway stopped")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("http-addr", ":8090", "HTTP listen address for JSON-RPC, /healthz and /metrics")
	serveCmd.Flags().String("grpc-addr", "", "gRPC listen address (disabled when empty)")
	serveCmd.Flags().Duration("refresh-interval", 0, "Metadata refresh interval (0 disables periodic refresh)")
}
