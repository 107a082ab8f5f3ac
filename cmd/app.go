// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"log/slog"

	"polenta/gateway/internal/config"
	"polenta/gateway/internal/dispatch"
	"polenta/gateway/internal/engine"
	"polenta/gateway/internal/intelligence"
	"polenta/gateway/internal/keychain"
	"polenta/gateway/internal/metadata"
	"polenta/gateway/internal/metrics"
	"polenta/gateway/internal/parser"
	"polenta/gateway/internal/session"
)

// gateway bundles every component of one running instance.
type gateway struct {
	engine     *engine.Client
	catalog    *metadata.Cache
	intel      *intelligence.Service
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
}

// openGateway wires engine, catalog, intelligence and dispatcher from cfg.
// The catalog is empty until Load or Refresh is called on it. Metrics are
// collected only when withMetrics is set.
func openGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger, withMetrics bool) (*gateway, error) {
	if err := cfg.ResolvePassword(passwordSource()); err != nil && !errors.Is(err, keychain.ErrNotFound) {
		logger.Debug("keyring lookup failed", "error", err)
	}
	ec, err := cfg.EngineSettings()
	if err != nil {
		return nil, err
	}

	g := &gateway{}
	var engOpts []engine.Option
	var cacheOpts []metadata.Option
	var intelOpts []intelligence.Option
	dispOpts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithSessions(session.NewStore(cfg.Server.SessionTTL)),
		dispatch.WithServerInfo(dispatch.ServerInfo{
			Name:        cfg.Server.Name,
			Version:     serverVersion(cfg),
			Description: cfg.Server.Description,
		}),
	}
	if withMetrics {
		g.metrics = metrics.New()
		engOpts = append(engOpts, engine.WithObserver(g.metrics))
		cacheOpts = append(cacheOpts, metadata.WithObserver(g.metrics))
		intelOpts = append(intelOpts, intelligence.WithObserver(g.metrics))
		dispOpts = append(dispOpts, dispatch.WithObserver(g.metrics))
	}
	if cfg.Metadata.Parallelism > 0 {
		cacheOpts = append(cacheOpts, metadata.WithParallelism(cfg.Metadata.Parallelism))
	}

	g.engine, err = engine.Open(ctx, ec, logger, engOpts...)
	if err != nil {
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.RegisterPool(g.engine.Stats)
	}

	// Table permissions may change with the catalog; recheck after each refresh.
	cacheOpts = append(cacheOpts, metadata.WithRefreshHook(g.engine.ResetAccessCache))
	g.catalog = metadata.New(g.engine, logger, cacheOpts...)
	g.intel = intelligence.New(parser.New(nil), g.engine, g.catalog, logger, intelOpts...)
	g.dispatcher = dispatch.New(g.intel, g.catalog, dispOpts...)
	return g, nil
}

func (g *gateway) Close() error {
	if g == nil || g.engine == nil {
		return nil
	}
	return g.engine.Close()
}

// passwordSource returns the OS keyring, or nil when none is available.
func passwordSource() config.PasswordSource {
	km, err := keychain.GetManager()
	if err != nil {
		return nil
	}
	return km
}

func serverVersion(cfg *config.Config) string {
	if cfg.Server.Version != "" && cfg.Server.Version != "dev" {
		return cfg.Server.Version
	}
	return Version
}
