// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"polenta/gateway/internal/dsn"
	"polenta/gateway/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/trinodb/trino-go-client/trino"
)

// Open builds a connection pool for cfg.URL and returns a Client over it.
// presto:// URLs go through the coordinator's HTTP protocol, anything else
// through a pgx pool. Either way the pool is capped at MaxPoolSize connections
// and every dial is bounded by ConnectionTimeout. Open does not contact the
// engine; connections are made lazily on first use.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if cfg.URL == "" {
		return nil, fmt.Errorf("engine URL is not configured")
	}
	if _, err := DialectFor(cfg.Dialect); err != nil {
		return nil, err
	}

	var (
		db      *sql.DB
		driver  string
		release func()
	)
	switch dsn.DetectScheme(cfg.URL) {
	case dsn.SchemePresto:
		conn, err := trinoDSN(cfg)
		if err != nil {
			return nil, err
		}
		if db, err = sql.Open("trino", conn); err != nil {
			return nil, fmt.Errorf("create engine pool: %w", err)
		}
		driver = "trino"
	default:
		pool, err := openPgxPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		db = stdlib.OpenDBFromPool(pool)
		release = pool.Close
		opts = append(opts, WithCloser(release))
		driver = "pgx"
	}

	client, err := New(db, cfg, logger, opts...)
	if err != nil {
		_ = db.Close()
		if release != nil {
			release()
		}
		return nil, err
	}
	if logger != nil {
		logger.Debug("engine pool ready",
			slog.String("url", logging.Mask(cfg.URL)),
			slog.String("driver", driver),
			slog.String("dialect", client.dialect.Name()),
			slog.Int("max_pool_size", cfg.MaxPoolSize))
	}
	return client, nil
}

func openPgxPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse engine URL %s: %w", logging.Mask(cfg.URL), err)
	}
	poolCfg.MaxConns = int32(cfg.MaxPoolSize)
	poolCfg.MinConns = 0
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectionTimeout
	if cfg.User != "" {
		poolCfg.ConnConfig.User = cfg.User
	}
	if cfg.Password != "" {
		poolCfg.ConnConfig.Password = cfg.Password
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create engine pool: %w", err)
	}
	return pool, nil
}

// defaultTrinoUser is sent when neither the URL nor the config names a user;
// the coordinator rejects anonymous requests.
const defaultTrinoUser = "polenta"

// trinoDSN renders the driver DSN for a presto:// URL. The HTTP client it
// names bounds dials and TLS handshakes by ConnectionTimeout and keeps at most
// MaxPoolSize idle connections to the coordinator.
func trinoDSN(cfg Config) (string, error) {
	info, err := dsn.Parse(cfg.URL)
	if err != nil {
		return "", err
	}
	if cfg.User != "" {
		info.User = cfg.User
	}
	if cfg.Password != "" {
		info.Password = cfg.Password
	}
	if info.User == "" {
		info.User = defaultTrinoUser
	}

	client := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: cfg.ConnectionTimeout}).DialContext,
			TLSHandshakeTimeout: cfg.ConnectionTimeout,
			MaxIdleConnsPerHost: cfg.MaxPoolSize,
		},
	}
	name := fmt.Sprintf("polenta-%s-%d", cfg.ConnectionTimeout, cfg.MaxPoolSize)
	if err := trino.RegisterCustomClient(name, client); err != nil {
		return "", fmt.Errorf("register engine HTTP client: %w", err)
	}

	tc := trino.Config{
		ServerURI:        info.ServerURI(),
		Source:           "polenta",
		Catalog:          info.Database,
		Schema:           info.Params["schema"],
		CustomClientName: name,
	}
	conn, err := tc.FormatDSN()
	if err != nil {
		return "", fmt.Errorf("build engine DSN for %s: %w", logging.Mask(cfg.URL), err)
	}
	return conn, nil
}
