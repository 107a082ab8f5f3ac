// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package engine is the client for the remote SQL query engine.
// It executes statements over a bounded connection pool, retries transient
// failures with a fixed backoff, and offers catalog discovery (schemas, tables,
// columns, samples) plus a memoised table-accessibility check.
//
// The client is written against database/sql. Production code builds the
// *sql.DB from a pgx pool; tests hand in a go-sqlmock database.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "polenta/gateway/internal/errors"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

// Defaults applied to zero-valued Config fields.
const (
	DefaultMaxPoolSize       = 10
	DefaultConnectionTimeout = 30 * time.Second
	DefaultQueryTimeout      = 60 * time.Second
	DefaultMaxRetries        = 3
	DefaultRetryBackoff      = time.Second
	DefaultMaxRows           = 10

	// MaxSampleRows bounds every sample request regardless of what callers ask for.
	MaxSampleRows = 10
)

// Config holds connection and execution settings for the engine client.
type Config struct {
	URL      string
	User     string
	Password string
	Dialect  string

	MaxPoolSize       int
	ConnectionTimeout time.Duration
	QueryTimeout      time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	MaxRows           int
}

// WithDefaults returns a copy of c with zero or invalid values replaced by defaults.
// A zero QueryTimeout disables the per-statement deadline.
func (c Config) WithDefaults() Config {
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = DefaultMaxPoolSize
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.QueryTimeout < 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	// go-retry panics on a non-positive constant backoff.
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.MaxRows <= 0 {
		c.MaxRows = DefaultMaxRows
	}
	if c.Dialect == "" {
		c.Dialect = DialectPostgres
	}
	return c
}

// ErrAcquire marks failures to check a connection out of the pool.
var ErrAcquire = errors.New("acquire connection")

// Row is one result row keyed by column name.
type Row map[string]any

// Observer receives execution telemetry. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveAttempt(d time.Duration, err error)
	ObserveRetry()
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(time.Duration, error) {}
func (nopObserver) ObserveRetry()                       {}

// Client executes statements against the query engine.
// It is safe for concurrent use.
type Client struct {
	db      *sql.DB
	cfg     Config
	dialect Dialect
	logger  *slog.Logger
	obs     Observer
	closer  func()

	access sync.Map // "schema.table" -> bool
	checks singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithObserver reports attempts and retries to obs.
func WithObserver(obs Observer) Option {
	return func(c *Client) {
		if obs != nil {
			c.obs = obs
		}
	}
}

// WithCloser registers a function run after the *sql.DB is closed,
// used to release the underlying pgx pool.
func WithCloser(fn func()) Option {
	return func(c *Client) { c.closer = fn }
}

// New wraps db. The dialect named in cfg selects catalog statements.
func New(db *sql.DB, cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	d, err := DialectFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		db:      db,
		cfg:     cfg,
		dialect: d,
		logger:  logger,
		obs:     nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	db.SetMaxOpenConns(cfg.MaxPoolSize)
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Dialect returns the catalog dialect in use.
func (c *Client) Dialect() Dialect { return c.dialect }

// Close releases every pooled connection.
func (c *Client) Close() error {
	err := c.db.Close()
	if c.closer != nil {
		c.closer()
	}
	return err
}

// Stats reports pool usage.
func (c *Client) Stats() sql.DBStats { return c.db.Stats() }

// Execute runs query with positional args and returns at most MaxRows rows.
// Transient failures are retried up to MaxRetries total attempts; anything
// else, or the last transient failure, is returned as a BackendError.
func (c *Client) Execute(ctx context.Context, query string, args ...any) ([]Row, error) {
	return c.queryRows(ctx, c.cfg.MaxRows, query, args...)
}

func (c *Client) queryRows(ctx context.Context, limit int, query string, args ...any) ([]Row, error) {
	var out []Row
	err := c.run(ctx, query, args, func(rows *sql.Rows) error {
		out = out[:0]
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		for len(out) < limit && rows.Next() {
			row, err := scanRow(rows, cols)
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Row{}
	}
	return out, nil
}

// queryStrings returns the first column of every row, with no row cap.
func (c *Client) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	var out []string
	err := c.run(ctx, query, args, func(rows *sql.Rows) error {
		out = out[:0]
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return nil
		}
		dest := make([]any, len(cols))
		for i := range dest {
			dest[i] = new(sql.NullString)
		}
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			if v := dest[0].(*sql.NullString); v.Valid {
				out = append(out, v.String)
			}
		}
		return nil
	})
	return out, err
}

// run executes query with retry and hands the result set to consume.
// consume may be invoked once per attempt and must reset its own state.
func (c *Client) run(ctx context.Context, query string, args []any, consume func(*sql.Rows) error) error {
	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxRetries-1), retry.NewConstant(c.cfg.RetryBackoff))

	var (
		attempt int
		lastErr error
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		start := time.Now()
		err := c.attempt(ctx, query, args, consume)
		c.obs.ObserveAttempt(time.Since(start), err)
		if err == nil {
			return nil
		}
		lastErr = err
		if IsTransient(err) && ctx.Err() == nil {
			if attempt < c.cfg.MaxRetries {
				c.obs.ObserveRetry()
				c.logger.Warn("transient engine failure, retrying",
					slog.Int("attempt", attempt),
					slog.Int("max_attempts", c.cfg.MaxRetries),
					slog.Duration("backoff", c.cfg.RetryBackoff),
					slog.String("error", err.Error()))
			}
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		// A context that ends during the backoff wait hides the engine failure.
		if lastErr != nil && isContextErr(err) && !errors.Is(lastErr, err) {
			err = errors.Join(lastErr, err)
		}
		c.logger.Debug("engine query failed",
			slog.Int("attempts", attempt),
			slog.String("query", truncate(query, 200)),
			slog.String("error", err.Error()))
		return apperrors.Wrap(apperrors.BackendError, "Query execution failed", err)
	}
	return nil
}

// attempt checks out a fresh connection, bounded by ConnectionTimeout, and
// runs one try of query bounded by QueryTimeout.
func (c *Client) attempt(ctx context.Context, query string, args []any, consume func(*sql.Rows) error) error {
	checkoutCtx, cancelCheckout := context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
	conn, err := c.db.Conn(checkoutCtx)
	cancelCheckout()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAcquire, err)
	}
	defer conn.Close()

	queryCtx := ctx
	if c.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, c.cfg.QueryTimeout)
		defer cancel()
	}

	rows, err := conn.QueryContext(queryCtx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if err := consume(rows); err != nil {
		return err
	}
	return rows.Err()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
