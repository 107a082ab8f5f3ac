// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metadata keeps an in-memory snapshot of the engine catalog
// (schema -> table -> columns) so navigation requests never reach the engine.
//
// The snapshot is built by Load and replaced wholesale by Refresh. Readers
// always see one complete snapshot; they never observe a partial load.
// Staleness contract: the snapshot reflects the catalog as of LoadedAt and is
// only replaced by an explicit Refresh or by Run when an interval is set.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Source is the catalog the cache is filled from. *engine.Client satisfies it.
type Source interface {
	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]string, error)
	DescribeColumns(ctx context.Context, schema, table string) ([]string, error)
}

// Observer receives load telemetry.
type Observer interface {
	ObserveLoad(d time.Duration, tables int, err error)
}

// TableRef names one table by schema.
type TableRef struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// String returns "schema.table".
func (r TableRef) String() string { return r.Schema + "." + r.Table }

type snapshot struct {
	schemas  map[string]map[string][]string
	loadedAt time.Time
}

// Cache is a read-through catalog snapshot. It is safe for concurrent use.
type Cache struct {
	src         Source
	logger      *slog.Logger
	obs         Observer
	parallelism int
	onRefresh   []func()

	snap    atomic.Pointer[snapshot]
	refresh singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithParallelism bounds concurrent catalog queries during a load.
// It should not exceed the engine pool size.
func WithParallelism(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithObserver reports every load to obs.
func WithObserver(obs Observer) Option {
	return func(c *Cache) { c.obs = obs }
}

// WithRefreshHook runs fn after every successful load or refresh, e.g. to
// drop caches derived from the previous catalog.
func WithRefreshHook(fn func()) Option {
	return func(c *Cache) {
		if fn != nil {
			c.onRefresh = append(c.onRefresh, fn)
		}
	}
}

// New returns an empty cache over src. Call Load before serving reads.
func New(src Source, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{src: src, logger: logger, parallelism: 4}
	for _, opt := range opts {
		opt(c)
	}
	c.snap.Store(&snapshot{schemas: map[string]map[string][]string{}})
	return c
}

// Load fills the cache from the source. Failing to list schemas is an error;
// failures listing one schema's tables or one table's columns are logged and
// that part of the catalog is left out (a table whose columns failed is kept
// with no columns).
func (c *Cache) Load(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh rebuilds the snapshot and swaps it in atomically. Concurrent calls
// share a single rebuild. On error the previous snapshot is kept.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		start := time.Now()
		s, tables, err := c.build(ctx)
		if c.obs != nil {
			c.obs.ObserveLoad(time.Since(start), tables, err)
		}
		if err != nil {
			return nil, err
		}
		c.snap.Store(s)
		for _, fn := range c.onRefresh {
			fn()
		}
		c.logger.Info("metadata cache loaded",
			slog.Int("schemas", len(s.schemas)),
			slog.Int("tables", tables),
			slog.Duration("took", time.Since(start)))
		return nil, nil
	})
	return err
}

func (c *Cache) build(ctx context.Context) (*snapshot, int, error) {
	schemas, err := c.src.ListSchemas(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list schemas: %w", err)
	}

	out := make(map[string]map[string][]string, len(schemas))
	var mu sync.Mutex

	// Tables per schema.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for _, schema := range schemas {
		g.Go(func() error {
			tables, err := c.src.ListTables(gctx, schema)
			if err != nil {
				c.logger.Warn("skipping schema", slog.String("schema", schema), slog.String("error", err.Error()))
				return nil
			}
			m := make(map[string][]string, len(tables))
			for _, t := range tables {
				m[t] = nil
			}
			mu.Lock()
			out[schema] = m
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var refs []TableRef
	for schema, tables := range out {
		for t := range tables {
			refs = append(refs, TableRef{Schema: schema, Table: t})
		}
	}

	// Columns per table.
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for _, ref := range refs {
		g.Go(func() error {
			cols, err := c.src.DescribeColumns(gctx, ref.Schema, ref.Table)
			if err != nil {
				c.logger.Warn("columns unavailable", slog.String("table", ref.String()), slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			out[ref.Schema][ref.Table] = cols
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	return &snapshot{schemas: out, loadedAt: time.Now()}, len(refs), nil
}

// Run refreshes the cache every interval until ctx is done.
// A non-positive interval returns immediately.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("metadata refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// LoadedAt is when the current snapshot was built. Zero before the first load.
func (c *Cache) LoadedAt() time.Time { return c.snap.Load().loadedAt }

// Loaded reports whether a snapshot has been built.
func (c *Cache) Loaded() bool { return !c.LoadedAt().IsZero() }

// Schemas returns every cached schema, sorted.
func (c *Cache) Schemas() []string {
	s := c.snap.Load()
	out := make([]string, 0, len(s.schemas))
	for name := range s.schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Tables returns the tables of schema, sorted. Unknown schemas yield an empty slice.
func (c *Cache) Tables(schema string) []string {
	tables := c.snap.Load().schemas[schema]
	out := make([]string, 0, len(tables))
	for name := range tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Columns returns the columns of schema.table in catalog order.
// Unknown tables yield an empty slice.
func (c *Cache) Columns(schema, table string) []string {
	cols := c.snap.Load().schemas[schema][table]
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

// AllTables returns every cached table, ordered by schema then table.
func (c *Cache) AllTables() []TableRef {
	s := c.snap.Load()
	var out []TableRef
	for schema, tables := range s.schemas {
		for t := range tables {
			out = append(out, TableRef{Schema: schema, Table: t})
		}
	}
	sortRefs(out)
	return out
}

// FindTable returns every cached table whose name equals name, ignoring case.
func (c *Cache) FindTable(name string) []TableRef {
	var out []TableRef
	for _, ref := range c.AllTables() {
		if strings.EqualFold(ref.Table, name) {
			out = append(out, ref)
		}
	}
	return out
}

func sortRefs(refs []TableRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Schema != refs[j].Schema {
			return refs[i].Schema < refs[j].Schema
		}
		return refs[i].Table < refs[j].Table
	})
}
