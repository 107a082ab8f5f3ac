// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ListSchemas returns every schema name in the catalog.
func (c *Client) ListSchemas(ctx context.Context) ([]string, error) {
	q, args := c.dialect.ListSchemas()
	return c.queryStrings(ctx, q, args...)
}

// ListTables returns the table names of schema.
func (c *Client) ListTables(ctx context.Context, schema string) ([]string, error) {
	q, args := c.dialect.ListTables(schema)
	return c.queryStrings(ctx, q, args...)
}

// DescribeColumns returns the column names of schema.table in catalog order.
func (c *Client) DescribeColumns(ctx context.Context, schema, table string) ([]string, error) {
	q, args := c.dialect.DescribeColumns(schema, table)
	return c.queryStrings(ctx, q, args...)
}

// Column describes one table column as DESCRIBE reports it.
type Column struct {
	Name    string `json:"column"`
	Type    string `json:"type"`
	Extra   string `json:"extra"`
	Comment string `json:"comment"`
}

// DescribeTable returns the columns of schema.table with their types, in
// catalog order. Both dialects answer with Column, Type, Extra and Comment.
func (c *Client) DescribeTable(ctx context.Context, schema, table string) ([]Column, error) {
	q, args := c.dialect.DescribeTable(schema, table)
	rows, err := c.queryRows(ctx, math.MaxInt, q, args...)
	if err != nil {
		return nil, err
	}
	cols := make([]Column, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, Column{
			Name:    field(r, "column"),
			Type:    field(r, "type"),
			Extra:   field(r, "extra"),
			Comment: field(r, "comment"),
		})
	}
	return cols, nil
}

// field reads key from r ignoring case; NULL reads as "".
func field(r Row, key string) string {
	for k, v := range r {
		if strings.EqualFold(k, key) {
			if v == nil {
				return ""
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}

// SampleRows returns up to limit rows of schema.table. limit is clamped to 1..MaxSampleRows.
func (c *Client) SampleRows(ctx context.Context, schema, table string, limit int) ([]Row, error) {
	limit = clampSample(limit)
	q, args := c.dialect.Sample(schema, table, limit)
	return c.queryRows(ctx, limit, q, args...)
}

func clampSample(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxSampleRows {
		return MaxSampleRows
	}
	return limit
}

// SearchTables returns "schema.table" names whose table name contains keyword,
// ignoring case. Schemas that fail to enumerate are logged and skipped.
func (c *Client) SearchTables(ctx context.Context, keyword string) ([]string, error) {
	schemas, err := c.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(keyword)

	matches := []string{}
	for _, schema := range schemas {
		tables, err := c.ListTables(ctx, schema)
		if err != nil {
			c.logger.Warn("skipping schema during table search", slog.String("schema", schema), slog.String("error", err.Error()))
			continue
		}
		for _, table := range tables {
			if strings.Contains(strings.ToLower(table), needle) {
				matches = append(matches, schema+"."+table)
			}
		}
	}
	return matches, nil
}

// AccessibleTables checks every table of every schema and returns the
// "schema.table" names the configured user can read, sorted. Checks run
// concurrently, bounded by the pool size.
func (c *Client) AccessibleTables(ctx context.Context) ([]string, error) {
	schemas, err := c.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu         sync.Mutex
		accessible = []string{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxPoolSize)
	for _, schema := range schemas {
		tables, err := c.ListTables(ctx, schema)
		if err != nil {
			c.logger.Warn("skipping schema during access check", slog.String("schema", schema), slog.String("error", err.Error()))
			continue
		}
		for _, table := range tables {
			schema, table := schema, table
			g.Go(func() error {
				if c.CanAccessTable(gctx, schema, table) {
					mu.Lock()
					accessible = append(accessible, schema+"."+table)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(accessible)
	return accessible, nil
}

// CanAccessTable reports whether a trivial read of schema.table succeeds.
// Results are memoised per table for the life of the client or until
// ResetAccessCache; concurrent checks of the same table share one query.
// Checks cut short by ctx, unable to get a connection or failing transiently
// are not memoised: they say nothing about the table's permissions.
func (c *Client) CanAccessTable(ctx context.Context, schema, table string) bool {
	key := schema + "." + table
	if v, ok := c.access.Load(key); ok {
		return v.(bool)
	}

	v, _, _ := c.checks.Do(key, func() (any, error) {
		if v, ok := c.access.Load(key); ok {
			return v, nil
		}
		q, args := c.dialect.AccessCheck(schema, table)
		_, err := c.queryRows(ctx, 1, q, args...)
		if err != nil && (ctx.Err() != nil || errors.Is(err, ErrAcquire) || IsTransient(err)) {
			c.logger.Debug("table access undetermined", slog.String("table", key), slog.String("error", err.Error()))
			return false, nil
		}
		ok := err == nil
		if !ok {
			c.logger.Debug("table not accessible", slog.String("table", key), slog.String("error", err.Error()))
		}
		c.access.Store(key, ok)
		return ok, nil
	})
	return v.(bool)
}

// ResetAccessCache forgets every memoised accessibility result.
func (c *Client) ResetAccessCache() {
	c.access.Clear()
}

// TestConnection runs a trivial statement and reports success.
// Failures are logged, never returned.
func (c *Client) TestConnection(ctx context.Context) bool {
	if _, err := c.queryRows(ctx, 1, "SELECT 1"); err != nil {
		c.logger.Warn("engine connection test failed", slog.String("error", err.Error()))
		return false
	}
	return true
}
