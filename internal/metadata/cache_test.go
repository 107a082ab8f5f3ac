// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package metadata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"polenta/gateway/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu         sync.Mutex
	catalog    map[string]map[string][]string
	schemaErr  error
	tableErrs  map[string]error
	columnErrs map[string]error
	calls      atomic.Int32
}

func (f *fakeSource) ListSchemas(context.Context) ([]string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.schemaErr != nil {
		return nil, f.schemaErr
	}
	var out []string
	for s := range f.catalog {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSource) ListTables(_ context.Context, schema string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.tableErrs[schema]; err != nil {
		return nil, err
	}
	var out []string
	for t := range f.catalog[schema] {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeSource) DescribeColumns(_ context.Context, schema, table string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.columnErrs[schema+"."+table]; err != nil {
		return nil, err
	}
	return f.catalog[schema][table], nil
}

func newFake() *fakeSource {
	return &fakeSource{
		catalog: map[string]map[string][]string{
			"sales": {
				"orders":    {"id", "customer_id", "total"},
				"customers": {"id", "name"},
			},
			"crm": {
				"customers": {"id", "email"},
				"notes":     {"id", "body"},
			},
			"locked": {
				"secrets": {"id"},
			},
		},
		tableErrs:  map[string]error{"locked": errors.New("Access Denied")},
		columnErrs: map[string]error{"crm.notes": errors.New("Access Denied")},
	}
}

type loadRecorder struct {
	loads  atomic.Int32
	tables atomic.Int32
}

func (r *loadRecorder) ObserveLoad(_ time.Duration, tables int, _ error) {
	r.loads.Add(1)
	r.tables.Store(int32(tables))
}

func TestLoadToleratesPartialFailures(t *testing.T) {
	rec := &loadRecorder{}
	c := New(newFake(), logging.Discard(), WithParallelism(2), WithObserver(rec))
	assert.False(t, c.Loaded())

	require.NoError(t, c.Load(context.Background()))
	assert.True(t, c.Loaded())

	assert.Equal(t, []string{"crm", "sales"}, c.Schemas())
	assert.Equal(t, []string{"customers", "orders"}, c.Tables("sales"))
	assert.Equal(t, []string{"id", "customer_id", "total"}, c.Columns("sales", "orders"))

	// Table kept, columns unavailable.
	assert.Equal(t, []string{"customers", "notes"}, c.Tables("crm"))
	assert.Empty(t, c.Columns("crm", "notes"))

	assert.Equal(t, int32(1), rec.loads.Load())
	assert.Equal(t, int32(4), rec.tables.Load())
}

func TestReadersReturnEmptyForUnknownKeys(t *testing.T) {
	c := New(newFake(), logging.Discard())
	require.NoError(t, c.Load(context.Background()))

	tests := []struct {
		name string
		got  []string
	}{
		{"unknown schema", c.Tables("nope")},
		{"unknown table", c.Columns("sales", "nope")},
		{"unknown schema columns", c.Columns("nope", "orders")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.got)
			assert.Empty(t, tt.got)
		})
	}
}

func TestReadersBeforeLoad(t *testing.T) {
	c := New(newFake(), logging.Discard())
	assert.Empty(t, c.Schemas())
	assert.Empty(t, c.Tables("sales"))
	assert.True(t, c.LoadedAt().IsZero())
}

func TestColumnsReturnsCopy(t *testing.T) {
	c := New(newFake(), logging.Discard())
	require.NoError(t, c.Load(context.Background()))

	cols := c.Columns("sales", "orders")
	cols[0] = "mutated"
	assert.Equal(t, "id", c.Columns("sales", "orders")[0])
}

func TestLoadFailsWhenSchemasUnavailable(t *testing.T) {
	src := newFake()
	src.schemaErr = errors.New("connection refused")
	c := New(src, logging.Discard())

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, src.schemaErr)
	assert.False(t, c.Loaded())
}

func TestRefreshKeepsPreviousSnapshotOnError(t *testing.T) {
	src := newFake()
	c := New(src, logging.Discard())
	require.NoError(t, c.Load(context.Background()))
	first := c.LoadedAt()

	src.mu.Lock()
	src.schemaErr = errors.New("unavailable")
	src.mu.Unlock()

	require.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, first, c.LoadedAt())
	assert.Equal(t, []string{"crm", "sales"}, c.Schemas())
}

func TestRefreshPicksUpNewTables(t *testing.T) {
	src := newFake()
	c := New(src, logging.Discard())
	require.NoError(t, c.Load(context.Background()))

	src.mu.Lock()
	src.catalog["sales"]["refunds"] = []string{"id", "amount"}
	src.mu.Unlock()

	assert.NotContains(t, c.Tables("sales"), "refunds")
	require.NoError(t, c.Refresh(context.Background()))
	assert.Contains(t, c.Tables("sales"), "refunds")
	assert.Equal(t, []string{"id", "amount"}, c.Columns("sales", "refunds"))
}

func TestRefreshHookRunsOnSuccessOnly(t *testing.T) {
	src := newFake()
	var calls int
	c := New(src, logging.Discard(), WithRefreshHook(func() { calls++ }))

	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, calls)

	src.mu.Lock()
	src.schemaErr = errors.New("engine down")
	src.mu.Unlock()
	require.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestFindTable(t *testing.T) {
	c := New(newFake(), logging.Discard())
	require.NoError(t, c.Load(context.Background()))

	tests := []struct {
		name string
		want []TableRef
	}{
		{"ORDERS", []TableRef{{Schema: "sales", Table: "orders"}}},
		{"customers", []TableRef{{Schema: "crm", Table: "customers"}, {Schema: "sales", Table: "customers"}}},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.FindTable(tt.name))
		})
	}
}

func TestRunRefreshesPeriodically(t *testing.T) {
	src := newFake()
	c := New(src, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return src.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.True(t, c.Loaded())
}

func TestRunWithoutIntervalReturns(t *testing.T) {
	c := New(newFake(), logging.Discard())
	c.Run(context.Background(), 0)
}
