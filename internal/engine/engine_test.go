// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	apperrors "polenta/gateway/internal/errors"
	"polenta/gateway/internal/logging"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	attempts atomic.Int32
	retries  atomic.Int32
}

func (o *countingObserver) ObserveAttempt(time.Duration, error) { o.attempts.Add(1) }
func (o *countingObserver) ObserveRetry()                       { o.retries.Add(1) }

func resetErr() error {
	return &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}
}

func newMockClient(t *testing.T, cfg Config, opts ...Option) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	c, err := New(db, cfg, logging.Discard(), opts...)
	require.NoError(t, err)
	return c, mock
}

func numberedRows(n int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name"})
	for i := 0; i < n; i++ {
		rows.AddRow(int64(i), "row")
	}
	return rows
}

func TestExecuteCapsRows(t *testing.T) {
	c, mock := newMockClient(t, Config{})
	mock.ExpectQuery("SELECT * FROM sales.orders").WillReturnRows(numberedRows(25))

	rows, err := c.Execute(context.Background(), "SELECT * FROM sales.orders")
	require.NoError(t, err)
	assert.Len(t, rows, DefaultMaxRows)
	assert.Equal(t, "row", rows[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutePassesArgs(t *testing.T) {
	c, mock := newMockClient(t, Config{MaxRows: 50})
	mock.ExpectQuery("SELECT * FROM t WHERE a = $1 AND b = $2").
		WithArgs("x", int64(7)).
		WillReturnRows(numberedRows(3))

	rows, err := c.Execute(context.Background(), "SELECT * FROM t WHERE a = $1 AND b = $2", "x", int64(7))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteRetries(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		failures     int
		failWith     error
		wantErr      bool
		wantAttempts int32
		wantRetries  int32
	}{
		{
			name:         "succeeds after maxRetries-1 transient failures",
			maxRetries:   3,
			failures:     2,
			failWith:     resetErr(),
			wantAttempts: 3,
			wantRetries:  2,
		},
		{
			name:         "gives up after maxRetries transient failures",
			maxRetries:   3,
			failures:     3,
			failWith:     resetErr(),
			wantErr:      true,
			wantAttempts: 3,
			wantRetries:  2,
		},
		{
			name:         "does not retry non-transient failures",
			maxRetries:   3,
			failures:     1,
			failWith:     errors.New(`ERROR: syntax error at or near "SELEC"`),
			wantErr:      true,
			wantAttempts: 1,
			wantRetries:  0,
		},
		{
			name:         "single attempt when maxRetries is one",
			maxRetries:   1,
			failures:     1,
			failWith:     resetErr(),
			wantErr:      true,
			wantAttempts: 1,
			wantRetries:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const backoff = 15 * time.Millisecond
			obs := &countingObserver{}
			c, mock := newMockClient(t, Config{MaxRetries: tt.maxRetries, RetryBackoff: backoff}, WithObserver(obs))

			for i := 0; i < tt.failures; i++ {
				mock.ExpectQuery("SELECT 42").WillReturnError(tt.failWith)
			}
			if !tt.wantErr {
				mock.ExpectQuery("SELECT 42").WillReturnRows(sqlmock.NewRows([]string{"answer"}).AddRow(int64(42)))
			}

			start := time.Now()
			rows, err := c.Execute(context.Background(), "SELECT 42")
			elapsed := time.Since(start)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.BackendError, apperrors.KindOf(err))
				assert.ErrorIs(t, err, tt.failWith)
			} else {
				require.NoError(t, err)
				require.Len(t, rows, 1)
				assert.EqualValues(t, 42, rows[0]["answer"])
			}
			assert.Equal(t, tt.wantAttempts, obs.attempts.Load())
			assert.Equal(t, tt.wantRetries, obs.retries.Load())
			assert.GreaterOrEqual(t, elapsed, time.Duration(tt.wantRetries)*backoff,
				"every retry waits the configured backoff")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBackoffHonoursContext(t *testing.T) {
	c, mock := newMockClient(t, Config{MaxRetries: 3, RetryBackoff: time.Hour})
	mock.ExpectQuery("SELECT 1").WillReturnError(resetErr())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Execute(ctx, "SELECT 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, syscall.ECONNRESET, "the engine failure survives the cancelled wait")
	assert.Equal(t, apperrors.BackendError, apperrors.KindOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDiscoveryPostgres(t *testing.T) {
	c, mock := newMockClient(t, Config{Dialect: DialectPostgres})

	schemasQ, _ := c.Dialect().ListSchemas()
	mock.ExpectQuery(schemasQ).WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("public").AddRow("sales"))
	tablesQ, _ := c.Dialect().ListTables("sales")
	mock.ExpectQuery(tablesQ).WithArgs("sales").WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("orders"))
	colsQ, _ := c.Dialect().DescribeColumns("sales", "orders")
	mock.ExpectQuery(colsQ).WithArgs("sales", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id").AddRow("total"))

	ctx := context.Background()
	schemas, err := c.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"public", "sales"}, schemas)

	tables, err := c.ListTables(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables)

	cols, err := c.DescribeColumns(ctx, "sales", "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "total"}, cols)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSampleRowsClampsLimit(t *testing.T) {
	tests := []struct {
		name      string
		dialect   string
		requested int
		query     string
		limitArg  any
	}{
		{
			name:      "presto inlines the clamped limit",
			dialect:   DialectPresto,
			requested: 500,
			query:     `SELECT * FROM "sales"."orders" LIMIT 10`,
		},
		{
			name:      "postgres binds the clamped limit",
			dialect:   DialectPostgres,
			requested: 0,
			query:     `SELECT * FROM "sales"."orders" LIMIT $1`,
			limitArg:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := newMockClient(t, Config{Dialect: tt.dialect})
			exp := mock.ExpectQuery(tt.query)
			if tt.limitArg != nil {
				exp = exp.WithArgs(tt.limitArg)
			}
			exp.WillReturnRows(numberedRows(40))

			rows, err := c.SampleRows(context.Background(), "sales", "orders", tt.requested)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(rows), MaxSampleRows)
			assert.Equal(t, clampSample(tt.requested), len(rows))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSearchTablesSkipsFailingSchemas(t *testing.T) {
	c, mock := newMockClient(t, Config{Dialect: DialectPresto, MaxRetries: 1})
	mock.ExpectQuery("SHOW SCHEMAS").WillReturnRows(sqlmock.NewRows([]string{"Schema"}).AddRow("broken").AddRow("crm"))
	mock.ExpectQuery(`SHOW TABLES FROM "broken"`).WillReturnError(errors.New("Access Denied"))
	mock.ExpectQuery(`SHOW TABLES FROM "crm"`).
		WillReturnRows(sqlmock.NewRows([]string{"Table"}).AddRow("Customers").AddRow("orders").AddRow("customer_notes"))

	got, err := c.SearchTables(context.Background(), "CUSTOMER")
	require.NoError(t, err)
	assert.Equal(t, []string{"crm.Customers", "crm.customer_notes"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCanAccessTableMemoises(t *testing.T) {
	c, mock := newMockClient(t, Config{Dialect: DialectPresto, MaxRetries: 1})
	query := `SELECT 1 FROM "sales"."orders" LIMIT 1`
	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"_col0"}).AddRow(int64(1)))

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, c.CanAccessTable(ctx, "sales", "orders"))
		}()
	}
	wg.Wait()
	assert.NoError(t, mock.ExpectationsWereMet())

	c.ResetAccessCache()
	mock.ExpectQuery(query).WillReturnError(errors.New("Access Denied: Cannot select from table sales.orders"))
	assert.False(t, c.CanAccessTable(ctx, "sales", "orders"))
	assert.False(t, c.CanAccessTable(ctx, "sales", "orders"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCanAccessTableForgetsOutages(t *testing.T) {
	c, mock := newMockClient(t, Config{Dialect: DialectPresto, MaxRetries: 2})
	query := `SELECT 1 FROM "sales"."orders" LIMIT 1`
	mock.ExpectQuery(query).WillReturnError(resetErr())
	mock.ExpectQuery(query).WillReturnError(resetErr())
	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"_col0"}).AddRow(int64(1)))

	ctx := context.Background()
	assert.False(t, c.CanAccessTable(ctx, "sales", "orders"), "unreachable engine")
	assert.True(t, c.CanAccessTable(ctx, "sales", "orders"), "engine back")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCanAccessTableForgetsCheckoutFailures(t *testing.T) {
	c, mock := newMockClient(t, Config{Dialect: DialectPresto, MaxRetries: 1})
	c.db.SetMaxOpenConns(1)
	held, err := c.db.Conn(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	c.cfg.ConnectionTimeout = 10 * time.Millisecond
	assert.False(t, c.CanAccessTable(ctx, "sales", "orders"))
	_, memoised := c.access.Load("sales.orders")
	assert.False(t, memoised)

	require.NoError(t, held.Close())
	mock.ExpectQuery(`SELECT 1 FROM "sales"."orders" LIMIT 1`).WillReturnRows(sqlmock.NewRows([]string{"_col0"}).AddRow(int64(1)))
	assert.True(t, c.CanAccessTable(ctx, "sales", "orders"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTable(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		args    []any
	}{
		{name: "presto", dialect: DialectPresto},
		{name: "postgres", dialect: DialectPostgres, args: []any{"sales", "orders"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := newMockClient(t, Config{Dialect: tt.dialect})
			q, _ := c.Dialect().DescribeTable("sales", "orders")
			exp := mock.ExpectQuery(q)
			if tt.args != nil {
				exp = exp.WithArgs("sales", "orders")
			}
			rows := sqlmock.NewRows([]string{"Column", "Type", "Extra", "Comment"})
			for i := 0; i < 12; i++ {
				rows.AddRow("c"+string(rune('a'+i)), "varchar", "", nil)
			}
			rows.AddRow("total", "decimal(10,2)", "not null", "order total")
			exp.WillReturnRows(rows)

			cols, err := c.DescribeTable(context.Background(), "sales", "orders")
			require.NoError(t, err)
			require.Len(t, cols, 13, "descriptions are not capped by MaxRows")
			assert.Equal(t, Column{Name: "ca", Type: "varchar"}, cols[0])
			assert.Equal(t, Column{Name: "total", Type: "decimal(10,2)", Extra: "not null", Comment: "order total"}, cols[12])
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccessibleTables(t *testing.T) {
	c, mock := newMockClient(t, Config{Dialect: DialectPresto, MaxRetries: 1})
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("SHOW SCHEMAS").WillReturnRows(sqlmock.NewRows([]string{"Schema"}).AddRow("sales"))
	mock.ExpectQuery(`SHOW TABLES FROM "sales"`).WillReturnRows(sqlmock.NewRows([]string{"Table"}).AddRow("orders").AddRow("salaries"))
	mock.ExpectQuery(`SELECT 1 FROM "sales"."orders" LIMIT 1`).WillReturnRows(sqlmock.NewRows([]string{"_col0"}).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT 1 FROM "sales"."salaries" LIMIT 1`).WillReturnError(errors.New("Access Denied"))

	got, err := c.AccessibleTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sales.orders"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestConnection(t *testing.T) {
	c, mock := newMockClient(t, Config{MaxRetries: 1})
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT 1").WillReturnError(resetErr())

	assert.True(t, c.TestConnection(context.Background()))
	assert.False(t, c.TestConnection(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type flaggedErr struct{ transient bool }

func (e flaggedErr) Error() string   { return "flagged" }
func (e flaggedErr) Transient() bool { return e.transient }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection reset", resetErr(), true},
		{"broken pipe text", errors.New("write: broken pipe"), true},
		{"bad conn", sql.ErrConnDone, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"transient interface true", flaggedErr{transient: true}, true},
		{"transient interface false", flaggedErr{transient: false}, false},
		{"syntax", errors.New("syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("Trino")
	require.NoError(t, err)
	assert.Equal(t, DialectPresto, d.Name())

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestNormalizeValue(t *testing.T) {
	id := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}
	assert.Equal(t, "12345678-9abc-def0-1234-56789abcdef0", normalizeValue(id))
	assert.Equal(t, "hello", normalizeValue([]byte("hello")))
	assert.Equal(t, int64(3), normalizeValue(int64(3)))
}
