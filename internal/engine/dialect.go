// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Dialect names accepted in Config.Dialect.
const (
	DialectPresto   = "presto"
	DialectPostgres = "postgres"
)

// Dialect produces the catalog statements understood by one engine flavour.
// Every method returns a statement and its positional arguments.
type Dialect interface {
	Name() string
	ListSchemas() (string, []any)
	ListTables(schema string) (string, []any)
	DescribeColumns(schema, table string) (string, []any)
	DescribeTable(schema, table string) (string, []any)
	Sample(schema, table string, limit int) (string, []any)
	AccessCheck(schema, table string) (string, []any)
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DialectPresto, "trino":
		return presto{}, nil
	case DialectPostgres, "postgresql", "":
		return postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported engine dialect %q (use %s or %s)", name, DialectPresto, DialectPostgres)
	}
}

// QualifiedName quotes schema and table as one identifier path.
func QualifiedName(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

// presto speaks the Presto/Trino catalog statements.
type presto struct{}

func (presto) Name() string { return DialectPresto }

func (presto) ListSchemas() (string, []any) { return "SHOW SCHEMAS", nil }

func (presto) ListTables(schema string) (string, []any) {
	return "SHOW TABLES FROM " + pgx.Identifier{schema}.Sanitize(), nil
}

func (presto) DescribeColumns(schema, table string) (string, []any) {
	return "DESCRIBE " + QualifiedName(schema, table), nil
}

func (presto) DescribeTable(schema, table string) (string, []any) {
	return "DESCRIBE " + QualifiedName(schema, table), nil
}

func (presto) Sample(schema, table string, limit int) (string, []any) {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", QualifiedName(schema, table), limit), nil
}

func (presto) AccessCheck(schema, table string) (string, []any) {
	return "SELECT 1 FROM " + QualifiedName(schema, table) + " LIMIT 1", nil
}

// postgres reads information_schema with bound parameters.
type postgres struct{}

func (postgres) Name() string { return DialectPostgres }

func (postgres) ListSchemas() (string, []any) {
	return `SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		AND schema_name NOT LIKE 'pg_toast%' AND schema_name NOT LIKE 'pg_temp%'
		ORDER BY schema_name`, nil
}

func (postgres) ListTables(schema string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 ORDER BY table_name`, []any{schema}
}

func (postgres) DescribeColumns(schema, table string) (string, []any) {
	return `SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position`, []any{schema, table}
}

// DescribeTable mirrors the column set of the distributed engine's DESCRIBE.
func (postgres) DescribeTable(schema, table string) (string, []any) {
	return `SELECT column_name AS "Column", data_type AS "Type",
		CASE WHEN is_nullable = 'NO' THEN 'not null' ELSE '' END AS "Extra",
		COALESCE(col_description(format('%I.%I', table_schema, table_name)::regclass, ordinal_position::int), '') AS "Comment"
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position`, []any{schema, table}
}

func (postgres) Sample(schema, table string, limit int) (string, []any) {
	return "SELECT * FROM " + QualifiedName(schema, table) + " LIMIT $1", []any{limit}
}

func (postgres) AccessCheck(schema, table string) (string, []any) {
	return "SELECT 1 FROM " + QualifiedName(schema, table) + " LIMIT 1", nil
}
