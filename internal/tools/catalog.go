// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package tools

var envelopeFields = []string{"status", "execution_id", "timestamp", "user_message"}

func fields(extra ...string) []string {
	return append(append([]string{}, envelopeFields...), extra...)
}

func noArgs() Schema { return Schema{} }

func defaultTools() []Descriptor {
	return []Descriptor{
		{
			Name:        QueryData,
			Description: "Run a natural-language request or a SQL statement against the data lake. Example: 'list of customers' or 'SELECT * FROM sales.orders LIMIT 10'.",
			InputSchema: Schema{
				Properties: map[string]Property{
					"query": {
						Type:        "string",
						Description: "Natural-language request or SQL statement",
						Examples:    []string{"show all tables", "describe table orders", "SELECT * FROM sales.orders LIMIT 10"},
					},
				},
				Required: []string{"query"},
			},
			Meta: &ToolMeta{ResultType: "query_result", Fields: fields("type", "data", "row_count"), Tags: []string{"query", "sql"}, Version: "1.2"},
		},
		{
			Name:        ListTables,
			Description: "List every table in the data lake grouped by schema.",
			InputSchema: noArgs(),
			Meta:        &ToolMeta{ResultType: "table_list", Fields: fields("schemas"), Tags: []string{"metadata", "tables"}, Version: "1.1"},
		},
		{
			Name:        AccessibleTables,
			Description: "List the tables the configured user is allowed to read.",
			InputSchema: noArgs(),
			Meta:        &ToolMeta{ResultType: "accessible_table_list", Fields: fields("tables"), Tags: []string{"metadata", "access"}, Version: "1.0"},
		},
		{
			Name:        DescribeTable,
			Description: "Describe the columns of one table. Unqualified names are resolved across schemas.",
			InputSchema: Schema{
				Properties: map[string]Property{
					"table_name": {
						Type:        "string",
						Description: "Table to describe, as schema.table or table",
						Examples:    []string{"orders", "sales.orders"},
					},
				},
				Required: []string{"table_name"},
			},
			Meta: &ToolMeta{ResultType: "table_description", Fields: fields("schema", "table", "columns"), Tags: []string{"metadata", "describe"}, Version: "1.1"},
		},
		{
			Name:        SampleData,
			Description: "Return up to 10 rows of one table.",
			InputSchema: Schema{
				Properties: map[string]Property{
					"table_name": {
						Type:        "string",
						Description: "Table to sample, as schema.table or table",
						Examples:    []string{"customers", "sales.orders"},
					},
				},
				Required: []string{"table_name"},
			},
			Meta: &ToolMeta{ResultType: "sample_data", Fields: fields("schema", "table", "data", "row_count"), Tags: []string{"data", "sample"}, Version: "1.1"},
		},
		{
			Name:        SearchTables,
			Description: "Find tables whose name contains a keyword.",
			InputSchema: Schema{
				Properties: map[string]Property{
					"keyword": {
						Type:        "string",
						Description: "Text to look for in table names",
						Examples:    []string{"customer", "sales"},
					},
				},
				Required: []string{"keyword"},
			},
			Meta: &ToolMeta{ResultType: "table_search", Fields: fields("keyword", "matching_tables"), Tags: []string{"metadata", "search"}, Version: "1.1"},
		},
		{
			Name:        GetSuggestions,
			Description: "Return example requests to get started.",
			InputSchema: noArgs(),
			Meta:        &ToolMeta{ResultType: "suggestions", Fields: fields("suggestions"), Tags: []string{"help"}, Version: "1.1"},
		},
		{
			Name:        Schemas,
			Description: "List the schemas held in the metadata cache.",
			InputSchema: noArgs(),
			Meta:        &ToolMeta{ResultType: "schemas", Fields: fields("schemas"), Tags: []string{"metadata", "cache"}},
		},
		{
			Name:        Tables,
			Description: "List the tables of one schema from the metadata cache.",
			InputSchema: Schema{
				Properties: map[string]Property{
					"schema": {Type: "string", Description: "Schema name"},
				},
				Required: []string{"schema"},
			},
			Meta: &ToolMeta{ResultType: "tables", Fields: fields("schema", "tables"), Tags: []string{"metadata", "cache"}},
		},
		{
			Name:        Columns,
			Description: "List the columns of one table from the metadata cache.",
			InputSchema: Schema{
				Properties: map[string]Property{
					"schema": {Type: "string", Description: "Schema name"},
					"table":  {Type: "string", Description: "Table name"},
				},
				Required: []string{"schema", "table"},
			},
			Meta: &ToolMeta{ResultType: "columns", Fields: fields("schema", "table", "columns"), Tags: []string{"metadata", "cache"}},
		},
		{
			Name:        Metadata,
			Description: "Navigate the catalog: no arguments lists schemas, a schema lists its tables, a schema and table describes the columns.",
			InputSchema: Schema{
				Properties: map[string]Property{
					"schema": {Type: "string", Description: "Optional schema name"},
					"table":  {Type: "string", Description: "Optional table name, requires schema"},
				},
			},
			Meta: &ToolMeta{ResultType: "metadata", Fields: fields("schemas", "schema", "tables", "table", "columns"), Tags: []string{"metadata"}},
		},
	}
}
