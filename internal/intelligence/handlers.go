// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package intelligence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"polenta/gateway/internal/engine"
	"polenta/gateway/internal/envelope"
	apperrors "polenta/gateway/internal/errors"
	"polenta/gateway/internal/metadata"
	"polenta/gateway/internal/parser"

	"github.com/sahilm/fuzzy"
)

const maxDidYouMean = 3

func (s *Service) listTables(ctx context.Context) (envelope.Envelope, error) {
	schemas, err := s.engine.ListSchemas(ctx)
	if err != nil {
		return envelope.Envelope{}, err
	}
	grouped := map[string][]string{}
	for _, schema := range schemas {
		tables, err := s.engine.ListTables(ctx, schema)
		if err != nil {
			s.logger.Warn("skipping schema", slog.String("schema", schema), slog.String("error", err.Error()))
			continue
		}
		if len(tables) > 0 {
			grouped[schema] = tables
		}
	}
	return envelope.Success(envelope.TypeTableList, "Available tables grouped by schema",
		map[string]any{"schemas": grouped}), nil
}

func (s *Service) describe(ctx context.Context, name string) (envelope.Envelope, error) {
	ref, err := s.resolve(ctx, name)
	if err != nil {
		return envelope.Envelope{}, err
	}
	cols, err := s.engine.DescribeTable(ctx, ref.Schema, ref.Table)
	if err != nil {
		return envelope.Envelope{}, err
	}
	if len(cols) == 0 {
		return envelope.Envelope{}, notFound(ref.String(), nil)
	}
	return envelope.Success(envelope.TypeTableDescription,
		fmt.Sprintf("Structure of table %s", ref),
		map[string]any{"schema": ref.Schema, "table": ref.Table, "columns": cols}), nil
}

func (s *Service) sample(ctx context.Context, name string) (envelope.Envelope, error) {
	ref, err := s.resolve(ctx, name)
	if err != nil {
		return envelope.Envelope{}, err
	}
	rows, err := s.engine.SampleRows(ctx, ref.Schema, ref.Table, engine.MaxSampleRows)
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.Success(envelope.TypeSampleData,
		fmt.Sprintf("Sample data from %s (limited to %d rows)", ref, engine.MaxSampleRows),
		map[string]any{"schema": ref.Schema, "table": ref.Table, "data": rows, "row_count": len(rows)}), nil
}

func (s *Service) search(ctx context.Context, keyword string) (envelope.Envelope, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return envelope.Envelope{}, apperrors.Invalid(map[string]string{"keyword": "Missing required parameter"})
	}
	matches, err := s.engine.SearchTables(ctx, keyword)
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.Success(envelope.TypeTableSearch,
		fmt.Sprintf("Tables matching keyword '%s'", keyword),
		map[string]any{"keyword": keyword, "matching_tables": matches}), nil
}

// listEntity resolves entity to exactly one table, optionally within schema,
// and returns its rows. No match and several matches are both errors.
func (s *Service) listEntity(ctx context.Context, entity, schema string) (envelope.Envelope, error) {
	all, err := s.allTables(ctx)
	if err != nil {
		return envelope.Envelope{}, err
	}
	var matches []metadata.TableRef
	for _, ref := range all {
		if schema != "" && !strings.EqualFold(ref.Schema, schema) {
			continue
		}
		if strings.Contains(parser.Fold(ref.Table), entity) {
			matches = append(matches, ref)
		}
	}

	switch len(matches) {
	case 0:
		return envelope.Envelope{}, &apperrors.E{
			Kind:    apperrors.InvalidParams,
			Message: fmt.Sprintf("No table found for entity: %s", entity),
			Fields:  map[string]string{"entity": "no matching table"},
		}
	case 1:
	default:
		names := refNames(matches)
		return envelope.Envelope{}, &apperrors.E{
			Kind: apperrors.InvalidParams,
			Message: fmt.Sprintf("Several tables match entity %s: %s. Specify the table.",
				entity, strings.Join(names, ", ")),
			Fields: map[string]string{"entity": "ambiguous: " + strings.Join(names, ", ")},
		}
	}

	ref := matches[0]
	rows, err := s.engine.Execute(ctx, "SELECT * FROM "+engine.QualifiedName(ref.Schema, ref.Table))
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.Success(envelope.TypeEntityList,
		fmt.Sprintf("List of %s, %d found", entity, len(rows)),
		map[string]any{"entity": entity, "table": ref.String(), "data": rows, "row_count": len(rows)}), nil
}

// tableFromText pulls a table name, and a schema if one is named, out of text.
func (s *Service) tableFromText(text string) (string, error) {
	name, ok := s.parser.ExtractTableName(text)
	if !ok {
		return "", apperrors.New(apperrors.InvalidParams,
			"Could not identify the table name in the request. Please specify a table.")
	}
	if !strings.Contains(name, ".") {
		if schema, ok := s.parser.ExtractSchema(text); ok {
			name = schema + "." + name
		}
	}
	return name, nil
}

// resolve turns "table" or "schema.table" into a TableRef. Unqualified names
// are matched case-insensitively across every schema, first in the metadata
// cache and then against the engine; they must resolve to exactly one table.
func (s *Service) resolve(ctx context.Context, name string) (metadata.TableRef, error) {
	name = strings.TrimSpace(name)
	if schema, table, ok := strings.Cut(name, "."); ok {
		if schema == "" || table == "" || strings.Contains(table, ".") {
			return metadata.TableRef{}, apperrors.Invalid(map[string]string{"table_name": "expected table or schema.table"})
		}
		return metadata.TableRef{Schema: schema, Table: table}, nil
	}
	if name == "" {
		return metadata.TableRef{}, apperrors.Invalid(map[string]string{"table_name": "Missing required parameter"})
	}

	var found []metadata.TableRef
	if s.catalog != nil && s.catalog.Loaded() {
		found = s.catalog.FindTable(name)
	}
	var all []metadata.TableRef
	if len(found) == 0 {
		var err error
		all, err = s.liveTables(ctx)
		if err != nil {
			return metadata.TableRef{}, err
		}
		for _, ref := range all {
			if strings.EqualFold(ref.Table, name) {
				found = append(found, ref)
			}
		}
	}

	switch len(found) {
	case 0:
		return metadata.TableRef{}, notFound(name, all)
	case 1:
		return found[0], nil
	default:
		names := refNames(found)
		return metadata.TableRef{}, &apperrors.E{
			Kind: apperrors.InvalidParams,
			Message: fmt.Sprintf("Table %s is ambiguous, it exists in several schemas: %s. Use schema.table.",
				name, strings.Join(names, ", ")),
			Fields: map[string]string{"table_name": "ambiguous: " + strings.Join(names, ", ")},
		}
	}
}

// allTables prefers the metadata cache and falls back to the engine.
func (s *Service) allTables(ctx context.Context) ([]metadata.TableRef, error) {
	if s.catalog != nil && s.catalog.Loaded() {
		return s.catalog.AllTables(), nil
	}
	return s.liveTables(ctx)
}

func (s *Service) liveTables(ctx context.Context) ([]metadata.TableRef, error) {
	schemas, err := s.engine.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	var out []metadata.TableRef
	for _, schema := range schemas {
		tables, err := s.engine.ListTables(ctx, schema)
		if err != nil {
			s.logger.Warn("skipping schema", slog.String("schema", schema), slog.String("error", err.Error()))
			continue
		}
		for _, t := range tables {
			out = append(out, metadata.TableRef{Schema: schema, Table: t})
		}
	}
	return out, nil
}

// notFound builds the not-found error, suggesting close names from known.
func notFound(name string, known []metadata.TableRef) error {
	msg := fmt.Sprintf("Table not found: %s", name)
	if hints := didYouMean(name, known); len(hints) > 0 {
		msg += ". Did you mean: " + strings.Join(hints, ", ") + "?"
	}
	return &apperrors.E{
		Kind:    apperrors.InvalidParams,
		Message: msg,
		Fields:  map[string]string{"table_name": "not found"},
	}
}

func didYouMean(name string, known []metadata.TableRef) []string {
	if len(known) == 0 {
		return nil
	}
	matches := fuzzy.Find(name, refNames(known))
	var out []string
	for _, m := range matches {
		if len(out) == maxDidYouMean {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

func refNames(refs []metadata.TableRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
