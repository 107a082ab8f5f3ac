// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package intelligence turns classified requests into engine calls and
// shapes the outcome as an envelope. Every entry point returns exactly one
// envelope; failures, including panics in a handler, become error envelopes.
package intelligence

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"polenta/gateway/internal/engine"
	"polenta/gateway/internal/envelope"
	apperrors "polenta/gateway/internal/errors"
	"polenta/gateway/internal/metadata"
	"polenta/gateway/internal/parser"
)

// Engine is the subset of *engine.Client the service needs.
type Engine interface {
	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]string, error)
	DescribeTable(ctx context.Context, schema, table string) ([]engine.Column, error)
	SampleRows(ctx context.Context, schema, table string, limit int) ([]engine.Row, error)
	SearchTables(ctx context.Context, keyword string) ([]string, error)
	AccessibleTables(ctx context.Context) ([]string, error)
	Execute(ctx context.Context, query string, args ...any) ([]engine.Row, error)
}

// Catalog is the subset of *metadata.Cache used for name resolution.
type Catalog interface {
	Loaded() bool
	FindTable(name string) []metadata.TableRef
	AllTables() []metadata.TableRef
}

// Observer receives one call per handled operation.
type Observer interface {
	ObserveOperation(op string, d time.Duration, kind apperrors.Kind)
}

var suggestions = []string{
	"Show all tables",
	"List tables in schema_name",
	"Describe table table_name",
	"Show sample data from table_name",
	"Find tables containing keyword",
	"SELECT * FROM schema.table LIMIT 10",
	"Lista de países",
	"Lista de vendedores",
}

// Service answers natural-language and SQL requests.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	parser  *parser.Parser
	engine  Engine
	catalog Catalog
	logger  *slog.Logger
	obs     Observer
}

// Option configures a Service.
type Option func(*Service)

// WithObserver reports every operation to obs.
func WithObserver(obs Observer) Option {
	return func(s *Service) { s.obs = obs }
}

// New returns a Service. catalog may be nil, in which case every name is
// resolved against the engine directly.
func New(p *parser.Parser, eng Engine, catalog Catalog, logger *slog.Logger, opts ...Option) *Service {
	if p == nil {
		p = parser.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{parser: p, engine: eng, catalog: catalog, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process classifies text and runs the matching operation.
func (s *Service) Process(ctx context.Context, text string) envelope.Envelope {
	c := s.parser.Parse(text)
	s.logger.Debug("classified request", slog.String("type", string(c.Type)), slog.String("text", c.Text))

	switch c.Type {
	case parser.ShowTables:
		return s.ListTables(ctx)
	case parser.AccessibleTables:
		return s.AccessibleTables(ctx)
	case parser.DescribeTable:
		return s.run(ctx, "describe_table", func(ctx context.Context) (envelope.Envelope, error) {
			name, err := s.tableFromText(c.Text)
			if err != nil {
				return envelope.Envelope{}, err
			}
			return s.describe(ctx, name)
		})
	case parser.SampleData:
		return s.run(ctx, "sample_data", func(ctx context.Context) (envelope.Envelope, error) {
			name, err := s.tableFromText(c.Text)
			if err != nil {
				return envelope.Envelope{}, err
			}
			return s.sample(ctx, name)
		})
	case parser.SearchTables:
		return s.run(ctx, "search_tables", func(ctx context.Context) (envelope.Envelope, error) {
			kw, ok := s.parser.ExtractSearchKeyword(c.Text)
			if !ok {
				return envelope.Envelope{}, apperrors.New(apperrors.InvalidParams,
					"Could not identify a search keyword in the request.")
			}
			return s.search(ctx, kw)
		})
	case parser.ListEntity:
		return s.run(ctx, "list_entity", func(ctx context.Context) (envelope.Envelope, error) {
			entity, ok := s.parser.ExtractEntity(c.Text)
			if !ok {
				return envelope.Envelope{}, apperrors.New(apperrors.InvalidParams,
					"Could not identify the entity in the request.")
			}
			schema, _ := s.parser.ExtractSchema(c.Text)
			return s.listEntity(ctx, entity, schema)
		})
	case parser.DirectSQL:
		return s.DirectSQL(ctx, c.Text)
	default:
		return s.run(ctx, "unknown", func(context.Context) (envelope.Envelope, error) {
			return envelope.Envelope{}, apperrors.New(apperrors.InvalidParams,
				"Could not determine the query type. Please refine your request.")
		})
	}
}

// ListTables enumerates every table grouped by schema.
func (s *Service) ListTables(ctx context.Context) envelope.Envelope {
	return s.run(ctx, "list_tables", s.listTables)
}

// AccessibleTables lists the tables the configured user can read.
func (s *Service) AccessibleTables(ctx context.Context) envelope.Envelope {
	return s.run(ctx, "accessible_tables", func(ctx context.Context) (envelope.Envelope, error) {
		tables, err := s.engine.AccessibleTables(ctx)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.Success(envelope.TypeAccessibleTableList, "Tables available for querying",
			map[string]any{"tables": tables}), nil
	})
}

// DescribeTable returns the columns of name ("table" or "schema.table").
func (s *Service) DescribeTable(ctx context.Context, name string) envelope.Envelope {
	return s.run(ctx, "describe_table", func(ctx context.Context) (envelope.Envelope, error) {
		return s.describe(ctx, name)
	})
}

// SampleData returns up to engine.MaxSampleRows rows of name.
func (s *Service) SampleData(ctx context.Context, name string) envelope.Envelope {
	return s.run(ctx, "sample_data", func(ctx context.Context) (envelope.Envelope, error) {
		return s.sample(ctx, name)
	})
}

// SearchTables finds tables whose name contains keyword.
func (s *Service) SearchTables(ctx context.Context, keyword string) envelope.Envelope {
	return s.run(ctx, "search_tables", func(ctx context.Context) (envelope.Envelope, error) {
		return s.search(ctx, keyword)
	})
}

// DirectSQL runs query as given and returns the capped result set.
func (s *Service) DirectSQL(ctx context.Context, query string) envelope.Envelope {
	return s.run(ctx, "direct_sql", func(ctx context.Context) (envelope.Envelope, error) {
		rows, err := s.engine.Execute(ctx, query)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.Success(envelope.TypeQueryResult,
			fmt.Sprintf("Query executed successfully, %d rows returned", len(rows)),
			map[string]any{"sql": query, "data": rows, "row_count": len(rows)}), nil
	})
}

// Suggestions returns example requests the service understands.
func (s *Service) Suggestions() envelope.Envelope {
	out := make([]string, len(suggestions))
	copy(out, suggestions)
	return envelope.Success(envelope.TypeSuggestions, "Helpful query suggestions",
		map[string]any{"suggestions": out})
}

// run executes fn and converts any error or panic into an error envelope.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) (envelope.Envelope, error)) (env envelope.Envelope) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("operation panicked",
				slog.String("op", op),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			env = envelope.Failure(apperrors.New(apperrors.InternalError, "Internal error while processing the request"))
		}
		if s.obs != nil {
			s.obs.ObserveOperation(op, time.Since(start), env.ErrorKind)
		}
	}()

	env, err := fn(ctx)
	if err != nil {
		s.logFailure(op, err)
		return envelope.Failure(err)
	}
	return env
}

func (s *Service) logFailure(op string, err error) {
	switch apperrors.KindOf(err) {
	case apperrors.InvalidParams, apperrors.UnknownOperation:
		s.logger.Debug("operation rejected", slog.String("op", op), slog.String("error", err.Error()))
	default:
		s.logger.Error("operation failed", slog.String("op", op), slog.String("error", err.Error()))
	}
}
