// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dispatch routes protocol methods (initialize, ping, tools/list,
// tools/call) to their handlers. It owns session state and argument
// validation; transports only map the typed errors it returns to wire codes.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"polenta/gateway/internal/envelope"
	apperrors "polenta/gateway/internal/errors"
	"polenta/gateway/internal/session"
	"polenta/gateway/internal/tools"
)

// Protocol methods.
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// ProtocolVersion is reported by initialize.
const ProtocolVersion = "2024-11-05"

// ServerInfo identifies the server in the initialize result.
type ServerInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Intelligence executes the query tools.
type Intelligence interface {
	Process(ctx context.Context, text string) envelope.Envelope
	ListTables(ctx context.Context) envelope.Envelope
	AccessibleTables(ctx context.Context) envelope.Envelope
	DescribeTable(ctx context.Context, name string) envelope.Envelope
	SampleData(ctx context.Context, name string) envelope.Envelope
	SearchTables(ctx context.Context, keyword string) envelope.Envelope
	Suggestions() envelope.Envelope
}

// Navigator serves the cached catalog.
type Navigator interface {
	Schemas() []string
	Tables(schema string) []string
	Columns(schema, table string) []string
}

// Observer receives dispatch telemetry.
type Observer interface {
	ObserveDispatch(method string, d time.Duration, kind apperrors.Kind)
	ObserveTool(name, status string)
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	info     ServerInfo
	sessions *session.Store
	registry *tools.Registry
	intel    Intelligence
	nav      Navigator
	logger   *slog.Logger
	obs      Observer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithServerInfo sets the identity reported by initialize.
func WithServerInfo(info ServerInfo) Option {
	return func(d *Dispatcher) { d.info = info }
}

// WithSessions replaces the default session store (no expiry).
func WithSessions(s *session.Store) Option {
	return func(d *Dispatcher) { d.sessions = s }
}

// WithRegistry replaces the default tool catalog.
func WithRegistry(r *tools.Registry) Option {
	return func(d *Dispatcher) { d.registry = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithObserver reports dispatches and tool outcomes to obs.
func WithObserver(obs Observer) Option {
	return func(d *Dispatcher) { d.obs = obs }
}

// New returns a Dispatcher over intel and nav.
func New(intel Intelligence, nav Navigator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		info:     ServerInfo{Name: "polenta", Version: "dev", Description: "MCP gateway for a distributed SQL engine"},
		sessions: session.NewStore(0),
		registry: tools.Default(),
		intel:    intel,
		nav:      nav,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sessions returns the session store.
func (d *Dispatcher) Sessions() *session.Store { return d.sessions }

// Dispatch runs method for sessionID. The error, when non-nil, is an
// *apperrors.E whose Kind tells the transport which code to use. Tool
// execution failures are not errors: they come back as error envelopes.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params map[string]any, sessionID string) (result any, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch panicked",
				slog.String("method", method),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			result, err = nil, apperrors.New(apperrors.InternalError, "Internal error")
		}
		if d.obs != nil {
			var kind apperrors.Kind
			if err != nil {
				kind = apperrors.KindOf(err)
			}
			d.obs.ObserveDispatch(method, time.Since(start), kind)
		}
	}()

	d.logger.Debug("dispatch", slog.String("method", method), slog.String("session", sessionID))

	switch method {
	case MethodInitialize:
		return d.initialize(sessionID), nil
	case MethodPing:
		pong, err := d.ping(sessionID)
		if err != nil {
			return nil, err
		}
		return pong, nil
	case MethodToolsList:
		return map[string]any{"tools": d.registry.List()}, nil
	case MethodToolsCall:
		env, err := d.toolsCall(ctx, params)
		if err != nil {
			return nil, err
		}
		return env, nil
	default:
		return nil, apperrors.New(apperrors.UnknownOperation, "Unknown method: "+method)
	}
}

func (d *Dispatcher) initialize(sessionID string) map[string]any {
	d.sessions.Add(sessionID)
	d.logger.Info("session initialized", slog.String("session", sessionID))
	return map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"subscribe": false, "listChanged": false},
		},
		"serverInfo": d.info,
	}
}

func (d *Dispatcher) ping(sessionID string) (map[string]any, error) {
	if !d.sessions.Initialized(sessionID) {
		return nil, apperrors.New(apperrors.StateError, "Session not initialized. Call initialize first.")
	}
	return map[string]any{
		"status":    "pong",
		"timestamp": time.Now().UnixMilli(),
		"sessionId": sessionID,
	}, nil
}

func (d *Dispatcher) toolsCall(ctx context.Context, params map[string]any) (envelope.Envelope, error) {
	if params == nil {
		return envelope.Envelope{}, apperrors.New(apperrors.InvalidParams, "Missing 'params' parameter")
	}
	name, _ := params["name"].(string)
	if name == "" {
		return envelope.Envelope{}, apperrors.New(apperrors.InvalidParams, "Missing 'name' parameter (tool name)")
	}
	var raw map[string]any
	switch a := params["arguments"].(type) {
	case nil:
	case map[string]any:
		raw = a
	default:
		return envelope.Envelope{}, apperrors.New(apperrors.InvalidParams, "'arguments' must be an object")
	}

	tool, ok := d.registry.Lookup(name)
	if !ok {
		return envelope.Envelope{}, apperrors.New(apperrors.UnknownOperation, "Unknown tool: "+name)
	}
	args := tools.DecodeArguments(raw)
	if err := tool.Validate(args); err != nil {
		return envelope.Envelope{}, err
	}

	env := d.execute(ctx, name, args)
	if d.obs != nil {
		d.obs.ObserveTool(name, env.Status)
	}
	return env, nil
}

func (d *Dispatcher) execute(ctx context.Context, name string, args tools.Arguments) envelope.Envelope {
	switch name {
	case tools.QueryData:
		return d.intel.Process(ctx, args.Text("query"))
	case tools.ListTables:
		return d.intel.ListTables(ctx)
	case tools.AccessibleTables:
		return d.intel.AccessibleTables(ctx)
	case tools.DescribeTable:
		return d.intel.DescribeTable(ctx, args.Text("table_name"))
	case tools.SampleData:
		return d.intel.SampleData(ctx, args.Text("table_name"))
	case tools.SearchTables:
		return d.intel.SearchTables(ctx, args.Text("keyword"))
	case tools.GetSuggestions:
		return d.intel.Suggestions()
	case tools.Schemas:
		return d.schemas()
	case tools.Tables:
		return d.tables(args.Text("schema"))
	case tools.Columns:
		return d.columns(args.Text("schema"), args.Text("table"))
	case tools.Metadata:
		return d.metadata(ctx, args.Text("schema"), args.Text("table"))
	default:
		return envelope.Failure(apperrors.New(apperrors.UnknownOperation, "Unknown tool: "+name))
	}
}

func (d *Dispatcher) schemas() envelope.Envelope {
	return envelope.Success(envelope.TypeSchemas, "Available schemas",
		map[string]any{"schemas": d.nav.Schemas()})
}

func (d *Dispatcher) tables(schema string) envelope.Envelope {
	return envelope.Success(envelope.TypeTables, "Tables in schema "+schema,
		map[string]any{"schema": schema, "tables": d.nav.Tables(schema)})
}

func (d *Dispatcher) columns(schema, table string) envelope.Envelope {
	return envelope.Success(envelope.TypeColumns, fmt.Sprintf("Columns of %s.%s", schema, table),
		map[string]any{"schema": schema, "table": table, "columns": d.nav.Columns(schema, table)})
}

// metadata is the unified navigation tool. The column level is described
// live so it reflects the engine rather than the snapshot.
func (d *Dispatcher) metadata(ctx context.Context, schema, table string) envelope.Envelope {
	switch {
	case schema == "" && table != "":
		return envelope.Failure(apperrors.Invalid(map[string]string{"schema": "required when table is given"}))
	case schema == "":
		return d.schemas()
	case table == "":
		return d.tables(schema)
	default:
		return d.intel.DescribeTable(ctx, schema+"."+table)
	}
}
