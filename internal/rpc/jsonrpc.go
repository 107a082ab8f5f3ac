// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package rpc binds the dispatcher to the network: JSON-RPC 2.0 over HTTP and
// a Struct-based gRPC service. Both transports map error kinds to the same
// JSON-RPC codes and report protocol errors in-band.
package rpc

import (
	"context"
	"encoding/json"

	apperrors "polenta/gateway/internal/errors"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeStateError     = -32000
)

// Dispatcher is implemented by *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, params map[string]any, sessionID string) (any, error)
}

// HealthChecker reports engine reachability. *engine.Client satisfies it.
type HealthChecker interface {
	TestConnection(ctx context.Context) bool
}

// Request is a JSON-RPC 2.0 request. A request without an id is a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// CodeFor maps an error kind to its JSON-RPC code.
func CodeFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.InvalidRequest:
		return CodeInvalidRequest
	case apperrors.UnknownOperation:
		return CodeMethodNotFound
	case apperrors.InvalidParams:
		return CodeInvalidParams
	case apperrors.StateError:
		return CodeStateError
	default:
		return CodeInternalError
	}
}

// errorFor renders err as a JSON-RPC error. Only display-safe text is used;
// invalid-parameter details travel in data.fields.
func errorFor(err error) *Error {
	e := &Error{
		Code:    CodeFor(apperrors.KindOf(err)),
		Message: apperrors.MessageOf(err),
	}
	if fields := apperrors.FieldsOf(err); len(fields) > 0 {
		e.Data = map[string]any{"fields": fields}
	}
	return e
}

func nullID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// decodeParams accepts an absent/null params member or a JSON object.
func decodeParams(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, apperrors.New(apperrors.InvalidParams, "'params' must be an object")
	}
	return params, nil
}
