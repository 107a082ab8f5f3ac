// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for protocol-level reporting.
// Every failure that reaches a caller carries a machine-readable Kind and a
// display-safe Message. The wrapped cause is kept for logs only and is never
// rendered to clients.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// InvalidRequest indicates a malformed protocol request.
	InvalidRequest Kind = "invalid_request"
	// UnknownOperation indicates an unknown method or tool name.
	UnknownOperation Kind = "unknown_operation"
	// InvalidParams indicates missing, ill-typed or unresolvable parameters.
	InvalidParams Kind = "invalid_params"
	// StateError indicates an operation attempted before session initialization.
	StateError Kind = "state_error"
	// BackendError indicates the query engine failed or was unreachable after retries.
	BackendError Kind = "backend_error"
	// InternalError indicates an unexpected failure.
	InternalError Kind = "internal_error"
)

// E wraps an error with kind and human-friendly message.
// Fields maps parameter names to validation reasons for InvalidParams errors.
type E struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Invalid builds an InvalidParams error listing every failing field.
// The message enumerates fields in name order so it is stable across runs.
func Invalid(fields map[string]string) *E {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s (%s)", name, fields[name]))
	}
	return &E{
		Kind:    InvalidParams,
		Message: "Invalid parameters: " + strings.Join(parts, ", "),
		Fields:  fields,
	}
}

// KindOf reports the Kind of err, or InternalError for untyped errors.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// MessageOf returns the display-safe message of err.
// Untyped errors never leak their text; a generic message is returned instead.
func MessageOf(err error) string {
	var e *E
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal error"
}

// FieldsOf returns the per-field validation reasons carried by err, if any.
func FieldsOf(err error) map[string]string {
	var e *E
	if stderrors.As(err, &e) {
		return e.Fields
	}
	return nil
}
