// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := stderrors.New("connection reset by peer")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "typed", err: New(StateError, "not initialized"), want: StateError},
		{name: "wrapped typed", err: fmt.Errorf("dispatch: %w", Wrap(BackendError, "query failed", cause)), want: BackendError},
		{name: "untyped", err: cause, want: InternalError},
		{name: "nil", err: nil, want: InternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageOfHidesUntypedCause(t *testing.T) {
	err := Wrap(BackendError, "Query execution failed", stderrors.New("password authentication failed for user x"))
	if got := MessageOf(err); got != "Query execution failed" {
		t.Errorf("MessageOf() = %q", got)
	}
	if got := MessageOf(stderrors.New("secret detail")); got != "Internal error" {
		t.Errorf("MessageOf(untyped) = %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(InternalError, "failed", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestInvalidListsAllFields(t *testing.T) {
	err := Invalid(map[string]string{
		"table":  "Missing required parameter",
		"schema": "Invalid type: expected string",
	})
	if err.Kind != InvalidParams {
		t.Fatalf("Kind = %v", err.Kind)
	}
	want := "Invalid parameters: schema (Invalid type: expected string), table (Missing required parameter)"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
	if len(FieldsOf(err)) != 2 {
		t.Errorf("FieldsOf() = %v", FieldsOf(err))
	}
}
