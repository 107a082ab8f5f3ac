// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	apperrors "polenta/gateway/internal/errors"
)

func TestPresentError(t *testing.T) {
	tests := []struct {
		name   string
		action string
		err    error
		want   string
	}{
		{"nil", "x", nil, ""},
		{"plain", "", errors.New("boom"), "boom"},
		{"with action", "connecting", errors.New("refused"), "connecting: refused"},
		{
			name: "masks secrets",
			err:  fmt.Errorf("dial presto://bob:pw@c:8080/hive: refused"),
			want: "dial presto://*:*@c:8080/hive: refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PresentError(tt.action, tt.err); got != tt.want {
				t.Errorf("PresentError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPresentErrorListsFields(t *testing.T) {
	err := apperrors.Invalid(map[string]string{"table_name": "required", "keyword": "must be a string"})
	got := PresentError("", err)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("PresentError() = %q, want 3 lines", got)
	}
	if lines[1] != "  - keyword: must be a string" || lines[2] != "  - table_name: required" {
		t.Errorf("field lines = %q", lines[1:])
	}
}
