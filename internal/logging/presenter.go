// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"
	"sort"
	"strings"

	apperrors "polenta/gateway/internal/errors"
)

// PresentError renders err for a terminal, prefixed by action when set.
// Secrets are masked. Parameter errors list each offending field on its own line.
func PresentError(action string, err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	if action != "" {
		b.WriteString(action)
		b.WriteString(": ")
	}
	b.WriteString(Mask(err.Error()))

	var e *apperrors.E
	if errors.As(err, &e) && len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for n := range e.Fields {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			b.WriteString("\n  - ")
			b.WriteString(n)
			b.WriteString(": ")
			b.WriteString(e.Fields[n])
		}
	}
	return b.String()
}
