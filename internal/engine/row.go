// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"database/sql"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// scanRow reads the current row into a Row with JSON-friendly values.
func scanRow(rows *sql.Rows, cols []string) (Row, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(Row, len(cols))
	for i, col := range cols {
		row[col] = normalizeValue(vals[i])
	}
	return row, nil
}

// normalizeValue converts driver values that do not encode well as JSON.
// UUIDs arrive as 16 raw bytes, text may arrive as []byte.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case []byte:
		if len(val) == 16 && !utf8.Valid(val) {
			if id, err := uuid.FromBytes(val); err == nil {
				return id.String()
			}
		}
		if utf8.Valid(val) {
			return string(val)
		}
		return fmt.Sprintf("\\x%x", val)
	default:
		return v
	}
}
