// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"testing"

	"polenta/gateway/internal/parser"

	"github.com/stretchr/testify/assert"
)

func TestTableCommandsClassify(t *testing.T) {
	want := map[string]parser.OperationType{
		"describe table":   parser.DescribeTable,
		"sample data from": parser.SampleData,
	}
	p := parser.New(nil)
	for _, phrase := range tableCommands {
		t.Run(phrase, func(t *testing.T) {
			completed := phrase + " sales.orders"
			assert.Equal(t, want[phrase], p.Classify(completed))
			name, ok := p.ExtractTableName(completed)
			assert.True(t, ok)
			assert.Equal(t, "sales.orders", name)
		})
	}

	assert.Equal(t, parser.DirectSQL, p.Classify("describe sales.orders"), "bare describe is passed through as SQL")
}
