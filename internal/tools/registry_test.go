// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package tools

import (
	"encoding/json"
	"testing"

	apperrors "polenta/gateway/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	r := Default()
	want := []string{
		QueryData, ListTables, AccessibleTables, DescribeTable, SampleData,
		SearchTables, GetSuggestions, Schemas, Tables, Columns, Metadata,
	}

	var got []string
	for _, d := range r.List() {
		got = append(got, d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
		assert.Equal(t, "object", d.InputSchema.Type, d.Name)
		assert.NotNil(t, d.InputSchema.Required, d.Name)
		for _, req := range d.InputSchema.Required {
			assert.Contains(t, d.InputSchema.Properties, req, "%s requires undeclared %s", d.Name, req)
		}
	}
	assert.Equal(t, want, got)
}

func TestDescriptorJSON(t *testing.T) {
	d, ok := Default().Lookup(ListTables)
	require.True(t, ok)

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	schema := m["inputSchema"].(map[string]any)
	assert.Equal(t, []any{}, schema["required"])
	assert.Equal(t, map[string]any{}, schema["properties"])
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Default().Lookup("drop_everything")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	d := Descriptor{
		Name: "inspect",
		InputSchema: Schema{
			Properties: map[string]Property{
				"name":    {Type: "string"},
				"limit":   {Type: "number"},
				"verbose": {Type: "boolean"},
				"filter":  {Type: "object-ish"},
			},
			Required: []string{"name", "limit"},
		},
	}

	tests := []struct {
		name string
		args map[string]any
		want map[string]string
	}{
		{
			name: "valid",
			args: map[string]any{"name": "orders", "limit": float64(5), "verbose": true},
		},
		{
			name: "all missing reported together",
			args: map[string]any{},
			want: map[string]string{"name": ReasonMissing, "limit": ReasonMissing},
		},
		{
			name: "empty string and null count as missing",
			args: map[string]any{"name": "", "limit": nil},
			want: map[string]string{"name": ReasonMissing, "limit": ReasonMissing},
		},
		{
			name: "type mismatches are collected with missing fields",
			args: map[string]any{"limit": "ten", "verbose": "yes"},
			want: map[string]string{
				"name":    ReasonMissing,
				"limit":   "Invalid type: expected number",
				"verbose": "Invalid type: expected boolean",
			},
		},
		{
			name: "unknown declared type and undeclared fields pass",
			args: map[string]any{"name": "x", "limit": 1, "filter": 42, "extra": []any{1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Validate(DecodeArguments(tt.args))
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperrors.InvalidParams, apperrors.KindOf(err))
			assert.Equal(t, tt.want, apperrors.FieldsOf(err))
			for field := range tt.want {
				assert.Contains(t, apperrors.MessageOf(err), field)
			}
		})
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   any
		kind Kind
		text string
	}{
		{nil, KindNull, ""},
		{"orders", KindString, "orders"},
		{float64(2.5), KindNumber, "2.5"},
		{json.Number("10"), KindNumber, "10"},
		{7, KindNumber, "7"},
		{false, KindBool, "false"},
		{map[string]any{"a": 1}, KindObject, "map[a:1]"},
		{[]any{"x"}, KindArray, "[x]"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			v := ValueOf(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.text, v.Text())
		})
	}
}

func TestArgumentsText(t *testing.T) {
	args := DecodeArguments(map[string]any{"schema": "sales"})
	assert.Equal(t, "sales", args.Text("schema"))
	assert.Equal(t, "", args.Text("table"))

	s, ok := args["schema"].Str()
	assert.True(t, ok)
	assert.Equal(t, "sales", s)
	_, ok = args["schema"].Num()
	assert.False(t, ok)
}
