// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package tools holds the catalog of callable tools and validates call
// arguments against each tool's input schema.
package tools

import (
	apperrors "polenta/gateway/internal/errors"
)

// Tool names.
const (
	QueryData        = "query_data"
	ListTables       = "list_tables"
	AccessibleTables = "accessible_tables"
	DescribeTable    = "describe_table"
	SampleData       = "sample_data"
	SearchTables     = "search_tables"
	GetSuggestions   = "get_suggestions"
	Schemas          = "schemas"
	Tables           = "tables"
	Columns          = "columns"
	Metadata         = "metadata"
)

// Validation reasons reported per field.
const (
	ReasonMissing = "Missing required parameter"
	reasonType    = "Invalid type: expected "
)

// Descriptor describes one tool.
type Descriptor struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	InputSchema Schema    `json:"inputSchema"`
	Meta        *ToolMeta `json:"tool_metadata,omitempty"`
}

// Schema is the JSON-schema subset used for tool inputs.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Property is one input field.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// ToolMeta is informational output metadata.
type ToolMeta struct {
	ResultType string   `json:"result_type"`
	Fields     []string `json:"fields"`
	Tags       []string `json:"tags,omitempty"`
	Version    string   `json:"version,omitempty"`
}

// Registry is an immutable, ordered tool catalog.
type Registry struct {
	tools []Descriptor
	index map[string]int
}

// NewRegistry returns a registry over descriptors. Names must be unique;
// a duplicate replaces the earlier entry.
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{index: make(map[string]int, len(descriptors))}
	for _, d := range descriptors {
		if d.InputSchema.Type == "" {
			d.InputSchema.Type = "object"
		}
		if d.InputSchema.Properties == nil {
			d.InputSchema.Properties = map[string]Property{}
		}
		if d.InputSchema.Required == nil {
			d.InputSchema.Required = []string{}
		}
		if i, ok := r.index[d.Name]; ok {
			r.tools[i] = d
			continue
		}
		r.index[d.Name] = len(r.tools)
		r.tools = append(r.tools, d)
	}
	return r
}

// Default returns the gateway's tool catalog.
func Default() *Registry {
	return NewRegistry(defaultTools()...)
}

// List returns every descriptor in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.tools))
	copy(out, r.tools)
	return out
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.tools[i], true
}

// Validate checks args against the input schema of d. Every failure is
// collected: required fields that are absent, null or empty, and declared
// fields whose value has the wrong type. The result is nil or an
// InvalidParams error whose Fields name each failing parameter.
func (d Descriptor) Validate(args Arguments) error {
	failures := map[string]string{}
	for _, name := range d.InputSchema.Required {
		if v, ok := args[name]; !ok || v.IsEmpty() {
			failures[name] = ReasonMissing
		}
	}
	for name, v := range args {
		prop, ok := d.InputSchema.Properties[name]
		if !ok || prop.Type == "" || v.Kind() == KindNull {
			continue
		}
		if !v.matches(prop.Type) {
			failures[name] = reasonType + prop.Type
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return apperrors.Invalid(failures)
}
