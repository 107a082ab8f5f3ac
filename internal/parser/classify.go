// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package parser turns loosely structured query text into an operation type
// and the parameters that operation needs. It understands a small English and
// Spanish vocabulary and recognises raw SQL by its leading keyword. It never
// parses or validates SQL itself.
package parser

import (
	"regexp"
	"strings"
)

// OperationType is the intent recognised in a piece of query text.
type OperationType string

const (
	ShowTables       OperationType = "SHOW_TABLES"
	AccessibleTables OperationType = "ACCESSIBLE_TABLES"
	DescribeTable    OperationType = "DESCRIBE_TABLE"
	SampleData       OperationType = "SAMPLE_DATA"
	SearchTables     OperationType = "SEARCH_TABLES"
	ListEntity       OperationType = "LIST_ENTITY"
	DirectSQL        OperationType = "DIRECT_SQL"
	Unknown          OperationType = "UNKNOWN"
)

// Classification is the result of classifying a piece of text.
type Classification struct {
	Type OperationType
	Text string
}

type rule struct {
	re *regexp.Regexp
	op OperationType
}

// rules is evaluated top to bottom and the first match wins. Accessibility is
// checked before the generic "show tables" phrasing because "show accessible
// tables" matches both.
var rules = []rule{
	{regexp.MustCompile(`(?i)\baccessible\b.*\btables?\b`), AccessibleTables},
	{regexp.MustCompile(`(?i)\btables?\b.*\bcan\b.*\baccess\b`), AccessibleTables},
	{regexp.MustCompile(`(?i)\btablas\s+accesibles\b`), AccessibleTables},

	{regexp.MustCompile(`(?i)\bdescribe\s+(?:the\s+)?table\s+[\w.]+`), DescribeTable},
	{regexp.MustCompile(`(?i)\bcolumns\b.*\b(?:in|of|from)\b`), DescribeTable},
	{regexp.MustCompile(`(?i)\bstructure\s+of\b`), DescribeTable},
	{regexp.MustCompile(`(?i)\b(?:describir|estructura\s+de)\b`), DescribeTable},

	{regexp.MustCompile(`(?i)\bsample\s+data\s+from\s+[\w.]+`), SampleData},
	{regexp.MustCompile(`(?i)\bshow\b.*\bdata\b.*\bfrom\b`), SampleData},
	{regexp.MustCompile(`(?i)\bpreview\b`), SampleData},
	{regexp.MustCompile(`(?i)\bmuestra\s+de\s+datos\b`), SampleData},

	{regexp.MustCompile(`(?i)\bfind\s+tables?\s+(?:containing|with|named|like)\s+\w+`), SearchTables},
	{regexp.MustCompile(`(?i)\bsearch\s+(?:for\s+)?(?:tables?\s+)?\w+`), SearchTables},

	{regexp.MustCompile(`(?i)\b(?:show|list|what)\b.*\btables\b`), ShowTables},
	{regexp.MustCompile(`(?i)\b(?:mostrar|listar)\b.*\btablas\b`), ShowTables},
	{regexp.MustCompile(`(?i)^\s*(?:all|todas)\s+(?:the\s+|las\s+)?(?:tables|tablas)\b`), ShowTables},

	{regexp.MustCompile(`(?i)^\s*lista\s+de\s+\pL+`), ListEntity},
	{regexp.MustCompile(`(?i)^\s*list\s+(?:of\s+)?(?:all\s+)?\pL+`), ListEntity},
	{regexp.MustCompile(`(?i)^\s*(?:show\s+)?(?:all|todos|todas)\s+(?:the\s+|los\s+|las\s+)?\pL+`), ListEntity},
}

var searchKeywords = map[string]bool{"find": true, "search": true, "buscar": true}

var sqlLeaders = map[string]bool{
	"select":   true,
	"show":     true,
	"describe": true,
	"with":     true,
	"explain":  true,
}

// Classify returns the operation type for text. Text matching no rule is
// searched for search keywords, then sniffed for a leading SQL keyword.
func (p *Parser) Classify(text string) OperationType {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Unknown
	}
	for _, r := range rules {
		if r.re.MatchString(trimmed) {
			return r.op
		}
	}

	words := p.words(trimmed)
	for _, w := range words {
		if searchKeywords[w] {
			return SearchTables
		}
	}

	first := strings.ToLower(strings.Fields(trimmed)[0])
	if sqlLeaders[first] {
		return DirectSQL
	}
	return Unknown
}

// Parse classifies text and keeps the trimmed input alongside the result.
func (p *Parser) Parse(text string) Classification {
	return Classification{Type: p.Classify(text), Text: strings.TrimSpace(text)}
}
