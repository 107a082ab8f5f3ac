// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"strings"
)

var schemePrefixes = []struct {
	prefix string
	scheme Scheme
}{
	{"postgresql://", SchemePostgres},
	{"postgres://", SchemePostgres},
	{"presto://", SchemePresto},
	{"trino://", SchemePresto},
}

// DetectScheme reports the scheme family of raw, case-insensitively.
func DetectScheme(raw string) Scheme {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range schemePrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.scheme
		}
	}
	return SchemeUnknown
}

// Parse splits raw into its parts.
func Parse(raw string) (*Info, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, newParseError(raw, "empty URL", "set engine.url, e.g. presto://engine.example.com:8080/hive")
	}
	scheme := DetectScheme(raw)
	if scheme == SchemeUnknown {
		return nil, newParseError(raw, "unknown scheme", "use presto://, trino://, postgres:// or postgresql://")
	}
	return parseURL(scheme, raw)
}

// Normalize parses raw and returns its canonical connection string together
// with the dialect implied by its scheme. trino:// is folded into presto://.
func Normalize(raw string) (connString, dialect string, err error) {
	info, err := Parse(raw)
	if err != nil {
		return "", "", err
	}
	return info.ConnString(), info.Dialect(), nil
}

// Validate checks raw without normalizing it.
func Validate(raw string) error {
	info, err := Parse(raw)
	if err != nil {
		return err
	}
	for _, r := range info.Port {
		if r < '0' || r > '9' {
			return newParseError(raw, "invalid port number: "+info.Port, "port must be numeric")
		}
	}
	return nil
}
