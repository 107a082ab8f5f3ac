// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dsn parses and normalizes query engine URLs.
//
// The scheme selects both the transport and the SQL dialect. postgres:// and
// postgresql:// are dialed over the PostgreSQL wire protocol and use
// information_schema for catalog discovery. presto:// and trino:// address the
// distributed engine's HTTP coordinator and use its SHOW statements.
package dsn

import "fmt"

// Scheme identifies the family of an engine URL.
type Scheme string

const (
	SchemePostgres Scheme = "postgres"
	SchemePresto   Scheme = "presto"
	SchemeUnknown  Scheme = "unknown"
)

// Default ports used when the URL omits one.
const (
	DefaultPostgresPort = "5432"
	DefaultPrestoPort   = "8080"
)

// DefaultPort returns the port assumed for scheme.
func DefaultPort(scheme Scheme) string {
	if scheme == SchemePresto {
		return DefaultPrestoPort
	}
	return DefaultPostgresPort
}

// Info holds the parts of a parsed engine URL.
type Info struct {
	Scheme   Scheme
	Host     string
	Port     string
	User     string
	Password string
	// Database is the catalog (presto) or database (postgres) from the path.
	Database string
	Params   map[string]string
	Original string
}

// Dialect returns the engine dialect name implied by the scheme.
func (i *Info) Dialect() string {
	if i.Scheme == SchemePresto {
		return "presto"
	}
	return "postgres"
}

// ParseError describes a malformed engine URL. Its message never includes
// the URL itself, which may carry a password.
type ParseError struct {
	URL    string
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid engine URL: %s\nHint: %s", e.Reason, e.Hint)
	}
	return fmt.Sprintf("invalid engine URL: %s", e.Reason)
}

func newParseError(raw, reason, hint string) *ParseError {
	return &ParseError{URL: raw, Reason: reason, Hint: hint}
}
