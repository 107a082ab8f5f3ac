// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// EngineErrorType represents the category of an engine failure.
type EngineErrorType int

const (
	EngineErrorUnknown EngineErrorType = iota
	EngineErrorNetwork
	EngineErrorAuth
	EngineErrorTimeout
	EngineErrorUnavailable
	EngineErrorQuery
)

// ClassifyError categorizes an engine error message.
func ClassifyError(errMsg string) EngineErrorType {
	lower := strings.ToLower(errMsg)

	if strings.Contains(lower, "connection reset") || strings.Contains(lower, "broken pipe") ||
		strings.Contains(lower, "connection refused") || strings.Contains(lower, "unexpected eof") ||
		strings.Contains(lower, "rst_stream") {
		return EngineErrorNetwork
	}
	if strings.Contains(lower, "unavailable") || strings.Contains(lower, "too many clients") ||
		strings.Contains(lower, "server is starting") || strings.Contains(lower, "shutting down") {
		return EngineErrorUnavailable
	}
	if strings.Contains(lower, "i/o timeout") || strings.Contains(lower, "deadline") || strings.Contains(lower, "timeout") {
		return EngineErrorTimeout
	}
	if strings.Contains(lower, "authentication failed") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "unauthenticated") || strings.Contains(lower, "permission denied") {
		return EngineErrorAuth
	}
	if strings.Contains(lower, "syntax error") || strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "sqlstate") {
		return EngineErrorQuery
	}

	return EngineErrorUnknown
}

// IsTransientMessage reports whether the message describes a failure that
// may succeed when retried on a fresh connection.
func IsTransientMessage(errMsg string) bool {
	switch ClassifyError(errMsg) {
	case EngineErrorNetwork, EngineErrorUnavailable, EngineErrorTimeout:
		return true
	}
	return false
}

// FormatEngineError formats an engine error in a user-friendly way
func FormatEngineError(errMsg string) string {
	errType := ClassifyError(errMsg)

	var builder strings.Builder

	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Query engine unreachable"))
	builder.WriteString("\n\n")

	switch errType {
	case EngineErrorNetwork:
		builder.WriteString("The connection to the query engine was interrupted.\n")
		builder.WriteString("Check that the coordinator is running and reachable from this host.\n")

	case EngineErrorUnavailable:
		builder.WriteString("The query engine is not accepting new work right now.\n")
		builder.WriteString("It may be starting, shutting down or out of connection slots.\n")

	case EngineErrorTimeout:
		builder.WriteString("The query engine did not answer in time.\n")
		builder.WriteString("Consider raising engine.connection_timeout or engine.query_timeout.\n")

	case EngineErrorAuth:
		builder.WriteString("The query engine rejected the configured credentials.\n")
		builder.WriteString("Run 'polenta configure' to store a new user and password.\n")

	case EngineErrorQuery:
		builder.WriteString("The query engine rejected the statement.\n")

	default:
		builder.WriteString("The request to the query engine failed.\n")
	}

	if strings.TrimSpace(errMsg) != "" {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(errMsg)))
	}

	return builder.String()
}

// PresentEngineError displays a formatted engine error
func PresentEngineError(errMsg string) {
	fmt.Println()
	fmt.Println(FormatEngineError(errMsg))
	fmt.Println()
}
