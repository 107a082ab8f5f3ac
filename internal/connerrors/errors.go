// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package connerrors explains gateway connection failures to CLI users.
// It is used when a command talks to a remote polenta server over gRPC.
package connerrors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Category classifies a connection failure.
type Category int

const (
	Other Category = iota
	Timeout
	DNS
	Refused
	TLS
	Unavailable
)

// Classify inspects err, including gRPC status codes, and returns its category.
func Classify(err error) Category {
	if err == nil {
		return Other
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.DeadlineExceeded:
			return Timeout
		case codes.Unavailable:
			// The status message carries the dial error text.
			if c := classifyText(st.Message()); c != Other {
				return c
			}
			return Unavailable
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DNS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return Refused
	}
	return classifyText(err.Error())
}

func classifyText(msg string) Category {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return Timeout
	case strings.Contains(lower, "no such host"):
		return DNS
	case strings.Contains(lower, "connection refused"):
		return Refused
	case strings.Contains(lower, "tls") || strings.Contains(lower, "certificate") || strings.Contains(lower, "handshake"):
		return TLS
	}
	return Other
}

// Format wraps err for logging after printing an explanation for action
// (e.g. "sending the request to localhost:9090").
func Format(err error, action string) error {
	if err == nil {
		return nil
	}
	Display(err, action)
	return fmt.Errorf("gateway connection: %w", err)
}

// Display prints a short explanation of err with troubleshooting hints.
func Display(err error, action string) {
	switch Classify(err) {
	case Timeout:
		pterm.Printf("⏱️  Timed out while %s\n\n", action)
		pterm.Println("The gateway did not answer in time. It may be busy waiting on the query engine.")
	case DNS:
		pterm.Printf("🌐 Cannot resolve the gateway address while %s\n\n", action)
		pterm.Println("Check the --server host name and your DNS settings.")
	case Refused:
		pterm.Printf("🚫 Connection refused while %s\n\n", action)
		pterm.Println("Nothing is listening there. Is 'polenta serve' running with server.grpc_addr set?")
	case TLS:
		pterm.Printf("🔒 Secure connection failed while %s\n\n", action)
		pterm.Println("Drop --tls for a plaintext listener, or check the server certificate.")
	case Unavailable:
		pterm.Printf("⚠️  Gateway unavailable while %s\n\n", action)
		pterm.Println("The server is shutting down or not reachable. Try again shortly.")
	default:
		pterm.Printf("❌ Gateway request failed while %s\n\n", action)
	}
	if msg := err.Error(); msg != "" {
		if len(msg) > 160 {
			msg = msg[:160] + "..."
		}
		pterm.Debug.Printf("Technical details: %s\n", msg)
	}
	pterm.Println()
}
