// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connerrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, Other},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "context deadline exceeded"), Timeout},
		{"grpc unavailable refused", status.Error(codes.Unavailable, "connection error: dial tcp 127.0.0.1:9090: connect: connection refused"), Refused},
		{"grpc unavailable", status.Error(codes.Unavailable, "transport is closing"), Unavailable},
		{"dns", &net.DNSError{Err: "no such host", Name: "gw"}, DNS},
		{"refused op error", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, Refused},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), Timeout},
		{"tls text", errors.New("tls: handshake failure"), TLS},
		{"other", errors.New("boom"), Other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFormatWraps(t *testing.T) {
	if Format(nil, "x") != nil {
		t.Error("Format(nil) should be nil")
	}
	base := errors.New("boom")
	if err := Format(base, "testing"); !errors.Is(err, base) {
		t.Errorf("Format should wrap the cause, got %v", err)
	}
}
