// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package rpc

import (
	"hash/fnv"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// SessionHeader lets a client pin its session id explicitly.
const SessionHeader = "Mcp-Session-Id"

// SessionID identifies the client behind r. An explicit Mcp-Session-Id header
// wins; otherwise the id is a hash of the client address (first
// X-Forwarded-For entry, then X-Real-IP, then the peer address) and the
// User-Agent.
func SessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	return deriveSessionID(clientIP(r), r.UserAgent())
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func deriveSessionID(addr, userAgent string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(addr))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(userAgent))
	return strconv.FormatUint(h.Sum64(), 16)
}
