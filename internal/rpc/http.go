// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "polenta/gateway/internal/errors"
	"polenta/gateway/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	maxBodyBytes         = 1 << 20
	defaultHealthTimeout = 5 * time.Second
)

// HTTPOption configures the HTTP handler.
type HTTPOption func(*httpHandler)

// WithHealth enables GET /healthz backed by checker.
func WithHealth(checker HealthChecker, timeout time.Duration) HTTPOption {
	return func(h *httpHandler) {
		h.health = checker
		if timeout > 0 {
			h.healthTimeout = timeout
		}
	}
}

// WithMetricsHandler mounts handler at GET /metrics.
func WithMetricsHandler(handler http.Handler) HTTPOption {
	return func(h *httpHandler) { h.metrics = handler }
}

// WithHTTPLogger sets the request logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(h *httpHandler) { h.logger = logger }
}

type httpHandler struct {
	disp          Dispatcher
	health        HealthChecker
	healthTimeout time.Duration
	metrics       http.Handler
	logger        *slog.Logger
}

// NewHTTPHandler returns the gateway router: POST /mcp for JSON-RPC, plus
// /healthz and /metrics when configured.
func NewHTTPHandler(disp Dispatcher, opts ...HTTPOption) http.Handler {
	h := &httpHandler{
		disp:          disp,
		healthTimeout: defaultHealthTimeout,
		logger:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)
	r.Post("/mcp", h.serveRPC)
	if h.health != nil {
		r.Get("/healthz", h.serveHealth)
	}
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

func (h *httpHandler) serveRPC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusOK, Response{JSONRPC: "2.0", ID: nullID(nil), Error: &Error{Code: CodeParseError, Message: "Parse error"}})
		return
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		writeJSON(w, http.StatusOK, Response{JSONRPC: "2.0", ID: nullID(nil), Error: &Error{Code: CodeInvalidRequest, Message: "Invalid Request: batch requests are not supported"}})
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusOK, Response{JSONRPC: "2.0", ID: nullID(nil), Error: &Error{Code: CodeParseError, Message: "Parse error"}})
		return
	}

	sessionID := SessionID(r)
	resp := Response{JSONRPC: "2.0", ID: nullID(req.ID)}
	result, err := h.handle(r.Context(), req, sessionID)
	if err != nil {
		resp.Error = errorFor(err)
	} else {
		resp.Result = result
	}

	h.logger.Debug("rpc request",
		"method", req.Method,
		"session", sessionID,
		"request_id", middleware.GetReqID(r.Context()),
		"duration", time.Since(start),
		"error_kind", string(kindOrEmpty(err)),
	)

	if len(req.ID) == 0 && req.Method != "" {
		// Notification: no response body.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *httpHandler) handle(ctx context.Context, req Request, sessionID string) (any, error) {
	if req.JSONRPC != "2.0" {
		return nil, apperrors.New(apperrors.InvalidRequest, "Invalid Request: jsonrpc must be \"2.0\"")
	}
	if req.Method == "" {
		return nil, apperrors.New(apperrors.InvalidRequest, "Invalid Request: missing method")
	}
	params, err := decodeParams(req.Params)
	if err != nil {
		return nil, err
	}
	return h.disp.Dispatch(ctx, req.Method, params, sessionID)
}

func (h *httpHandler) serveHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.healthTimeout)
	defer cancel()
	if !h.health.TestConnection(ctx) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func kindOrEmpty(err error) apperrors.Kind {
	if err == nil {
		return ""
	}
	return apperrors.KindOf(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
