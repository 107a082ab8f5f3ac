// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"polenta/gateway/internal/logging"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 5 * time.Second

// ServerConfig holds the listener addresses. An empty address disables
// that transport.
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	HealthInterval time.Duration
	Logger         *slog.Logger
}

// Server runs the HTTP and gRPC transports for one dispatcher.
type Server struct {
	cfg    ServerConfig
	http   http.Handler
	grpc   *grpc.Server
	health *health.Server
	check  HealthChecker
	logger *slog.Logger
}

// NewServer wires both transports. checker may be nil, in which case the
// gRPC health status stays SERVING.
func NewServer(cfg ServerConfig, disp Dispatcher, checker HealthChecker, metrics http.Handler) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	opts := []HTTPOption{WithHTTPLogger(logger)}
	if checker != nil {
		opts = append(opts, WithHealth(checker, 0))
	}
	if metrics != nil {
		opts = append(opts, WithMetricsHandler(metrics))
	}
	gs, hs := NewGRPCServer(disp, logger)
	return &Server{
		cfg:    cfg,
		http:   NewHTTPHandler(disp, opts...),
		grpc:   gs,
		health: hs,
		check:  checker,
		logger: logger,
	}
}

// Serve starts the configured listeners and blocks until ctx is cancelled
// or a listener fails. Both transports are drained on the way out.
func (s *Server) Serve(ctx context.Context) error {
	if s.cfg.HTTPAddr == "" && s.cfg.GRPCAddr == "" {
		return errors.New("no listener configured")
	}
	eg, egctx := errgroup.WithContext(ctx)

	if s.cfg.HTTPAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", s.cfg.HTTPAddr, err)
		}
		srv := &http.Server{
			Handler:           s.http,
			BaseContext:       func(net.Listener) context.Context { return egctx },
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.logger.Info("serving JSON-RPC", "addr", ln.Addr().String())
		eg.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-egctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			s.logger.Debug("shutting down HTTP server")
			return srv.Shutdown(shutdownCtx)
		})
	}

	if s.cfg.GRPCAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc %s: %w", s.cfg.GRPCAddr, err)
		}
		s.logger.Info("serving gRPC", "addr", ln.Addr().String())
		eg.Go(func() error {
			if err := s.grpc.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-egctx.Done()
			s.logger.Debug("shutting down gRPC server")
			s.health.Shutdown()
			stopped := make(chan struct{})
			go func() { s.grpc.GracefulStop(); close(stopped) }()
			select {
			case <-stopped:
			case <-time.After(shutdownTimeout):
				s.grpc.Stop()
			}
			return nil
		})
	}

	if s.check != nil && s.cfg.HealthInterval > 0 {
		eg.Go(func() error {
			s.watchHealth(egctx, s.cfg.HealthInterval)
			return nil
		})
	}

	return eg.Wait()
}

// watchHealth mirrors engine reachability into the gRPC health service.
func (s *Server) watchHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateHealth(ctx)
		}
	}
}

func (s *Server) updateHealth(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()
	status := healthpb.HealthCheckResponse_SERVING
	if !s.check.TestConnection(cctx) {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Warn("engine unreachable, reporting NOT_SERVING")
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
