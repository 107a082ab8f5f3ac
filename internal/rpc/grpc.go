// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"time"

	apperrors "polenta/gateway/internal/errors"
	"polenta/gateway/internal/logging"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "polenta.v1.Dispatcher"

	dispatchMethod = "/" + ServiceName + "/Dispatch"
)

// dispatcherServer is the server API of polenta.v1.Dispatcher. Requests and
// responses are google.protobuf.Struct:
//
//	request:  {"method": "...", "params": {...}, "session_id": "..."}
//	response: {"result": ...} or {"error": {"code": N, "message": "...", "data": ...}}
type dispatcherServer interface {
	Dispatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var dispatcherServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*dispatcherServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "polenta/v1/dispatcher.proto",
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(dispatcherServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: dispatchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(dispatcherServer).Dispatch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type grpcService struct {
	disp   Dispatcher
	logger *slog.Logger
}

// Dispatch reports protocol errors in-band so gRPC clients see the same
// codes as JSON-RPC clients. Transport status is non-OK only when the
// response cannot be encoded.
func (s *grpcService) Dispatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	fields := in.AsMap()
	sessionID, _ := fields["session_id"].(string)
	if sessionID == "" {
		sessionID = grpcSessionID(ctx)
	}

	method, _ := fields["method"].(string)
	result, err := s.dispatch(ctx, method, fields["params"], sessionID)

	s.logger.Debug("grpc request",
		"method", method,
		"session", sessionID,
		"duration", time.Since(start),
		"error_kind", string(kindOrEmpty(err)),
	)

	if err != nil {
		return toStruct(map[string]any{"error": errorFor(err)})
	}
	return toStruct(map[string]any{"result": result})
}

func (s *grpcService) dispatch(ctx context.Context, method string, rawParams any, sessionID string) (any, error) {
	if method == "" {
		return nil, apperrors.New(apperrors.InvalidRequest, "Invalid Request: missing method")
	}
	var params map[string]any
	switch p := rawParams.(type) {
	case nil:
	case map[string]any:
		params = p
	default:
		return nil, apperrors.New(apperrors.InvalidParams, "'params' must be an object")
	}
	return s.disp.Dispatch(ctx, method, params, sessionID)
}

// grpcSessionID mirrors SessionID for gRPC callers: an mcp-session-id header
// wins, otherwise the peer host and user agent are hashed.
func grpcSessionID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if ids := md.Get("mcp-session-id"); len(ids) > 0 && ids[0] != "" {
		return ids[0]
	}
	var addr string
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr = p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
	}
	var ua string
	if uas := md.Get("user-agent"); len(uas) > 0 {
		ua = uas[0]
	}
	return deriveSessionID(addr, ua)
}

// toStruct converts v to a Struct through its JSON form, so envelopes and
// other json.Marshaler values keep their wire shape.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewGRPCServer builds a gRPC server exposing the dispatcher, the standard
// health service and server reflection. The returned health server starts
// SERVING; callers may flip it with SetServingStatus.
func NewGRPCServer(disp Dispatcher, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = logging.Discard()
	}
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&dispatcherServiceDesc, &grpcService{disp: disp, logger: logger})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv, hs
}
