// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package rpc

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote gateway over gRPC.
type Client struct {
	conn      *grpc.ClientConn
	sessionID string
}

// ClientOption configures Dial.
type ClientOption func(*clientOptions)

type clientOptions struct {
	tls       bool
	sessionID string
	dialOpts  []grpc.DialOption
}

// WithTLS dials with TLS, using the host part of the address as SNI.
func WithTLS() ClientOption { return func(o *clientOptions) { o.tls = true } }

// WithSessionID pins the session id sent with every call.
func WithSessionID(id string) ClientOption { return func(o *clientOptions) { o.sessionID = id } }

// WithDialOptions appends raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(o *clientOptions) { o.dialOpts = append(o.dialOpts, opts...) }
}

// Dial creates a client for addr. TLS targets without a port default to 443.
func Dial(addr string, opts ...ClientOption) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	target := addr
	creds := insecure.NewCredentials()
	if o.tls {
		host := addr
		if h, _, err := net.SplitHostPort(addr); err == nil {
			host = h
		} else {
			target = net.JoinHostPort(addr, "443")
		}
		creds = credentials.NewTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	}

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, o.dialOpts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, sessionID: o.sessionID}, nil
}

// RemoteError is an in-band protocol error returned by the gateway.
type RemoteError struct {
	Code    int
	Message string
	Data    any
}

func (e *RemoteError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// Call invokes method with params and returns the decoded result.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	req := map[string]any{"method": method}
	if params != nil {
		req["params"] = params
	}
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	if c.sessionID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "mcp-session-id", c.sessionID)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, dispatchMethod, in, out); err != nil {
		return nil, err
	}

	resp := out.AsMap()
	if raw, ok := resp["error"]; ok {
		var remote struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data"`
		}
		b, _ := json.Marshal(raw)
		if err := json.Unmarshal(b, &remote); err != nil {
			return nil, fmt.Errorf("decode error response: %w", err)
		}
		return nil, &RemoteError{Code: remote.Code, Message: remote.Message, Data: remote.Data}
	}
	result, ok := resp["result"]
	if !ok {
		return nil, errors.New("response carries neither result nor error")
	}
	return result, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
