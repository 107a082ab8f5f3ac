// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"os"
	"strings"

	"polenta/gateway/internal/connerrors"
	"polenta/gateway/internal/dispatch"
	"polenta/gateway/internal/rpc"
	"polenta/gateway/internal/tools"

	"github.com/spf13/cobra"
)

var (
	askServer string
	askTLS    bool
	askJSON   bool
)

// asker answers one request, locally or through a remote gateway.
type asker interface {
	Ask(ctx context.Context, text string) (map[string]any, error)
	Suggestions(ctx context.Context) (map[string]any, error)
	Close() error
}

type localAsker struct{ gw *gateway }

func (a localAsker) Ask(ctx context.Context, text string) (map[string]any, error) {
	return generic(a.gw.intel.Process(ctx, text))
}

func (a localAsker) Suggestions(context.Context) (map[string]any, error) {
	return generic(a.gw.intel.Suggestions())
}

func (a localAsker) Close() error { return a.gw.Close() }

type remoteAsker struct {
	client *rpc.Client
	addr   string
}

func (a *remoteAsker) Ask(ctx context.Context, text string) (map[string]any, error) {
	return a.callTool(ctx, tools.QueryData, map[string]any{"query": text})
}

func (a *remoteAsker) Suggestions(ctx context.Context) (map[string]any, error) {
	return a.callTool(ctx, tools.GetSuggestions, map[string]any{})
}

func (a *remoteAsker) callTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	res, err := a.client.Call(ctx, dispatch.MethodToolsCall, map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	out, ok := res.(map[string]any)
	if !ok {
		return nil, errors.New("unexpected response shape")
	}
	return out, nil
}

func (a *remoteAsker) Close() error { return a.client.Close() }

// newAsker opens a local gateway, or dials --server and initializes a session.
func newAsker(ctx context.Context, loadCatalog bool) (asker, error) {
	if askServer == "" {
		gw, err := openGateway(ctx, cfg, logger, false)
		if err != nil {
			return nil, err
		}
		if loadCatalog {
			if _, err := withSpinner("loading catalog", func() (struct{}, error) {
				return struct{}{}, gw.catalog.Load(ctx)
			}); err != nil {
				logger.Warn("catalog load failed, using live discovery", "error", err)
			}
		}
		return localAsker{gw: gw}, nil
	}

	var opts []rpc.ClientOption
	if askTLS {
		opts = append(opts, rpc.WithTLS())
	}
	client, err := rpc.Dial(askServer, opts...)
	if err != nil {
		return nil, connerrors.Format(err, "connecting to "+askServer)
	}
	if _, err := client.Call(ctx, dispatch.MethodInitialize, nil); err != nil {
		_ = client.Close()
		var remote *rpc.RemoteError
		if errors.As(err, &remote) {
			return nil, remote
		}
		return nil, connerrors.Format(err, "initializing a session with "+askServer)
	}
	return &remoteAsker{client: client, addr: askServer}, nil
}

var askCmd = &cobra.Command{
	Use:   "ask <request>",
	Short: "Answer one SQL or natural-language request",
	Long: `The ask command runs one request through the query pipeline and prints the result.
The request can be SQL ("SELECT * FROM sales.orders") or a phrase such as
"show tables", "describe sales.orders", "sample data from orders",
"find tables containing customer" or "lista de países".

By default the engine is queried directly with the local configuration. With
--server the request is sent to a running gateway over gRPC instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		// A single request resolves names live; loading the whole catalog first would cost more.
		a, err := newAsker(ctx, false)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		text := strings.Join(args, " ")
		res, err := withSpinner("querying", func() (map[string]any, error) { return a.Ask(ctx, text) })
		if err != nil {
			if r, ok := a.(*remoteAsker); ok {
				var remote *rpc.RemoteError
				if !errors.As(err, &remote) {
					return connerrors.Format(err, "sending the request to "+r.addr)
				}
			}
			return err
		}
		if askJSON {
			return printJSON(os.Stdout, res)
		}
		renderResult(res)
		if res["status"] != "success" {
			return errors.New("request failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	for _, c := range []*cobra.Command{askCmd, shellCmd} {
		c.Flags().StringVar(&askServer, "server", "", "Send requests to a gateway's gRPC address instead of the engine")
		c.Flags().BoolVar(&askTLS, "tls", false, "Use TLS when connecting to --server")
		c.Flags().BoolVar(&askJSON, "json", false, "Print raw JSON results")
		c.Flags().Int("max-rows", 0, "Cap rows returned per query (local mode only)")
	}
}
