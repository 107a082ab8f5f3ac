// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"time"

	"polenta/gateway/internal/engine"
	"polenta/gateway/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the configured engine connection",
	Long: `The check command connects to the configured engine, runs a test query and
reports how many schemas the current user can see.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		gw, err := openGateway(ctx, cfg, logger, false)
		if err != nil {
			return err
		}
		defer func() { _ = gw.Close() }()

		start := time.Now()
		_, err = withSpinner("connecting", func() ([]engine.Row, error) {
			return gw.engine.Execute(ctx, "SELECT 1")
		})
		if err != nil {
			logging.PresentEngineError(err.Error())
			return errors.New("engine check failed")
		}
		latency := time.Since(start).Round(time.Millisecond)

		schemas, err := gw.engine.ListSchemas(ctx)
		if err != nil {
			logging.PresentEngineError(err.Error())
			return errors.New("schema discovery failed")
		}

		pterm.Success.Println("Engine reachable")
		_ = pterm.DefaultTable.WithData(pterm.TableData{
			{"url", maskedEngineURL()},
			{"dialect", gw.engine.Dialect().Name()},
			{"latency", latency.String()},
			{"schemas", pterm.Sprint(len(schemas))},
		}).Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
