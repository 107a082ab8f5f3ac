// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"

	"polenta/gateway/internal/engine"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var schemasJSON bool

var schemasCmd = &cobra.Command{
	Use:   "schemas [schema [table]]",
	Short: "Browse engine schemas, tables and columns",
	Long: `Without arguments schemas lists every schema. With a schema it lists that
schema's tables, and with a schema and table it lists the table's columns.
Discovery queries the engine live; no catalog snapshot is loaded.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		gw, err := openGateway(ctx, cfg, logger, false)
		if err != nil {
			return err
		}
		defer func() { _ = gw.Close() }()

		var (
			title string
			names []string
		)
		switch len(args) {
		case 0:
			title = "Schemas"
			names, err = withSpinner("listing schemas", func() ([]string, error) {
				return gw.engine.ListSchemas(ctx)
			})
		case 1:
			title = "Tables in " + args[0]
			names, err = withSpinner("listing tables", func() ([]string, error) {
				return gw.engine.ListTables(ctx, args[0])
			})
		default:
			title = "Columns of " + engine.QualifiedName(args[0], args[1])
			names, err = withSpinner("describing table", func() ([]string, error) {
				return gw.engine.DescribeColumns(ctx, args[0], args[1])
			})
		}
		if err != nil {
			return err
		}

		if schemasJSON {
			return printJSON(os.Stdout, names)
		}
		pterm.DefaultSection.Println(title)
		items := make([]any, len(names))
		for i, n := range names {
			items[i] = n
		}
		renderList(items)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemasCmd)
	schemasCmd.Flags().BoolVar(&schemasJSON, "json", false, "Print names as a JSON array")
}
