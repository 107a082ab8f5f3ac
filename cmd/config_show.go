// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var configJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect gateway configuration",
}

// configShowCmd prints the effective configuration after every source is
// merged. The password is never shown and the URL is masked.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := cfg.Map(true)
		if configJSON {
			return printJSON(os.Stdout, m)
		}

		source := "built-in defaults and environment"
		if f := loader.FileUsed(); f != "" {
			source = f
		}
		data := pterm.TableData{{"key", "value"}}
		for _, k := range sortedKeys(m) {
			data = append(data, []string{k, pterm.Sprint(m[k])})
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Configuration")).
			WithPadding(1).
			Println(table)
		pterm.Println("Loaded from: " + source)
		pterm.Println("To change the engine connection, run: polenta configure")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configShowCmd.Flags().BoolVar(&configJSON, "json", false, "Print configuration as JSON")
}
