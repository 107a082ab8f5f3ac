// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"polenta/gateway/internal/logging"
	"polenta/gateway/internal/xdg"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const shellPrompt = "polenta> "

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive request prompt",
	Long: `The shell command opens a prompt where each line is answered like 'polenta ask'.
History is kept in $XDG_STATE_HOME/polenta/history.

Commands:
  .help           Show help
  .suggestions    Show example requests
  .refresh        Reload the catalog snapshot and access checks (local mode only)
  .quit / .exit   Leave the shell`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newAsker(ctx, true)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		rlCfg := &readline.Config{
			Prompt:          shellPrompt,
			AutoComplete:    shellCompleter(a),
			InterruptPrompt: "^C",
			EOFPrompt:       ".quit",
		}
		if dir, err := xdg.StateDir(); err == nil {
			rlCfg.HistoryFile = filepath.Join(dir, "history")
		}
		rl, err := readline.NewEx(rlCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize shell: %w", err)
		}
		defer func() { _ = rl.Close() }()

		out := cmd.OutOrStdout()
		target := "engine " + maskedEngineURL()
		if askServer != "" {
			target = "gateway " + askServer
		}
		_, _ = fmt.Fprintf(out, "polenta %s (%s)\n", Version, target)
		_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
		_, _ = fmt.Fprintln(out)

		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if strings.HasPrefix(line, ".") {
				if quit := shellCommand(cmd, a, line); quit {
					return nil
				}
				continue
			}

			res, err := withSpinner("querying", func() (map[string]any, error) { return a.Ask(ctx, line) })
			if err != nil {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), logging.PresentError("Error", err))
				continue
			}
			if askJSON {
				_ = printJSON(out, res)
			} else {
				renderResult(res)
			}
			_, _ = fmt.Fprintln(out)
		}
	},
}

// shellCommand handles a dot command and reports whether the shell should exit.
func shellCommand(cmd *cobra.Command, a asker, line string) bool {
	ctx := cmd.Context()
	switch strings.ToLower(strings.Fields(line)[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), cmd.Long)
	case ".suggestions":
		res, err := a.Suggestions(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return false
		}
		renderResult(res)
	case ".refresh":
		local, ok := a.(localAsker)
		if !ok {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), ".refresh is only available without --server")
			return false
		}
		if _, err := withSpinner("refreshing catalog", func() (struct{}, error) {
			return struct{}{}, local.gw.catalog.Refresh(ctx)
		}); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return false
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d tables cached\n", len(local.gw.catalog.AllTables()))
	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", line)
	}
	return false
}

// tableCommands prefix a table name in completions. Each must classify as its
// catalog operation rather than raw SQL.
var tableCommands = []string{"describe table", "sample data from"}

// shellCompleter completes dot commands and, locally, cached table names.
func shellCompleter(a asker) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".suggestions"),
		readline.PcItem(".refresh"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	}
	if local, ok := a.(localAsker); ok {
		var tables []readline.PrefixCompleterInterface
		for _, ref := range local.gw.catalog.AllTables() {
			tables = append(tables, readline.PcItem(ref.String()))
		}
		for _, phrase := range tableCommands {
			items = append(items, readline.PcItem(phrase, tables...))
		}
		items = append(items, readline.PcItem("show tables"))
	}
	return readline.NewPrefixCompleter(items...)
}

func maskedEngineURL() string {
	if cfg == nil {
		return ""
	}
	if m, ok := cfg.Map(true)["engine.url"].(string); ok {
		return m
	}
	return ""
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
