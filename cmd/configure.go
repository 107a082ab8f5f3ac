// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"polenta/gateway/internal/config"
	"polenta/gateway/internal/dsn"
	"polenta/gateway/internal/engine"
	"polenta/gateway/internal/keychain"
	"polenta/gateway/internal/logging"
	"polenta/gateway/internal/terminal"
	"polenta/gateway/internal/xdg"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	configureForget bool
	configureSkip   bool
)

// configureCmd prompts for the engine connection, verifies it and saves it.
// The URL and user go to the config file; the password goes to the OS keyring.
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure and verify the query engine connection",
	Long: `The configure command prompts for the engine URL, user and password and runs
a test query before saving anything. The URL and user are written to the config
file, the password is stored in the OS keyring.

Accepted URL forms:
  presto://coordinator:8080/hive
  trino://coordinator:8080/hive
  postgresql://user@host:5432/db?sslmode=disable

Use --forget to remove the stored password.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		km, kerr := keychain.GetManager()
		if configureForget {
			if kerr != nil {
				pterm.Error.Println("Secure storage is not available on this system")
				return kerr
			}
			if err := km.ClearPassword(); err != nil {
				return fmt.Errorf("failed to remove stored password: %w", err)
			}
			pterm.Success.Println("Stored engine password removed")
			return nil
		}

		reader := bufio.NewReader(os.Stdin)
		rawURL, err := promptDefault(reader, "Engine URL", cfg.Engine.URL, true)
		if err != nil {
			return err
		}
		info, err := dsn.Parse(rawURL)
		if err != nil {
			var perr *dsn.ParseError
			if errors.As(err, &perr) {
				pterm.Error.Println(perr.Error())
			}
			return err
		}

		defUser := cfg.Engine.User
		if defUser == "" {
			defUser = info.User
		}
		user, err := promptDefault(reader, "User", defUser, false)
		if err != nil {
			return err
		}

		password := info.Password
		if password == "" && terminal.IsInteractive() {
			password, err = terminal.ReadPassword("Password (empty for none): ")
			if err != nil {
				return err
			}
		}

		// The password never reaches the file: the saved URL is rebuilt without it.
		info.Password = ""
		updated := *cfg
		updated.Engine.URL = info.ConnString()
		updated.Engine.User = user
		updated.Engine.Password = password
		if updated.Engine.Dialect == "" {
			updated.Engine.Dialect = info.Dialect()
		}

		if !configureSkip {
			if err := verifyEngine(cmd.Context(), &updated); err != nil {
				return err
			}
		}

		path := loader.FileUsed()
		if path == "" {
			if path, err = xdg.ConfigFile(); err != nil {
				return err
			}
		}
		updated.Engine.Password = ""
		if err := config.Save(path, &updated); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		if password != "" {
			if kerr != nil {
				pterm.Warning.Println("Secure storage is not available; the password was not saved")
				pterm.Println("   Set POLENTA_ENGINE__PASSWORD instead")
			} else if err := km.SavePassword(password); err != nil {
				return fmt.Errorf("failed to store password: %w", err)
			}
		}

		pterm.Success.Printfln("Engine connection verified and saved to %s", path)
		pterm.Println("   You're ready to run 'polenta serve' or 'polenta shell'")
		return nil
	},
}

// promptDefault reads one value, showing def in brackets and returning it on empty input.
func promptDefault(r *bufio.Reader, label, def string, required bool) (string, error) {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, logging.Mask(def))
	}
	v, err := terminal.ReadLine(r, prompt)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		v = def
	}
	if v == "" && required {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return v, nil
}

// verifyEngine opens a short-lived pool for c and runs a test query.
func verifyEngine(ctx context.Context, c *config.Config) error {
	ec, err := c.EngineSettings()
	if err != nil {
		return err
	}
	client, err := engine.Open(ctx, ec, logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	_, err = withSpinner("verifying connection", func() ([]engine.Row, error) {
		return client.Execute(ctx, "SELECT 1")
	})
	if err != nil {
		logging.PresentEngineError(err.Error())
		return errors.New("connection test failed")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configureCmd)
	configureCmd.Flags().BoolVar(&configureForget, "forget", false, "Remove the stored engine password and exit")
	configureCmd.Flags().BoolVar(&configureSkip, "no-verify", false, "Save without running a test query")
}
