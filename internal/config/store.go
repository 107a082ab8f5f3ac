// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"polenta/gateway/internal/logging"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// PasswordSource supplies the engine password when the configuration
// carries none. *keychain.Manager satisfies it.
type PasswordSource interface {
	LoadPassword() (string, error)
}

// ResolvePassword fills Engine.Password from src when it is empty. A missing
// stored password is not an error: the engine may not require one.
func (c *Config) ResolvePassword(src PasswordSource) error {
	if c.Engine.Password != "" || src == nil {
		return nil
	}
	pw, err := src.LoadPassword()
	if err != nil {
		return err
	}
	c.Engine.Password = pw
	return nil
}

// Map flattens c into dotted keys. When redact is set the password is
// omitted and the URL is masked, which is what config show prints.
func (c *Config) Map(redact bool) map[string]any {
	m := map[string]any{
		"engine.url":                c.Engine.URL,
		"engine.user":               c.Engine.User,
		"engine.dialect":            c.Engine.Dialect,
		"engine.max_pool_size":      c.Engine.MaxPoolSize,
		"engine.connection_timeout": c.Engine.ConnectionTimeout.String(),
		"engine.query_timeout":      c.Engine.QueryTimeout.String(),
		"engine.max_retries":        c.Engine.MaxRetries,
		"engine.retry_backoff":      c.Engine.RetryBackoff.String(),
		"engine.max_rows":           c.Engine.MaxRows,
		"server.http_addr":          c.Server.HTTPAddr,
		"server.grpc_addr":          c.Server.GRPCAddr,
		"server.name":               c.Server.Name,
		"server.version":            c.Server.Version,
		"server.description":        c.Server.Description,
		"server.session_ttl":        c.Server.SessionTTL.String(),
		"server.health_interval":    c.Server.HealthInterval.String(),
		"metadata.load_on_start":    c.Metadata.LoadOnStart,
		"metadata.refresh_interval": c.Metadata.RefreshInterval.String(),
		"metadata.parallelism":      c.Metadata.Parallelism,
		"log.level":                 c.Log.Level,
		"log.format":                c.Log.Format,
	}
	if redact {
		m["engine.url"] = logging.Mask(c.Engine.URL)
	}
	return m
}

// Save writes c as YAML to path with 0600 permissions. The password is never
// written; it belongs in the keyring.
func Save(path string, c *Config) error {
	if path == "" {
		return errors.New("no config path")
	}
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(c.Map(false), "."), nil); err != nil {
		return err
	}
	b, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
