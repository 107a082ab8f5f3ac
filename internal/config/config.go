// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads gateway configuration.
//
// Sources are layered, later ones winning: built-in defaults, the YAML file
// ($XDG_CONFIG_HOME/polenta/config.yaml or --config), POLENTA_* environment
// variables (double underscore separates levels, so POLENTA_ENGINE__URL sets
// engine.url) and finally command-line flags that were explicitly set.
// Secrets belong in the OS keyring, not in the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"polenta/gateway/internal/dsn"
	"polenta/gateway/internal/engine"
	"polenta/gateway/internal/xdg"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "POLENTA_"

// Config holds all gateway settings.
type Config struct {
	Engine   EngineConfig   `koanf:"engine"`
	Server   ServerConfig   `koanf:"server"`
	Metadata MetadataConfig `koanf:"metadata"`
	Log      LogConfig      `koanf:"log"`
}

// EngineConfig describes the query engine connection.
type EngineConfig struct {
	URL               string        `koanf:"url"`
	User              string        `koanf:"user"`
	Password          string        `koanf:"password"`
	Dialect           string        `koanf:"dialect"`
	MaxPoolSize       int           `koanf:"max_pool_size"`
	ConnectionTimeout time.Duration `koanf:"connection_timeout"`
	QueryTimeout      time.Duration `koanf:"query_timeout"`
	MaxRetries        int           `koanf:"max_retries"`
	RetryBackoff      time.Duration `koanf:"retry_backoff"`
	MaxRows           int           `koanf:"max_rows"`
}

// ServerConfig holds transport and identity settings.
type ServerConfig struct {
	HTTPAddr       string        `koanf:"http_addr"`
	GRPCAddr       string        `koanf:"grpc_addr"`
	Name           string        `koanf:"name"`
	Version        string        `koanf:"version"`
	Description    string        `koanf:"description"`
	SessionTTL     time.Duration `koanf:"session_ttl"`
	HealthInterval time.Duration `koanf:"health_interval"`
}

// MetadataConfig controls the catalog snapshot.
type MetadataConfig struct {
	LoadOnStart     bool          `koanf:"load_on_start"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	Parallelism     int           `koanf:"parallelism"`
}

// LogConfig selects log verbosity and format (text or json).
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"engine.dialect":            "",
		"engine.max_pool_size":      engine.DefaultMaxPoolSize,
		"engine.connection_timeout": engine.DefaultConnectionTimeout.String(),
		"engine.query_timeout":      engine.DefaultQueryTimeout.String(),
		"engine.max_retries":        engine.DefaultMaxRetries,
		"engine.retry_backoff":      engine.DefaultRetryBackoff.String(),
		"engine.max_rows":           engine.DefaultMaxRows,
		"server.http_addr":          ":8090",
		"server.grpc_addr":          "",
		"server.name":               "polenta",
		"server.version":            "dev",
		"server.description":        "MCP gateway for a distributed SQL query engine",
		"server.session_ttl":        "0s",
		"server.health_interval":    "30s",
		"metadata.load_on_start":    true,
		"metadata.refresh_interval": "0s",
		"metadata.parallelism":      4,
		"log.level":                 "info",
		"log.format":                "text",
	}
}

// Loader reads configuration. The zero value uses the default file location.
type Loader struct {
	// File is an explicit config path. When empty the XDG default is used
	// if it exists.
	File string
	// Flags, when set, override every other source for flags the user changed.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to config keys, e.g. "http-addr" -> "server.http_addr".
	// Flags missing from the map are ignored.
	FlagKeys map[string]string

	used string
}

// FileUsed returns the config file read by the last Load, if any.
func (l *Loader) FileUsed() string { return l.used }

// Load merges all sources into a Config and validates it.
func (l *Loader) Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path, err := l.resolveFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		l.used = path
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if l.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(l.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := l.FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(l.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) resolveFile() (string, error) {
	if l.File != "" {
		if _, err := os.Stat(l.File); err != nil {
			return "", fmt.Errorf("config file %s: %w", l.File, err)
		}
		return l.File, nil
	}
	def, err := xdg.ConfigFile()
	if err != nil {
		// No home directory: run on env and flags alone.
		return "", nil
	}
	if _, err := os.Stat(def); err != nil {
		return "", nil
	}
	return def, nil
}

// envKey maps POLENTA_ENGINE__MAX_POOL_SIZE to engine.max_pool_size.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate rejects settings no component can run with. An empty engine URL
// is allowed so that configure and version work on a fresh install.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.URL != "" {
		if err := dsn.Validate(c.Engine.URL); err != nil {
			errs = append(errs, fmt.Errorf("engine.url: %w", err))
		}
	}
	if c.Engine.Dialect != "" {
		if _, err := engine.DialectFor(c.Engine.Dialect); err != nil {
			errs = append(errs, fmt.Errorf("engine.dialect: %w", err))
		}
	}
	if c.Engine.MaxPoolSize < 0 {
		errs = append(errs, errors.New("engine.max_pool_size must not be negative"))
	}
	if c.Engine.MaxRetries < 0 {
		errs = append(errs, errors.New("engine.max_retries must not be negative"))
	}
	if c.Metadata.RefreshInterval < 0 {
		errs = append(errs, errors.New("metadata.refresh_interval must not be negative"))
	}
	if c.Server.SessionTTL < 0 {
		errs = append(errs, errors.New("server.session_ttl must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// EngineSettings converts the engine section into an engine.Config. The URL
// is normalized to its canonical connection string and, unless set
// explicitly, the dialect follows the URL scheme.
func (c *Config) EngineSettings() (engine.Config, error) {
	e := c.Engine
	if e.URL == "" {
		return engine.Config{}, errors.New("engine.url is not configured; run 'polenta configure' or set POLENTA_ENGINE__URL")
	}
	conn, dialect, err := dsn.Normalize(e.URL)
	if err != nil {
		return engine.Config{}, err
	}
	if e.Dialect != "" {
		dialect = e.Dialect
	}
	return engine.Config{
		URL:               conn,
		User:              e.User,
		Password:          e.Password,
		Dialect:           dialect,
		MaxPoolSize:       e.MaxPoolSize,
		ConnectionTimeout: e.ConnectionTimeout,
		QueryTimeout:      e.QueryTimeout,
		MaxRetries:        e.MaxRetries,
		RetryBackoff:      e.RetryBackoff,
		MaxRows:           e.MaxRows,
	}.WithDefaults(), nil
}
