// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package engine

import (
	"context"
	"net/url"
	"testing"
	"time"

	"polenta/gateway/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPicksDriverByScheme(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		dialect     string
		wantDialect string
	}{
		{name: "presto coordinator", url: "presto://analyst@engine.invalid:8080/hive", dialect: DialectPresto, wantDialect: "presto"},
		{name: "postgres wire", url: "postgresql://analyst@engine.invalid:5432/app", dialect: DialectPostgres, wantDialect: "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Open(context.Background(), Config{URL: tt.url, Dialect: tt.dialect, MaxPoolSize: 3}, logging.Discard())
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })

			assert.Equal(t, tt.wantDialect, c.Dialect().Name())
			assert.Equal(t, 3, c.Stats().MaxOpenConnections)
		})
	}
}

func TestTrinoDSN(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantScheme string
		wantUser   string
		wantQuery  map[string]string
	}{
		{
			name:       "catalog and schema from the URL",
			cfg:        Config{URL: "presto://analyst@engine:8080/hive?schema=sales"},
			wantScheme: "http",
			wantUser:   "analyst",
			wantQuery:  map[string]string{"catalog": "hive", "schema": "sales", "source": "polenta"},
		},
		{
			name:       "configured credentials win and force TLS",
			cfg:        Config{URL: "presto://analyst@engine:8443/hive", User: "svc", Password: "secret"},
			wantScheme: "https",
			wantUser:   "svc",
			wantQuery:  map[string]string{"catalog": "hive"},
		},
		{
			name:       "anonymous URL gets a user",
			cfg:        Config{URL: "presto://engine"},
			wantScheme: "http",
			wantUser:   defaultTrinoUser,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := trinoDSN(tt.cfg.WithDefaults())
			require.NoError(t, err)

			u, err := url.Parse(conn)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, u.Scheme)
			assert.Equal(t, tt.wantUser, u.User.Username())
			for k, v := range tt.wantQuery {
				assert.Equal(t, v, u.Query().Get(k), k)
			}
			assert.Contains(t, conn, "polenta-")
		})
	}
}

func TestTrinoDSNRejectsBadURL(t *testing.T) {
	_, err := trinoDSN(Config{URL: "presto:///hive", ConnectionTimeout: time.Second})
	assert.Error(t, err)
}
