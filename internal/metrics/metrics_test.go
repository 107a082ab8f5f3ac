// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package metrics

import (
	"database/sql"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "polenta/gateway/internal/errors"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the value of the sample of family name whose labels match.
func value(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if !labelsMatch(metric, labels) {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("no sample %s%v", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range metric.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestObservers(t *testing.T) {
	m := New()

	m.ObserveDispatch("ping", time.Millisecond, apperrors.StateError)
	m.ObserveDispatch("ping", time.Millisecond, "")
	m.ObserveTool("schemas", "success")
	m.ObserveOperation("describe_table", time.Second, apperrors.InvalidParams)
	m.ObserveAttempt(time.Millisecond, nil)
	m.ObserveAttempt(time.Millisecond, errors.New("reset"))
	m.ObserveRetry()
	m.ObserveLoad(time.Second, 42, nil)
	m.ObserveLoad(time.Second, 0, errors.New("boom"))

	assert.Equal(t, 1.0, value(t, m, "polenta_dispatch_total", map[string]string{"method": "ping", "kind": "state_error"}))
	assert.Equal(t, 1.0, value(t, m, "polenta_dispatch_total", map[string]string{"method": "ping", "kind": "ok"}))
	assert.Equal(t, 2.0, value(t, m, "polenta_dispatch_duration_seconds", map[string]string{"method": "ping"}))
	assert.Equal(t, 1.0, value(t, m, "polenta_tool_calls_total", map[string]string{"tool": "schemas", "status": "success"}))
	assert.Equal(t, 1.0, value(t, m, "polenta_operations_total", map[string]string{"operation": "describe_table", "kind": "invalid_params"}))
	assert.Equal(t, 1.0, value(t, m, "polenta_engine_attempts_total", map[string]string{"result": "error"}))
	assert.Equal(t, 1.0, value(t, m, "polenta_engine_retries_total", nil))
	assert.Equal(t, 42.0, value(t, m, "polenta_metadata_tables", nil))
	assert.Equal(t, 1.0, value(t, m, "polenta_metadata_loads_total", map[string]string{"result": "error"}))
}

func TestRegisterPool(t *testing.T) {
	m := New()
	m.RegisterPool(func() sql.DBStats { return sql.DBStats{MaxOpenConnections: 10, InUse: 3} })

	assert.Equal(t, 10.0, value(t, m, "polenta_engine_pool_max_open_connections", nil))
	assert.Equal(t, 3.0, value(t, m, "polenta_engine_pool_in_use_connections", nil))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRetry()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "polenta_engine_retries_total 1")
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveRetry()
	assert.Equal(t, 1.0, value(t, a, "polenta_engine_retries_total", nil))
	assert.Equal(t, 0.0, value(t, b, "polenta_engine_retries_total", nil))
}
