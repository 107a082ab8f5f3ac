// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics exposes Prometheus collectors for the gateway. A Metrics
// value owns its registry, so several instances (tests, embedded servers) can
// coexist in one process. It implements the observer interfaces of the
// engine, metadata, intelligence and dispatch packages.
package metrics

import (
	"database/sql"
	"net/http"
	"time"

	apperrors "polenta/gateway/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "polenta"

// Metrics holds every collector of one gateway instance.
type Metrics struct {
	reg *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	toolCalls        *prometheus.CounterVec

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	engineAttempts        *prometheus.CounterVec
	engineAttemptDuration prometheus.Histogram
	engineRetries         prometheus.Counter

	metadataLoads        *prometheus.CounterVec
	metadataLoadDuration prometheus.Histogram
	metadataTables       prometheus.Gauge
}

// New registers all collectors, plus the Go runtime and process collectors,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		dispatchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Protocol methods dispatched, by method and error kind.",
		}, []string{"method", "kind"}),
		dispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Protocol method latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool executions, by tool and envelope status.",
		}, []string{"tool", "status"}),
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Query operations handled, by operation and error kind.",
		}, []string{"operation", "kind"}),
		operationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Query operation latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation"}),
		engineAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "attempts_total",
			Help:      "Statement attempts against the query engine, by result.",
		}, []string{"result"}),
		engineAttemptDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of one statement attempt, connection checkout included.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		engineRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "retries_total",
			Help:      "Transient failures that were retried.",
		}),
		metadataLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "loads_total",
			Help:      "Metadata cache loads, by result.",
		}, []string{"result"}),
		metadataLoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "load_duration_seconds",
			Help:      "Metadata cache load latency.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		metadataTables: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "tables",
			Help:      "Tables in the current metadata snapshot.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// RegisterPool exports connection pool usage read from stats.
func (m *Metrics) RegisterPool(stats func() sql.DBStats) {
	f := promauto.With(m.reg)
	gauge := func(name, help string, read func(sql.DBStats) float64) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(stats()) })
	}
	gauge("max_open_connections", "Maximum open connections.", func(s sql.DBStats) float64 { return float64(s.MaxOpenConnections) })
	gauge("open_connections", "Open connections.", func(s sql.DBStats) float64 { return float64(s.OpenConnections) })
	gauge("in_use_connections", "Connections checked out.", func(s sql.DBStats) float64 { return float64(s.InUse) })
	gauge("wait_count", "Checkouts that had to wait.", func(s sql.DBStats) float64 { return float64(s.WaitCount) })
}

func kindLabel(kind apperrors.Kind) string {
	if kind == "" {
		return "ok"
	}
	return string(kind)
}

// ObserveDispatch implements dispatch.Observer.
func (m *Metrics) ObserveDispatch(method string, d time.Duration, kind apperrors.Kind) {
	m.dispatchTotal.WithLabelValues(method, kindLabel(kind)).Inc()
	m.dispatchDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveTool implements dispatch.Observer.
func (m *Metrics) ObserveTool(name, status string) {
	m.toolCalls.WithLabelValues(name, status).Inc()
}

// ObserveOperation implements intelligence.Observer.
func (m *Metrics) ObserveOperation(op string, d time.Duration, kind apperrors.Kind) {
	m.operations.WithLabelValues(op, kindLabel(kind)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveAttempt implements engine.Observer.
func (m *Metrics) ObserveAttempt(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.engineAttempts.WithLabelValues(result).Inc()
	m.engineAttemptDuration.Observe(d.Seconds())
}

// ObserveRetry implements engine.Observer.
func (m *Metrics) ObserveRetry() { m.engineRetries.Inc() }

// ObserveLoad implements metadata.Observer.
func (m *Metrics) ObserveLoad(d time.Duration, tables int, err error) {
	if err != nil {
		m.metadataLoads.WithLabelValues("error").Inc()
		return
	}
	m.metadataLoads.WithLabelValues("ok").Inc()
	m.metadataLoadDuration.Observe(d.Seconds())
	m.metadataTables.Set(float64(tables))
}
