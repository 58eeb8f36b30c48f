// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the analytics
// service.
//
// # Description
//
// Metrics cover:
//   - Ingested interactions (by portfolio and input type)
//   - Ingestion failures (by error code)
//   - Aggregate query latency (by query and status)
//   - Time-series mirror writes and drops
//
// They are exposed on /metrics next to the OpenTelemetry instruments of
// the store.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "pulse"

// ErrorCode labels an ingestion or query failure.
type ErrorCode string

const (
	ErrorCodeValidation       ErrorCode = "validation"
	ErrorCodeNotFound         ErrorCode = "portfolio_not_found"
	ErrorCodeInvalidPortfolio ErrorCode = "invalid_portfolio"
	ErrorCodeUnavailable      ErrorCode = "store_unavailable"
	ErrorCodeRateLimited      ErrorCode = "rate_limited"
	ErrorCodeInternal         ErrorCode = "internal"
)

// Metrics holds the service's Prometheus collectors.
//
// # Fields
//
//   - InteractionsTotal: Stored interactions. Labels: portfolio_id, input_type.
//   - IngestErrorsTotal: Rejected or failed ingestions. Labels: code.
//   - AggregateDurationSeconds: Aggregate query latency. Labels: query, status.
//   - MirrorWritesTotal: Points written to the time-series mirror. Labels: result.
//   - MirrorDroppedTotal: Points dropped because the mirror queue was full.
type Metrics struct {
	InteractionsTotal        *prometheus.CounterVec
	IngestErrorsTotal        *prometheus.CounterVec
	AggregateDurationSeconds *prometheus.HistogramVec
	MirrorWritesTotal        *prometheus.CounterVec
	MirrorDroppedTotal       prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
//
// # Inputs
//
//   - reg: Registerer to use. Tests pass prometheus.NewRegistry().
//
// # Limitations
//
//   - Panics on duplicate registration with the same registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InteractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ingest",
				Name:      "interactions_total",
				Help:      "Interactions stored, by portfolio and input type",
			},
			[]string{"portfolio_id", "input_type"},
		),
		IngestErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ingest",
				Name:      "errors_total",
				Help:      "Ingestion requests rejected or failed, by error code",
			},
			[]string{"code"},
		),
		AggregateDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "aggregate",
				Name:      "duration_seconds",
				Help:      "Aggregate query latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"query", "status"},
		),
		MirrorWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "mirror",
				Name:      "writes_total",
				Help:      "Points written to the time-series mirror, by result",
			},
			[]string{"result"},
		),
		MirrorDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "mirror",
				Name:      "dropped_total",
				Help:      "Points dropped because the mirror queue was full",
			},
		),
	}
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the metrics registered with the default Prometheus
// registerer, creating them on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// RecordInteraction counts one stored interaction.
func (m *Metrics) RecordInteraction(portfolioID int64, inputType string) {
	m.InteractionsTotal.WithLabelValues(strconv.FormatInt(portfolioID, 10), inputType).Inc()
}

// RecordIngestError counts one failed ingestion.
func (m *Metrics) RecordIngestError(code ErrorCode) {
	m.IngestErrorsTotal.WithLabelValues(string(code)).Inc()
}

// ObserveAggregate records the latency of one aggregate query.
func (m *Metrics) ObserveAggregate(query string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.AggregateDurationSeconds.WithLabelValues(query, status).Observe(d.Seconds())
}

// RecordMirrorWrite counts one mirror write attempt.
func (m *Metrics) RecordMirrorWrite(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.MirrorWritesTotal.WithLabelValues(result).Inc()
}

// RecordMirrorDrop counts one point dropped by the mirror.
func (m *Metrics) RecordMirrorDrop() {
	m.MirrorDroppedTotal.Inc()
}
