// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments batch uploads. A nil *Metrics records nothing.
type Metrics struct {
	batches             *prometheus.CounterVec
	partsUploaded       prometheus.Counter
	bytesUploaded       prometheus.Counter
	completionFailures  prometheus.Counter
	containerRecoveries prometheus.Counter
	stageDuration       *prometheus.HistogramVec
}

// MustNewMetrics registers the upload collectors on reg and panics on conflicts.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dam",
			Subsystem: "upload",
			Name:      "batches_total",
			Help:      "Upload batches by outcome (success, partial, failed).",
		}, []string{"outcome"}),
		partsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dam",
			Subsystem: "upload",
			Name:      "parts_total",
			Help:      "Binary parts sent to pre-signed URIs.",
		}),
		bytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dam",
			Subsystem: "upload",
			Name:      "bytes_total",
			Help:      "Bytes sent to pre-signed URIs.",
		}),
		completionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dam",
			Subsystem: "upload",
			Name:      "completion_failures_total",
			Help:      "Files whose completion request failed.",
		}),
		containerRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dam",
			Subsystem: "upload",
			Name:      "container_recoveries_total",
			Help:      "Target folders created after initiation answered 404.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dam",
			Subsystem: "upload",
			Name:      "stage_duration_seconds",
			Help:      "Time spent per upload stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
	}
	reg.MustRegister(m.batches, m.partsUploaded, m.bytesUploaded, m.completionFailures, m.containerRecoveries, m.stageDuration)
	return m
}

func (m *Metrics) batchFinished(outcome string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) partUploaded(bytes int64) {
	if m == nil {
		return
	}
	m.partsUploaded.Inc()
	m.bytesUploaded.Add(float64(bytes))
}

func (m *Metrics) completionFailed() {
	if m == nil {
		return
	}
	m.completionFailures.Inc()
}

func (m *Metrics) containerCreated() {
	if m == nil {
		return
	}
	m.containerRecoveries.Inc()
}

func (m *Metrics) observeStage(stage Stage, took time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage)).Observe(took.Seconds())
}
