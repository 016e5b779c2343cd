// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retry

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the scheduler's Prometheus collectors.
type Metrics struct {
	Enqueued      prometheus.Counter
	Delivered     prometheus.Counter
	Gone          prometheus.Counter
	Failed        prometheus.Counter
	StorageErrors prometheus.Counter
	Ticks         prometheus.Counter
	Depth         prometheus.Gauge
	ReplayLatency prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brainbox_retry_enqueued_total",
			Help: "Total messages written to the retry queue.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brainbox_retry_delivered_total",
			Help: "Total queued messages stored by the server.",
		}),
		Gone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brainbox_retry_gone_total",
			Help: "Total queued messages dropped because their chat was deleted.",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brainbox_retry_failed_attempts_total",
			Help: "Total replay attempts that failed and were rescheduled.",
		}),
		StorageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brainbox_retry_storage_errors_total",
			Help: "Total queue store operations that failed.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brainbox_retry_ticks_total",
			Help: "Total scheduler passes over the queue.",
		}),
		Depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "brainbox_retry_queue_depth",
			Help: "Items in the retry queue at the last tick.",
		}),
		ReplayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brainbox_retry_replay_seconds",
			Help:    "Latency of replay requests.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Enqueued,
			m.Delivered, m.Gone, m.Failed,
			m.StorageErrors, m.Ticks,
			m.Depth, m.ReplayLatency,
		)
	}
	return m
}
