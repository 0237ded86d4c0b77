// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for broadcast and invocation metrics.
const (
	StatusSuccess     = "success"
	StatusAborted     = "aborted"
	StatusError       = "error"
	StatusUndefined   = "undefined"
	StatusInterrupted = "interrupted"
	StatusSkipped     = "skipped"
)

// BroadcastsTotal counts broadcasts by event and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var BroadcastsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "yana_plugin_broadcasts_total",
		Help: "Total number of event broadcasts",
	},
	[]string{"event", "status"},
)

// BroadcastDuration observes broadcast duration.
var BroadcastDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "yana_plugin_broadcast_duration_seconds",
		Help:    "Event broadcast duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"event"},
)

// InvocationsTotal counts handler invocations by plugin and outcome.
var InvocationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "yana_plugin_invocations_total",
		Help: "Total number of plugin handler invocations",
	},
	[]string{"plugin", "status"},
)

// ActivationFailures counts failed activation lookups.
var ActivationFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "yana_plugin_activation_failures_total",
		Help: "Total number of failed activation lookups",
	},
	[]string{"plugin"},
)

// RepositoryRebuilds counts repository rebuilds.
var RepositoryRebuilds = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "yana_plugin_repository_rebuilds_total",
		Help: "Total number of plugin repository rebuilds",
	},
	[]string{"status"},
)

// RepositorySize reports the size of the published repository.
var RepositorySize = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "yana_plugin_repository_size",
		Help: "Number of plugins and events in the published repository",
	},
	[]string{"kind"},
)

// RegisterMetrics registers plugin package metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(BroadcastsTotal)
	reg.MustRegister(BroadcastDuration)
	reg.MustRegister(InvocationsTotal)
	reg.MustRegister(ActivationFailures)
	reg.MustRegister(RepositoryRebuilds)
	reg.MustRegister(RepositorySize)
}

// RecordBroadcast records the outcome and duration of a broadcast.
func RecordBroadcast(event, status string, duration time.Duration) {
	BroadcastsTotal.WithLabelValues(event, status).Inc()
	BroadcastDuration.WithLabelValues(event).Observe(duration.Seconds())
}

// RecordInvocation increments the invocation counter.
func RecordInvocation(pluginID, status string) {
	InvocationsTotal.WithLabelValues(pluginID, status).Inc()
}

// RecordActivationFailure increments the activation failure counter.
func RecordActivationFailure(pluginID string) {
	ActivationFailures.WithLabelValues(pluginID).Inc()
}

// RecordRebuild records a rebuild and, on success, the new repository size.
func RecordRebuild(status string, repo *Repository) {
	RepositoryRebuilds.WithLabelValues(status).Inc()
	if repo == nil {
		return
	}
	RepositorySize.WithLabelValues("plugins").Set(float64(len(repo.order)))
	RepositorySize.WithLabelValues("events").Set(float64(len(repo.events)))
}
