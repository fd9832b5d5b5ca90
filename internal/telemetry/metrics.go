/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes playback coordination metrics and tracing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActivationsTotal counts successful active-key transitions.
	ActivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versefeed_playback_activations_total",
		Help: "Number of times a media key was promoted to the active player.",
	})

	// DeactivationsTotal counts active-key clears.
	DeactivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versefeed_playback_deactivations_total",
		Help: "Number of times the active media key was deactivated.",
	})

	// SwitchesSuppressedTotal counts autoplay targets that were computed but
	// not applied, labelled by the rule that suppressed them.
	SwitchesSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versefeed_switches_suppressed_total",
		Help: "Number of autoplay switch targets suppressed by hysteresis rules.",
	}, []string{"reason"})

	// StartRetriesTotal counts deferred play retries against not-ready players.
	StartRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versefeed_start_retries_total",
		Help: "Number of deferred playback start retries.",
	})

	// StartFailuresTotal counts keys that exhausted their start retry budget.
	StartFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versefeed_start_failures_total",
		Help: "Number of media keys marked failed after exhausting start retries.",
	})

	// RegisteredHandles tracks currently mounted player handles.
	RegisteredHandles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "versefeed_registered_handles",
		Help: "Number of player handles currently registered.",
	})

	// HTTPRequestsTotal counts introspection API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versefeed_http_requests_total",
		Help: "Number of HTTP requests handled.",
	}, []string{"method", "endpoint", "status"})

	// HTTPRequestDuration observes introspection API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "versefeed_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
