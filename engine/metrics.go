// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bureau-foundation/threadsync/service"
)

// Send outcomes recorded in threadsync_sends_total.
const (
	outcomeSent     = "sent"
	outcomeFailed   = "failed"
	outcomeFiltered = "filtered"
)

type metrics struct {
	actions         *prometheus.CounterVec
	sends           *prometheus.CounterVec
	events          *prometheus.CounterVec
	sendLatency     prometheus.Histogram
	filtered        prometheus.Counter
	streamConnected prometheus.Gauge
}

// newMetrics creates the engine's collectors and registers them on
// registerer. A nil registerer leaves them unregistered.
func newMetrics(registerer prometheus.Registerer) *metrics {
	factory := promauto.With(registerer)
	return &metrics{
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "threadsync_actions_total",
			Help: "Actions applied to the local state, by kind.",
		}, []string{"kind"}),
		sends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "threadsync_sends_total",
			Help: "Completed optimistic sends, by outcome.",
		}, []string{"outcome"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "threadsync_events_total",
			Help: "Events received from the service stream, by type.",
		}, []string{"type"}),
		sendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "threadsync_send_duration_seconds",
			Help:    "Time from optimistic insert to service response.",
			Buckets: prometheus.DefBuckets,
		}),
		filtered: factory.NewCounter(prometheus.CounterOpts{
			Name: "threadsync_messages_filtered_total",
			Help: "Inbound messages removed by the role-based sanitizer.",
		}),
		streamConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "threadsync_event_stream_connected",
			Help: "1 while an event subscription is open.",
		}),
	}
}

// eventLabel bounds the label cardinality of unrecognized event types.
func eventLabel(event service.Event) string {
	switch event.(type) {
	case service.ThreadUpdatedEvent, service.MessageCreatedEvent, service.TypingEvent, service.MessageStatusEvent:
		return event.EventType()
	default:
		return "unknown"
	}
}
