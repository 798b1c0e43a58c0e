// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package bridge

import "github.com/prometheus/client_golang/prometheus"

// Connection results used as metric labels.
const (
	ConnAccepted = "accepted"
	ConnRejected = "rejected"
	ConnFailed   = "failed"
)

// Connections counts host adapter connections by outcome.
var Connections = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authlobby_bridge_connections_total",
		Help: "Total number of host adapter connections by result",
	},
	[]string{"result"},
)

// Events counts inbound host events by type and whether handling succeeded.
var Events = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authlobby_bridge_events_total",
		Help: "Total number of inbound host events by type and status",
	},
	[]string{"type", "status"},
)

// EventsDropped counts events dropped because the lobby could not keep up.
var EventsDropped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "authlobby_bridge_events_dropped_total",
		Help: "Total number of inbound host events dropped on a full queue",
	},
)

// RegisterMetrics registers the bridge metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Connections, Events, EventsDropped)
}
