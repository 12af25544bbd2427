// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package action

import "github.com/prometheus/client_golang/prometheus"

// Outcome constants for action metrics.
const (
	OutcomeApplied    = "applied"
	OutcomePermission = "permission"
	OutcomeNotFound   = "not_found"
	OutcomeInvalid    = "invalid"
)

// Actions is the counter for processed appearance actions.
// Use RegisterMetrics to register this with a Prometheus registry.
var Actions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vestiary_actions_total",
		Help: "Total number of appearance actions processed",
	},
	[]string{"type", "outcome"},
)

// RegisterMetrics registers action package metrics with the given
// Prometheus registry. Panics if registration fails.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Actions)
}

func recordAction(kind Kind, outcome string) {
	Actions.WithLabelValues(string(kind), outcome).Inc()
}
