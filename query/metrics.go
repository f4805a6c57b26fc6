// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics contains statically-registered Prometheus metrics for the package.
var metrics = struct {
	compileDurationSeconds prometheus.Summary
	executeDurationSeconds prometheus.Summary
	rejectedTotal          prometheus.Counter
	storeErrorsTotal       prometheus.Counter
}{
	compileDurationSeconds: promauto.NewSummary(prometheus.SummaryOpts{
		Namespace: "treeline",
		Subsystem: "query",
		Name:      "compile_duration_seconds",
		Help: `The time it takes to translate a query into its native form.

This covers shape validation, the batch-versus-scan classification and
predicate and sort compilation. It does not include any store traffic.`,
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
	}),
	executeDurationSeconds: promauto.NewSummary(prometheus.SummaryOpts{
		Namespace: "treeline",
		Subsystem: "query",
		Name:      "execute_duration_seconds",
		Help: `The time it takes to run an Execute call end to end.

This includes compilation and the initial store call, but not the lazy pulls a
caller performs while iterating a streaming result.`,
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
	}),
	rejectedTotal: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "treeline",
		Subsystem: "query",
		Name:      "rejected_total",
		Help: `The cumulative number of queries rejected before any store call.

A steady rate here usually means some caller keeps issuing a query shape the
store cannot fulfill.`,
	}),
	storeErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "treeline",
		Subsystem: "query",
		Name:      "store_errors_total",
		Help:      `The cumulative number of store failures surfaced during dispatch.`,
	}),
}
