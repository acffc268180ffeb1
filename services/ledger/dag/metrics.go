// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package dag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName identifies spans emitted by this package.
const tracerName = "causeway/ledger/dag"

var (
	nodesAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_dag_nodes_added_total",
		Help: "Nodes accepted into the transition graph",
	})

	edgesAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_dag_edges_added_total",
		Help: "Edges accepted into the transition graph",
	})

	nodeRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_dag_rejects_total",
		Help: "Writes rejected during validation, by entity and reason",
	}, []string{"entity", "reason"})

	cycleRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_dag_cycle_rejections_total",
		Help: "Edges rejected because they would close a cycle",
	})

	verifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_dag_verify_duration_seconds",
		Help:    "Wall time of full integrity scans",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
)
