// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package projection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName identifies spans emitted by this package.
const tracerName = "causeway/ledger/projection"

var (
	snapshotsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_projection_snapshots_total",
		Help: "Statistics snapshots produced by projectors",
	})

	epochsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_projection_epochs_created_total",
		Help: "Epochs captured and recorded",
	})

	epochsImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_projection_epochs_imported_total",
		Help: "Epochs accepted from archives",
	})

	epochFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_projection_epoch_failures_total",
		Help: "Epoch creations abandoned by capture or persistence errors",
	})

	epochCreateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_projection_epoch_create_duration_seconds",
		Help:    "Wall time of successful epoch captures",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)
