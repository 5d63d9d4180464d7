// Package metrics provides Prometheus counters for the aggregation engine.
// Everything here is registered automatically; callers just Inc or Add.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsRead counts physical rows consumed from input streams.
	RowsRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "microagg",
		Name:      "rows_read_total",
		Help:      "Physical rows read from input streams",
	})

	// ChunksProcessed counts folded chunks.
	ChunksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "microagg",
		Name:      "chunks_processed_total",
		Help:      "Row chunks folded into accumulators",
	})

	// RowsFiltered counts rows excluded by the active row criterion.
	RowsFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "microagg",
		Name:      "rows_filtered_total",
		Help:      "Rows excluded by the subpopulation filter",
	})

	// RowsDroppedBadGroup counts rows whose group key was unresolved or
	// outside the closed key set.
	RowsDroppedBadGroup = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "microagg",
		Name:      "rows_dropped_bad_group_total",
		Help:      "Rows dropped for an unresolvable or out-of-set group key",
	})

	// CellsMalformed counts cells that failed numeric coercion and were
	// absorbed as missing values. Zero-sentinel hits are legitimately
	// absent scores, not corruption, and are not counted here.
	CellsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "microagg",
		Name:      "cells_malformed_total",
		Help:      "Cells treated as missing during numeric coercion",
	})

	// FilesProcessed counts inputs by terminal outcome.
	FilesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microagg",
		Name:      "files_processed_total",
		Help:      "Input files by outcome",
	}, []string{"outcome"})
)
