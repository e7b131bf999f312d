// Package metrics provides Prometheus metrics for the Fern pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks pipeline runs by outcome
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by outcome",
		},
		[]string{"status"},
	)

	// StageDuration tracks how long each pipeline stage takes
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	// NodesWrittenTotal tracks node merges by label
	NodesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "load",
			Name:      "nodes_written_total",
			Help:      "Total number of node records merged into the graph by label",
		},
		[]string{"label"},
	)

	// RelationshipsWrittenTotal tracks relationship merges by type
	RelationshipsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "load",
			Name:      "relationships_written_total",
			Help:      "Total number of relationship records merged into the graph by type",
		},
		[]string{"type"},
	)

	// LoadBatchesTotal tracks committed batches by kind
	LoadBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "load",
			Name:      "batches_total",
			Help:      "Total number of committed load batches by kind",
		},
		[]string{"kind"},
	)

	// LoadBatchDuration tracks per-batch write transaction duration
	LoadBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "load",
			Name:      "batch_duration_seconds",
			Help:      "Duration of single batch write transactions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	// ReferentialWarningsTotal tracks orphaned references dropped during transform
	ReferentialWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "transform",
			Name:      "referential_warnings_total",
			Help:      "Total number of relationships dropped for orphaned foreign-key references",
		},
		[]string{"type"},
	)

	// RowsExtractedTotal tracks rows read from the relational store by table
	RowsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "extract",
			Name:      "rows_total",
			Help:      "Total number of rows extracted from the relational store by table",
		},
		[]string{"table"},
	)
)
