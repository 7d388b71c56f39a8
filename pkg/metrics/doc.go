/*
Package metrics provides Prometheus metrics collection and exposition for
the storage engine.

The metrics package defines and registers metrics using the Prometheus
client library, providing observability into record-store size, query
latency, blob-store usage, actor mailbox depth, and replication progress.
Metrics are exposed via an HTTP endpoint for scraping by Prometheus
servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Categories               │          │
	│  │                                              │          │
	│  │  Store: documents, sequence, transactions   │          │
	│  │  RevTree: prunes, conflicts                 │          │
	│  │  Blob: count, bytes, write duration         │          │
	│  │  Query: duration, outcome by store          │          │
	│  │  Actor: mailbox depth, messages processed   │          │
	│  │  Sync: active replications, pushed/pulled,  │          │
	│  │        BLIP frames, checkpoint saves        │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Handler: metrics.Handler()                │          │
	│  │  - Format: Prometheus text exposition        │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Collector

A Collector polls a StatsSource (database.NewStats(db) provides one) every
15 seconds and updates the gauge metrics that can't be observed inline
(document counts, current sequence, blob totals). The counters and
histograms (transactions, queries, blob writes, revisions pushed/pulled)
are defined and registered here, but no other package in this module
updates them.

# Usage

	// No init call is needed: the metrics are registered on import.

	http.Handle("/metrics", metrics.Handler())

	collector := metrics.NewCollector(database.NewStats(db))
	collector.Start()
	defer collector.Stop()

	timer := metrics.NewTimer()
	// ... run a query ...
	timer.ObserveDurationVec(metrics.QueryDuration, storeName)

# Health

RegisterComponent/UpdateComponent track liveness of the database,
blobstore, and replicator subsystems for the /health, /ready, and /live
HTTP handlers.
*/
package metrics
