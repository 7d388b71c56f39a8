package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Record store metrics
	DocumentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "veyradb_documents_total",
			Help: "Total number of live documents by key store",
		},
		[]string{"store"},
	)

	SequenceCurrent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "veyradb_sequence_current",
			Help: "Most recently assigned sequence number by key store",
		},
		[]string{"store"},
	)

	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyradb_transactions_total",
			Help: "Total number of transactions by outcome",
		},
		[]string{"outcome"},
	)

	TransactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "veyradb_transaction_duration_seconds",
			Help:    "Time a transaction was held open, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Revision tree metrics
	RevisionsPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "veyradb_revisions_pruned_total",
			Help: "Total number of revisions pruned from revision trees",
		},
	)

	ConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "veyradb_conflicts_total",
			Help: "Total number of documents found with more than one leaf revision",
		},
	)

	// Blob store metrics
	BlobsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "veyradb_blobs_total",
			Help: "Total number of blobs in the attachment store",
		},
	)

	BlobBytesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "veyradb_blob_bytes_total",
			Help: "Total on-disk size of the attachment store in bytes",
		},
	)

	BlobWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "veyradb_blob_write_duration_seconds",
			Help:    "Time taken to write and install a blob, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Query metrics
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "veyradb_query_duration_seconds",
			Help:    "Query execution duration in seconds by store",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyradb_queries_total",
			Help: "Total number of queries executed by store and outcome",
		},
		[]string{"store", "outcome"},
	)

	// Actor runtime metrics
	ActorMailboxDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "veyradb_actor_mailbox_depth",
			Help: "Number of messages queued in an actor's mailbox",
		},
		[]string{"actor"},
	)

	ActorMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyradb_actor_messages_total",
			Help: "Total number of messages processed by an actor",
		},
		[]string{"actor"},
	)

	// Replication metrics
	ReplicationsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "veyradb_replications_total",
			Help: "Number of active replications by activity level",
		},
		[]string{"activity"},
	)

	RevisionsPushedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "veyradb_revisions_pushed_total",
			Help: "Total number of revisions sent to peers",
		},
	)

	RevisionsPulledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "veyradb_revisions_pulled_total",
			Help: "Total number of revisions received from peers",
		},
	)

	BlipFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyradb_blip_frames_total",
			Help: "Total number of BLIP frames by direction",
		},
		[]string{"direction"},
	)

	CheckpointSaveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "veyradb_checkpoint_save_duration_seconds",
			Help:    "Time taken to persist a replication checkpoint, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		DocumentsTotal,
		SequenceCurrent,
		TransactionsTotal,
		TransactionDuration,
		RevisionsPrunedTotal,
		ConflictsTotal,
		BlobsTotal,
		BlobBytesTotal,
		BlobWriteDuration,
		QueryDuration,
		QueriesTotal,
		ActorMailboxDepth,
		ActorMessagesTotal,
		ReplicationsTotal,
		RevisionsPushedTotal,
		RevisionsPulledTotal,
		BlipFramesTotal,
		CheckpointSaveDuration,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
