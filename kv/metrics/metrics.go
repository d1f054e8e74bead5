package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MutationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinydoc",
			Subsystem: "write",
			Name:      "mutations_total",
			Help:      "Counter of applied local mutations.",
		}, []string{"collection", "kind"})

	IndexEntryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinydoc",
			Subsystem: "index",
			Name:      "entry_changes_total",
			Help:      "Counter of attribute and price entries written to or removed from index partitions.",
		}, []string{"collection", "partition", "index", "op"})

	PartitionGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tinydoc",
			Subsystem: "index",
			Name:      "partitions",
			Help:      "Number of live index partitions.",
		}, []string{"collection", "partition"})

	TxnCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinydoc",
			Subsystem: "txn",
			Name:      "txns_total",
			Help:      "Counter of finished transactions.",
		}, []string{"collection", "result"})

	TxnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tinydoc",
			Subsystem: "txn",
			Name:      "commit_duration_seconds",
			Help:      "Bucketed histogram of transaction commit time (s), index replay included.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 13),
		}, []string{"collection"})

	FlushCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinydoc",
			Subsystem: "buffer",
			Name:      "flushes_total",
			Help:      "Counter of buffer flushes.",
		}, []string{"collection", "result"})

	FlushedParts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinydoc",
			Subsystem: "buffer",
			Name:      "flushed_parts_total",
			Help:      "Counter of record parts written to durable storage.",
		}, []string{"collection"})
)

func init() {
	prometheus.MustRegister(MutationCounter)
	prometheus.MustRegister(IndexEntryCounter)
	prometheus.MustRegister(PartitionGauge)
	prometheus.MustRegister(TxnCounter)
	prometheus.MustRegister(TxnDuration)
	prometheus.MustRegister(FlushCounter)
	prometheus.MustRegister(FlushedParts)
}
