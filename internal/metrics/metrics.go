// Package metrics exposes Prometheus instrumentation for the storage
// engine. Counters are partitioned by backend so hybrid routing is
// observable in production.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Writes counts successful blob writes by backend.
	Writes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelf",
		Name:      "blob_writes_total",
		Help:      "Successful blob writes by storage backend.",
	}, []string{"backend"})

	// Reads counts successful blob reads by backend.
	Reads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelf",
		Name:      "blob_reads_total",
		Help:      "Successful blob reads by storage backend.",
	}, []string{"backend"})

	// Deletes counts blob deletions by backend.
	Deletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelf",
		Name:      "blob_deletes_total",
		Help:      "Blob deletions by storage backend.",
	}, []string{"backend"})

	// BytesWritten totals payload bytes written by backend.
	BytesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelf",
		Name:      "blob_bytes_written_total",
		Help:      "Payload bytes written by storage backend.",
	}, []string{"backend"})

	// CorruptionDetected counts checksum or size mismatches caught on
	// read or verify.
	CorruptionDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shelf",
		Name:      "blob_corruption_detected_total",
		Help:      "Reads failed by checksum or size mismatch.",
	})
)
