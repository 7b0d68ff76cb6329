// Package metrics records batch conversion counters on a private Prometheus
// registry and writes them in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "anvil2snbt"

// Recorder is safe for concurrent use. A nil *Recorder records nothing.
type Recorder struct {
	registry   *prometheus.Registry
	chunks     *prometheus.CounterVec
	chunkBytes *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_processed_total",
			Help:      "Chunks processed, by operation and result.",
		}, []string{"operation", "result"}),
		chunkBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_payload_bytes",
			Help:      "Compressed chunk payload sizes.",
			Buckets:   prometheus.ExponentialBuckets(512, 4, 8),
		}, []string{"operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of whole conversions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	r.registry.MustRegister(r.chunks, r.chunkBytes, r.duration)
	return r
}

// ChunkProcessed counts one chunk. ok selects the "ok" or "failed" result
// label; payloadBytes is only observed for successful chunks.
func (r *Recorder) ChunkProcessed(operation string, ok bool, payloadBytes int) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.chunks.WithLabelValues(operation, result).Inc()
	if ok {
		r.chunkBytes.WithLabelValues(operation).Observe(float64(payloadBytes))
	}
}

func (r *Recorder) OperationDone(operation string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the current values to path, replacing it atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
