// Package metrics records TPM request and module outcomes as Prometheus
// metrics. A CLI run is short-lived, so metrics are exported by writing a
// node_exporter textfile rather than serving /metrics.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Module outcomes.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

var (
	defaultRecorder *Recorder
	defaultOnce     sync.Once
)

// Recorder owns a registry with the tpmops collectors.
type Recorder struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	results  *prometheus.CounterVec
}

// NewRecorder returns a recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tpmops_http_requests_total",
			Help: "TPM API requests by method and status code (0 when no response was received)",
		}, []string{"method", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tpmops_http_request_duration_seconds",
			Help:    "TPM API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tpmops_module_results_total",
			Help: "Module runs by resource, state and outcome",
		}, []string{"resource", "state", "outcome"}),
	}
}

// Default returns the process-wide recorder, creating it on first use.
func Default() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewRecorder()
	})
	return defaultRecorder
}

// ObserveRequest implements tpm.Observer.
func (r *Recorder) ObserveRequest(method string, status int, elapsed time.Duration) {
	r.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveResult counts one module run.
func (r *Recorder) ObserveResult(resource, state, outcome string) {
	r.results.WithLabelValues(resource, state, outcome).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
