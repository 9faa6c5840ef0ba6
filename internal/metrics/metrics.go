// Package metrics records per-request Prometheus metrics for one CLI run and
// can flush them to a node_exporter textfile.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/endpoint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the metrics of a single run on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	connectivityFailure *prometheus.CounterVec
	lastRun             prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "singularity_cli_requests_total",
			Help: "Total API requests by method, path, and response status.",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "singularity_cli_request_duration_seconds",
			Help:    "API round-trip duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		connectivityFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "singularity_cli_connectivity_failures_total",
			Help: "Total requests that could not reach the API.",
		}, []string{"method", "path"}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "singularity_cli_last_run_timestamp_seconds",
			Help: "Unix time the metrics were last written.",
		}),
	}
}

// Observe records one round trip. It matches client.ObserveFunc; a zero
// statusCode marks a connectivity failure. The path label is the route
// template (e.g. "/batch/{id}"), not the materialized path.
func (r *Recorder) Observe(e endpoint.Endpoint, statusCode int, elapsed time.Duration) {
	route := endpoint.Route(e)
	if statusCode == 0 {
		r.connectivityFailure.WithLabelValues(e.Method, route).Inc()
		return
	}
	r.requestsTotal.WithLabelValues(e.Method, route, strconv.Itoa(statusCode)).Inc()
	r.requestDuration.WithLabelValues(e.Method, route).Observe(elapsed.Seconds())
}

// WriteTextfile atomically writes the metrics to path in the text exposition
// format.
func (r *Recorder) WriteTextfile(path string) error {
	r.lastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
