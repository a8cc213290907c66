// Package mirrormetrics provides the Prometheus metrics surface for the
// mirror's Worker and Dispatcher, following the teacher's
// pkg/metrics/prometheus naming conventions (namespaced counters/histograms
// registered once per process, nil-safe wrappers for callers).
package mirrormetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KevinZhao/s3sync/pkg/mirror"
)

// Metrics is the Prometheus-backed implementation of mirror.Metrics and
// mirror.DispatcherMetrics.
type Metrics struct {
	eventsTotal     *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	emptyPolls      prometheus.Counter
	workerExits     *prometheus.CounterVec
	partCopyTotal   *prometheus.CounterVec
	multipartAborts prometheus.Counter

	dispatchDesired  prometheus.Gauge
	dispatchLaunched prometheus.Counter
	dispatchFailures prometheus.Counter
}

// New registers the mirror's metric collectors against reg and returns a
// Metrics bound to them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_events_total",
			Help: "Total number of sync events processed, by kind and outcome.",
		}, []string{"kind", "status"}),

		eventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "mirror_event_duration_milliseconds",
			Help: "Duration of a single copy or delete event in milliseconds.",
			Buckets: []float64{
				10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000, 300000,
			},
		}, []string{"kind"}),

		emptyPolls: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_worker_empty_polls_total",
			Help: "Total number of long-poll cycles that returned no messages.",
		}),

		workerExits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_worker_exits_total",
			Help: "Total number of Worker process exits, by reason.",
		}, []string{"reason"}),

		partCopyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_copy_part_total",
			Help: "Total number of multipart part-copy attempts, by outcome.",
		}, []string{"status"}),

		multipartAborts: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_multipart_aborts_total",
			Help: "Total number of multipart uploads aborted after part failure or drain.",
		}),

		dispatchDesired: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mirror_dispatch_desired_workers",
			Help: "Desired worker count computed by the most recent Dispatcher tick.",
		}),

		dispatchLaunched: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_dispatch_launched_total",
			Help: "Total number of workers launched across all Dispatcher ticks.",
		}),

		dispatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_dispatch_launch_failures_total",
			Help: "Total number of Dispatcher ticks that ended with an incomplete launch.",
		}),
	}
}

// ObserveEvent implements mirror.Metrics.
func (m *Metrics) ObserveEvent(kind mirror.EventKind, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.eventsTotal.WithLabelValues(string(kind), status).Inc()
	m.eventDuration.WithLabelValues(string(kind)).Observe(float64(d.Milliseconds()))
}

// ObserveEmptyPoll implements mirror.Metrics.
func (m *Metrics) ObserveEmptyPoll() {
	m.emptyPolls.Inc()
}

// ObserveWorkerExit implements mirror.Metrics.
func (m *Metrics) ObserveWorkerExit(reason string) {
	m.workerExits.WithLabelValues(reason).Inc()
}

// ObservePartCopy records the outcome of one multipart part-copy attempt.
func (m *Metrics) ObservePartCopy(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.partCopyTotal.WithLabelValues(status).Inc()
}

// ObserveMultipartAbort records one multipart-upload abort.
func (m *Metrics) ObserveMultipartAbort() {
	m.multipartAborts.Inc()
}

// ObserveDesired implements mirror.DispatcherMetrics.
func (m *Metrics) ObserveDesired(desired int) {
	m.dispatchDesired.Set(float64(desired))
}

// ObserveLaunched implements mirror.DispatcherMetrics.
func (m *Metrics) ObserveLaunched(count int) {
	m.dispatchLaunched.Add(float64(count))
}

// ObserveLaunchFailure implements mirror.DispatcherMetrics.
func (m *Metrics) ObserveLaunchFailure() {
	m.dispatchFailures.Inc()
}

var (
	_ mirror.Metrics           = (*Metrics)(nil)
	_ mirror.DispatcherMetrics = (*Metrics)(nil)
)

// Server wraps an HTTP server exposing the /metrics endpoint, started and
// stopped by the caller the same way the teacher runs its metrics server
// alongside the protocol adapters.
func Server(reg *prometheus.Registry, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux}
}
