package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spectrum_watch"

// Event lifecycle labels
const (
	EventOpened     = "opened"
	EventClosed     = "closed"
	EventIncomplete = "incomplete"
)

// Metrics holds the Prometheus collectors for the monitoring pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter   // Completed scan cycles
	cycleDuration prometheus.Histogram // Wall time of one scan cycle
	attempts      prometheus.Counter   // Acquisition attempts, successful or not
	failures      *prometheus.CounterVec
	events        *prometheus.CounterVec
	recording     prometheus.Gauge // Segments currently recording
	reconciled    prometheus.Counter
	segmentPower  *prometheus.GaugeVec // Last mean power per segment (by 'frequency')
	baseline      *prometheus.GaugeVec // Current baseline per segment (by 'frequency')
}

// New registers every collector on a fresh registry together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of completed scan cycles",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full scan cycle",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		attempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisition_attempts_total",
			Help:      "Total number of acquisition attempts",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisition_failures_total",
			Help:      "Failed acquisitions by outcome (retryable, fatal)",
		}, []string{"outcome"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Surge events by lifecycle state (opened, closed, incomplete)",
		}, []string{"state"}),
		recording: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording_segments",
			Help:      "Number of segments with an open recording",
		}),
		reconciled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waterfall_reconciled_rows_total",
			Help:      "Waterfall rows truncated or padded to the buffer width",
		}),
		segmentPower: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segment_power_db",
			Help:      "Last mean power of a segment in dB",
		}, []string{"frequency"}),
		baseline: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segment_baseline_db",
			Help:      "Adaptive baseline of a segment in dB",
		}, []string{"frequency"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) AcquisitionAttempt() {
	if m == nil {
		return
	}
	m.attempts.Inc()
}

func (m *Metrics) AcquisitionFailure(outcome string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Event(state string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(state).Inc()
	switch state {
	case EventOpened:
		m.recording.Inc()
	case EventClosed, EventIncomplete:
		m.recording.Dec()
	}
}

func (m *Metrics) RowReconciled() {
	if m == nil {
		return
	}
	m.reconciled.Inc()
}

func (m *Metrics) SegmentPower(frequency, power, baseline float64) {
	if m == nil {
		return
	}
	label := strconv.FormatFloat(frequency, 'f', 0, 64)
	m.segmentPower.WithLabelValues(label).Set(power)
	m.baseline.WithLabelValues(label).Set(baseline)
}
