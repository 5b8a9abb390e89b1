package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task outcomes.
const (
	OutcomeProduced   = "produced"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
	OutcomePartial    = "partial"
)

// Write failure kinds.
const (
	KindTable     = "table"
	KindAttribute = "attribute"
)

// Metrics groups the collectors of an acquisition run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Tasks          *prometheus.CounterVec
	FetchLatency   prometheus.Histogram
	Segments       prometheus.Counter
	Backlog        prometheus.Gauge
	RecordsWritten prometheus.Counter
	WriteErrors    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airhist_fetch_tasks_total",
			Help: "Fetch tasks finished, by outcome.",
		}, []string{"outcome"}),
		FetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "airhist_fetch_task_duration_seconds",
			Help:    "Duration of one sensor fetch-and-transform task.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		Segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airhist_segments_total",
			Help: "Segments dispatched and joined.",
		}),
		Backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "airhist_persistence_backlog",
			Help: "Sensor records enqueued but not yet picked up by the writer.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airhist_records_written_total",
			Help: "Sensor records persisted to the store.",
		}),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airhist_write_errors_total",
			Help: "Store write failures, by kind.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{
		m.Tasks, m.FetchLatency, m.Segments, m.Backlog, m.RecordsWritten, m.WriteErrors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) TaskDone(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(outcome).Inc()
	m.FetchLatency.Observe(seconds)
}

func (m *Metrics) SegmentDone() {
	if m == nil {
		return
	}
	m.Segments.Inc()
}

func (m *Metrics) SetBacklog(n int) {
	if m == nil {
		return
	}
	m.Backlog.Set(float64(n))
}

func (m *Metrics) RecordWritten() {
	if m == nil {
		return
	}
	m.RecordsWritten.Inc()
}

func (m *Metrics) WriteFailed(kind string) {
	if m == nil {
		return
	}
	m.WriteErrors.WithLabelValues(kind).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
