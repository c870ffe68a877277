package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "class"

// Metrics is safe to use through a nil pointer, which disables collection.
type Metrics struct {
	events      *prometheus.CounterVec
	errors      *prometheus.CounterVec
	mediaCalls  *prometheus.HistogramVec
	disconnects prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "events_total",
			Help:      "Inbound signaling events by name.",
		}, []string{"event"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "errors_total",
			Help:      "Signaling errors sent to clients by code.",
		}, []string{"code"}),
		mediaCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "call_duration_seconds",
			Help:      "Latency of media engine calls.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op", "result"}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signaling",
			Name:      "disconnects_total",
			Help:      "Connections reconciled after loss.",
		}),
	}
	reg.MustRegister(m.events, m.errors, m.mediaCalls, m.disconnects)
	return m
}

// Gauges sample live state at scrape time.
type Gauges struct {
	Rooms       func() int
	Waiting     func() int
	Connections func() int
}

func RegisterGauges(reg prometheus.Registerer, g Gauges) {
	gauge := func(subsystem, name, help string, f func() int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(f()) })
	}
	if g.Rooms != nil {
		reg.MustRegister(gauge("room", "live", "Classes currently in session.", g.Rooms))
	}
	if g.Waiting != nil {
		reg.MustRegister(gauge("room", "waiting_connections", "Connections waiting for a teacher.", g.Waiting))
	}
	if g.Connections != nil {
		reg.MustRegister(gauge("signaling", "connections", "Open signaling connections.", g.Connections))
	}
}

func (m *Metrics) EventReceived(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}

func (m *Metrics) ErrorSent(code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(code).Inc()
}

func (m *Metrics) Disconnected() {
	if m == nil {
		return
	}
	m.disconnects.Inc()
}

func (m *Metrics) ObserveMediaCall(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mediaCalls.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}
