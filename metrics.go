package newton

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the simulation counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ticks         prometheus.Counter
	simulatedTime prometheus.Counter
	tickDuration  prometheus.Histogram
	moves         *prometheus.CounterVec
	tickErrors    prometheus.Counter
	locked        prometheus.Gauge
	stopped       prometheus.Gauge
	bodies        *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newton",
			Name:      "ticks_total",
			Help:      "Total number of frames advanced",
		}),
		simulatedTime: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newton",
			Name:      "simulated_seconds_total",
			Help:      "Scaled frame time fed to the frame advancer",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "newton",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent advancing one frame",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newton",
			Name:      "body_moves_total",
			Help:      "Total number of body positions written to the host",
		}, []string{"class"}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newton",
			Name:      "tick_errors_total",
			Help:      "Ticks which failed and stopped the simulation",
		}),
		locked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "newton",
			Name:      "observer_locked",
			Help:      "1 while the observer is locked in a body's orbit",
		}),
		stopped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "newton",
			Name:      "simulation_stopped",
			Help:      "1 once a tick failed; the session must be reloaded",
		}),
		bodies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "newton",
			Name:      "bodies",
			Help:      "Registered bodies by class",
		}, []string{"class"}),
	}
	for _, c := range []prometheus.Collector{m.ticks, m.simulatedTime, m.tickDuration, m.moves, m.tickErrors, m.locked, m.stopped, m.bodies} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ticked(delta float64) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	if delta > 0 {
		m.simulatedTime.Add(delta)
	}
}

func (m *Metrics) observeTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) moved(c Class) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.tickErrors.Inc()
	m.stopped.Set(1)
}

func (m *Metrics) setLocked(locked bool) {
	if m == nil {
		return
	}
	if locked {
		m.locked.Set(1)
	} else {
		m.locked.Set(0)
	}
}

func (m *Metrics) countBodies(r *Registry) {
	if m == nil {
		return
	}
	m.bodies.WithLabelValues(Planet.String()).Set(float64(len(r.Planets())))
	m.bodies.WithLabelValues(Moon.String()).Set(float64(len(r.Moons())))
}
