// Package metrics exposes bridge counters to Prometheus:
//
//	bridge_cycles_total{outcome}      poll loop cycles by outcome
//	bridge_commands_total{verb}       commands appended to the log
//	bridge_rejections_total{code}     commands the validator refused
//	bridge_snapshot_errors_total{kind} unavailable or malformed reads
//	bridge_breaker_trips_total        circuit breaker trips
//	bridge_breaker_tripped            1 while the breaker is tripped
//	bridge_next_command_id            id the next append will use
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	reg *prometheus.Registry

	cycles         *prometheus.CounterVec
	commands       *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	snapshotErrors *prometheus.CounterVec
	trips          prometheus.Counter
	tripped        prometheus.Gauge
	nextID         prometheus.Gauge
}

// New registers the bridge collectors, plus Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bridge_cycles_total", Help: "Poll loop cycles by outcome"},
			[]string{"outcome"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bridge_commands_total", Help: "Commands appended to the command log"},
			[]string{"verb"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bridge_rejections_total", Help: "Commands rejected by the validator"},
			[]string{"code"},
		),
		snapshotErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bridge_snapshot_errors_total", Help: "Snapshot reads that failed"},
			[]string{"kind"},
		),
		trips: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "bridge_breaker_trips_total", Help: "Circuit breaker trips"},
		),
		tripped: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "bridge_breaker_tripped", Help: "1 while the circuit breaker is tripped"},
		),
		nextID: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "bridge_next_command_id", Help: "Id the next appended command will get"},
		),
	}
	m.reg.MustRegister(
		m.cycles, m.commands, m.rejections, m.snapshotErrors,
		m.trips, m.tripped, m.nextID,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Cycle(outcome string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Command(verb string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(verb).Inc()
}

func (m *Metrics) Rejection(code string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(code).Inc()
}

func (m *Metrics) SnapshotError(kind string) {
	if m == nil {
		return
	}
	m.snapshotErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Trip() {
	if m == nil {
		return
	}
	m.trips.Inc()
}

func (m *Metrics) Tripped(on bool) {
	if m == nil {
		return
	}
	if on {
		m.tripped.Set(1)
	} else {
		m.tripped.Set(0)
	}
}

func (m *Metrics) NextID(id int64) {
	if m == nil {
		return
	}
	m.nextID.Set(float64(id))
}
