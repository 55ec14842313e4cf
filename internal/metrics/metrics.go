// Package metrics exposes scheduler counters and gauges to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run results used as label values.
const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultSpawnFailed = "spawn_failed"
)

// Metrics holds the scheduler's collectors.
type Metrics struct {
	registry        prometheus.Registerer
	ticksTotal      prometheus.Counter
	reloadFailures  prometheus.Counter
	persistFailures prometheus.Counter
	invalidRules    prometheus.Gauge
	tasksTotal      prometheus.Gauge
	tasksActive     prometheus.Gauge
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	lastTick        prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		ticksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_ticks_total",
				Help:      "Number of scheduler ticks evaluated",
			},
		),
		reloadFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_reload_failures_total",
				Help:      "Number of ticks that kept the previous registry because reloading failed",
			},
		),
		persistFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_persist_failures_total",
				Help:      "Number of failed last-run persists",
			},
		),
		invalidRules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schedule_invalid_rules",
				Help:      "Number of tasks whose recurrence failed to parse on the last reload",
			},
		),
		tasksTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_tasks",
				Help:      "Number of registered tasks",
			},
		),
		tasksActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_tasks_active",
				Help:      "Number of active tasks",
			},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_runs_total",
				Help:      "Number of task runs by result",
			},
			[]string{"result"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_run_duration_seconds",
				Help:      "Duration of task runs",
				Buckets:   []float64{.01, .1, .5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"result"},
		),
		lastTick: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_last_tick_timestamp_seconds",
				Help:      "Unix time of the last evaluated tick",
			},
		),
	}

	reg.MustRegister(
		m.ticksTotal,
		m.reloadFailures,
		m.persistFailures,
		m.invalidRules,
		m.tasksTotal,
		m.tasksActive,
		m.runsTotal,
		m.runDuration,
		m.lastTick,
	)

	return m
}

func (m *Metrics) RecordTick(at time.Time) {
	m.ticksTotal.Inc()
	m.lastTick.Set(float64(at.Unix()))
}

func (m *Metrics) RecordReloadFailure() {
	m.reloadFailures.Inc()
}

func (m *Metrics) RecordPersistFailure() {
	m.persistFailures.Inc()
}

// RecordRun counts a run. Spawn failures have no meaningful duration and
// are only counted.
func (m *Metrics) RecordRun(result string, duration time.Duration) {
	m.runsTotal.WithLabelValues(result).Inc()
	if result != ResultSpawnFailed {
		m.runDuration.WithLabelValues(result).Observe(duration.Seconds())
	}
}

func (m *Metrics) SetRegistrySize(total, active, invalid int) {
	m.tasksTotal.Set(float64(total))
	m.tasksActive.Set(float64(active))
	m.invalidRules.Set(float64(invalid))
}
