// Package metrics counts the work of a run with Prometheus collectors on a
// private registry and optionally pushes them to a Pushgateway when the run
// ends. A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder holds the run's collectors.
type Recorder struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	rows     *prometheus.CounterVec // mince_rows_imported_total
	batches  prometheus.Counter     // mince_batches_total
	steps    *prometheus.CounterVec // mince_steps_total
	duration *prometheus.SummaryVec // mince_step_duration_seconds
}

// New builds a recorder. gatewayURL may be empty, in which case Push does
// nothing.
func New(jobName, gatewayURL string) (*Recorder, error) {
	if jobName == "" {
		jobName = "mince"
	}
	reg := prometheus.NewRegistry()

	rows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mince_rows_imported_total",
			Help: "Rows committed to store tables, partitioned by table.",
		},
		[]string{"table"},
	)
	batches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mince_batches_total",
			Help: "Import batches committed.",
		},
	)
	steps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mince_steps_total",
			Help: "Imports and queries executed, partitioned by kind and status.",
		},
		[]string{"kind", "status"},
	)
	duration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "mince_step_duration_seconds",
			Help:       "Duration of imports and queries in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"kind", "status"},
	)

	for _, c := range []prometheus.Collector{rows, batches, steps, duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}

	return &Recorder{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        reg,
		rows:       rows,
		batches:    batches,
		steps:      steps,
		duration:   duration,
	}, nil
}

// Registry returns the private registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Batch records a committed import batch. Its signature matches
// database.ProgressFunc.
func (r *Recorder) Batch(table string, rows int) {
	if r == nil {
		return
	}
	r.batches.Inc()
	r.rows.WithLabelValues(table).Add(float64(rows))
}

// Step records a finished import ("import") or query ("query").
func (r *Recorder) Step(kind string, started time.Time, err error) {
	if r == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	r.steps.WithLabelValues(kind, status).Inc()
	r.duration.WithLabelValues(kind, status).Observe(time.Since(started).Seconds())
}

// Push sends the registry to the Pushgateway, grouped by job and run id.
func (r *Recorder) Push(runID string) error {
	if r == nil || r.gatewayURL == "" {
		return nil
	}
	p := push.New(r.gatewayURL, r.jobName).Gatherer(r.reg)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	if err := p.Push(); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", r.gatewayURL, err)
	}
	return nil
}
