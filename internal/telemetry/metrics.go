// Package telemetry exposes pipeline metrics (Prometheus) and stage spans
// (OpenTelemetry).
package telemetry

import (
	"context"
	"time"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "winequality"

// Metrics holds the pipeline collectors on a private registry, so several
// pipelines in one process (tests) do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	DatasetRows   *prometheus.GaugeVec
	Evaluation    *prometheus.GaugeVec
	RunsTotal     *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		DatasetRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_rows",
				Help:      "Rows per dataset subset",
			},
			[]string{"subset"},
		),
		Evaluation: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "evaluation_metric",
				Help:      "Evaluation metrics of the last trained model",
			},
			[]string{"metric"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
	}
	m.Registry.MustRegister(m.StageDuration, m.DatasetRows, m.Evaluation, m.RunsTotal)
	return m
}

// ObserveStage records how long stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// SetRows records the row count of a dataset subset ("all", "train", "test").
func (m *Metrics) SetRows(subset string, n int) {
	m.DatasetRows.WithLabelValues(subset).Set(float64(n))
}

// SetEvaluation records evaluation metrics by name.
func (m *Metrics) SetEvaluation(values map[string]float64) {
	for k, v := range values {
		m.Evaluation.WithLabelValues(k).Set(v)
	}
}

// RunCompleted counts one pipeline run with its outcome.
func (m *Metrics) RunCompleted(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// Push sends the registry to a Prometheus Pushgateway under job. An empty
// url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx)
	return errors.Wrapf(err, "push metrics to %s", url)
}
