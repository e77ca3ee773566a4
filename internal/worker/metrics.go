package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry     *prometheus.Registry
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	activeSteps  prometheus.Gauge
	skippedTotal *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transformd_worker_workflow_steps_total",
			Help: "Total workflow step executions by process and final status.",
		}, []string{"process", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transformd_worker_workflow_step_duration_seconds",
			Help:    "Duration of each workflow step execution.",
			Buckets: prometheus.DefBuckets,
		}, []string{"process", "status"}),
		activeSteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transformd_worker_active_steps",
			Help: "Current number of workflow steps executing in the worker.",
		}),
		skippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transformd_worker_skipped_retries_total",
			Help: "Workflow tasks failed without retry, by reason.",
		}, []string{"reason"}),
	}

	registry.MustRegister(
		m.stepsTotal,
		m.stepDuration,
		m.activeSteps,
		m.skippedTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
