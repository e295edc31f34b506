// Package metrics exposes Prometheus collectors for a carsnbids run.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Fetch and persist outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Recorder owns the run's collectors on a private registry. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	fetchTotal      *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	discoveredTotal prometheus.Counter
	batchRecords    prometheus.Gauge
	persistTotal    *prometheus.CounterVec
	persistBytes    prometheus.Gauge
	activeWorkers   prometheus.Gauge
}

// NewRecorder creates and registers the run collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carsnbids_fetch_total",
				Help: "Total number of auction detail fetches, labeled by status.",
			},
			[]string{"status"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "carsnbids_fetch_duration_seconds",
				Help:    "Histogram of auction detail fetch latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
			},
		),
		discoveredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "carsnbids_discovered_total",
				Help: "Total number of auction identifiers returned by discovery.",
			},
		),
		batchRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "carsnbids_batch_records",
				Help: "Number of records in the batch handed to the persister.",
			},
		),
		persistTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carsnbids_persist_total",
				Help: "Total number of batch writes, labeled by status.",
			},
			[]string{"status"},
		),
		persistBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "carsnbids_persist_bytes",
				Help: "Size of the last encoded batch object in bytes.",
			},
		),
		activeWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "carsnbids_active_workers",
				Help: "Number of collector workers currently running a fetch.",
			},
		),
	}
	r.registry.MustRegister(
		r.fetchTotal,
		r.fetchDuration,
		r.discoveredTotal,
		r.batchRecords,
		r.persistTotal,
		r.persistBytes,
		r.activeWorkers,
	)
	return r
}

// Registry exposes the underlying registry, e.g. for tests or a custom exporter.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveFetch records one detail fetch outcome.
func (r *Recorder) ObserveFetch(status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.fetchTotal.WithLabelValues(status).Inc()
	r.fetchDuration.Observe(duration.Seconds())
}

// ObserveDiscovered records the number of discovered identifiers.
func (r *Recorder) ObserveDiscovered(n int) {
	if r == nil {
		return
	}
	r.discoveredTotal.Add(float64(n))
}

// SetBatchRecords records the final batch size.
func (r *Recorder) SetBatchRecords(n int) {
	if r == nil {
		return
	}
	r.batchRecords.Set(float64(n))
}

// ObservePersist records one batch write outcome and its encoded size.
func (r *Recorder) ObservePersist(status string, size int) {
	if r == nil {
		return
	}
	r.persistTotal.WithLabelValues(status).Inc()
	if size > 0 {
		r.persistBytes.Set(float64(size))
	}
}

// IncActiveWorkers increments the active workers gauge.
func (r *Recorder) IncActiveWorkers() {
	if r == nil {
		return
	}
	r.activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func (r *Recorder) DecActiveWorkers() {
	if r == nil {
		return
	}
	r.activeWorkers.Dec()
}

// PushConfig locates a Prometheus Pushgateway.
type PushConfig struct {
	URL string
	Job string
}

// Push sends every collector to the Pushgateway, grouped by run ID.
func (r *Recorder) Push(ctx context.Context, cfg PushConfig, runID string) error {
	if r == nil || cfg.URL == "" {
		return nil
	}
	job := cfg.Job
	if job == "" {
		job = "carsnbids"
	}
	pusher := push.New(cfg.URL, job).Gatherer(r.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
