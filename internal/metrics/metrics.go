// Package metrics exposes import counters in the Prometheus text format,
// written to a node-exporter textfile at the end of each run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
)

// Record outcomes.
const (
	OutcomeImported    = "imported"
	OutcomeUpdated     = "updated"
	OutcomeSkipped     = "skipped"
	OutcomeUnpublished = "unpublished"
	OutcomeDuplicate   = "duplicate"
	OutcomeError       = "error"
)

// Metrics provides observability for import runs. A nil *Metrics records
// nothing.
type Metrics struct {
	reg *prometheus.Registry

	// Records processed by dataset and outcome
	Records *prometheus.CounterVec

	// Geocoder outcomes by provider
	ProviderHits *prometheus.CounterVec

	RunDuration *prometheus.GaugeVec
	LastSuccess *prometheus.GaugeVec

	// Sweep results by kind: to_delete, unhandled, manual
	Sweep *prometheus.GaugeVec
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "erpsync_import_records_total",
			Help: "Dataset rows processed by outcome",
		}, []string{"dataset", "outcome"}),

		ProviderHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "erpsync_geocode_provider_calls_total",
			Help: "Geocoder provider calls by outcome",
		}, []string{"provider", "outcome"}),

		RunDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "erpsync_import_duration_seconds",
			Help: "Duration of the last import run",
		}, []string{"dataset"}),

		LastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "erpsync_import_last_success_timestamp_seconds",
			Help: "Unix time of the last successful import run",
		}, []string{"dataset"}),

		Sweep: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "erpsync_dedup_sweep_establishments",
			Help: "Establishments counted by the last duplicate sweep",
		}, []string{"kind"}),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// IncRecord counts one processed row.
func (m *Metrics) IncRecord(dataset, outcome string) {
	if m != nil {
		m.Records.WithLabelValues(dataset, outcome).Inc()
	}
}

// ObserveProvider counts one geocoder provider outcome. Its signature fits
// geocode.WithObserver.
func (m *Metrics) ObserveProvider(provider, outcome string) {
	if m != nil {
		m.ProviderHits.WithLabelValues(provider, outcome).Inc()
	}
}

// ObserveRun records the duration of a run and, when it succeeded, its end time.
func (m *Metrics) ObserveRun(dataset string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(dataset).Set(d.Seconds())
	if ok {
		m.LastSuccess.WithLabelValues(dataset).SetToCurrentTime()
	}
}

// SetSweep records the counters of a duplicate sweep.
func (m *Metrics) SetSweep(toDelete, unhandled, manual int) {
	if m == nil {
		return
	}
	m.Sweep.WithLabelValues("to_delete").Set(float64(toDelete))
	m.Sweep.WithLabelValues("unhandled").Set(float64(unhandled))
	m.Sweep.WithLabelValues("manual").Set(float64(manual))
}

// WriteTextfile writes every metric to path atomically. An empty path is a
// no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return eris.Wrapf(prometheus.WriteToTextfile(path, m.reg), "metrics: write %s", path)
}
