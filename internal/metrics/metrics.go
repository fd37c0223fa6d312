// Package metrics exposes the figures of the latest run as Prometheus gauges,
// written to a node_exporter textfile collector file.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jgoulah/waterdelta/pkg/models"
)

const namespace = "waterdelta"

// Recorder holds the gauges for one process on its own registry
type Recorder struct {
	registry *prometheus.Registry

	currentUsage    prometheus.Gauge
	averageBaseline prometheus.Gauge
	pricePerUnit    prometheus.Gauge
	additionalCost  prometheus.Gauge
	baselineYears   prometheus.Gauge
	fetchBytes      prometheus.Gauge
	redirectHops    prometheus.Gauge
	lastSuccess     prometheus.Gauge
	runs            *prometheus.CounterVec
}

// New creates a recorder with all metrics registered
func New() *Recorder {
	reg := prometheus.NewRegistry()

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	r := &Recorder{
		registry:        reg,
		currentUsage:    gauge("current_usage_ccf", "Usage on the latest bill in CCF"),
		averageBaseline: gauge("baseline_usage_ccf", "Average usage of the aligned prior-year bills in CCF"),
		pricePerUnit:    gauge("price_per_ccf_dollars", "Latest bill amount divided by its usage"),
		additionalCost:  gauge("additional_cost_dollars", "Estimated cost above the prior-year baseline"),
		baselineYears:   gauge("baseline_years", "Number of prior years that contributed a baseline"),
		fetchBytes:      gauge("fetch_bytes", "Size of the last downloaded billing history"),
		redirectHops:    gauge("fetch_redirect_hops", "Redirects followed by the last download"),
		lastSuccess:     gauge("last_success_timestamp_seconds", "Unix time of the last successful estimate"),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Runs by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		r.currentUsage,
		r.averageBaseline,
		r.pricePerUnit,
		r.additionalCost,
		r.baselineYears,
		r.fetchBytes,
		r.redirectHops,
		r.lastSuccess,
		r.runs,
	)

	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordFetch records the size and redirect count of a download
func (r *Recorder) RecordFetch(bytes int64, hops int) {
	r.fetchBytes.Set(float64(bytes))
	r.redirectHops.Set(float64(hops))
}

// RecordEstimate records the figures of a computed estimate
func (r *Recorder) RecordEstimate(e models.Estimate, at time.Time) {
	r.currentUsage.Set(e.CurrentUsage)
	r.averageBaseline.Set(e.AverageBaseline)
	r.pricePerUnit.Set(e.PricePerUnit)
	r.additionalCost.Set(e.AdditionalCost)
	r.baselineYears.Set(float64(e.Baselines))
	r.lastSuccess.Set(float64(at.Unix()))
	r.runs.WithLabelValues("success").Inc()
}

// RecordFailure counts a failed run
func (r *Recorder) RecordFailure() {
	r.runs.WithLabelValues("failure").Inc()
}

// WriteTextfile writes the current values to path in the text exposition
// format. The file is replaced atomically so the collector never reads a
// partial write.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
