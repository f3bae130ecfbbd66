package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
)

// Job is the pushgateway job name
const Job = "skilltrack"

// Recorder collects per-run gauges on a private registry.
// A batch job has no scrape endpoint, so values are pushed once at the end.
type Recorder struct {
	registry *prometheus.Registry
	logger   *logger.Logger

	artifacts     *prometheus.GaugeVec
	rows          *prometheus.GaugeVec
	truthSymbols  *prometheus.GaugeVec
	reconciled    prometheus.Gauge
	missingTruth  prometheus.Gauge
	metricGroups  prometheus.Gauge
	stageDuration *prometheus.GaugeVec
	lastSuccess   prometheus.Gauge
}

// NewRecorder registers all run gauges
func NewRecorder(log *logger.Logger) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		logger:   log.WithField("module", "telemetry"),
		artifacts: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skilltrack_artifacts",
			Help: "Prediction artifacts seen in the last run by status",
		}, []string{"status"}),
		rows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skilltrack_prediction_rows",
			Help: "Prediction rows in the last run by outcome",
		}, []string{"outcome"}),
		truthSymbols: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skilltrack_truth_symbols",
			Help: "Symbols requested from the price source by outcome",
		}, []string{"outcome"}),
		reconciled: f.NewGauge(prometheus.GaugeOpts{
			Name: "skilltrack_reconciled_rows",
			Help: "Predictions matched with a realized return",
		}),
		missingTruth: f.NewGauge(prometheus.GaugeOpts{
			Name: "skilltrack_missing_truth_rows",
			Help: "Predictions without a realized return",
		}),
		metricGroups: f.NewGauge(prometheus.GaugeOpts{
			Name: "skilltrack_metric_groups",
			Help: "Metric records produced by the last run",
		}),
		stageDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skilltrack_stage_duration_seconds",
			Help: "Wall time of each pipeline stage",
		}, []string{"stage"}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "skilltrack_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}
}

// Registry exposes the private registry (tests, custom gatherers)
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveArtifacts records per-status file counts
func (r *Recorder) ObserveArtifacts(parsed, skipped, errored int) {
	r.artifacts.WithLabelValues("parsed").Set(float64(parsed))
	r.artifacts.WithLabelValues("skipped").Set(float64(skipped))
	r.artifacts.WithLabelValues("errored").Set(float64(errored))
}

// ObserveRows records ingested and discarded prediction rows
func (r *Recorder) ObserveRows(ingested, dropped, duplicates int) {
	r.rows.WithLabelValues("ingested").Set(float64(ingested))
	r.rows.WithLabelValues("dropped").Set(float64(dropped))
	r.rows.WithLabelValues("duplicate").Set(float64(duplicates))
}

// ObserveTruth records price fetch outcomes
func (r *Recorder) ObserveTruth(fetched, missing, failed int) {
	r.truthSymbols.WithLabelValues("fetched").Set(float64(fetched))
	r.truthSymbols.WithLabelValues("missing").Set(float64(missing))
	r.truthSymbols.WithLabelValues("failed").Set(float64(failed))
}

// ObserveReconcile records matched and unmatched prediction rows
func (r *Recorder) ObserveReconcile(matched, missing int) {
	r.reconciled.Set(float64(matched))
	r.missingTruth.Set(float64(missing))
}

// ObserveMetrics records how many metric groups were produced
func (r *Recorder) ObserveMetrics(groups int) {
	r.metricGroups.Set(float64(groups))
}

// ObserveStage records the wall time of a stage
func (r *Recorder) ObserveStage(stage contracts.Stage, d time.Duration) {
	r.stageDuration.WithLabelValues(string(stage)).Set(d.Seconds())
}

// MarkSuccess stamps the completion time of a successful run
func (r *Recorder) MarkSuccess(at time.Time) {
	r.lastSuccess.Set(float64(at.Unix()))
}

// Push sends the registry to a pushgateway. Empty url is a no-op.
// Failures are logged and returned but never abort a run.
func (r *Recorder) Push(url string, rc contracts.RunContext) error {
	if url == "" {
		return nil
	}

	err := push.New(url, Job).
		Gatherer(r.registry).
		Grouping("run_date", rc.RunDate.Format(contracts.DateLayout)).
		Push()
	if err != nil {
		r.logger.WithError(err).WithField("url", url).Warn("Pushgateway push failed")
		return fmt.Errorf("push metrics: %w", err)
	}

	r.logger.WithField("url", url).Debug("Metrics pushed")
	return nil
}
