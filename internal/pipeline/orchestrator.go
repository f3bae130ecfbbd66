package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/internal/ingest"
	"github.com/wonny/skilltrack/internal/metrics"
	"github.com/wonny/skilltrack/internal/reconcile"
	"github.com/wonny/skilltrack/internal/telemetry"
	"github.com/wonny/skilltrack/internal/truth"
	"github.com/wonny/skilltrack/internal/warehouse"
	"github.com/wonny/skilltrack/pkg/logger"
)

// Orchestrator coordinates one pass of the tracking pipeline
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	ingester   *ingest.Ingester
	fetcher    *truth.Fetcher
	reconciler *reconcile.Reconciler
	engine     *metrics.Engine
	gateway    *warehouse.Gateway

	// Optional
	renderer contracts.Renderer
	recorder *telemetry.Recorder

	logger *logger.Logger
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	Ingest           ingest.Config
	Truth            truth.Config
	WindowDays       int  // 0 = all history
	RequireArtifacts bool // zero artifacts is fatal
	PersistRaw       bool // also append predictions and truth
	PushgatewayURL   string
}

// RunSummary aggregates every stage outcome of a run
type RunSummary struct {
	Run       contracts.RunContext
	Success   bool
	Error     error
	Stages    []contracts.StageResult
	Ingest    *ingest.Result
	Truth     *truth.Result
	Gap       reconcile.Gap
	Metrics   []contracts.MetricRecord
	Persisted map[string]int // table → rows written
	Reported  bool
	Duration  time.Duration
}

// Stage returns the result of a stage, if it ran
func (s *RunSummary) Stage(stage contracts.Stage) (contracts.StageResult, bool) {
	for _, r := range s.Stages {
		if r.Stage == stage {
			return r, true
		}
	}
	return contracts.StageResult{}, false
}

// NewOrchestrator creates a new orchestrator. renderer and recorder may be nil.
func NewOrchestrator(
	ingester *ingest.Ingester,
	fetcher *truth.Fetcher,
	reconciler *reconcile.Reconciler,
	engine *metrics.Engine,
	gateway *warehouse.Gateway,
	renderer contracts.Renderer,
	recorder *telemetry.Recorder,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		ingester:   ingester,
		fetcher:    fetcher,
		reconciler: reconciler,
		engine:     engine,
		gateway:    gateway,
		renderer:   renderer,
		recorder:   recorder,
		logger:     log.WithField("module", "pipeline"),
	}
}

// Run executes ingest → truth → reconcile → metrics → persist → report.
// Fatal: zero artifacts when required, any persistence failure, cancellation.
// Report and telemetry failures are logged only.
func (o *Orchestrator) Run(ctx context.Context, rc contracts.RunContext, cfg RunConfig) (*RunSummary, error) {
	startTime := time.Now()
	summary := &RunSummary{
		Run:       rc,
		Persisted: make(map[string]int),
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":      rc.RunID,
		"run_date":    rc.RunDate.Format(contracts.DateLayout),
		"window_days": cfg.WindowDays,
		"persist_raw": cfg.PersistRaw,
	}).Info("Starting pipeline run")

	defer o.publish(summary, cfg)

	fail := func(err error) (*RunSummary, error) {
		summary.Error = err
		summary.Duration = time.Since(startTime)
		o.logger.WithError(err).WithField("run_id", rc.RunID).Error("Pipeline run failed")
		return summary, err
	}

	// 1. Ingest
	stageStart := time.Now()
	ingested, err := o.ingester.Ingest(ctx, rc, cfg.Ingest)
	if err != nil {
		o.record(summary, contracts.StageIngest, stageStart, 0, 0, err, nil)
		return fail(fmt.Errorf("ingest: %w", err))
	}
	summary.Ingest = ingested
	o.record(summary, contracts.StageIngest, stageStart, ingested.ArtifactCount(), len(ingested.Records), nil, map[string]interface{}{
		"parsed":       ingested.Count(ingest.StatusParsed),
		"skipped":      ingested.Count(ingest.StatusSkipped),
		"errored":      ingested.Count(ingest.StatusErrored),
		"dropped_rows": ingested.DroppedRows,
		"duplicates":   ingested.Duplicates,
		"conflicts":    ingested.Conflicts,
	})

	if ingested.ArtifactCount() == 0 && cfg.RequireArtifacts {
		return fail(contracts.ErrNoArtifacts)
	}

	// 2. Truth
	stageStart = time.Now()
	req := truth.RequestFor(ingested.Records)
	realized, err := o.fetcher.Fetch(ctx, req, cfg.Truth)
	if err != nil {
		o.record(summary, contracts.StageTruth, stageStart, len(req.Symbols), 0, err, nil)
		return fail(fmt.Errorf("truth: %w", err))
	}
	summary.Truth = realized
	o.record(summary, contracts.StageTruth, stageStart, len(req.Symbols), len(realized.Records), nil, map[string]interface{}{
		"fetched": len(realized.Fetched),
		"missing": len(realized.Missing),
		"failed":  len(realized.FailedSymbols()),
		"batches": realized.Batches,
	})

	// 3. Reconcile
	stageStart = time.Now()
	rows, gap := o.reconciler.Reconcile(ingested.Records, realized.Records)
	summary.Gap = gap
	o.record(summary, contracts.StageReconcile, stageStart, len(ingested.Records), len(rows), nil, map[string]interface{}{
		"missing":  gap.Missing,
		"coverage": gap.Coverage(),
	})

	// 4. Metrics
	stageStart = time.Now()
	summary.Metrics = o.engine.Compute(rc, rows, cfg.WindowDays)
	o.record(summary, contracts.StageMetrics, stageStart, len(rows), len(summary.Metrics), nil, nil)

	// 5. Persist
	stageStart = time.Now()
	if err := o.persist(ctx, summary, ingested.Records, realized.Records, cfg.PersistRaw); err != nil {
		o.record(summary, contracts.StagePersist, stageStart, len(summary.Metrics), 0, err, nil)
		return fail(fmt.Errorf("persist: %w", err))
	}
	o.record(summary, contracts.StagePersist, stageStart, len(summary.Metrics), summary.Persisted[warehouse.MetricsTable.Name], nil, nil)

	// 6. Report
	if o.renderer != nil {
		stageStart = time.Now()
		err := o.report(ctx, summary, len(ingested.Records), len(rows))
		if err != nil {
			o.logger.WithError(err).Warn("Report rendering failed")
		}
		summary.Reported = err == nil
		o.record(summary, contracts.StageReport, stageStart, len(summary.Metrics), 0, err, nil)
	}

	summary.Success = true
	summary.Duration = time.Since(startTime)

	o.logger.WithFields(map[string]interface{}{
		"run_id":        rc.RunID,
		"predictions":   len(ingested.Records),
		"reconciled":    len(rows),
		"metric_groups": len(summary.Metrics),
		"duration":      summary.Duration.Seconds(),
	}).Info("Pipeline run completed successfully")

	return summary, nil
}

// persist appends run outputs. Metrics are always written.
func (o *Orchestrator) persist(ctx context.Context, summary *RunSummary, preds []contracts.PredictionRecord, realized []contracts.TruthRecord, raw bool) error {
	if raw {
		n, err := o.gateway.AppendPredictions(ctx, preds)
		if err != nil {
			return err
		}
		summary.Persisted[warehouse.PredictionsTable.Name] = n

		n, err = o.gateway.AppendTruth(ctx, realized)
		if err != nil {
			return err
		}
		summary.Persisted[warehouse.TruthTable.Name] = n
	}

	n, err := o.gateway.AppendMetrics(ctx, summary.Metrics)
	if err != nil {
		return err
	}
	summary.Persisted[warehouse.MetricsTable.Name] = n
	return nil
}

// report renders the stored metric history, or the current run alone when
// the store cannot be read back
func (o *Orchestrator) report(ctx context.Context, summary *RunSummary, predictions, reconciled int) error {
	history, ok, err := o.gateway.MetricHistory(ctx)
	if err != nil {
		return err
	}
	if !ok {
		history = summary.Metrics
	}

	return o.renderer.Render(ctx, contracts.ReportInput{
		Run:            summary.Run,
		Metrics:        summary.Metrics,
		History:        history,
		ReconciledRows: reconciled,
		Predictions:    predictions,
	})
}

func (o *Orchestrator) record(summary *RunSummary, stage contracts.Stage, start time.Time, in, out int, err error, meta map[string]interface{}) {
	result := contracts.StageResult{
		Stage:       stage,
		Success:     err == nil,
		InputCount:  in,
		OutputCount: out,
		Duration:    time.Since(start).Milliseconds(),
		Metadata:    meta,
	}
	if err != nil {
		result.Error = err.Error()
	}
	summary.Stages = append(summary.Stages, result)

	if o.recorder != nil {
		o.recorder.ObserveStage(stage, time.Since(start))
	}

	o.logger.WithFields(map[string]interface{}{
		"stage":   stage.String(),
		"success": result.Success,
		"in":      in,
		"out":     out,
	}).Debug(stage.Description() + " 완료")
}

// publish pushes run telemetry whether or not the run succeeded
func (o *Orchestrator) publish(summary *RunSummary, cfg RunConfig) {
	if o.recorder == nil {
		return
	}

	if in := summary.Ingest; in != nil {
		o.recorder.ObserveArtifacts(in.Count(ingest.StatusParsed), in.Count(ingest.StatusSkipped), in.Count(ingest.StatusErrored))
		o.recorder.ObserveRows(len(in.Records), in.DroppedRows, in.Duplicates)
	}
	if tr := summary.Truth; tr != nil {
		o.recorder.ObserveTruth(len(tr.Fetched), len(tr.Missing), len(tr.FailedSymbols()))
	}
	o.recorder.ObserveReconcile(summary.Gap.Matched, summary.Gap.Missing)
	o.recorder.ObserveMetrics(len(summary.Metrics))
	if summary.Success {
		o.recorder.MarkSuccess(summary.Run.RunTimestamp.Add(summary.Duration))
	}

	// 푸시 실패는 실행 결과에 영향 없음
	_ = o.recorder.Push(cfg.PushgatewayURL, summary.Run)
}

// Exit codes of the run command
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitNoArtifacts = 2
	ExitPersistence = 3
)

// ExitCode maps a run error to a process exit code
func ExitCode(err error) int {
	var pe *contracts.PersistenceError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, contracts.ErrNoArtifacts):
		return ExitNoArtifacts
	case errors.As(err, &pe):
		return ExitPersistence
	default:
		return ExitFailure
	}
}
