package metrics

import (
	"sort"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
)

// =============================================================================
// Metrics Engine
// =============================================================================

// GroupKey identifies a metric group
type GroupKey struct {
	Universe  contracts.Universe
	ModelName string
	Version   string
}

// Engine computes skill metrics per (universe, model, version)
// ⭐ SSOT: 스킬 지표 계산은 여기서만
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates a new metrics Engine
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{logger: log.WithField("module", "metrics")}
}

// Compute returns one MetricRecord per group over rows inside the window.
// windowDays 0 uses all history; otherwise rows dated within
// (RunDate - windowDays, RunDate] are used. An empty input yields exactly one
// degenerate record.
func (e *Engine) Compute(rc contracts.RunContext, rows []contracts.ReconciledRow, windowDays int) []contracts.MetricRecord {
	rows = InWindow(rows, rc.RunDate, windowDays)
	if len(rows) == 0 {
		e.logger.WithField("window_days", windowDays).Warn("No reconciled rows; emitting degenerate metric record")
		return []contracts.MetricRecord{Degenerate(rc, windowDays)}
	}

	groups := make(map[GroupKey][]contracts.ReconciledRow)
	for _, r := range rows {
		k := GroupKey{Universe: r.Universe, ModelName: r.ModelName, Version: r.Version}
		groups[k] = append(groups[k], r)
	}

	keys := make([]GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Universe != b.Universe {
			return a.Universe < b.Universe
		}
		if a.ModelName != b.ModelName {
			return a.ModelName < b.ModelName
		}
		return a.Version < b.Version
	})

	out := make([]contracts.MetricRecord, 0, len(keys))
	for _, k := range keys {
		rec := computeGroup(groups[k])
		rec.RunDate = rc.RunDate
		rec.RunTimestamp = rc.RunTimestamp
		rec.Universe = k.Universe
		rec.ModelName = k.ModelName
		rec.Version = k.Version
		rec.WindowDays = windowDays
		out = append(out, rec)
	}

	e.logger.WithFields(map[string]interface{}{
		"rows":        len(rows),
		"groups":      len(out),
		"window_days": windowDays,
	}).Info("Metrics computed")
	return out
}

func computeGroup(rows []contracts.ReconciledRow) contracts.MetricRecord {
	pred := make([]float64, len(rows))
	actual := make([]float64, len(rows))
	dates := make([]time.Time, len(rows))
	for i, r := range rows {
		pred[i], actual[i], dates[i] = r.Predicted, r.Actual, r.Date
	}

	return contracts.MetricRecord{
		SampleCount:         len(rows),
		RMSE:                RMSE(pred, actual),
		MAPE:                MAPE(pred, actual),
		Correlation:         Correlation(pred, actual),
		DirectionalAccuracy: DirectionalAccuracy(pred, actual),
		RealizedSharpe:      Sharpe(DailyMeans(dates, actual)),
		PredictedSharpe:     Sharpe(DailyMeans(dates, pred)),
	}
}

// Degenerate is the single record emitted for an empty run
func Degenerate(rc contracts.RunContext, windowDays int) contracts.MetricRecord {
	return contracts.MetricRecord{
		RunDate:      rc.RunDate,
		Universe:     contracts.UniverseAll,
		ModelName:    string(contracts.UniverseAll),
		Version:      string(contracts.UniverseAll),
		WindowDays:   windowDays,
		RunTimestamp: rc.RunTimestamp,
	}
}

// InWindow keeps rows dated in (runDate - windowDays, runDate].
// windowDays 0 keeps every row.
func InWindow(rows []contracts.ReconciledRow, runDate time.Time, windowDays int) []contracts.ReconciledRow {
	if windowDays <= 0 {
		return rows
	}
	from := runDate.AddDate(0, 0, -windowDays)
	out := make([]contracts.ReconciledRow, 0, len(rows))
	for _, r := range rows {
		if r.Date.After(from) && !r.Date.After(runDate) {
			out = append(out, r)
		}
	}
	return out
}
