package reconcile

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
)

var d2 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func pred(u contracts.Universe, sym string, v float64) contracts.PredictionRecord {
	return contracts.PredictionRecord{Date: d2, Universe: u, Symbol: sym, PredLogRet: v, ModelName: "m1", Version: "v1"}
}

func truth(u contracts.Universe, sym string, logRet float64) contracts.TruthRecord {
	return contracts.TruthRecord{Date: d2, Universe: u, Symbol: sym, Close: 101, ArithRet: math.Exp(logRet) - 1, LogRet: logRet}
}

func TestReconcileScenario(t *testing.T) {
	r := NewReconciler(logger.Nop())
	rows, gap := r.Reconcile(
		[]contracts.PredictionRecord{pred(contracts.UniverseSP500, "AAA", 0.01)},
		[]contracts.TruthRecord{truth(contracts.UniverseSP500, "AAA", math.Log(101.0/100.0))},
	)

	require.Len(t, rows, 1)
	assert.Equal(t, 0.01, rows[0].Predicted)
	assert.InDelta(t, 0.00995, rows[0].Actual, 1e-5)
	assert.Equal(t, 101.0, rows[0].Close)
	assert.Equal(t, 1, gap.Matched)
	assert.Equal(t, 1.0, gap.Coverage())
}

func TestReconcileMissingTruthDoesNotFail(t *testing.T) {
	r := NewReconciler(logger.Nop())
	rows, gap := r.Reconcile(
		[]contracts.PredictionRecord{
			pred(contracts.UniverseSP500, "AAA", 0.01),
			pred(contracts.UniverseSP500, "ZZZ", 0.02),
			pred(contracts.UniverseSP500, "ZZZ", 0.03),
		},
		[]contracts.TruthRecord{truth(contracts.UniverseSP500, "AAA", 0.01)},
	)

	require.Len(t, rows, 1)
	for _, row := range rows {
		assert.NotEqual(t, "ZZZ", row.Symbol)
	}
	assert.Equal(t, 2, gap.Missing)
	assert.Equal(t, 2, gap.MissingBySymbol["ZZZ"])
	assert.Equal(t, []string{"ZZZ"}, gap.WorstSymbols(3))
	assert.InDelta(t, 1.0/3.0, gap.Coverage(), 1e-12)
}

func TestReconcileKeepsUniversesDistinct(t *testing.T) {
	r := NewReconciler(logger.Nop())
	rows, _ := r.Reconcile(
		[]contracts.PredictionRecord{
			pred(contracts.UniverseSP500, "AAPL", 0.01),
			pred(contracts.UniverseNASDAQ100, "AAPL", 0.02),
		},
		[]contracts.TruthRecord{
			truth(contracts.UniverseSP500, "AAPL", 0.005),
			truth(contracts.UniverseNASDAQ100, "AAPL", 0.005),
		},
	)

	require.Len(t, rows, 2)
	assert.Equal(t, contracts.UniverseSP500, rows[0].Universe)
	assert.Equal(t, contracts.UniverseNASDAQ100, rows[1].Universe)
}

func TestReconcileUniverseMustMatch(t *testing.T) {
	r := NewReconciler(logger.Nop())
	rows, gap := r.Reconcile(
		[]contracts.PredictionRecord{pred(contracts.UniverseDOW30, "AAPL", 0.01)},
		[]contracts.TruthRecord{truth(contracts.UniverseSP500, "AAPL", 0.005)},
	)
	assert.Empty(t, rows)
	assert.Equal(t, 1, gap.Missing)
}

func TestGapEmpty(t *testing.T) {
	_, gap := NewReconciler(logger.Nop()).Reconcile(nil, nil)
	assert.Equal(t, 1.0, gap.Coverage())
	assert.Empty(t, gap.WorstSymbols(5))
}
