package reconcile

import (
	"sort"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
)

// Gap is the coverage statistic of a reconciliation. It is informational,
// never an error.
type Gap struct {
	Predictions     int            `json:"predictions"`
	Matched         int            `json:"matched"`
	Missing         int            `json:"missing"`
	MissingBySymbol map[string]int `json:"missing_by_symbol,omitempty"`
}

// Coverage returns the matched share of predictions (1.0 when empty)
func (g Gap) Coverage() float64 {
	if g.Predictions == 0 {
		return 1.0
	}
	return float64(g.Matched) / float64(g.Predictions)
}

// WorstSymbols returns up to n symbols with the most unmatched predictions
func (g Gap) WorstSymbols(n int) []string {
	symbols := make([]string, 0, len(g.MissingBySymbol))
	for s := range g.MissingBySymbol {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool {
		a, b := g.MissingBySymbol[symbols[i]], g.MissingBySymbol[symbols[j]]
		if a != b {
			return a > b
		}
		return symbols[i] < symbols[j]
	})
	if len(symbols) > n {
		symbols = symbols[:n]
	}
	return symbols
}

// Reconciler joins predictions with realized truth
// ⭐ SSOT: 예측 ↔ 실현 조인은 여기서만
type Reconciler struct {
	logger *logger.Logger
}

// NewReconciler creates a new Reconciler instance
func NewReconciler(log *logger.Logger) *Reconciler {
	return &Reconciler{logger: log.WithField("module", "reconcile")}
}

// Reconcile inner-joins predictions and truth on (date, symbol, universe).
// The universe comes from the prediction side; the same symbol predicted in
// several universes stays as distinct rows. Predictions without truth are
// excluded and counted in the gap.
func (r *Reconciler) Reconcile(preds []contracts.PredictionRecord, truth []contracts.TruthRecord) ([]contracts.ReconciledRow, Gap) {
	index := make(map[contracts.TruthKey]contracts.TruthRecord, len(truth))
	for _, t := range truth {
		index[t.Key()] = t
	}

	gap := Gap{Predictions: len(preds), MissingBySymbol: make(map[string]int)}
	rows := make([]contracts.ReconciledRow, 0, len(preds))
	for _, p := range preds {
		t, ok := index[contracts.TruthKey{Date: p.Date, Universe: p.Universe, Symbol: p.Symbol}]
		if !ok {
			gap.Missing++
			gap.MissingBySymbol[p.Symbol]++
			continue
		}
		rows = append(rows, contracts.ReconciledRow{
			Date:      p.Date,
			Universe:  p.Universe,
			Symbol:    p.Symbol,
			ModelName: p.ModelName,
			Version:   p.Version,
			Predicted: p.PredLogRet,
			Actual:    t.LogRet,
			ArithRet:  t.ArithRet,
			Close:     t.Close,
		})
	}
	gap.Matched = len(rows)

	r.logger.WithFields(map[string]interface{}{
		"predictions":   gap.Predictions,
		"matched":       gap.Matched,
		"missing":       gap.Missing,
		"coverage":      gap.Coverage(),
		"worst_symbols": gap.WorstSymbols(5),
	}).Info("Reconciliation completed")

	return rows, gap
}
