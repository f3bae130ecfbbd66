package contracts

import "time"

// PredictionRecord is one model output row after normalization
// ⭐ SSOT: Ingester → Truth/Reconciler 예측 레코드
type PredictionRecord struct {
	Date         time.Time `json:"date"`
	Universe     Universe  `json:"universe"`
	Symbol       string    `json:"symbol"`
	PredLogRet   float64   `json:"pred_log_ret"`
	ModelName    string    `json:"model_name"`
	Version      string    `json:"version"`
	RunTimestamp time.Time `json:"run_timestamp"`

	// SourcePath is provenance only, not part of the natural key
	SourcePath string `json:"source_path,omitempty"`
}

// PredictionKey is the natural key of a prediction
type PredictionKey struct {
	Date      time.Time
	Universe  Universe
	Symbol    string
	ModelName string
	Version   string
}

// Key returns the natural key (date, universe, symbol, model_name, version)
func (p PredictionRecord) Key() PredictionKey {
	return PredictionKey{
		Date:      p.Date,
		Universe:  p.Universe,
		Symbol:    p.Symbol,
		ModelName: p.ModelName,
		Version:   p.Version,
	}
}

// SameValue reports whether two records with the same key carry identical content
func (p PredictionRecord) SameValue(o PredictionRecord) bool {
	return p.PredLogRet == o.PredLogRet && p.RunTimestamp.Equal(o.RunTimestamp)
}

// TruthRecord is a realized return for one symbol on one date in one universe
// ⭐ SSOT: Truth Fetcher → Reconciler 실현 수익률
type TruthRecord struct {
	Date     time.Time `json:"date"`
	Universe Universe  `json:"universe"`
	Symbol   string    `json:"symbol"`
	Close    float64   `json:"close"`
	ArithRet float64   `json:"arith_ret"`
	LogRet   float64   `json:"log_ret"`
}

// TruthKey is the natural key of a truth record
type TruthKey struct {
	Date     time.Time
	Universe Universe
	Symbol   string
}

// Key returns the natural key (date, universe, symbol)
func (t TruthRecord) Key() TruthKey {
	return TruthKey{Date: t.Date, Universe: t.Universe, Symbol: t.Symbol}
}

// ReconciledRow pairs a prediction with its realized outcome
type ReconciledRow struct {
	Date      time.Time `json:"date"`
	Universe  Universe  `json:"universe"`
	Symbol    string    `json:"symbol"`
	ModelName string    `json:"model_name"`
	Version   string    `json:"version"`
	Predicted float64   `json:"predicted"` // predicted log return
	Actual    float64   `json:"actual"`    // realized log return
	ArithRet  float64   `json:"arith_ret"`
	Close     float64   `json:"close"`
}

// MetricRecord holds the skill statistics of one (universe, model, version) group.
// nil statistics mean "not computable" and are stored as NULL.
// ⭐ SSOT: Metrics Engine → Persistence Gateway
type MetricRecord struct {
	RunDate             time.Time `json:"run_date"`
	Universe            Universe  `json:"universe"`
	ModelName           string    `json:"model_name"`
	Version             string    `json:"version"`
	WindowDays          int       `json:"window_days"` // 0 = all history
	SampleCount         int       `json:"sample_count"`
	RMSE                *float64  `json:"rmse"`
	MAPE                *float64  `json:"mape"`
	Correlation         *float64  `json:"correlation"`
	DirectionalAccuracy *float64  `json:"directional_accuracy"`
	RealizedSharpe      *float64  `json:"realized_sharpe"`
	PredictedSharpe     *float64  `json:"predicted_sharpe"`
	RunTimestamp        time.Time `json:"run_timestamp"`
}

// IsDegenerate reports whether the record stands in for an empty run
func (m MetricRecord) IsDegenerate() bool {
	return m.Universe == UniverseAll && m.SampleCount == 0
}

// MembershipRecord states that a symbol belonged to a universe as of a date
type MembershipRecord struct {
	AsOf     time.Time `json:"as_of"`
	Universe Universe  `json:"universe"`
	Symbol   string    `json:"symbol"`
}

// PriceBar is one daily close observation from the price service
type PriceBar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"` // adjusted close when available
}

// Float returns a pointer to v (metric helpers)
func Float(v float64) *float64 {
	return &v
}
