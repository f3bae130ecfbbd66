package warehouse

import (
	"fmt"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
)

// ⭐ SSOT: 웨어하우스 테이블 정의는 여기서만

// MetricsTable is the metric history, one row per run_date and group
var MetricsTable = TableSpec{
	Name: "metrics_history",
	Columns: []Column{
		{"run_date", TypeDate},
		{"universe", TypeText},
		{"model_name", TypeText},
		{"version", TypeText},
		{"window_days", TypeInt},
		{"sample_count", TypeInt},
		{"rmse", TypeNullFloat},
		{"mape", TypeNullFloat},
		{"correlation", TypeNullFloat},
		{"directional_accuracy", TypeNullFloat},
		{"realized_sharpe", TypeNullFloat},
		{"predicted_sharpe", TypeNullFloat},
		{"run_timestamp", TypeTimestamp},
	},
	Key: []string{"run_date", "universe", "model_name", "version"},
}

// PredictionsTable holds normalized predictions
var PredictionsTable = TableSpec{
	Name: "predictions",
	Columns: []Column{
		{"date", TypeDate},
		{"universe", TypeText},
		{"symbol", TypeText},
		{"model_name", TypeText},
		{"version", TypeText},
		{"pred_log_ret", TypeFloat},
		{"run_timestamp", TypeTimestamp},
		{"source_path", TypeText},
	},
	Key: []string{"date", "universe", "symbol", "model_name", "version"},
}

// TruthTable holds realized returns
var TruthTable = TableSpec{
	Name: "truth",
	Columns: []Column{
		{"date", TypeDate},
		{"universe", TypeText},
		{"symbol", TypeText},
		{"close", TypeFloat},
		{"arith_ret", TypeFloat},
		{"log_ret", TypeFloat},
	},
	Key: []string{"date", "universe", "symbol"},
}

// MembershipTable holds scraped universe constituents
var MembershipTable = TableSpec{
	Name: "universe_membership",
	Columns: []Column{
		{"as_of", TypeDate},
		{"universe", TypeText},
		{"symbol", TypeText},
	},
	Key: []string{"as_of", "universe", "symbol"},
}

// AllTables returns every table the tracker writes
func AllTables() []TableSpec {
	return []TableSpec{MetricsTable, PredictionsTable, TruthTable, MembershipTable}
}

// MetricRows converts metric records to MetricsTable rows
func MetricRows(records []contracts.MetricRecord) []Row {
	rows := make([]Row, len(records))
	for i, m := range records {
		rows[i] = Row{
			m.RunDate, string(m.Universe), m.ModelName, m.Version,
			m.WindowDays, m.SampleCount,
			m.RMSE, m.MAPE, m.Correlation, m.DirectionalAccuracy,
			m.RealizedSharpe, m.PredictedSharpe,
			m.RunTimestamp,
		}
	}
	return rows
}

// MetricFromRow converts a MetricsTable row back to a record
func MetricFromRow(r Row) (contracts.MetricRecord, error) {
	if len(r) != len(MetricsTable.Columns) {
		return contracts.MetricRecord{}, fmt.Errorf("metrics row has %d values", len(r))
	}
	var (
		m   contracts.MetricRecord
		ok  = true
		str = func(v interface{}) string {
			s, isStr := v.(string)
			ok = ok && isStr
			return s
		}
		num = func(v interface{}) int {
			n, isInt := v.(int)
			ok = ok && isInt
			return n
		}
		ts = func(v interface{}) time.Time {
			t, isTime := v.(time.Time)
			ok = ok && isTime
			return t
		}
		opt = func(v interface{}) *float64 {
			f, isPtr := v.(*float64)
			ok = ok && isPtr
			return f
		}
	)

	m.RunDate = ts(r[0])
	m.Universe = contracts.Universe(str(r[1]))
	m.ModelName = str(r[2])
	m.Version = str(r[3])
	m.WindowDays = num(r[4])
	m.SampleCount = num(r[5])
	m.RMSE = opt(r[6])
	m.MAPE = opt(r[7])
	m.Correlation = opt(r[8])
	m.DirectionalAccuracy = opt(r[9])
	m.RealizedSharpe = opt(r[10])
	m.PredictedSharpe = opt(r[11])
	m.RunTimestamp = ts(r[12])

	if !ok {
		return contracts.MetricRecord{}, fmt.Errorf("metrics row has unexpected value types")
	}
	return m, nil
}

// PredictionRows converts predictions to PredictionsTable rows
func PredictionRows(records []contracts.PredictionRecord) []Row {
	rows := make([]Row, len(records))
	for i, p := range records {
		rows[i] = Row{
			p.Date, string(p.Universe), p.Symbol, p.ModelName, p.Version,
			p.PredLogRet, p.RunTimestamp, p.SourcePath,
		}
	}
	return rows
}

// TruthRows converts truth records to TruthTable rows
func TruthRows(records []contracts.TruthRecord) []Row {
	rows := make([]Row, len(records))
	for i, t := range records {
		rows[i] = Row{t.Date, string(t.Universe), t.Symbol, t.Close, t.ArithRet, t.LogRet}
	}
	return rows
}

// MembershipRows converts membership records to MembershipTable rows
func MembershipRows(records []contracts.MembershipRecord) []Row {
	rows := make([]Row, len(records))
	for i, m := range records {
		rows[i] = Row{m.AsOf, string(m.Universe), m.Symbol}
	}
	return rows
}

// MembershipFromRow converts a MembershipTable row back to a record
func MembershipFromRow(r Row) (contracts.MembershipRecord, error) {
	if len(r) != len(MembershipTable.Columns) {
		return contracts.MembershipRecord{}, fmt.Errorf("membership row has %d values", len(r))
	}
	asOf, ok1 := r[0].(time.Time)
	u, ok2 := r[1].(string)
	sym, ok3 := r[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return contracts.MembershipRecord{}, fmt.Errorf("membership row has unexpected value types")
	}
	return contracts.MembershipRecord{AsOf: asOf, Universe: contracts.Universe(u), Symbol: sym}, nil
}
