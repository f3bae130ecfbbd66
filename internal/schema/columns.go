package schema

import "strings"

// Candidates is an ordered alias list for one column concept.
// The first alias present in a header wins.
type Candidates struct {
	Concept string
	Aliases []string
}

// Pick returns the index and name of the first alias present in header.
// ok is false when no alias matches.
func (c Candidates) Pick(header []string) (idx int, name string, ok bool) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		h = cleanHeaderCell(h)
		if _, seen := positions[h]; !seen {
			positions[h] = i
		}
	}
	for _, alias := range c.Aliases {
		if i, found := positions[alias]; found {
			return i, alias, true
		}
	}
	return -1, "", false
}

// Column concepts
const (
	ConceptDate         = "date"
	ConceptSymbol       = "symbol"
	ConceptPrediction   = "pred_log_ret"
	ConceptModelName    = "model_name"
	ConceptVersion      = "version"
	ConceptRunTimestamp = "run_timestamp"
)

// ⭐ SSOT: 컬럼 별칭 목록은 여기서만 정의
var (
	DateColumns = Candidates{
		Concept: ConceptDate,
		Aliases: []string{"date", "Date", "as_of", "timestamp"},
	}
	SymbolColumns = Candidates{
		Concept: ConceptSymbol,
		Aliases: []string{"symbol", "ticker", "SYM", "Symbol", "Ticker"},
	}
	PredictionColumns = Candidates{
		Concept: ConceptPrediction,
		Aliases: []string{"pred_log_ret", "pred", "pred_ret", "predicted", "y_hat", "y_pred", "prediction"},
	}

	ModelNameColumns = Candidates{
		Concept: ConceptModelName,
		Aliases: []string{"model_name", "model"},
	}
	VersionColumns = Candidates{
		Concept: ConceptVersion,
		Aliases: []string{"version", "model_version"},
	}
	RunTimestampColumns = Candidates{
		Concept: ConceptRunTimestamp,
		Aliases: []string{"run_timestamp", "run_ts"},
	}
)

// Defaults applied when an optional column is absent
const (
	DefaultModelName = "baseline"
	DefaultVersion   = "v1"
)

// RequiredColumns returns the concepts every artifact must carry, in check order
func RequiredColumns() []Candidates {
	return []Candidates{DateColumns, SymbolColumns, PredictionColumns}
}

// CanonicalHeader is the column layout written by EncodeRecord
func CanonicalHeader() []string {
	return []string{
		ConceptDate,
		ConceptSymbol,
		ConceptPrediction,
		ConceptModelName,
		ConceptVersion,
		ConceptRunTimestamp,
	}
}

func cleanHeaderCell(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}
