package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
)

// Binding maps the columns of one artifact header onto record fields
type Binding struct {
	Path string

	date, symbol, pred       int
	model, version, runStamp int // -1 when absent

	// Columns records which header name satisfied each concept
	Columns map[string]string
}

// Bind resolves every column concept against header.
// A missing required concept yields *contracts.SchemaError.
func Bind(path string, header []string) (*Binding, error) {
	b := &Binding{Path: path, Columns: make(map[string]string, 6)}

	required := []*int{&b.date, &b.symbol, &b.pred}
	for i, cand := range RequiredColumns() {
		idx, name, ok := cand.Pick(header)
		if !ok {
			return nil, &contracts.SchemaError{
				Path:       path,
				Concept:    cand.Concept,
				Candidates: cand.Aliases,
			}
		}
		*required[i] = idx
		b.Columns[cand.Concept] = name
	}

	optional := []struct {
		cand Candidates
		dst  *int
	}{
		{ModelNameColumns, &b.model},
		{VersionColumns, &b.version},
		{RunTimestampColumns, &b.runStamp},
	}
	for _, o := range optional {
		idx, name, ok := o.cand.Pick(header)
		*o.dst = idx
		if ok {
			b.Columns[o.cand.Concept] = name
		}
	}

	return b, nil
}

// Defaulted lists the optional concepts this file lacks
func (b *Binding) Defaulted() []string {
	var out []string
	if b.model < 0 {
		out = append(out, ConceptModelName)
	}
	if b.version < 0 {
		out = append(out, ConceptVersion)
	}
	if b.runStamp < 0 {
		out = append(out, ConceptRunTimestamp)
	}
	return out
}

// EmptyOptional lists the optional concepts whose column is present but
// blank in row
func (b *Binding) EmptyOptional(row []string) []string {
	var out []string
	for _, o := range []struct {
		concept string
		idx     int
	}{
		{ConceptModelName, b.model},
		{ConceptVersion, b.version},
		{ConceptRunTimestamp, b.runStamp},
	} {
		if o.idx >= 0 && strings.TrimSpace(cell(row, o.idx)) == "" {
			out = append(out, o.concept)
		}
	}
	return out
}

// Record converts one CSV row. Optional cells that are absent or empty fall
// back to the defaults; required cells must parse.
func (b *Binding) Record(row []string, universe contracts.Universe, runTimestamp time.Time) (contracts.PredictionRecord, error) {
	date, err := ParseDate(cell(row, b.date))
	if err != nil {
		return contracts.PredictionRecord{}, err
	}
	symbol, err := CanonicalSymbol(cell(row, b.symbol))
	if err != nil {
		return contracts.PredictionRecord{}, err
	}
	pred, err := ParseValue(cell(row, b.pred))
	if err != nil {
		return contracts.PredictionRecord{}, err
	}

	rec := contracts.PredictionRecord{
		Date:         date,
		Universe:     universe,
		Symbol:       symbol,
		PredLogRet:   pred,
		ModelName:    DefaultModelName,
		Version:      DefaultVersion,
		RunTimestamp: runTimestamp,
		SourcePath:   b.Path,
	}
	if v := strings.TrimSpace(cell(row, b.model)); v != "" {
		rec.ModelName = v
	}
	if v := strings.TrimSpace(cell(row, b.version)); v != "" {
		rec.Version = v
	}
	if v := strings.TrimSpace(cell(row, b.runStamp)); v != "" {
		ts, err := ParseTimestamp(v)
		if err != nil {
			return contracts.PredictionRecord{}, fmt.Errorf("run_timestamp: %w", err)
		}
		rec.RunTimestamp = ts
	}
	return rec, nil
}

// EncodeRecord renders a record in CanonicalHeader order
func EncodeRecord(r contracts.PredictionRecord) []string {
	return []string{
		r.Date.Format(contracts.DateLayout),
		r.Symbol,
		FormatValue(r.PredLogRet),
		r.ModelName,
		r.Version,
		FormatTimestamp(r.RunTimestamp),
	}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
