package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
)

// Decoded is the result of normalizing one artifact
type Decoded struct {
	Path     string
	Universe contracts.Universe
	Records  []contracts.PredictionRecord
	Dropped  int
	// DropReasons counts dropped rows per row error
	DropReasons map[string]int
	// EmptyCells counts kept rows that took a default for a blank optional cell
	EmptyCells map[string]int
}

// Decoder normalizes prediction CSVs into PredictionRecords
// ⭐ SSOT: 예측 CSV 파싱은 여기서만
type Decoder struct {
	runTimestamp time.Time
	logger       *logger.Logger
}

// NewDecoder creates a decoder stamping defaulted rows with the run timestamp
func NewDecoder(runTimestamp time.Time, log *logger.Logger) *Decoder {
	return &Decoder{
		runTimestamp: runTimestamp,
		logger:       log.WithField("module", "schema"),
	}
}

// Decode reads one CSV artifact. A header that lacks a required concept
// returns *contracts.SchemaError; malformed CSV returns a plain error.
// Bad rows are dropped and counted.
func (d *Decoder) Decode(path string, r io.Reader, universe contracts.Universe) (*Decoded, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &contracts.SchemaError{Path: path, Concept: "header", Candidates: CanonicalHeader()}
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	binding, err := Bind(path, header)
	if err != nil {
		return nil, err
	}

	out := &Decoded{
		Path:        path,
		Universe:    universe,
		DropReasons: make(map[string]int),
		EmptyCells:  make(map[string]int),
	}

	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", path, line, err)
		}
		if isBlank(row) {
			continue
		}

		rec, err := binding.Record(row, universe, d.runTimestamp)
		if err != nil {
			out.Dropped++
			out.DropReasons[dropReason(err)]++
			d.logger.WithFields(map[string]interface{}{
				"path": path,
				"line": line,
			}).WithError(err).Debug("Dropping row")
			continue
		}
		for _, concept := range binding.EmptyOptional(row) {
			out.EmptyCells[concept]++
		}
		out.Records = append(out.Records, rec)
	}

	// 기본값 적용은 파일당 한 번만 기록
	if defaulted := binding.Defaulted(); len(defaulted) > 0 || len(out.EmptyCells) > 0 {
		d.logger.WithFields(map[string]interface{}{
			"path":        path,
			"defaulted":   strings.Join(defaulted, ","),
			"empty_cells": countsLabel(out.EmptyCells),
			"universe":    universe,
		}).Info("Applying column defaults")
	}

	return out, nil
}

// Encode writes records in the canonical layout
func Encode(w io.Writer, records []contracts.PredictionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CanonicalHeader()); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(EncodeRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrBadDate):
		return ErrBadDate.Error()
	case errors.Is(err, ErrBadSymbol):
		return ErrBadSymbol.Error()
	case errors.Is(err, ErrBadValue):
		return ErrBadValue.Error()
	default:
		return "other"
	}
}

// countsLabel renders counts as "k=v" pairs sorted by key
func countsLabel(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ",")
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
