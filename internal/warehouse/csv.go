package warehouse

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CSVStore keeps one <table>.csv per table under a directory.
// Appends read the file, replace rows with equal keys and rewrite it.
type CSVStore struct {
	dir string
	mu  sync.Mutex
}

// NewCSVStore creates a store writing below dir
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{dir: dir}
}

// Path returns the file backing a table
func (s *CSVStore) Path(table string) string {
	return filepath.Join(s.dir, table+".csv")
}

// Append upserts rows by natural key (read-modify-write)
func (s *CSVStore) Append(_ context.Context, spec TableSpec, rows []Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readRecords(spec)
	if err != nil {
		return 0, err
	}

	index := make(map[string]int, len(existing))
	for i, rec := range existing {
		index[textKey(spec, rec)] = i
	}

	for _, r := range rows {
		rec := make([]string, len(spec.Columns))
		for i, c := range spec.Columns {
			cell, err := FormatCell(c, r[i])
			if err != nil {
				return 0, err
			}
			rec[i] = cell
		}
		key := textKey(spec, rec)
		if pos, ok := index[key]; ok {
			existing[pos] = rec
			continue
		}
		index[key] = len(existing)
		existing = append(existing, rec)
	}

	if err := s.writeRecords(spec, existing); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Read parses a table back into typed rows
func (s *CSVStore) Read(_ context.Context, spec TableSpec) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords(spec)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(records))
	for i, rec := range records {
		row := make(Row, len(spec.Columns))
		for j, c := range spec.Columns {
			v, err := ParseCell(c, rec[j])
			if err != nil {
				return nil, fmt.Errorf("%s line %d column %s: %w", s.Path(spec.Name), i+2, c.Name, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, nil
}

func (s *CSVStore) readRecords(spec TableSpec) ([][]string, error) {
	f, err := os.Open(s.Path(spec.Name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", spec.Name, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", spec.Name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	if got, want := strings.Join(records[0], ","), strings.Join(spec.ColumnNames(), ","); got != want {
		return nil, fmt.Errorf("%s: header %q does not match %q", s.Path(spec.Name), got, want)
	}
	return records[1:], nil
}

// writeRecords replaces the table file atomically (temp file + rename)
func (s *CSVStore) writeRecords(spec TableSpec, records [][]string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, spec.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(spec.ColumnNames()); err != nil {
		tmp.Close()
		return err
	}
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", spec.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path(spec.Name))
}

func textKey(spec TableSpec, rec []string) string {
	parts := make([]string, len(spec.Key))
	for i, k := range spec.Key {
		parts[i] = rec[spec.Index(k)]
	}
	return strings.Join(parts, "\x1f")
}
