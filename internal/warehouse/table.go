package warehouse

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
)

// ColumnType is the storage type of a column
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeDate
	TypeTimestamp
	TypeFloat
	TypeNullFloat // *float64, nil stored as NULL / empty cell
	TypeInt
)

// Column describes one table column
type Column struct {
	Name string
	Type ColumnType
}

// TableSpec describes a table and its natural key
type TableSpec struct {
	Name    string
	Columns []Column
	Key     []string
}

// Row holds one value per column, in TableSpec.Columns order
type Row []interface{}

// TableStore is the append-only warehouse boundary. Implementations must
// replace rows whose key already exists, never duplicate them.
type TableStore interface {
	Append(ctx context.Context, spec TableSpec, rows []Row) (int, error)
}

// TableReader is implemented by stores that can read a table back
type TableReader interface {
	Read(ctx context.Context, spec TableSpec) ([]Row, error)
}

// ColumnNames returns the column names in order
func (s TableSpec) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of a column, or -1
func (s TableSpec) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// IsKey reports whether a column is part of the natural key
func (s TableSpec) IsKey(name string) bool {
	for _, k := range s.Key {
		if k == name {
			return true
		}
	}
	return false
}

// KeyOf renders the natural key of a row as a comparable string
func (s TableSpec) KeyOf(row Row) (string, error) {
	parts := make([]string, len(s.Key))
	for i, k := range s.Key {
		idx := s.Index(k)
		if idx < 0 || idx >= len(row) {
			return "", fmt.Errorf("%s: key column %q missing", s.Name, k)
		}
		cell, err := FormatCell(s.Columns[idx], row[idx])
		if err != nil {
			return "", err
		}
		parts[i] = cell
	}
	return strings.Join(parts, "\x1f"), nil
}

// Validate checks that every row matches the column layout
func (s TableSpec) Validate(rows []Row) error {
	for i, r := range rows {
		if len(r) != len(s.Columns) {
			return fmt.Errorf("%s row %d: %d values for %d columns", s.Name, i, len(r), len(s.Columns))
		}
		for j, c := range s.Columns {
			if _, err := FormatCell(c, r[j]); err != nil {
				return fmt.Errorf("%s row %d: %w", s.Name, i, err)
			}
		}
	}
	return nil
}

// FormatCell renders a value for text storage (CSV, keys)
func FormatCell(c Column, v interface{}) (string, error) {
	switch c.Type {
	case TypeText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeDate:
		if t, ok := v.(time.Time); ok {
			return t.Format(contracts.DateLayout), nil
		}
	case TypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
	case TypeFloat:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		}
	case TypeNullFloat:
		if f, ok := v.(*float64); ok {
			if f == nil {
				return "", nil
			}
			return strconv.FormatFloat(*f, 'g', -1, 64), nil
		}
	case TypeInt:
		if n, ok := v.(int); ok {
			return strconv.Itoa(n), nil
		}
	}
	return "", fmt.Errorf("column %s: unexpected value %T", c.Name, v)
}

// ParseCell is the inverse of FormatCell
func ParseCell(c Column, s string) (interface{}, error) {
	switch c.Type {
	case TypeText:
		return s, nil
	case TypeDate:
		return time.Parse(contracts.DateLayout, s)
	case TypeTimestamp:
		t, err := time.Parse(time.RFC3339Nano, s)
		return t.UTC(), err
	case TypeFloat:
		return strconv.ParseFloat(s, 64)
	case TypeNullFloat:
		if s == "" {
			return (*float64)(nil), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return &f, nil
	case TypeInt:
		return strconv.Atoi(s)
	}
	return nil, fmt.Errorf("column %s: unknown type %d", c.Name, c.Type)
}

// Dedup keeps one row per natural key; the last occurrence wins and takes
// the position of the first
func Dedup(spec TableSpec, rows []Row) ([]Row, error) {
	index := make(map[string]int, len(rows))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		key, err := spec.KeyOf(r)
		if err != nil {
			return nil, err
		}
		if pos, ok := index[key]; ok {
			out[pos] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out, nil
}
