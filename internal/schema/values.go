package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
)

// Row-level errors. A row that fails is dropped and counted, never zero-filled.
var (
	ErrBadDate   = errors.New("bad date")
	ErrBadValue  = errors.New("bad prediction value")
	ErrBadSymbol = errors.New("bad symbol")
)

// 허용하는 날짜 포맷 (순서대로 시도)
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"20060102",
	"01/02/2006",
}

// ParseDate parses a calendar date in any accepted layout, dropping time-of-day
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrBadDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return contracts.TruncateDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}

// ParseTimestamp parses a run timestamp; plain dates are accepted as midnight UTC
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return ParseDate(s)
}

// FormatTimestamp is the inverse of ParseTimestamp for canonical output
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseValue parses a finite float. Empty, NaN and Inf are rejected.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadValue)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadValue, s)
	}
	return v, nil
}

// FormatValue renders a float so that ParseValue returns the same bits
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CanonicalSymbol uppercases and trims a ticker and maps share-class
// separators to '-' (BRK.B, BRK/B, BRK_B → BRK-B).
func CanonicalSymbol(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrBadSymbol)
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '.' || r == '/' || r == '_' || r == ' ':
			b.WriteByte('-')
		case r > ' ' && r < 0x7f:
			b.WriteRune(r)
		default:
			return "", fmt.Errorf("%w: %q", ErrBadSymbol, s)
		}
	}
	return b.String(), nil
}
