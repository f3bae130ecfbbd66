package truth

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
)

// Return is a realized return derived from two consecutive closes
type Return struct {
	Symbol   string
	Date     time.Time
	Close    float64
	ArithRet float64
	LogRet   float64
}

// DeriveReturns computes first-difference returns per symbol.
// Bars are sorted by date; non-finite or non-positive closes and repeated
// dates are discarded. A symbol's first observation never yields a return.
func DeriveReturns(bars []contracts.PriceBar) []Return {
	bySymbol := make(map[string][]contracts.PriceBar)
	for _, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			continue
		}
		b.Date = contracts.TruncateDate(b.Date)
		bySymbol[b.Symbol] = append(bySymbol[b.Symbol], b)
	}

	var out []Return
	for sym, series := range bySymbol {
		sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

		var prev *contracts.PriceBar
		for i := range series {
			cur := &series[i]
			if prev != nil && cur.Date.Equal(prev.Date) {
				continue
			}
			if prev != nil {
				ratio := cur.Close / prev.Close
				out = append(out, Return{
					Symbol:   sym,
					Date:     cur.Date,
					Close:    cur.Close,
					ArithRet: ratio - 1,
					LogRet:   math.Log(ratio),
				})
			}
			prev = cur
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Expand trims returns to [earliest, latest] and emits one TruthRecord per
// universe the symbol was predicted in
func Expand(returns []Return, earliest, latest time.Time, membership map[string][]contracts.Universe) []contracts.TruthRecord {
	var out []contracts.TruthRecord
	for _, r := range returns {
		if r.Date.Before(earliest) || r.Date.After(latest) {
			continue
		}
		universes := membership[r.Symbol]
		if len(universes) == 0 {
			universes = []contracts.Universe{contracts.UniverseUnknown}
		}
		for _, u := range universes {
			out = append(out, contracts.TruthRecord{
				Date:     r.Date,
				Universe: u,
				Symbol:   r.Symbol,
				Close:    r.Close,
				ArithRet: r.ArithRet,
				LogRet:   r.LogRet,
			})
		}
	}
	return out
}
