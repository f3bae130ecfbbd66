package metrics

import (
	"math"
	"sort"
	"time"
)

// TradingDaysPerYear annualizes daily Sharpe ratios
const TradingDaysPerYear = 252

// =============================================================================
// Statistics
// =============================================================================
// 모든 함수는 계산 불가 시 nil 반환 (NaN/Inf는 절대 밖으로 나가지 않음)

// RMSE returns sqrt(mean((pred-actual)^2))
func RMSE(pred, actual []float64) *float64 {
	if len(pred) == 0 || len(pred) != len(actual) {
		return nil
	}
	var sum float64
	for i := range pred {
		d := pred[i] - actual[i]
		sum += d * d
	}
	return finite(math.Sqrt(sum / float64(len(pred))))
}

// MAPE returns mean(|actual-pred| / actual) over rows with actual != 0.
// The denominator keeps its sign, so negative actual returns pull it down.
func MAPE(pred, actual []float64) *float64 {
	var sum float64
	n := 0
	for i := range pred {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs(actual[i]-pred[i]) / actual[i]
		n++
	}
	if n == 0 {
		return nil
	}
	return finite(sum / float64(n))
}

// Correlation returns the Pearson correlation, clamped to [-1, 1].
// nil when n < 2 or either series is constant.
func Correlation(x, y []float64) *float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return nil
	}
	mx, my := mean(x), mean(y)

	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return nil
	}

	r := sxy / math.Sqrt(sxx*syy)
	return finite(math.Max(-1, math.Min(1, r)))
}

// DirectionalAccuracy returns the share of rows where sign(pred) == sign(actual).
// Zero is its own sign.
func DirectionalAccuracy(pred, actual []float64) *float64 {
	if len(pred) == 0 || len(pred) != len(actual) {
		return nil
	}
	hits := 0
	for i := range pred {
		if sign(pred[i]) == sign(actual[i]) {
			hits++
		}
	}
	return finite(float64(hits) / float64(len(pred)))
}

// Sharpe returns mean/stdev (sample) × sqrt(252) of a daily return series.
// nil with fewer than two observations or zero dispersion.
func Sharpe(daily []float64) *float64 {
	n := len(daily)
	if n < 2 {
		return nil
	}
	m := mean(daily)
	var ss float64
	for _, v := range daily {
		ss += (v - m) * (v - m)
	}
	sd := math.Sqrt(ss / float64(n-1))
	if sd == 0 || math.IsNaN(sd) {
		return nil
	}
	return finite(m / sd * math.Sqrt(TradingDaysPerYear))
}

// DailyMeans averages values per date and returns them in date order
func DailyMeans(dates []time.Time, values []float64) []float64 {
	type acc struct {
		sum float64
		n   int
	}
	byDate := make(map[time.Time]*acc)
	var order []time.Time
	for i, d := range dates {
		a, ok := byDate[d]
		if !ok {
			a = &acc{}
			byDate[d] = a
			order = append(order, d)
		}
		a.sum += values[i]
		a.n++
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	out := make([]float64, len(order))
	for i, d := range order {
		out[i] = byDate[d].sum / float64(byDate[d].n)
	}
	return out
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
