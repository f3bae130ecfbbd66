package truth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
)

// Config holds truth fetch tuning
type Config struct {
	BatchSize   int // symbols per price request (≤50)
	Concurrency int // concurrent batch requests
	PaddingDays int // calendar days fetched before the earliest date
}

// Result is the realized truth for a request
type Result struct {
	Records  []contracts.TruthRecord
	Fetched  []string // symbols with at least one bar
	Missing  []string // symbols the service returned nothing for
	Failures []*contracts.FetchError
	Start    time.Time
	End      time.Time
	Batches  int
	Duration time.Duration
}

// FailedSymbols returns the symbols dropped because their batch failed
func (r *Result) FailedSymbols() []string {
	var out []string
	for _, f := range r.Failures {
		out = append(out, f.Symbols...)
	}
	sort.Strings(out)
	return out
}

// Fetcher retrieves closes in batches and derives realized returns
// ⭐ SSOT: 실현 수익률(truth) 계산은 이 패키지에서만
type Fetcher struct {
	prices contracts.PriceService
	logger *logger.Logger
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(prices contracts.PriceService, log *logger.Logger) *Fetcher {
	return &Fetcher{
		prices: prices,
		logger: log.WithField("module", "truth"),
	}
}

// Fetch retrieves truth for req. A failing batch is recorded as a
// FetchError and its symbols are dropped; only cancellation is an error.
func (f *Fetcher) Fetch(ctx context.Context, req Request, cfg Config) (*Result, error) {
	startTime := time.Now()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	start, end := req.Window(cfg.PaddingDays)
	result := &Result{Start: start, End: end}
	if req.Empty() {
		return result, nil
	}

	batches := Batches(req.Symbols, cfg.BatchSize)
	result.Batches = len(batches)

	f.logger.WithFields(map[string]interface{}{
		"symbols":     len(req.Symbols),
		"batches":     len(batches),
		"concurrency": cfg.Concurrency,
		"from":        start.Format(contracts.DateLayout),
		"to":          end.Format(contracts.DateLayout),
	}).Info("Starting truth fetch")

	// 심볼 키 기반 병합 → 배치 완료 순서와 무관
	var (
		mu       sync.Mutex
		bySymbol = make(map[string][]contracts.PriceBar)
		wg       sync.WaitGroup
	)
	batchCh := make(chan []string, len(batches))

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for batch := range batchCh {
				if ctx.Err() != nil {
					return
				}
				bars, err := f.prices.FetchPrices(ctx, batch, start, end)
				failure := batchFailure(batch, err)

				mu.Lock()
				dropped := make(map[string]struct{})
				if failure != nil {
					result.Failures = append(result.Failures, failure)
					for _, s := range failure.Symbols {
						dropped[s] = struct{}{}
					}
				}
				wanted := make(map[string]struct{}, len(batch))
				for _, s := range batch {
					if _, ok := dropped[s]; !ok {
						wanted[s] = struct{}{}
					}
				}
				for _, b := range bars {
					if _, ok := wanted[b.Symbol]; ok {
						bySymbol[b.Symbol] = append(bySymbol[b.Symbol], b)
					}
				}
				mu.Unlock()

				if err != nil {
					f.logger.WithError(err).WithFields(map[string]interface{}{
						"worker":  workerID,
						"symbols": len(batch),
						"failed":  len(failure.Symbols),
					}).Error("Price batch failed")
				}
			}
		}(i)
	}

	for _, b := range batches {
		batchCh <- b
	}
	close(batchCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("truth fetch cancelled: %w", err)
	}

	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Symbols[0] < result.Failures[j].Symbols[0]
	})
	failed := make(map[string]struct{})
	for _, s := range result.FailedSymbols() {
		failed[s] = struct{}{}
	}

	var bars []contracts.PriceBar
	for _, sym := range req.Symbols {
		if series, ok := bySymbol[sym]; ok && len(series) > 0 {
			result.Fetched = append(result.Fetched, sym)
			bars = append(bars, series...)
			continue
		}
		if _, ok := failed[sym]; !ok {
			result.Missing = append(result.Missing, sym)
		}
	}

	result.Records = Expand(DeriveReturns(bars), req.Earliest, req.Latest, req.Membership)
	result.Duration = time.Since(startTime)

	f.logger.WithFields(map[string]interface{}{
		"fetched":  len(result.Fetched),
		"missing":  len(result.Missing),
		"failed":   len(failed),
		"records":  len(result.Records),
		"duration": result.Duration,
	}).Info("Truth fetch completed")

	return result, nil
}

// batchFailure turns a price service error into the failure recorded for a
// batch. A *contracts.FetchError names the failed subset; any other error
// fails the whole batch.
func batchFailure(batch []string, err error) *contracts.FetchError {
	if err == nil {
		return nil
	}
	var fe *contracts.FetchError
	if errors.As(err, &fe) && len(fe.Symbols) > 0 {
		return &contracts.FetchError{Symbols: append([]string(nil), fe.Symbols...), Err: fe.Err}
	}
	return &contracts.FetchError{Symbols: append([]string(nil), batch...), Err: err}
}
