package truth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/internal/external/yahoo"
	"github.com/wonny/skilltrack/pkg/logger"
	"github.com/wonny/skilltrack/pkg/redis"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

// fakePrices serves closes from a table and fails batches containing a poisoned symbol
type fakePrices struct {
	mu       sync.Mutex
	closes   map[string]map[time.Time]float64
	poison   string
	calls    int
	maxBatch int
}

func (f *fakePrices) FetchPrices(_ context.Context, symbols []string, start, end time.Time) ([]contracts.PriceBar, error) {
	f.mu.Lock()
	f.calls++
	if len(symbols) > f.maxBatch {
		f.maxBatch = len(symbols)
	}
	f.mu.Unlock()

	var out []contracts.PriceBar
	for _, s := range symbols {
		if s == f.poison {
			return nil, errors.New("upstream 500")
		}
		for d, c := range f.closes[s] {
			if d.Before(start) || d.After(end) {
				continue
			}
			out = append(out, contracts.PriceBar{Symbol: s, Date: d, Close: c})
		}
	}
	return out, nil
}

func pred(d time.Time, u contracts.Universe, sym string) contracts.PredictionRecord {
	return contracts.PredictionRecord{Date: d, Universe: u, Symbol: sym, ModelName: "m1", Version: "v1", PredLogRet: 0.01}
}

func defaultConfig() Config {
	return Config{BatchSize: 50, Concurrency: 4, PaddingDays: 5}
}

func TestRequestFor(t *testing.T) {
	req := RequestFor([]contracts.PredictionRecord{
		pred(day(1, 3), contracts.UniverseSP500, "MSFT"),
		pred(day(1, 2), contracts.UniverseSP500, "AAPL"),
		pred(day(1, 5), contracts.UniverseNASDAQ100, "AAPL"),
	})

	assert.Equal(t, []string{"AAPL", "MSFT"}, req.Symbols)
	assert.Equal(t, day(1, 2), req.Earliest)
	assert.Equal(t, day(1, 5), req.Latest)
	assert.Equal(t, []contracts.Universe{contracts.UniverseNASDAQ100, contracts.UniverseSP500}, req.Membership["AAPL"])

	start, end := req.Window(5)
	assert.Equal(t, time.Date(2023, 12, 28, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, day(1, 5), end)

	assert.True(t, RequestFor(nil).Empty())
}

func TestBatches(t *testing.T) {
	symbols := make([]string, 120)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%03d", i)
	}

	batches := Batches(symbols, 50)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 50)
	assert.Len(t, batches[2], 20)

	total := 0
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), 50)
		total += len(b)
	}
	assert.Equal(t, 120, total)
	assert.Empty(t, Batches(nil, 50))
}

func TestBatchesClampSize(t *testing.T) {
	symbols := make([]string, 120)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%03d", i)
	}

	tests := []struct {
		name    string
		size    int
		batches int
		first   int
	}{
		{"zero", 0, 120, 1},
		{"negative", -3, 120, 1},
		{"within limit", 40, 3, 40},
		{"at limit", MaxBatchSize, 3, 50},
		{"over limit", 500, 3, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Batches(symbols, tt.size)
			require.Len(t, got, tt.batches)
			assert.Len(t, got[0], tt.first)
			for _, b := range got {
				assert.LessOrEqual(t, len(b), MaxBatchSize)
			}
		})
	}
}

func TestRequestForMembership(t *testing.T) {
	req := RequestForMembership([]contracts.MembershipRecord{
		{AsOf: day(1, 1), Universe: contracts.UniverseSP500, Symbol: "MSFT"},
		{AsOf: day(1, 1), Universe: contracts.UniverseSP500, Symbol: "AAPL"},
		{AsOf: day(1, 1), Universe: contracts.UniverseNASDAQ100, Symbol: "AAPL"},
		{AsOf: day(1, 1), Universe: contracts.UniverseSP500, Symbol: "AAPL"},
		{AsOf: day(1, 1), Universe: contracts.UniverseSP500, Symbol: ""},
	}, time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC), day(1, 5))

	assert.Equal(t, []string{"AAPL", "MSFT"}, req.Symbols)
	assert.Equal(t, day(1, 2), req.Earliest)
	assert.Equal(t, day(1, 5), req.Latest)
	assert.Equal(t, []contracts.Universe{contracts.UniverseNASDAQ100, contracts.UniverseSP500}, req.Membership["AAPL"])
	assert.Equal(t, []contracts.Universe{contracts.UniverseSP500}, req.Membership["MSFT"])

	assert.True(t, RequestForMembership(nil, day(1, 2), day(1, 5)).Empty())
}

func TestDeriveReturns(t *testing.T) {
	returns := DeriveReturns([]contracts.PriceBar{
		{Symbol: "AAA", Date: day(1, 3), Close: 110},
		{Symbol: "AAA", Date: day(1, 1), Close: 100},
		{Symbol: "AAA", Date: day(1, 2), Close: 0},
		{Symbol: "AAA", Date: day(1, 3), Close: 999},
		{Symbol: "AAA", Date: day(1, 4), Close: math.NaN()},
		{Symbol: "BBB", Date: day(1, 2), Close: 50},
	})

	require.Len(t, returns, 1, "first observation never yields a return")
	r := returns[0]
	assert.Equal(t, day(1, 3), r.Date)
	assert.Equal(t, 110.0, r.Close)
	assert.InDelta(t, 0.10, r.ArithRet, 1e-12)
	assert.InDelta(t, math.Log(1.1), r.LogRet, 1e-12)
}

func TestFetchLogReturnScenario(t *testing.T) {
	prices := &fakePrices{closes: map[string]map[time.Time]float64{
		"AAA": {day(1, 1): 100, day(1, 2): 101},
	}}

	req := RequestFor([]contracts.PredictionRecord{pred(day(1, 2), contracts.UniverseSP500, "AAA")})
	result, err := NewFetcher(prices, logger.Nop()).Fetch(context.Background(), req, defaultConfig())
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, day(1, 2), rec.Date)
	assert.Equal(t, contracts.UniverseSP500, rec.Universe)
	assert.InDelta(t, 0.00995, rec.LogRet, 1e-5)
	assert.InDelta(t, math.Log(101.0/100.0), rec.LogRet, 1e-15)
	assert.InDelta(t, 0.01, rec.ArithRet, 1e-12)
	assert.Equal(t, []string{"AAA"}, result.Fetched)
}

func TestFetchPartialFailure(t *testing.T) {
	prices := &fakePrices{
		closes: map[string]map[time.Time]float64{
			"AAA": {day(1, 1): 100, day(1, 2): 101},
			"BBB": {day(1, 1): 10, day(1, 2): 9},
			"CCC": {day(1, 1): 1, day(1, 2): 2},
		},
		poison: "CCC",
	}

	req := RequestFor([]contracts.PredictionRecord{
		pred(day(1, 2), contracts.UniverseSP500, "AAA"),
		pred(day(1, 2), contracts.UniverseSP500, "BBB"),
		pred(day(1, 2), contracts.UniverseDOW30, "CCC"),
		pred(day(1, 2), contracts.UniverseDOW30, "DDD"),
		pred(day(1, 2), contracts.UniverseDOW30, "ZZZ"),
	})

	cfg := Config{BatchSize: 2, Concurrency: 2, PaddingDays: 5}
	result, err := NewFetcher(prices, logger.Nop()).Fetch(context.Background(), req, cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 2, prices.maxBatch)
	assert.Equal(t, []string{"AAA", "BBB"}, result.Fetched)
	assert.Equal(t, []string{"CCC", "DDD"}, result.FailedSymbols())
	assert.Equal(t, []string{"ZZZ"}, result.Missing)
	require.Len(t, result.Failures, 1)
	assert.Error(t, result.Failures[0].Err)
	assert.Len(t, result.Records, 2)
}

func TestFetchExpandsUniverses(t *testing.T) {
	prices := &fakePrices{closes: map[string]map[time.Time]float64{
		"AAPL": {day(1, 1): 100, day(1, 2): 101, day(1, 3): 102},
	}}

	req := RequestFor([]contracts.PredictionRecord{
		pred(day(1, 2), contracts.UniverseSP500, "AAPL"),
		pred(day(1, 3), contracts.UniverseNASDAQ100, "AAPL"),
	})
	result, err := NewFetcher(prices, logger.Nop()).Fetch(context.Background(), req, defaultConfig())
	require.NoError(t, err)

	// two dates × two universes
	require.Len(t, result.Records, 4)
	keys := make(map[contracts.TruthKey]bool)
	for _, r := range result.Records {
		keys[r.Key()] = true
	}
	assert.True(t, keys[contracts.TruthKey{Date: day(1, 2), Universe: contracts.UniverseNASDAQ100, Symbol: "AAPL"}])
	assert.True(t, keys[contracts.TruthKey{Date: day(1, 3), Universe: contracts.UniverseSP500, Symbol: "AAPL"}])
}

func TestFetchEmptyRequest(t *testing.T) {
	prices := &fakePrices{}
	result, err := NewFetcher(prices, logger.Nop()).Fetch(context.Background(), Request{}, defaultConfig())
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Zero(t, prices.calls)
}

// mapCache is an in-memory BatchCache
type mapCache struct {
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mapCache) Enabled() bool { return true }

func (m *mapCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}

func (m *mapCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func TestCachedPriceService(t *testing.T) {
	prices := &fakePrices{closes: map[string]map[time.Time]float64{
		"AAA": {day(1, 1): 100, day(1, 2): 101},
		"BBB": {day(1, 2): 50},
	}}
	cache := newMapCache()
	svc := NewCachedPriceService(prices, cache, logger.Nop())
	svc.now = func() time.Time { return day(3, 1) }

	first, err := svc.FetchPrices(context.Background(), []string{"BBB", "AAA"}, day(1, 1), day(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, prices.calls)

	// symbol order does not change the key; the hit bypasses the service
	second, err := svc.FetchPrices(context.Background(), []string{"AAA", "BBB"}, day(1, 1), day(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, prices.calls)
	assert.ElementsMatch(t, first, second)

	for _, ttl := range cache.ttls {
		assert.Equal(t, 24*time.Hour, ttl)
	}
}

func TestCachedPriceServiceEvictsUnreadableEntry(t *testing.T) {
	prices := &fakePrices{closes: map[string]map[time.Time]float64{
		"AAA": {day(1, 1): 100, day(1, 2): 101},
	}}
	cache := newMapCache()
	key := redis.PriceBatchKey([]string{"AAA"}, day(1, 1), day(1, 2))
	cache.data[key] = []byte("{not json")

	svc := NewCachedPriceService(prices, cache, logger.Nop())
	svc.now = func() time.Time { return day(3, 1) }

	bars, err := svc.FetchPrices(context.Background(), []string{"AAA"}, day(1, 1), day(1, 2))
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, 1, prices.calls)

	// the entry was replaced with the fresh response
	var stored []contracts.PriceBar
	require.NoError(t, json.Unmarshal(cache.data[key], &stored))
	assert.Len(t, stored, 2)

	_, err = svc.FetchPrices(context.Background(), []string{"AAA"}, day(1, 1), day(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, prices.calls)
}

// flakyChart serves two daily bars per symbol and fails the symbols in down
type flakyChart struct {
	mu    sync.Mutex
	down  map[string]bool
	calls map[string]int
}

func (f *flakyChart) fetch(_ context.Context, symbol string, _, _ time.Time) ([]yahoo.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if f.down[symbol] {
		return nil, errors.New("503 service unavailable")
	}
	bar := func(d time.Time, c int64) yahoo.Bar {
		return yahoo.Bar{Timestamp: int(d.Add(15 * time.Hour).Unix()), Close: decimal.NewFromInt(c)}
	}
	return []yahoo.Bar{bar(day(1, 1), 100), bar(day(1, 2), 101)}, nil
}

func TestFetchRecordsPartialBatchFailure(t *testing.T) {
	chart := &flakyChart{down: map[string]bool{"BBB": true}, calls: map[string]int{}}
	client := yahoo.NewWithChart(yahoo.Config{RPS: 1000, MaxRetries: 1, InitialInterval: time.Millisecond}, chart.fetch, logger.Nop())

	req := RequestFor([]contracts.PredictionRecord{
		pred(day(1, 2), contracts.UniverseSP500, "AAA"),
		pred(day(1, 2), contracts.UniverseSP500, "BBB"),
	})
	result, err := NewFetcher(client, logger.Nop()).Fetch(context.Background(), req, defaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA"}, result.Fetched)
	assert.Empty(t, result.Missing)
	assert.Equal(t, []string{"BBB"}, result.FailedSymbols())
	assert.Len(t, result.Records, 1)
}

func TestCachedPriceServiceSkipsFailedBatches(t *testing.T) {
	chart := &flakyChart{down: map[string]bool{"BBB": true}, calls: map[string]int{}}
	client := yahoo.NewWithChart(yahoo.Config{RPS: 1000, MaxRetries: 0, InitialInterval: time.Millisecond}, chart.fetch, logger.Nop())
	cache := newMapCache()
	svc := NewCachedPriceService(client, cache, logger.Nop())
	svc.now = func() time.Time { return day(3, 1) }
	fetcher := NewFetcher(svc, logger.Nop())

	req := RequestFor([]contracts.PredictionRecord{
		pred(day(1, 2), contracts.UniverseSP500, "AAA"),
		pred(day(1, 2), contracts.UniverseSP500, "BBB"),
	})

	first, err := fetcher.Fetch(context.Background(), req, defaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB"}, first.FailedSymbols())
	assert.Empty(t, cache.data, "a batch with failures is not cached")

	// BBB recovers: the next run asks the source again
	chart.mu.Lock()
	chart.down["BBB"] = false
	chart.mu.Unlock()

	second, err := fetcher.Fetch(context.Background(), req, defaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, second.Fetched)
	assert.Empty(t, second.FailedSymbols())
	assert.Equal(t, 2, chart.calls["BBB"])
	assert.Len(t, cache.data, 1)
}
