package yahoo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
)

// ErrNoData is returned for a symbol Yahoo has no bars for in the range
var ErrNoData = errors.New("no price data")

// Bar is a daily bar as returned by the chart endpoint
type Bar struct {
	Timestamp int
	Close     decimal.Decimal
	AdjClose  decimal.Decimal
}

// ChartFunc fetches daily bars for one symbol over [start, end)
type ChartFunc func(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)

// Config holds Yahoo client configuration
type Config struct {
	RPS             int           // chart requests per second
	MaxRetries      int           // retries per symbol after the first attempt
	InitialInterval time.Duration // first retry delay
}

// Client implements contracts.PriceService on top of the Yahoo chart API
// ⭐ SSOT: Yahoo Finance 가격 호출은 이 패키지에서만
type Client struct {
	cfg     Config
	limiter *rate.Limiter
	chart   ChartFunc
	logger  *logger.Logger
}

// New creates a new Yahoo client
func New(cfg Config, log *logger.Logger) *Client {
	return NewWithChart(cfg, fetchChart, log)
}

// NewWithChart creates a client with a custom chart source
func NewWithChart(cfg Config, fn ChartFunc, log *logger.Logger) *Client {
	if cfg.RPS < 1 {
		cfg.RPS = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	return &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
		chart:   fn,
		logger:  log.WithField("module", "yahoo"),
	}
}

// FetchPrices returns daily closes for symbols over [start, end] inclusive.
// Symbols without data are omitted. Symbols failing after retries are
// reported as a *contracts.FetchError returned next to the bars of the
// symbols that succeeded; when every symbol failed the bars are nil.
func (c *Client) FetchPrices(ctx context.Context, symbols []string, start, end time.Time) ([]contracts.PriceBar, error) {
	start = contracts.TruncateDate(start)
	end = contracts.TruncateDate(end)

	var (
		bars    []contracts.PriceBar
		failed  []string
		lastErr error
		noData  int
	)
	for _, sym := range symbols {
		got, err := c.fetchSymbol(ctx, sym, start, end)
		switch {
		case errors.Is(err, ErrNoData):
			noData++
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed = append(failed, sym)
			lastErr = err
			c.logger.WithField("symbol", sym).WithError(err).Warn("Price fetch failed")
			continue
		}
		bars = append(bars, got...)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"bars":    len(bars),
		"failed":  len(failed),
		"no_data": noData,
	}).Debug("Fetched prices")

	if len(failed) == 0 {
		return bars, nil
	}
	if len(failed) == len(symbols) {
		return nil, &contracts.FetchError{Symbols: failed, Err: fmt.Errorf("all %d symbols failed: %w", len(failed), lastErr)}
	}
	return bars, &contracts.FetchError{Symbols: failed, Err: lastErr}
}

func (c *Client) fetchSymbol(ctx context.Context, symbol string, start, end time.Time) ([]contracts.PriceBar, error) {
	var raw []Bar
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		// chart end is exclusive
		bars, err := c.chart(ctx, symbol, start, end.AddDate(0, 0, 1))
		if err != nil {
			if errors.Is(err, ErrNoData) {
				return backoff.Permanent(err)
			}
			return err
		}
		raw = bars
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"wait":   wait,
		}).WithError(err).Debug("Retrying chart request")
	}
	if err := backoff.RetryNotify(operation, retry, notify); err != nil {
		return nil, err
	}

	return toPriceBars(symbol, raw, start, end), nil
}

// toPriceBars converts chart bars, preferring adjusted close, and keeps only
// bars inside [start, end]
func toPriceBars(symbol string, raw []Bar, start, end time.Time) []contracts.PriceBar {
	out := make([]contracts.PriceBar, 0, len(raw))
	for _, b := range raw {
		price := b.AdjClose
		if price.IsZero() {
			price = b.Close
		}
		date := contracts.TruncateDate(time.Unix(int64(b.Timestamp), 0).UTC())
		if date.Before(start) || date.After(end) {
			continue
		}
		out = append(out, contracts.PriceBar{
			Symbol: symbol,
			Date:   date,
			Close:  price.InexactFloat64(),
		})
	}
	return out
}

// fetchChart calls the Yahoo chart endpoint
func fetchChart(_ context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var bars []Bar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, Bar{
			Timestamp: b.Timestamp,
			Close:     b.Close,
			AdjClose:  b.AdjClose,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}
