package universe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/internal/schema"
	"github.com/wonny/skilltrack/pkg/httputil"
	"github.com/wonny/skilltrack/pkg/logger"
)

// ErrNoConstituentTable is returned when a page has no table with a ticker column
var ErrNoConstituentTable = errors.New("no constituents table found")

// Scraper fetches index constituents from public listing pages
// ⭐ SSOT: 유니버스 구성종목 스크래핑은 여기서만
type Scraper struct {
	client *httputil.Client
	logger *logger.Logger
}

// NewScraper creates a new constituents scraper
func NewScraper(client *httputil.Client, log *logger.Logger) *Scraper {
	return &Scraper{
		client: client,
		logger: log.WithField("module", "universe"),
	}
}

// Constituents downloads url and extracts its constituent symbols
func (s *Scraper) Constituents(ctx context.Context, url string) ([]string, error) {
	body, err := s.client.GetBody(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents page: %w", err)
	}
	return ParseConstituents(bytes.NewReader(body))
}

// Sync scrapes every catalog universe that has a source URL and returns its
// membership as of asOf. Universes that fail are logged and skipped; an error
// is returned only when nothing could be scraped.
func (s *Scraper) Sync(ctx context.Context, cat *Catalog, asOf time.Time) ([]contracts.MembershipRecord, error) {
	asOf = contracts.TruncateDate(asOf)

	var (
		records []contracts.MembershipRecord
		errs    []error
	)
	for _, u := range cat.Universes() {
		url, _ := cat.SourceURL(u)
		symbols, err := s.Constituents(ctx, url)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"universe": u,
				"url":      url,
			}).WithError(err).Warn("Constituents scrape failed")
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			continue
		}

		for _, sym := range symbols {
			records = append(records, contracts.MembershipRecord{AsOf: asOf, Universe: u, Symbol: sym})
		}
		s.logger.WithFields(map[string]interface{}{
			"universe": u,
			"symbols":  len(symbols),
		}).Info("Constituents scraped")
	}

	if len(records) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return records, nil
}

// ParseConstituents finds the first table whose header has a ticker or
// symbol column and returns the canonical, deduplicated, sorted symbols.
func ParseConstituents(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var symbols []string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		col := tickerColumn(table)
		if col < 0 {
			return true
		}

		seen := make(map[string]struct{})
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Children().Filter("td, th")
			if row.Find("td").Length() == 0 || col >= cells.Length() {
				return
			}
			sym, err := schema.CanonicalSymbol(cells.Eq(col).Text())
			if err != nil {
				return
			}
			if _, dup := seen[sym]; !dup {
				seen[sym] = struct{}{}
				symbols = append(symbols, sym)
			}
		})
		return len(symbols) == 0
	})

	if len(symbols) == 0 {
		return nil, ErrNoConstituentTable
	}
	sort.Strings(symbols)
	return symbols, nil
}

// tickerColumn returns the index of the ticker/symbol header cell, or -1
func tickerColumn(table *goquery.Selection) int {
	col := -1
	table.Find("tr").First().Children().Filter("th, td").EachWithBreak(func(i int, cell *goquery.Selection) bool {
		h := strings.ToLower(strings.TrimSpace(cell.Text()))
		if strings.Contains(h, "ticker") || strings.Contains(h, "symbol") {
			col = i
			return false
		}
		return true
	})
	return col
}
