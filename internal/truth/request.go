package truth

import (
	"sort"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/config"
)

// Request describes the truth needed to reconcile a prediction set
type Request struct {
	Symbols  []string // sorted, unique
	Earliest time.Time
	Latest   time.Time

	// Membership maps each symbol to the universes it was predicted in
	Membership map[string][]contracts.Universe
}

// RequestFor derives the symbols, date span and membership of predictions
func RequestFor(preds []contracts.PredictionRecord) Request {
	req := Request{Membership: make(map[string][]contracts.Universe)}
	if len(preds) == 0 {
		return req
	}

	seen := make(map[string]map[contracts.Universe]struct{})
	for _, p := range preds {
		if req.Earliest.IsZero() || p.Date.Before(req.Earliest) {
			req.Earliest = p.Date
		}
		if p.Date.After(req.Latest) {
			req.Latest = p.Date
		}
		if seen[p.Symbol] == nil {
			seen[p.Symbol] = make(map[contracts.Universe]struct{})
		}
		seen[p.Symbol][p.Universe] = struct{}{}
	}

	for sym, universes := range seen {
		req.Symbols = append(req.Symbols, sym)
		list := make([]contracts.Universe, 0, len(universes))
		for u := range universes {
			list = append(list, u)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		req.Membership[sym] = list
	}
	sort.Strings(req.Symbols)
	return req
}

// RequestForMembership asks for every constituent in members over
// [since, until], each symbol attributed to the universes it belongs to
func RequestForMembership(members []contracts.MembershipRecord, since, until time.Time) Request {
	req := Request{
		Earliest:   contracts.TruncateDate(since),
		Latest:     contracts.TruncateDate(until),
		Membership: make(map[string][]contracts.Universe),
	}
	for _, m := range members {
		if m.Symbol == "" {
			continue
		}
		list, seen := req.Membership[m.Symbol]
		if !seen {
			req.Symbols = append(req.Symbols, m.Symbol)
		}
		if !containsUniverse(list, m.Universe) {
			list = append(list, m.Universe)
			sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		}
		req.Membership[m.Symbol] = list
	}
	sort.Strings(req.Symbols)
	return req
}

func containsUniverse(list []contracts.Universe, u contracts.Universe) bool {
	for _, v := range list {
		if v == u {
			return true
		}
	}
	return false
}

// Empty reports whether there is nothing to fetch
func (r Request) Empty() bool {
	return len(r.Symbols) == 0
}

// Window returns the inclusive fetch range, padded before the earliest date
// so the first required date has a predecessor close
func (r Request) Window(paddingDays int) (start, end time.Time) {
	return r.Earliest.AddDate(0, 0, -paddingDays), r.Latest
}

// MaxBatchSize is the most symbols sent in one price request
const MaxBatchSize = config.MaxTruthBatchSize

// Batches splits sorted symbols into consecutive chunks of at most size,
// clamped to [1, MaxBatchSize]
func Batches(symbols []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	if size > MaxBatchSize {
		size = MaxBatchSize
	}
	var out [][]string
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[start:end])
	}
	return out
}
