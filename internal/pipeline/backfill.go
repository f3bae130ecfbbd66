package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/internal/truth"
	"github.com/wonny/skilltrack/internal/warehouse"
	"github.com/wonny/skilltrack/pkg/logger"
)

// ErrNoMembership is returned when no constituent snapshot is stored for a universe
var ErrNoMembership = errors.New("no stored membership for universe")

// BackfillConfig selects the universe and date span to backfill
type BackfillConfig struct {
	Universe contracts.Universe
	Since    time.Time
	Until    time.Time
	Truth    truth.Config
}

// BackfillResult is the outcome of a membership-driven truth backfill
type BackfillResult struct {
	Members   int
	Truth     *truth.Result
	Persisted int
}

// Backfiller fetches truth for every stored constituent of a universe
type Backfiller struct {
	fetcher *truth.Fetcher
	gateway *warehouse.Gateway
	logger  *logger.Logger
}

// NewBackfiller creates a new Backfiller instance
func NewBackfiller(fetcher *truth.Fetcher, gateway *warehouse.Gateway, log *logger.Logger) *Backfiller {
	return &Backfiller{
		fetcher: fetcher,
		gateway: gateway,
		logger:  log.WithField("module", "backfill"),
	}
}

// Run reads the latest membership snapshot of cfg.Universe, fetches truth
// for [Since, Until] and appends it to the truth table
func (b *Backfiller) Run(ctx context.Context, cfg BackfillConfig) (*BackfillResult, error) {
	if cfg.Until.Before(cfg.Since) {
		return nil, fmt.Errorf("backfill window ends before it starts: %s > %s",
			cfg.Since.Format(contracts.DateLayout), cfg.Until.Format(contracts.DateLayout))
	}

	members, ok, err := b.gateway.Membership(ctx, cfg.Universe)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("warehouse cannot read membership back")
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoMembership, cfg.Universe)
	}

	req := truth.RequestForMembership(members, cfg.Since, cfg.Until)
	result, err := b.fetcher.Fetch(ctx, req, cfg.Truth)
	if err != nil {
		return nil, err
	}

	out := &BackfillResult{Members: len(members), Truth: result}
	out.Persisted, err = b.gateway.AppendTruth(ctx, result.Records)
	if err != nil {
		return out, err
	}

	b.logger.WithFields(map[string]interface{}{
		"universe":  cfg.Universe,
		"members":   out.Members,
		"fetched":   len(result.Fetched),
		"failed":    len(result.FailedSymbols()),
		"persisted": out.Persisted,
	}).Info("Truth backfill completed")
	return out, nil
}
