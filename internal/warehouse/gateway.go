package warehouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
)

// Gateway deduplicates batches by natural key before handing them to a store
// ⭐ SSOT: 웨어하우스 적재는 이 Gateway를 통해서만
type Gateway struct {
	store  TableStore
	logger *logger.Logger
}

// NewGateway creates a new persistence gateway
func NewGateway(store TableStore, log *logger.Logger) *Gateway {
	return &Gateway{
		store:  store,
		logger: log.WithField("module", "warehouse"),
	}
}

// Append writes rows to spec. Every failure is a *contracts.PersistenceError.
func (g *Gateway) Append(ctx context.Context, spec TableSpec, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := spec.Validate(rows); err != nil {
		return 0, &contracts.PersistenceError{Table: spec.Name, Rows: len(rows), Err: err}
	}

	deduped, err := Dedup(spec, rows)
	if err != nil {
		return 0, &contracts.PersistenceError{Table: spec.Name, Rows: len(rows), Err: err}
	}

	start := time.Now()
	n, err := g.store.Append(ctx, spec, deduped)
	if err != nil {
		g.logger.WithError(err).WithFields(map[string]interface{}{
			"table": spec.Name,
			"rows":  len(deduped),
		}).Error("Warehouse append failed")
		return 0, &contracts.PersistenceError{Table: spec.Name, Rows: len(deduped), Err: err}
	}

	g.logger.WithFields(map[string]interface{}{
		"table":    spec.Name,
		"rows":     n,
		"deduped":  len(rows) - len(deduped),
		"duration": time.Since(start),
	}).Info("Warehouse append completed")
	return n, nil
}

// AppendMetrics persists metric records
func (g *Gateway) AppendMetrics(ctx context.Context, records []contracts.MetricRecord) (int, error) {
	return g.Append(ctx, MetricsTable, MetricRows(records))
}

// AppendPredictions persists normalized predictions
func (g *Gateway) AppendPredictions(ctx context.Context, records []contracts.PredictionRecord) (int, error) {
	return g.Append(ctx, PredictionsTable, PredictionRows(records))
}

// AppendTruth persists realized returns
func (g *Gateway) AppendTruth(ctx context.Context, records []contracts.TruthRecord) (int, error) {
	return g.Append(ctx, TruthTable, TruthRows(records))
}

// AppendMembership persists universe constituents
func (g *Gateway) AppendMembership(ctx context.Context, records []contracts.MembershipRecord) (int, error) {
	return g.Append(ctx, MembershipTable, MembershipRows(records))
}

// MetricHistory reads the metric history back, ordered by run_date, when
// the store supports reads. ok is false otherwise.
func (g *Gateway) MetricHistory(ctx context.Context) (history []contracts.MetricRecord, ok bool, err error) {
	reader, ok := g.store.(TableReader)
	if !ok {
		return nil, false, nil
	}

	rows, err := reader.Read(ctx, MetricsTable)
	if err != nil {
		return nil, true, fmt.Errorf("read metric history: %w", err)
	}

	history = make([]contracts.MetricRecord, 0, len(rows))
	for _, r := range rows {
		m, err := MetricFromRow(r)
		if err != nil {
			return nil, true, err
		}
		history = append(history, m)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].RunDate.Before(history[j].RunDate)
	})
	return history, true, nil
}

// Membership returns the latest stored constituent snapshot of u, sorted by
// symbol. ok is false when the store does not support reads.
func (g *Gateway) Membership(ctx context.Context, u contracts.Universe) (members []contracts.MembershipRecord, ok bool, err error) {
	reader, ok := g.store.(TableReader)
	if !ok {
		return nil, false, nil
	}

	rows, err := reader.Read(ctx, MembershipTable)
	if err != nil {
		return nil, true, fmt.Errorf("read membership: %w", err)
	}

	var latest time.Time
	for _, r := range rows {
		m, err := MembershipFromRow(r)
		if err != nil {
			return nil, true, err
		}
		if m.Universe != u {
			continue
		}
		switch {
		case m.AsOf.After(latest):
			latest = m.AsOf
			members = append(members[:0], m)
		case m.AsOf.Equal(latest):
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Symbol < members[j].Symbol })

	g.logger.WithFields(map[string]interface{}{
		"universe": u,
		"as_of":    latest,
		"members":  len(members),
	}).Debug("Membership snapshot loaded")
	return members, true, nil
}
