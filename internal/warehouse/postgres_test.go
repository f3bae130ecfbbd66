package warehouse

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/config"
	"github.com/wonny/skilltrack/pkg/database"
	"github.com/wonny/skilltrack/pkg/logger"
)

func newTestPostgres(t *testing.T) (*PostgresStore, *database.DB) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(&config.Config{Database: config.DatabaseConfig{
		URL:             url,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	store := NewPostgresStore(db.Pool)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, store.EnsureSchema(ctx))
	return store, db
}

func TestPostgresStoreMetricsRoundTrip(t *testing.T) {
	store, db := newTestPostgres(t)
	gw := NewGateway(store, logger.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	model := fmt.Sprintf("roundtrip-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(),
			fmt.Sprintf("DELETE FROM %s.%s WHERE model_name = $1", Schema, MetricsTable.Name), model)
	})

	records := []contracts.MetricRecord{
		metric(contracts.UniverseSP500, model, contracts.Float(0.25)),
		metric(contracts.UniverseDOW30, model, nil),
	}
	for i := 0; i < 2; i++ {
		n, err := gw.AppendMetrics(ctx, records)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	history, ok, err := gw.MetricHistory(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	got := make(map[contracts.Universe]contracts.MetricRecord)
	for _, m := range history {
		if m.ModelName == model {
			got[m.Universe] = m
		}
	}
	require.Len(t, got, 2, "re-append upserts instead of duplicating")

	sp := got[contracts.UniverseSP500]
	require.NotNil(t, sp.RMSE)
	assert.Equal(t, 0.25, *sp.RMSE)
	assert.True(t, sp.RunDate.Equal(runDate))
	assert.True(t, sp.RunTimestamp.Equal(runTS))
	assert.Equal(t, 3, sp.SampleCount)

	dow := got[contracts.UniverseDOW30]
	assert.Nil(t, dow.RMSE)
	assert.Nil(t, dow.MAPE)
	require.NotNil(t, dow.DirectionalAccuracy)
	assert.Equal(t, 0.5, *dow.DirectionalAccuracy)

	// a new value for the same key replaces the stored one
	_, err = gw.AppendMetrics(ctx, []contracts.MetricRecord{metric(contracts.UniverseDOW30, model, contracts.Float(0.75))})
	require.NoError(t, err)
	history, _, err = gw.MetricHistory(ctx)
	require.NoError(t, err)
	for _, m := range history {
		if m.ModelName == model && m.Universe == contracts.UniverseDOW30 {
			require.NotNil(t, m.RMSE)
			assert.Equal(t, 0.75, *m.RMSE)
		}
	}
}

func TestPostgresStoreMembershipRoundTrip(t *testing.T) {
	store, db := newTestPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	symbol := fmt.Sprintf("RT%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(),
			fmt.Sprintf("DELETE FROM %s.%s WHERE symbol = $1", Schema, MembershipTable.Name), symbol)
	})

	rows := MembershipRows([]contracts.MembershipRecord{
		{AsOf: runDate, Universe: contracts.UniverseNASDAQ100, Symbol: symbol},
	})
	for i := 0; i < 2; i++ {
		_, err := store.Append(ctx, MembershipTable, rows)
		require.NoError(t, err)
	}

	read, err := store.Read(ctx, MembershipTable)
	require.NoError(t, err)

	var found []contracts.MembershipRecord
	for _, r := range read {
		m, err := MembershipFromRow(r)
		require.NoError(t, err)
		if m.Symbol == symbol {
			found = append(found, m)
		}
	}
	require.Len(t, found, 1)
	assert.Equal(t, contracts.UniverseNASDAQ100, found[0].Universe)
	assert.True(t, found[0].AsOf.Equal(runDate))
}
