package ingest

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/internal/universe"
	"github.com/wonny/skilltrack/pkg/logger"
)

// memStore serves artifacts from memory; paths listed in broken fail to open
type memStore struct {
	files  map[string]string
	broken map[string]bool
}

func (m *memStore) List(context.Context) ([]string, error) {
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *memStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	if m.broken[path] {
		return nil, errors.New("permission denied")
	}
	return io.NopCloser(strings.NewReader(m.files[path])), nil
}

var rc = contracts.NewRunContext(time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC))

func newIngester(store contracts.ArtifactStore) *Ingester {
	return NewIngester(store, universe.DefaultCatalog().Mapper("predictions"), logger.Nop())
}

func TestIngestDuplicateFiles(t *testing.T) {
	body := "date,symbol,pred_log_ret,model_name,version\n2024-01-02,AAA,0.01,m1,v1\n"
	store := &memStore{files: map[string]string{
		"artifacts/predictions/SP500/run_a.csv": body,
		"artifacts/predictions/SP500/run_b.csv": body,
	}}

	result, err := newIngester(store).Ingest(context.Background(), rc, Config{Workers: 2})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 0, result.Conflicts)
	assert.Equal(t, 2, result.Count(StatusParsed))

	rec := result.Records[0]
	assert.Equal(t, contracts.UniverseSP500, rec.Universe)
	assert.Equal(t, "AAA", rec.Symbol)
	assert.Equal(t, "artifacts/predictions/SP500/run_a.csv", rec.SourcePath)
}

func TestIngestPartialFailure(t *testing.T) {
	store := &memStore{
		files: map[string]string{
			"artifacts/predictions/SP500/good.csv":    "Date,Ticker,pred\n2024-01-02,aapl,0.01\nbad,msft,0.02\n",
			"artifacts/predictions/DOW30/schema.csv":  "date,symbol,score\n2024-01-02,IBM,0.5\n",
			"artifacts/predictions/NDX/broken.csv":    "date,symbol,pred\n",
			"artifacts/predictions/NDX/malformed.csv": "date,symbol,pred\n2024-01-02,\"AAPL,0.1\n",
		},
		broken: map[string]bool{"artifacts/predictions/NDX/broken.csv": true},
	}

	result, err := newIngester(store).Ingest(context.Background(), rc, Config{Workers: 3})
	require.NoError(t, err)

	assert.Equal(t, 4, result.ArtifactCount())
	assert.Equal(t, 1, result.Count(StatusParsed))
	assert.Equal(t, 1, result.Count(StatusSkipped))
	assert.Equal(t, 2, result.Count(StatusErrored))
	assert.Equal(t, 1, result.DroppedRows)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "AAPL", result.Records[0].Symbol)

	for _, f := range result.Files {
		switch f.Status {
		case StatusSkipped:
			var schemaErr *contracts.SchemaError
			require.True(t, errors.As(f.Err, &schemaErr))
			assert.Equal(t, "pred_log_ret", schemaErr.Concept)
		case StatusErrored:
			assert.Error(t, f.Err)
		}
	}
}

func TestIngestNoArtifacts(t *testing.T) {
	result, err := newIngester(&memStore{}).Ingest(context.Background(), rc, Config{Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ArtifactCount())
	assert.Empty(t, result.Records)
}

func TestIngestUnknownUniverse(t *testing.T) {
	store := &memStore{files: map[string]string{
		"elsewhere/run.csv": "date,symbol,pred\n2024-01-02,AAA,0.01\n",
	}}
	result, err := newIngester(store).Ingest(context.Background(), rc, Config{Workers: 1})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, contracts.UniverseUnknown, result.Records[0].Universe)
}

func TestDedupConflicts(t *testing.T) {
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	early := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	base := contracts.PredictionRecord{Date: d, Universe: contracts.UniverseSP500, Symbol: "AAA", ModelName: "m1", Version: "v1"}

	a := base
	a.PredLogRet, a.RunTimestamp, a.SourcePath = 0.01, late, "a.csv"
	b := base
	b.PredLogRet, b.RunTimestamp, b.SourcePath = 0.02, early, "b.csv"
	other := base
	other.Symbol, other.PredLogRet = "BBB", 0.03

	out, dups, conflicts := Dedup([]contracts.PredictionRecord{a, other, b})
	require.Len(t, out, 2)
	assert.Equal(t, 0, dups)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 0.01, out[0].PredLogRet, "later run_timestamp wins")
	assert.Equal(t, "BBB", out[1].Symbol)

	// tie on run_timestamp: later source path wins
	c := a
	c.PredLogRet, c.SourcePath = 0.05, "z.csv"
	out, _, conflicts = Dedup([]contracts.PredictionRecord{c, a})
	require.Len(t, out, 1)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, "z.csv", out[0].SourcePath)

	// universe is part of the key
	d2 := a
	d2.Universe = contracts.UniverseDOW30
	out, dups, conflicts = Dedup([]contracts.PredictionRecord{a, d2})
	assert.Len(t, out, 2)
	assert.Zero(t, dups)
	assert.Zero(t, conflicts)
}
