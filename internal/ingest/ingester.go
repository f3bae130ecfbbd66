package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/internal/schema"
	"github.com/wonny/skilltrack/pkg/logger"
)

// Status is the outcome of one artifact
type Status string

const (
	StatusParsed  Status = "parsed"
	StatusSkipped Status = "skipped" // schema mismatch
	StatusErrored Status = "errored" // I/O or malformed CSV
)

// FileOutcome records what happened to one artifact
type FileOutcome struct {
	Path        string             `json:"path"`
	Universe    contracts.Universe `json:"universe"`
	Status      Status             `json:"status"`
	Rows        int                `json:"rows"`
	DroppedRows int                `json:"dropped_rows"`
	Err         error              `json:"-"`
}

// Result is the normalized, deduplicated prediction table of a run
type Result struct {
	Records     []contracts.PredictionRecord
	Files       []FileOutcome
	DroppedRows int
	Duplicates  int // exact duplicates removed
	Conflicts   int // same natural key, different values
	Duration    time.Duration
}

// ArtifactCount returns the number of artifacts discovered
func (r *Result) ArtifactCount() int {
	return len(r.Files)
}

// Count returns the number of files with the given status
func (r *Result) Count(status Status) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Config holds ingester configuration
type Config struct {
	Workers int // Number of concurrent file parsers
}

// Ingester discovers and normalizes prediction artifacts
// ⭐ SSOT: 예측 아티팩트 수집은 이 패키지에서만
type Ingester struct {
	store  contracts.ArtifactStore
	mapper contracts.UniverseMapper
	logger *logger.Logger
}

// NewIngester creates a new Ingester instance
func NewIngester(store contracts.ArtifactStore, mapper contracts.UniverseMapper, log *logger.Logger) *Ingester {
	return &Ingester{
		store:  store,
		mapper: mapper,
		logger: log.WithField("module", "ingest"),
	}
}

// Ingest parses every artifact. A failing file never aborts the others;
// only a listing failure or cancellation returns an error. No artifacts
// yields an empty Result.
func (i *Ingester) Ingest(ctx context.Context, rc contracts.RunContext, cfg Config) (*Result, error) {
	start := time.Now()

	paths, err := i.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	result := &Result{Files: make([]FileOutcome, len(paths))}
	if len(paths) == 0 {
		i.logger.Warn("No prediction artifacts found")
		return result, nil
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	i.logger.WithFields(map[string]interface{}{
		"files":   len(paths),
		"workers": workers,
		"run_id":  rc.RunID,
	}).Info("Starting prediction ingest")

	decoder := schema.NewDecoder(rc.RunTimestamp, i.logger)

	// 파일 인덱스별 슬롯에 기록 → 목록 순서 유지, 공유 상태 없음
	decoded := make([][]contracts.PredictionRecord, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for idx, path := range paths {
		g.Go(func() error {
			outcome, records := i.ingestFile(gctx, decoder, path)
			result.Files[idx] = outcome
			decoded[idx] = records
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest cancelled: %w", err)
	}

	var all []contracts.PredictionRecord
	for idx := range paths {
		all = append(all, decoded[idx]...)
		result.DroppedRows += result.Files[idx].DroppedRows
	}

	result.Records, result.Duplicates, result.Conflicts = Dedup(all)
	result.Duration = time.Since(start)

	i.logger.WithFields(map[string]interface{}{
		"parsed":       result.Count(StatusParsed),
		"skipped":      result.Count(StatusSkipped),
		"errored":      result.Count(StatusErrored),
		"rows":         len(result.Records),
		"dropped_rows": result.DroppedRows,
		"duplicates":   result.Duplicates,
		"conflicts":    result.Conflicts,
		"duration":     result.Duration,
	}).Info("Prediction ingest completed")

	return result, nil
}

func (i *Ingester) ingestFile(ctx context.Context, decoder *schema.Decoder, path string) (FileOutcome, []contracts.PredictionRecord) {
	outcome := FileOutcome{Path: path, Universe: i.mapper(path)}
	log := i.logger.WithFields(map[string]interface{}{
		"path":     path,
		"universe": outcome.Universe,
	})

	rc, err := i.store.Open(ctx, path)
	if err != nil {
		outcome.Status = StatusErrored
		outcome.Err = err
		log.WithError(err).Error("Failed to open artifact")
		return outcome, nil
	}
	defer rc.Close()

	out, err := decoder.Decode(path, rc, outcome.Universe)
	if err != nil {
		var schemaErr *contracts.SchemaError
		if errors.As(err, &schemaErr) {
			outcome.Status = StatusSkipped
			log.WithError(err).Warn("Skipping artifact with unrecognized schema")
		} else {
			outcome.Status = StatusErrored
			log.WithError(err).Error("Failed to parse artifact")
		}
		outcome.Err = err
		return outcome, nil
	}

	outcome.Status = StatusParsed
	outcome.Rows = len(out.Records)
	outcome.DroppedRows = out.Dropped
	if out.Dropped > 0 {
		log.WithFields(map[string]interface{}{
			"dropped": out.Dropped,
			"reasons": out.DropReasons,
		}).Warn("Dropped malformed rows")
	}
	return outcome, out.Records
}

// Dedup removes exact duplicates by natural key, keeping first-seen order.
// Rows sharing a key with different content are conflicts: the later
// run_timestamp wins, ties go to the lexically later source path.
func Dedup(records []contracts.PredictionRecord) (out []contracts.PredictionRecord, duplicates, conflicts int) {
	index := make(map[contracts.PredictionKey]int, len(records))
	out = make([]contracts.PredictionRecord, 0, len(records))

	for _, r := range records {
		pos, seen := index[r.Key()]
		if !seen {
			index[r.Key()] = len(out)
			out = append(out, r)
			continue
		}

		kept := out[pos]
		if kept.SameValue(r) {
			duplicates++
			continue
		}
		conflicts++
		if supersedes(r, kept) {
			out[pos] = r
		}
	}
	return out, duplicates, conflicts
}

func supersedes(candidate, kept contracts.PredictionRecord) bool {
	if !candidate.RunTimestamp.Equal(kept.RunTimestamp) {
		return candidate.RunTimestamp.After(kept.RunTimestamp)
	}
	return candidate.SourcePath > kept.SourcePath
}

// Universes returns the distinct universes present, sorted
func (r *Result) Universes() []contracts.Universe {
	seen := make(map[contracts.Universe]struct{})
	for _, rec := range r.Records {
		seen[rec.Universe] = struct{}{}
	}
	out := make([]contracts.Universe, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
