package contracts

import (
	"context"
	"io"
	"time"
)

// PriceService returns daily closes for symbols over an inclusive date range.
// Symbols without data are omitted. A *FetchError may accompany the bars and
// names the symbols that failed; any other error means the whole call failed.
// ⭐ SSOT: 외부 가격 소스 인터페이스
type PriceService interface {
	FetchPrices(ctx context.Context, symbols []string, start, end time.Time) ([]PriceBar, error)
}

// ArtifactStore lists and opens prediction CSV artifacts
// ⭐ SSOT: 예측 아티팩트 저장소 인터페이스
type ArtifactStore interface {
	// List returns every *.csv path below the store root, sorted
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ReportInput is what a renderer receives at the end of a run
type ReportInput struct {
	Run            RunContext
	Metrics        []MetricRecord
	History        []MetricRecord
	ReconciledRows int
	Predictions    int
}

// Renderer produces a human-readable report from run metrics
type Renderer interface {
	Render(ctx context.Context, in ReportInput) error
}

// UniverseMapper derives a universe from an artifact path. Must be pure.
type UniverseMapper func(path string) Universe
