package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
)

var _ contracts.Renderer = (*HTMLRenderer)(nil)

func input() contracts.ReportInput {
	rc := contracts.NewRunContext(time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC))
	current := contracts.MetricRecord{
		RunDate: rc.RunDate, Universe: contracts.UniverseSP500, ModelName: "lgbm|fast", Version: "v1",
		SampleCount: 10, RMSE: contracts.Float(0.0123456), DirectionalAccuracy: contracts.Float(0.6),
	}
	previous := current
	previous.RunDate = rc.RunDate.AddDate(0, 0, -1)

	return contracts.ReportInput{
		Run:            rc,
		Metrics:        []contracts.MetricRecord{current},
		History:        []contracts.MetricRecord{previous, current},
		ReconciledRows: 10,
		Predictions:    12,
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(input(), 0)

	assert.Contains(t, md, "## Model Tracker — 2024-01-10")
	assert.Contains(t, md, "Predictions ingested: **12**")
	assert.Contains(t, md, `lgbm\|fast`)
	assert.Contains(t, md, "| 0.0123 |")
	assert.Contains(t, md, "| "+Missing+" |")
	assert.Contains(t, md, "### History")
	assert.Contains(t, md, "| 2024-01-09 |")
}

func TestMarkdownHistoryCap(t *testing.T) {
	md := Markdown(input(), 1)
	assert.NotContains(t, md, "2024-01-09")
}

func TestMarkdownEmptyRun(t *testing.T) {
	in := input()
	in.Metrics = nil
	in.History = nil
	md := Markdown(in, 0)
	assert.Contains(t, md, "(no data)")
	assert.NotContains(t, md, "### History")
}

func TestRenderWritesHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "model_skill_over_time.html")
	r := NewHTMLRenderer(path, logger.Nop())

	require.NoError(t, r.Render(context.Background(), input()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(raw)

	assert.True(t, strings.HasPrefix(doc, "<!doctype html>"))
	assert.Contains(t, doc, "<table>")
	assert.Contains(t, doc, "<th>rmse</th>")
	assert.Contains(t, doc, "lgbm|fast")
	assert.Contains(t, doc, "<title>Model Tracker — 2024-01-10</title>")
}

func TestFormatMetric(t *testing.T) {
	assert.Equal(t, Missing, FormatMetric(nil))
	assert.Equal(t, "-0.5000", FormatMetric(contracts.Float(-0.5)))
}
