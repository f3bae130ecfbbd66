package report

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/pkg/logger"
)

// Missing is printed for statistics that could not be computed
const Missing = "—"

// DefaultHistoryRows caps the history table
const DefaultHistoryRows = 200

// HTMLRenderer writes a static HTML skill report
type HTMLRenderer struct {
	path        string
	historyRows int
	md          goldmark.Markdown
	logger      *logger.Logger
}

// NewHTMLRenderer creates a renderer writing to path
func NewHTMLRenderer(path string, log *logger.Logger) *HTMLRenderer {
	return &HTMLRenderer{
		path:        path,
		historyRows: DefaultHistoryRows,
		md:          goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:      log.WithField("module", "report"),
	}
}

// Render converts the run metrics to HTML and writes the file
func (r *HTMLRenderer) Render(_ context.Context, in contracts.ReportInput) error {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(Markdown(in, r.historyRows)), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	title := "Model Tracker — " + in.Run.RunDate.Format(contracts.DateLayout)
	doc := fmt.Sprintf(pageTemplate, html.EscapeString(title), body.String())
	if err := os.WriteFile(r.path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"path":    r.path,
		"metrics": len(in.Metrics),
		"history": len(in.History),
	}).Info("Report written")
	return nil
}

// Markdown renders the report body as GitHub-flavored markdown
func Markdown(in contracts.ReportInput, historyRows int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Model Tracker — %s\n\n", in.Run.RunDate.Format(contracts.DateLayout))
	fmt.Fprintf(&b, "Run `%s` at %s\n\n", in.Run.RunID, in.Run.RunTimestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Predictions ingested: **%d**\n", in.Predictions)
	fmt.Fprintf(&b, "- Reconciled rows: **%d**\n\n", in.ReconciledRows)

	b.WriteString("### Current run\n\n")
	writeMetricTable(&b, in.Metrics, false)

	if len(in.History) > 0 {
		history := in.History
		if historyRows > 0 && len(history) > historyRows {
			history = history[len(history)-historyRows:]
		}
		b.WriteString("\n### History\n\n")
		writeMetricTable(&b, history, true)
	}
	return b.String()
}

func writeMetricTable(b *strings.Builder, records []contracts.MetricRecord, withDate bool) {
	if len(records) == 0 {
		b.WriteString("(no data)\n")
		return
	}

	header := []string{"universe", "model", "version", "n", "rmse", "mape", "corr", "dir. acc", "sharpe (real)", "sharpe (pred)"}
	if withDate {
		header = append([]string{"run date"}, header...)
	}
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")

	for _, m := range records {
		cells := []string{
			cell(string(m.Universe)),
			cell(m.ModelName),
			cell(m.Version),
			strconv.Itoa(m.SampleCount),
			FormatMetric(m.RMSE),
			FormatMetric(m.MAPE),
			FormatMetric(m.Correlation),
			FormatMetric(m.DirectionalAccuracy),
			FormatMetric(m.RealizedSharpe),
			FormatMetric(m.PredictedSharpe),
		}
		if withDate {
			cells = append([]string{m.RunDate.Format(contracts.DateLayout)}, cells...)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

// FormatMetric prints a statistic with four decimals, or Missing
func FormatMetric(v *float64) string {
	if v == nil {
		return Missing
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

// cell escapes characters that would break a markdown table
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

const pageTemplate = `<!doctype html>
<html>
<head>
<meta charset="utf-8"/>
<title>%s</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.6rem; text-align: right; }
th { background: #f4f4f4; }
</style>
</head>
<body>
%s
</body>
</html>
`
