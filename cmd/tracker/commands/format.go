package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/internal/ingest"
	"github.com/wonny/skilltrack/internal/report"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(12)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	headerCellStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle       = lipgloss.NewStyle().Padding(0, 1)
)

// PrintHeader prints a titled block of key/value lines
func PrintHeader(title string, fields [][2]string) {
	fmt.Println()
	fmt.Println(titleStyle.Render(title))
	for _, f := range fields {
		fmt.Println(labelStyle.Render(f[0]) + " " + f[1])
	}
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Println(successStyle.Render("✅ " + message))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println(warningStyle.Render("⚠️  " + message))
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Println(errorStyle.Render("❌ " + message))
}

// RenderTable renders rows with a rounded border
func RenderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			return cellStyle
		})
	return t.Render()
}

// MetricRows formats metric records for RenderTable
func MetricRows(records []contracts.MetricRecord) ([]string, [][]string) {
	headers := []string{"RUN DATE", "UNIVERSE", "MODEL", "VERSION", "N", "RMSE", "MAPE", "CORR", "DIR", "SHARPE(R)", "SHARPE(P)"}
	rows := make([][]string, 0, len(records))
	for _, m := range records {
		rows = append(rows, []string{
			m.RunDate.Format(contracts.DateLayout),
			string(m.Universe),
			m.ModelName,
			m.Version,
			strconv.Itoa(m.SampleCount),
			report.FormatMetric(m.RMSE),
			report.FormatMetric(m.MAPE),
			report.FormatMetric(m.Correlation),
			report.FormatMetric(m.DirectionalAccuracy),
			report.FormatMetric(m.RealizedSharpe),
			report.FormatMetric(m.PredictedSharpe),
		})
	}
	return headers, rows
}

// StageRows formats stage results for RenderTable
func StageRows(stages []contracts.StageResult) ([]string, [][]string) {
	headers := []string{"STAGE", "STATUS", "IN", "OUT", "DURATION"}
	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		status := "ok"
		if !s.Success {
			status = "failed"
		}
		rows = append(rows, []string{
			s.Stage.String() + " (" + s.Stage.Description() + ")",
			status,
			strconv.Itoa(s.InputCount),
			strconv.Itoa(s.OutputCount),
			(time.Duration(s.Duration) * time.Millisecond).String(),
		})
	}
	return headers, rows
}

// FileRows formats per-artifact outcomes for RenderTable
func FileRows(files []ingest.FileOutcome) ([]string, [][]string) {
	headers := []string{"PATH", "UNIVERSE", "STATUS", "ROWS", "DROPPED", "ERROR"}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		errText := ""
		if f.Err != nil {
			errText = f.Err.Error()
		}
		rows = append(rows, []string{
			f.Path,
			string(f.Universe),
			string(f.Status),
			strconv.Itoa(f.Rows),
			strconv.Itoa(f.DroppedRows),
			errText,
		})
	}
	return headers, rows
}
