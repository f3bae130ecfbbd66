package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/internal/pipeline"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "전체 파이프라인 1회 실행",
	Long: `ingest → truth → reconcile → metrics → persist → report 를 한 번 실행합니다.

Exit codes:
  0  성공
  2  아티팩트 없음 (REQUIRE_ARTIFACTS=true)
  3  웨어하우스 적재 실패
  1  기타 실패

Flags:
  --run-date    실행 기준일 (기본: 오늘 UTC)
  --dry-run     메모리 웨어하우스 사용 (적재 X)
  --window      지표 윈도우 (일, 0 = 전체)
  --no-report   리포트 생성 생략

Example:
  go run ./cmd/tracker run
  go run ./cmd/tracker run --run-date 2024-01-10
  go run ./cmd/tracker run --dry-run --window 63`,
	RunE: runPipeline,
}

var (
	runDate     string
	runDryRun   bool
	runWindow   int
	runNoReport bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDate, "run-date", "", "실행 기준일 (YYYY-MM-DD)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "메모리 웨어하우스 사용")
	runCmd.Flags().IntVar(&runWindow, "window", -1, "지표 윈도우 일수 (기본: METRICS_WINDOW_DAYS)")
	runCmd.Flags().BoolVar(&runNoReport, "no-report", false, "리포트 생성 생략")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadApp()
	if err != nil {
		return err
	}

	rc, err := runContext(runDate)
	if err != nil {
		return err
	}

	d, err := buildDeps(cmd.Context(), cfg, log, depOptions{memory: runDryRun})
	if err != nil {
		return err
	}
	defer d.Close()

	rcfg := runConfig(cfg)
	if runWindow >= 0 {
		rcfg.WindowDays = runWindow
	}

	PrintHeader("Model Skill Tracker", [][2]string{
		{"Run ID", rc.RunID},
		{"Run Date", rc.RunDate.Format(contracts.DateLayout)},
		{"Warehouse", warehouseLabel(cfg.Warehouse, runDryRun)},
		{"Window", windowLabel(rcfg.WindowDays)},
	})

	summary, err := d.orchestrator(!runNoReport).Run(cmd.Context(), rc, rcfg)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("Run %s completed in %s", rc.RunID, summary.Duration.Round(time.Millisecond)))
	return nil
}

// runContext builds the run identity, optionally pinned to a date
func runContext(date string) (contracts.RunContext, error) {
	rc := contracts.NewRunContext(time.Now())
	if date == "" {
		return rc, nil
	}
	parsed, err := time.Parse(contracts.DateLayout, date)
	if err != nil {
		return rc, fmt.Errorf("invalid --run-date: %w", err)
	}
	return rc.WithRunDate(parsed), nil
}

func printSummary(s *pipeline.RunSummary) {
	headers, rows := StageRows(s.Stages)
	fmt.Println(RenderTable(headers, rows))

	if s.Ingest != nil && s.Ingest.Conflicts > 0 {
		PrintWarning(fmt.Sprintf("%d conflicting prediction rows resolved (latest run_timestamp wins)", s.Ingest.Conflicts))
	}
	if s.Gap.Missing > 0 {
		PrintWarning(fmt.Sprintf("Truth missing for %d of %d predictions (coverage %.1f%%), worst: %v",
			s.Gap.Missing, s.Gap.Predictions, s.Gap.Coverage()*100, s.Gap.WorstSymbols(5)))
	}
	if s.Truth != nil {
		if failed := s.Truth.FailedSymbols(); len(failed) > 0 {
			PrintWarning("Price fetch failed for " + strconv.Itoa(len(failed)) + " symbols")
		}
	}

	if len(s.Metrics) > 0 {
		headers, rows = MetricRows(s.Metrics)
		fmt.Println(RenderTable(headers, rows))
	}
}

func warehouseLabel(backend string, dryRun bool) string {
	if dryRun {
		return "memory (dry run)"
	}
	return backend
}

func windowLabel(days int) string {
	if days == 0 {
		return "all history"
	}
	return strconv.Itoa(days) + " days"
}
