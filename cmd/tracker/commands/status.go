package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/skilltrack/internal/contracts"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "웨어하우스 상태 및 최근 지표",
	Long: `웨어하우스 연결 상태와 가장 최근 run_date의 지표를 출력합니다.

Example:
  go run ./cmd/tracker status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadApp()
	if err != nil {
		return err
	}

	d, err := buildDeps(cmd.Context(), cfg, log, depOptions{noPrices: true})
	if err != nil {
		return err
	}
	defer d.Close()

	fields := [][2]string{
		{"Env", cfg.Env},
		{"Warehouse", cfg.Warehouse},
		{"Artifacts", cfg.Artifacts.Backend + ":" + cfg.Artifacts.Root},
	}
	if d.db != nil {
		health, err := d.db.HealthCheck(cmd.Context())
		if err != nil {
			PrintError("Database unhealthy: " + err.Error())
			return err
		}
		fields = append(fields,
			[2]string{"DB ping", health.ResponseTime.String()},
			[2]string{"DB conns", fmt.Sprintf("%d total / %d idle", health.Stats.TotalConns, health.Stats.IdleConns)},
		)
	}
	PrintHeader("Status", fields)

	history, ok, err := d.gateway().MetricHistory(cmd.Context())
	if err != nil {
		return err
	}
	if !ok || len(history) == 0 {
		PrintWarning("No metric history")
		return nil
	}

	latest := latestRun(history)
	headers, rows := MetricRows(latest)
	fmt.Println(RenderTable(headers, rows))
	PrintSuccess(fmt.Sprintf("%d metric records across history, latest run %s", len(history), latest[0].RunDate.Format(contracts.DateLayout)))
	return nil
}

// latestRun returns the records of the most recent run_date (history is sorted)
func latestRun(history []contracts.MetricRecord) []contracts.MetricRecord {
	last := history[len(history)-1].RunDate
	start := len(history) - 1
	for start > 0 && history[start-1].RunDate.Equal(last) {
		start--
	}
	return history[start:]
}
