package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/skilltrack/internal/schema"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "예측 아티팩트 수집만 실행",
	Long: `ARTIFACT_ROOT 아래 모든 CSV를 파싱하고 파일별 결과를 출력합니다.
--out 지정 시 정규화된 예측 테이블을 CSV로 저장합니다.

Example:
  go run ./cmd/tracker ingest
  go run ./cmd/tracker ingest --out normalized.csv`,
	RunE: runIngest,
}

var ingestOut string

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestOut, "out", "", "정규화된 예측 CSV 출력 경로")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadApp()
	if err != nil {
		return err
	}

	d, err := buildDeps(cmd.Context(), cfg, log, depOptions{memory: true, noPrices: true})
	if err != nil {
		return err
	}
	defer d.Close()

	rc, _ := runContext("")
	result, err := d.ingester().Ingest(cmd.Context(), rc, ingestConfig(cfg))
	if err != nil {
		return err
	}

	headers, rows := FileRows(result.Files)
	fmt.Println(RenderTable(headers, rows))
	PrintHeader("Ingest", [][2]string{
		{"Files", fmt.Sprint(result.ArtifactCount())},
		{"Rows", fmt.Sprint(len(result.Records))},
		{"Dropped", fmt.Sprint(result.DroppedRows)},
		{"Duplicates", fmt.Sprint(result.Duplicates)},
		{"Conflicts", fmt.Sprint(result.Conflicts)},
	})

	if ingestOut == "" {
		return nil
	}

	f, err := os.Create(ingestOut)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	if err := schema.Encode(f, result.Records); err != nil {
		return fmt.Errorf("write normalized predictions: %w", err)
	}
	PrintSuccess("Normalized predictions written to " + ingestOut)
	return nil
}
