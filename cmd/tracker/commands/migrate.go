package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/skilltrack/internal/warehouse"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "PostgreSQL 웨어하우스 스키마 생성",
	Long: `tracker 스키마와 테이블(metrics, predictions, truth, universe_membership)을
생성합니다. 이미 존재하면 변경하지 않습니다.

Example:
  WAREHOUSE=postgres go run ./cmd/tracker migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadApp()
	if err != nil {
		return err
	}
	if cfg.Warehouse != "postgres" {
		return fmt.Errorf("migrate requires WAREHOUSE=postgres (current: %s)", cfg.Warehouse)
	}

	// openWarehouse가 EnsureSchema 수행
	d, err := buildDeps(cmd.Context(), cfg, log, depOptions{noPrices: true})
	if err != nil {
		return err
	}
	defer d.Close()

	for _, spec := range warehouse.AllTables() {
		fmt.Println(warehouse.CreateTableSQL(spec))
	}
	PrintSuccess("Warehouse schema is up to date")
	return nil
}
