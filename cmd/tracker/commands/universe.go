package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/skilltrack/internal/contracts"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "유니버스 카탈로그 및 구성종목 관리",
	Long: `유니버스 카탈로그를 조회하고 구성종목을 동기화합니다.

Example:
  go run ./cmd/tracker universe list
  go run ./cmd/tracker universe sync`,
}

var (
	universeListCmd = &cobra.Command{
		Use:   "list",
		Short: "카탈로그 유니버스 목록",
		RunE:  runUniverseList,
	}

	universeSyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "구성종목 스크래핑 후 universe_membership 적재",
		Long: `카탈로그에 source_url이 있는 유니버스의 구성종목을 스크래핑하여
universe_membership 테이블에 (as_of, universe, symbol) 단위로 적재합니다.

Example:
  go run ./cmd/tracker universe sync
  go run ./cmd/tracker universe sync --as-of 2024-01-10 --dry-run`,
		RunE: runUniverseSync,
	}

	universeAsOf   string
	universeDryRun bool
)

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.AddCommand(universeListCmd)
	universeCmd.AddCommand(universeSyncCmd)

	universeSyncCmd.Flags().StringVar(&universeAsOf, "as-of", "", "기준일 (YYYY-MM-DD, 기본: 오늘)")
	universeSyncCmd.Flags().BoolVar(&universeDryRun, "dry-run", false, "적재하지 않고 출력만")
}

func runUniverseList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadApp()
	if err != nil {
		return err
	}

	d, err := buildDeps(cmd.Context(), cfg, log, depOptions{memory: true, noPrices: true})
	if err != nil {
		return err
	}
	defer d.Close()

	rows := make([][]string, 0)
	for _, u := range d.catalog.Universes() {
		url, _ := d.catalog.SourceURL(u)
		rows = append(rows, []string{string(u), url})
	}
	fmt.Println(RenderTable([]string{"UNIVERSE", "SOURCE"}, rows))
	return nil
}

func runUniverseSync(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadApp()
	if err != nil {
		return err
	}

	asOf := time.Now().UTC()
	if universeAsOf != "" {
		asOf, err = time.Parse(contracts.DateLayout, universeAsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of: %w", err)
		}
	}

	d, err := buildDeps(cmd.Context(), cfg, log, depOptions{memory: universeDryRun, noPrices: true})
	if err != nil {
		return err
	}
	defer d.Close()

	records, err := d.scraper().Sync(cmd.Context(), d.catalog, asOf)
	if err != nil {
		return fmt.Errorf("universe sync: %w", err)
	}

	counts := make(map[contracts.Universe][]string)
	for _, r := range records {
		counts[r.Universe] = append(counts[r.Universe], r.Symbol)
	}
	rows := make([][]string, 0, len(counts))
	for _, u := range d.catalog.Universes() {
		symbols, ok := counts[u]
		if !ok {
			continue
		}
		preview := symbols
		if len(preview) > 5 {
			preview = preview[:5]
		}
		rows = append(rows, []string{string(u), fmt.Sprint(len(symbols)), strings.Join(preview, " ") + " …"})
	}
	fmt.Println(RenderTable([]string{"UNIVERSE", "SYMBOLS", "SAMPLE"}, rows))

	n, err := d.gateway().AppendMembership(cmd.Context(), records)
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("%d membership rows persisted (as of %s)", n, contracts.TruncateDate(asOf).Format(contracts.DateLayout)))
	return nil
}
