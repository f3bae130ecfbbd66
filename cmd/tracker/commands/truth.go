package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/internal/pipeline"
	"github.com/wonny/skilltrack/internal/truth"
	"github.com/wonny/skilltrack/pkg/config"
	"github.com/wonny/skilltrack/pkg/logger"
)

// truthCmd represents the truth command
var truthCmd = &cobra.Command{
	Use:   "truth",
	Short: "예측 대상 심볼의 실현 수익률 조회",
	Long: `예측 아티팩트에서 심볼/기간을 도출하여 가격을 조회하고
실현 수익률을 계산합니다. --persist 지정 시 truth 테이블에 적재합니다.

--universe 지정 시 'universe sync'로 저장된 최신 구성종목 스냅샷을
기준으로 --since ~ --until 기간의 truth를 조회하여 적재합니다.

Example:
  go run ./cmd/tracker truth
  go run ./cmd/tracker truth --persist
  go run ./cmd/tracker truth --universe SP500 --since 2024-01-02`,
	RunE: runTruth,
}

var (
	truthPersist  bool
	truthUniverse string
	truthSince    string
	truthUntil    string
)

func init() {
	rootCmd.AddCommand(truthCmd)
	truthCmd.Flags().BoolVar(&truthPersist, "persist", false, "truth 테이블에 적재")
	truthCmd.Flags().StringVar(&truthUniverse, "universe", "", "저장된 구성종목 기준 백필 (SP500, DOW30, NASDAQ100)")
	truthCmd.Flags().StringVar(&truthSince, "since", "", "백필 시작일 (YYYY-MM-DD)")
	truthCmd.Flags().StringVar(&truthUntil, "until", "", "백필 종료일 (YYYY-MM-DD, 기본: 오늘)")
}

func runTruth(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadApp()
	if err != nil {
		return err
	}

	if truthUniverse != "" {
		return runTruthBackfill(cmd, cfg, log)
	}

	d, err := buildDeps(cmd.Context(), cfg, log, depOptions{memory: !truthPersist})
	if err != nil {
		return err
	}
	defer d.Close()

	rc, _ := runContext("")
	ingested, err := d.ingester().Ingest(cmd.Context(), rc, ingestConfig(cfg))
	if err != nil {
		return err
	}
	if ingested.ArtifactCount() == 0 {
		return contracts.ErrNoArtifacts
	}

	req := truth.RequestFor(ingested.Records)
	result, err := truth.NewFetcher(d.prices, log).Fetch(cmd.Context(), req, truthConfig(cfg))
	if err != nil {
		return err
	}

	PrintHeader("Truth", [][2]string{
		{"Window", result.Start.Format(contracts.DateLayout) + " ~ " + result.End.Format(contracts.DateLayout)},
		{"Symbols", fmt.Sprint(len(req.Symbols))},
		{"Batches", fmt.Sprint(result.Batches)},
		{"Fetched", fmt.Sprint(len(result.Fetched))},
		{"Records", fmt.Sprint(len(result.Records))},
	})
	if len(result.Missing) > 0 {
		PrintWarning("No data: " + strings.Join(result.Missing, ", "))
	}
	for _, f := range result.Failures {
		PrintError(f.Error())
	}

	if !truthPersist {
		return nil
	}
	n, err := d.gateway().AppendTruth(cmd.Context(), result.Records)
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("%d truth rows persisted", n))
	return nil
}

func runTruthBackfill(cmd *cobra.Command, cfg *config.Config, log *logger.Logger) error {
	u, since, until, err := backfillArgs(truthUniverse, truthSince, truthUntil, time.Now())
	if err != nil {
		return err
	}

	d, err := buildDeps(cmd.Context(), cfg, log, depOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	b := pipeline.NewBackfiller(truth.NewFetcher(d.prices, log), d.gateway(), log)
	res, err := b.Run(cmd.Context(), pipeline.BackfillConfig{
		Universe: u,
		Since:    since,
		Until:    until,
		Truth:    truthConfig(cfg),
	})
	if res != nil {
		PrintHeader("Truth backfill", [][2]string{
			{"Universe", string(u)},
			{"Window", since.Format(contracts.DateLayout) + " ~ " + until.Format(contracts.DateLayout)},
			{"Members", fmt.Sprint(res.Members)},
			{"Fetched", fmt.Sprint(len(res.Truth.Fetched))},
			{"Records", fmt.Sprint(len(res.Truth.Records))},
		})
		for _, f := range res.Truth.Failures {
			PrintError(f.Error())
		}
	}
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("%d truth rows persisted", res.Persisted))
	return nil
}

// backfillArgs validates the backfill flags. until defaults to the UTC date of now.
func backfillArgs(universeFlag, sinceFlag, untilFlag string, now time.Time) (u contracts.Universe, since, until time.Time, err error) {
	u = contracts.ParseUniverse(universeFlag)
	if u == contracts.UniverseUnknown || u == contracts.UniverseAll {
		return u, since, until, fmt.Errorf("invalid --universe %q", universeFlag)
	}
	if sinceFlag == "" {
		return u, since, until, fmt.Errorf("--since is required with --universe")
	}
	if since, err = time.Parse(contracts.DateLayout, sinceFlag); err != nil {
		return u, since, until, fmt.Errorf("invalid --since: %w", err)
	}

	until = contracts.TruncateDate(now.UTC())
	if untilFlag != "" {
		if until, err = time.Parse(contracts.DateLayout, untilFlag); err != nil {
			return u, since, until, fmt.Errorf("invalid --until: %w", err)
		}
	}
	if until.Before(since) {
		return u, since, until, fmt.Errorf("--until %s is before --since %s", untilFlag, sinceFlag)
	}
	return u, since, until, nil
}
