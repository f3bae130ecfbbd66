package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/skilltrack/pkg/config"
	"github.com/wonny/skilltrack/pkg/logger"
)

var (
	// Global flags
	verbose   bool
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Model skill tracker - 예측 vs 실현 수익률 비교",
	Long: `Model Skill Tracker CLI

모델별 예측 CSV를 수집하고 실현 가격과 조인하여
유니버스/모델/버전별 스킬 지표를 일 단위로 적재합니다.

Usage:
  go run ./cmd/tracker [command]

Examples:
  go run ./cmd/tracker run
  go run ./cmd/tracker run --run-date 2024-01-10 --dry-run
  go run ./cmd/tracker ingest
  go run ./cmd/tracker universe sync
  go run ./cmd/tracker migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). SIGINT/SIGTERM cancel the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format override (json|console)")
}

// loadApp loads config and builds the logger, applying global flags
func loadApp() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, logger.New(cfg), nil
}
