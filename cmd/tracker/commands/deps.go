package commands

import (
	"context"
	"fmt"

	"github.com/wonny/skilltrack/internal/artifact"
	"github.com/wonny/skilltrack/internal/contracts"
	"github.com/wonny/skilltrack/internal/external/yahoo"
	"github.com/wonny/skilltrack/internal/ingest"
	"github.com/wonny/skilltrack/internal/metrics"
	"github.com/wonny/skilltrack/internal/pipeline"
	"github.com/wonny/skilltrack/internal/reconcile"
	"github.com/wonny/skilltrack/internal/report"
	"github.com/wonny/skilltrack/internal/telemetry"
	"github.com/wonny/skilltrack/internal/truth"
	"github.com/wonny/skilltrack/internal/universe"
	"github.com/wonny/skilltrack/internal/warehouse"
	"github.com/wonny/skilltrack/pkg/config"
	"github.com/wonny/skilltrack/pkg/database"
	"github.com/wonny/skilltrack/pkg/httputil"
	"github.com/wonny/skilltrack/pkg/logger"
	"github.com/wonny/skilltrack/pkg/redis"
)

// cachePrefix namespaces tracker keys in a shared Redis
const cachePrefix = "skilltrack"

// deps holds the wired components of one command invocation
type deps struct {
	cfg       *config.Config
	log       *logger.Logger
	catalog   *universe.Catalog
	artifacts contracts.ArtifactStore
	prices    contracts.PriceService
	store     warehouse.TableStore
	db        *database.DB

	closers []func()
}

// depOptions selects what a command needs
type depOptions struct {
	memory   bool // dry run: in-memory warehouse
	noPrices bool
}

// buildDeps wires config to concrete stores and clients
func buildDeps(ctx context.Context, cfg *config.Config, log *logger.Logger, opts depOptions) (*deps, error) {
	d := &deps{cfg: cfg, log: log}

	// 1. Universe catalog
	d.catalog = universe.DefaultCatalog()
	if cfg.Catalog != "" {
		cat, err := universe.LoadCatalog(cfg.Catalog)
		if err != nil {
			return nil, fmt.Errorf("load universe catalog: %w", err)
		}
		d.catalog = cat
	}

	// 2. Artifact store
	switch cfg.Artifacts.Backend {
	case "gcs":
		gcs, err := artifact.NewGCSStore(ctx, cfg.Artifacts.GCSBucket, cfg.Artifacts.Root, cfg.Artifacts.GCSCredentials, log)
		if err != nil {
			return nil, fmt.Errorf("open gcs artifacts: %w", err)
		}
		d.artifacts = gcs
		d.closers = append(d.closers, func() { _ = gcs.Close() })
	default:
		d.artifacts = artifact.NewLocalStore(cfg.Artifacts.Root, log)
	}

	// 3. Warehouse
	if err := d.openWarehouse(ctx, opts.memory); err != nil {
		d.Close()
		return nil, err
	}

	// 4. Price service (+ optional Redis cache)
	if !opts.noPrices {
		yc := yahoo.New(yahoo.Config{RPS: cfg.Truth.RPS, MaxRetries: cfg.Truth.MaxRetries}, log)

		rdb, err := redis.New(cfg)
		if err != nil {
			// 캐시는 선택 사항 → 비활성 클라이언트로 계속
			log.WithError(err).Warn("Redis unavailable, price cache disabled")
			rdb = &redis.Client{}
		} else {
			d.closers = append(d.closers, func() { _ = rdb.Close() })
		}
		d.prices = truth.NewCachedPriceService(yc, redis.NewCache(rdb, cachePrefix), log)
	}

	return d, nil
}

func (d *deps) openWarehouse(ctx context.Context, memory bool) error {
	backend := d.cfg.Warehouse
	if memory {
		backend = "memory"
	}

	switch backend {
	case "memory":
		d.store = warehouse.NewMemoryStore()
	case "csv":
		d.store = warehouse.NewCSVStore(d.cfg.OutputDir)
	case "postgres":
		db, err := database.New(d.cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		d.db = db
		d.closers = append(d.closers, db.Close)

		pg := warehouse.NewPostgresStore(db.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure warehouse schema: %w", err)
		}
		d.store = pg
	default:
		return fmt.Errorf("unknown warehouse backend: %s", backend)
	}

	d.log.WithField("warehouse", backend).Debug("Warehouse opened")
	return nil
}

// Close releases every opened resource in reverse order
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *deps) ingester() *ingest.Ingester {
	return ingest.NewIngester(d.artifacts, d.catalog.Mapper(d.cfg.Artifacts.Marker), d.log)
}

func (d *deps) gateway() *warehouse.Gateway {
	return warehouse.NewGateway(d.store, d.log)
}

func (d *deps) orchestrator(withReport bool) *pipeline.Orchestrator {
	var renderer contracts.Renderer
	if withReport && d.cfg.Pipeline.ReportPath != "" {
		renderer = report.NewHTMLRenderer(d.cfg.Pipeline.ReportPath, d.log)
	}

	return pipeline.NewOrchestrator(
		d.ingester(),
		truth.NewFetcher(d.prices, d.log),
		reconcile.NewReconciler(d.log),
		metrics.NewEngine(d.log),
		d.gateway(),
		renderer,
		telemetry.NewRecorder(d.log),
		d.log,
	)
}

func (d *deps) scraper() *universe.Scraper {
	return universe.NewScraper(httputil.NewWithTimeout(d.log, d.cfg.ScrapeTimeout).WithRateLimit(1), d.log)
}

func ingestConfig(cfg *config.Config) ingest.Config {
	return ingest.Config{Workers: cfg.Pipeline.IngestWorkers}
}

func truthConfig(cfg *config.Config) truth.Config {
	return truth.Config{
		BatchSize:   cfg.Truth.BatchSize,
		Concurrency: cfg.Truth.Concurrency,
		PaddingDays: cfg.Truth.PaddingDays,
	}
}

func runConfig(cfg *config.Config) pipeline.RunConfig {
	return pipeline.RunConfig{
		Ingest:           ingestConfig(cfg),
		Truth:            truthConfig(cfg),
		WindowDays:       cfg.Pipeline.WindowDays,
		RequireArtifacts: cfg.Pipeline.RequireArtifacts,
		PersistRaw:       cfg.Pipeline.PersistRaw,
		PushgatewayURL:   cfg.PushgatewayURL,
	}
}
