// Package main provides the headless Arena binary: it expands a scenario
// (optionally through a Lua sweep script), simulates each variant as a
// deterministic batch, and reports aggregate balance statistics.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crownfall/internal/config"
	"github.com/cory-johannsen/crownfall/internal/observability"
	"github.com/cory-johannsen/crownfall/internal/scripting"
	"github.com/cory-johannsen/crownfall/internal/sim/arena"
	"github.com/cory-johannsen/crownfall/internal/sim/profile"
	"github.com/cory-johannsen/crownfall/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	unitsDir := flag.String("units-dir", "", "path to unit profile YAML directory (default: arena.units_dir)")
	scenarioPath := flag.String("scenario", "", "path to the scenario YAML file")
	runs := flag.Int("runs", 0, "simulation runs per scenario (default: arena.default_runs)")
	seed := flag.Uint64("seed", 1, "batch seed; identical seeds reproduce identical statistics")
	workers := flag.Int("workers", 0, "simulation worker count (default: arena.workers)")
	sweep := flag.String("sweep", "", "path to a Lua sweep script expanding the scenario; empty = no sweep")
	archive := flag.Bool("archive", false, "archive a detailed record of each scenario to the database")
	flag.Parse()

	if *scenarioPath == "" {
		log.Fatal("missing required flag: -scenario")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := cfg.Arena.UnitsDir
	if *unitsDir != "" {
		dir = *unitsDir
	}
	registry, err := profile.LoadProfiles(dir)
	if err != nil {
		logger.Fatal("loading unit profiles", zap.Error(err))
	}
	logger.Info("unit profiles loaded", zap.Int("count", registry.Len()), zap.String("dir", dir))

	base, err := arena.LoadScenario(*scenarioPath, registry)
	if err != nil {
		logger.Fatal("loading scenario", zap.Error(err))
	}

	scenarios := []arena.Scenario{*base}
	if *sweep != "" {
		scenarios, err = scripting.NewSweeper(logger, 0).Variants(*sweep, *base)
		if err != nil {
			logger.Fatal("expanding sweep", zap.Error(err))
		}
	}

	workerCount := cfg.Arena.Workers
	if *workers > 0 {
		workerCount = *workers
	}
	harness, err := arena.NewHarness(registry, cfg.Engine.Tuning(), workerCount, logger)
	if err != nil {
		logger.Fatal("creating harness", zap.Error(err))
	}

	var repo *postgres.RecordRepository
	if *archive {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		repo = postgres.NewRecordRepository(pool.DB())
	}

	batchRuns := cfg.Arena.DefaultRuns
	if *runs > 0 {
		batchRuns = *runs
	}

	for i := range scenarios {
		sc := &scenarios[i]
		stats, err := harness.RunBatch(ctx, sc, batchRuns, *seed)
		if err != nil {
			logger.Error("batch failed", zap.String("scenario", sc.Name), zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		logger.Info("scenario resolved",
			zap.String("scenario", sc.Name),
			zap.Int("runs", stats.Completed),
			zap.Float64("attacker_win_rate", stats.AttackerWinRate),
			zap.Float64("defender_win_rate", stats.DefenderWinRate),
			zap.Float64("draw_rate", stats.DrawRate),
			zap.Float64("avg_attacker_casualties", stats.AvgAttackerCasualties),
			zap.Float64("avg_defender_casualties", stats.AvgDefenderCasualties),
			zap.Float64("avg_duration_ticks", stats.AvgDurationTicks),
		)

		if repo != nil {
			records, err := harness.RunDetailed(sc, *seed)
			if err != nil {
				logger.Error("detailed run failed", zap.String("scenario", sc.Name), zap.Error(err))
				continue
			}
			for _, rec := range records {
				if err := repo.Save(ctx, sc.Name, rec); err != nil {
					logger.Error("archiving record", zap.String("scenario", sc.Name), zap.Error(err))
				}
			}
			logger.Info("records archived", zap.String("scenario", sc.Name), zap.Int("count", len(records)))
		}
	}

	logger.Info("arena finished",
		zap.Int("scenarios", len(scenarios)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
