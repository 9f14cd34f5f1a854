// Package main is the entry point for the optsentry strategy detection and
// rebalancing engine. It watches a multi-account portfolio, detects option
// strategy chains, evaluates allocation compliance and produces prioritized
// trade recommendations.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/avramidis/optsentry/internal/clients/filefeed"
	"github.com/avramidis/optsentry/internal/config"
	"github.com/avramidis/optsentry/internal/database"
	"github.com/avramidis/optsentry/internal/modules/allocation"
	allocationhandlers "github.com/avramidis/optsentry/internal/modules/allocation/handlers"
	"github.com/avramidis/optsentry/internal/modules/chains"
	"github.com/avramidis/optsentry/internal/modules/portfolio"
	"github.com/avramidis/optsentry/internal/modules/rebalancing"
	rebalancinghandlers "github.com/avramidis/optsentry/internal/modules/rebalancing/handlers"
	"github.com/avramidis/optsentry/internal/modules/universe"
	universehandlers "github.com/avramidis/optsentry/internal/modules/universe/handlers"
	"github.com/avramidis/optsentry/internal/scheduler"
	"github.com/avramidis/optsentry/internal/server"
	"github.com/avramidis/optsentry/pkg/logger"
)

// rebalanceTrigger adapts the rebalancing service to the scheduler's
// trigger interface, the polling job has no use for the returned event.
type rebalanceTrigger struct {
	service *rebalancing.Service
}

func (t *rebalanceTrigger) Trigger(reason string) error {
	_, err := t.service.Trigger(reason)
	return err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting optsentry")

	// Databases: config holds allocation rules, universe holds the
	// candidate screen, cache holds the ephemeral event archive.
	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open config database")
	}
	defer configDB.Close()

	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open universe database")
	}
	defer universeDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	// Repositories
	allocationRepo, err := allocation.NewRepository(configDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize allocation repository")
	}
	if err := allocationRepo.SeedDefaults(); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed default allocation rules")
	}

	universeRepo, err := universe.NewRepository(universeDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize universe repository")
	}

	archive, err := rebalancing.NewArchive(cacheDB.Conn(), cfg.Rebalancing.EventRetention, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize event archive")
	}

	// Services
	feed := filefeed.New(cfg.DataDir, log)
	rankingService := universe.NewRankingService(universeRepo, log)
	snapshotService := portfolio.NewSnapshotService(feed, chains.NewDetector(log), log)

	rebalCfg := rebalancing.DefaultConfig()
	rebalCfg.MinPositionSize = cfg.Rebalancing.MinPositionSize
	rebalCfg.MaxSingleTrade = cfg.Rebalancing.MaxSingleTrade
	rebalCfg.MaxPerGap = cfg.Rebalancing.MaxPerGap
	rebalCfg.MinConfidence = cfg.Rebalancing.MinConfidence
	rebalCfg.MaxAllocationPct = cfg.Rebalancing.MaxAllocationPct

	rebalancingService := rebalancing.NewService(
		snapshotService,
		allocationRepo,
		universeRepo,
		rankingService,
		archive,
		rebalCfg,
		log,
	)

	// Background fill polling
	sched := scheduler.New(log)
	fillPollJob := scheduler.NewFillPollJob(feed, &rebalanceTrigger{service: rebalancingService}, log)
	if err := sched.AddJob(cfg.FillPollSchedule, fillPollJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register fill poll job")
	}
	sched.Start()

	// HTTP server
	srv := server.New(server.Config{
		Log:                 log,
		Port:                cfg.Port,
		DevMode:             cfg.DevMode,
		DataDir:             cfg.DataDir,
		ConfigDB:            configDB,
		CacheDB:             cacheDB,
		AllocationHandlers:  allocationhandlers.NewHandler(allocationRepo, log),
		RebalancingHandlers: rebalancinghandlers.NewHandler(rebalancingService, archive, log),
		UniverseHandlers:    universehandlers.NewHandler(universeRepo, rankingService, log),
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Fold the WAL back into the main database files before closing.
	for _, db := range []*database.DB{configDB, universeDB, cacheDB} {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint on shutdown failed")
		}
	}

	log.Info().Msg("Server stopped")
}
