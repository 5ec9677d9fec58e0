// Command importer runs one import: it loads the administrative hierarchy,
// streams the input CSV through the resolver chain, and commits facts in
// batches. The operational HTTP endpoint serves health, live progress, and
// metrics for the duration of the run.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"jali/internal/hierarchy"
	"jali/internal/ingest"
	"jali/internal/platform/config"
	"jali/internal/platform/httpserver"
	"jali/internal/platform/logger"
	"jali/internal/platform/metrics"
	platformpg "jali/internal/platform/postgres"
	platformredis "jali/internal/platform/redis"
	"jali/internal/resolve"
	storagepg "jali/internal/storage/postgres"
	httptransport "jali/internal/transport/http"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if cfg.Import.InputFile == "" {
		return fmt.Errorf("JALI_INPUT_FILE is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := platformpg.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store := storagepg.New(db)
	if err := store.ApplySchema(ctx); err != nil {
		return err
	}
	sessions := storagepg.NewSessions(db)

	var cache resolve.Cache
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = resolve.NewRedisCache(redisClient.Client, cfg.Redis.CacheTTL)
		log.Info("resolver cache backed by redis")
	} else {
		cache = resolve.NewMemoryCache()
	}

	runID := uuid.New()
	resolver := resolve.New(store, cache, log)
	reconciler := ingest.NewReconciler(resolver, runID)
	m := metrics.New(prometheus.DefaultRegisterer)
	committer := ingest.NewCommitter(store, sessions, reconciler, log, m, cfg.Import.BatchSize)

	ops := httptransport.NewHandler(db, committer, log)
	httpserver.Serve(ctx, httpserver.New(cfg.Server.Addr, ops.Routes()), log)

	if cfg.Import.HierarchyFile != "" {
		tree, err := hierarchy.ReadFile(cfg.Import.HierarchyFile)
		if err != nil {
			return err
		}
		counts, err := hierarchy.NewLoader(store, log).Load(ctx, tree)
		if err != nil {
			return err
		}
		log.Info("hierarchy ready",
			"counties", counts.Counties,
			"constituencies", counts.Constituencies,
			"wards", counts.Wards,
			"skipped", counts.Skipped)
	}

	input, err := os.Open(cfg.Import.InputFile)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	reader, err := ingest.NewReader(input)
	if err != nil {
		return err
	}
	if missing := reader.Mapping().Missing(); len(missing) > 0 {
		log.Warn("input is missing columns, they will read blank", "columns", missing)
	}

	started := time.Now()
	report, err := committer.Run(ctx, reader)
	if err != nil {
		return err
	}

	log.Info("run report",
		"run_id", runID,
		"imported", report.Imported,
		"errored", report.Errored,
		"duration", time.Since(started).Round(time.Millisecond))
	for _, sample := range report.ErrorSamples {
		log.Warn("row error", "detail", sample)
	}
	return nil
}
