// Command ingestor runs the ROM catalog ingestion service: the crawler,
// enrichment pool, search indexer, admin HTTP API, and cron scheduler.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/romvault/ingestor/internal/api"
	"github.com/romvault/ingestor/internal/config"
	"github.com/romvault/ingestor/internal/crawl"
	"github.com/romvault/ingestor/internal/enrich"
	idxmeili "github.com/romvault/ingestor/internal/index/meili"
	"github.com/romvault/ingestor/internal/logging"
	"github.com/romvault/ingestor/internal/metadata"
	"github.com/romvault/ingestor/internal/metrics"
	"github.com/romvault/ingestor/internal/pipeline"
	"github.com/romvault/ingestor/internal/scheduler"
	storepg "github.com/romvault/ingestor/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	state := pipeline.NewState()
	logCore := state.LogCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zap.NewAtomicLevelAt(zap.InfoLevel))
	logger, err := logging.New(cfg.Logging.Development, logCore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	store, err := storepg.New(ctx, storepg.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer store.Close()

	index, err := idxmeili.New(idxmeili.Config{
		Host:    cfg.Index.Host,
		APIKey:  cfg.Index.APIKey,
		IndexID: cfg.Index.IndexID,
	})
	if err != nil {
		logger.Fatal("index init failed", zap.Error(err))
	}

	orchestrator := pipeline.New(pipeline.Config{
		Crawl: crawl.Config{
			BaseURL:        cfg.Archive.BaseURL,
			Concurrency:    cfg.Crawl.Concurrency,
			RequestTimeout: cfg.RequestTimeout(),
			BatchSize:      cfg.Crawl.BatchSize,
			UserAgent:      cfg.Crawl.UserAgent,
		},
		Enrich: enrich.Config{
			Workers:      cfg.Enrich.Workers,
			BatchSize:    cfg.Enrich.BatchSize,
			WorkerDelay:  cfg.WorkerDelay(),
			PollInterval: cfg.PollInterval(),
		},
		Metadata: metadata.Config{
			TokenURL:     cfg.Metadata.TokenURL,
			QueryURL:     cfg.Metadata.QueryURL,
			ClientID:     cfg.Metadata.ClientID,
			ClientSecret: cfg.Metadata.ClientSecret,
		},
	}, store, index, state, logger.Named("pipeline"))

	sched := scheduler.New(cfg.Schedule.StatePath, orchestrator.Run, logger.Named("scheduler"))
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("scheduler start failed", zap.Error(err))
	}
	defer sched.Stop()

	apiServer := api.NewServer(orchestrator, sched, store, index, logger.Named("api"), cfg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", apiServer.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           metrics.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
