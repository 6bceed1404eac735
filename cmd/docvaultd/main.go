// Command docvaultd runs docvault's ingestion job runner and tool registry
// behind a plain net/http server. A framing layer (not part of this
// binary) is expected to speak JSON-RPC 2.0 to callers and forward decoded
// tools/list and tools/call requests to the routes registered here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wyrecliff/docvault/admin"
	"github.com/wyrecliff/docvault/config"
	"github.com/wyrecliff/docvault/embedding"
	"github.com/wyrecliff/docvault/fetcher"
	"github.com/wyrecliff/docvault/jobrunner"
	"github.com/wyrecliff/docvault/query"
	"github.com/wyrecliff/docvault/ratelimit"
	"github.com/wyrecliff/docvault/store"
	"github.com/wyrecliff/docvault/toolreg"
)

func main() {
	if err := run(); err != nil {
		slog.Error("docvaultd exited with error", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	migrator, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer migrator.Close()
	if err := migrator.Up(ctx); err != nil {
		return err
	}

	pool, err := store.Open(ctx, store.PoolConfig{DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		return err
	}
	defer pool.Close()
	st := store.New(pool)

	gate := ratelimit.New(ratelimit.Config{
		DocsHostRPM:  cfg.DocsHostRPM,
		EmbeddingRPM: cfg.EmbeddingRPM,
		EmbeddingTPM: cfg.EmbeddingTPM,
	})

	tracker := embedding.NewCostTracker()
	syncClient := embedding.NewSyncClient(embedding.Config{
		APIKey:     cfg.EmbeddingProviderKey,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDim,
	}, gate, tracker)
	batchSubmitter := embedding.NewBatchSubmitter(embedding.BatchSubmitterConfig{
		Model:           cfg.EmbeddingModel,
		Dimensions:      cfg.EmbeddingDim,
		MaxLines:        cfg.BatchMaxLines,
		PollMinInterval: cfg.BatchPollMinInterval,
		MaxResubmit:     cfg.BatchMaxResubmit,
	}, cfg.EmbeddingProviderKey, tracker)
	ingestEmbedder := embedding.NewIngestEmbedder(batchSubmitter, syncClient)

	fetch := fetcher.New(fetcher.Config{
		BaseURL:           "https://docs.rs",
		EmbeddingTokenCap: cfg.EmbeddingInputTokenCap,
	}, gate)

	cache := query.NewCache(cfg.CacheMaxEntries, cfg.CacheTTL)
	engine := query.NewEngine(st.Similarity, syncClient, cache, cfg.ScoreFloor)

	runnerCfg := jobrunner.Config{
		Workers:       cfg.JobWorkers,
		LeaseTTL:      cfg.JobLeaseTTL,
		JobRetention:  time.Duration(cfg.JobRetentionDays) * 24 * time.Hour,
		ReapInterval:  time.Minute,
		PurgeInterval: 24 * time.Hour,
	}
	runner := jobrunner.New(runnerCfg, st, fetch, ingestEmbedder, cache)
	runner.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := runner.Stop(stopCtx); err != nil {
			slog.Error("job runner stop failed", "err", err)
		}
	}()

	auditLog := admin.NewAuditLog(rawPool(pool))
	ops := admin.New(st, auditLog)

	queryTools, err := toolreg.LoadQueryTools(cfg.ToolConfigPath)
	if err != nil {
		return err
	}
	registry := toolreg.New(engine, ops, queryTools)
	handler := toolreg.NewHTTPHandler(registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/tools/list", handler.ServeToolsList)
	mux.HandleFunc("/tools/call", handler.ServeToolsCall)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		slog.Info("docvaultd shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func rawPool(p *store.Pool) *pgxpool.Pool {
	return p.Raw()
}

func initLogging(cfg *config.Config) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
