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

	"callsync/internal/activity"
	"callsync/internal/auth"
	"callsync/internal/backfill"
	"callsync/internal/config"
	"callsync/internal/crm"
	"callsync/internal/httpapi"
	"callsync/internal/match"
	"callsync/internal/runlog"
	"callsync/internal/target"
	"callsync/internal/telephony"
	"callsync/pkg/logger"
	"callsync/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// Run history: Postgres when configured, memory otherwise.
	var runRepo runlog.Repository = runlog.NewMemoryRepo()
	if cfg.DB.Host != "" {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		runRepo = runlog.NewPostgresRepo(db)
	} else {
		log.Warn("DB_HOST not set, run history kept in memory")
	}
	runs := runlog.NewService(runRepo)

	// Single-run lock: redis when configured, in-process only otherwise.
	var lock backfill.Locker
	if cfg.Redis.Host != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		lock = backfill.NewRedisLock(rdb, "backfill:lock", 2*cfg.CRM.FetchTimeout)
	} else {
		log.Warn("REDIS_HOST not set, run lock is process-local")
	}

	// Portal fetch pipeline.
	invoker := crm.NewRESTInvoker(cfg.CRM.PortalURL, cfg.CRM.WebhookToken, nil)
	client := crm.NewClient(invoker, log, crm.FetchOptions{
		PageTimeout:    cfg.CRM.PageTimeout,
		OverallTimeout: cfg.CRM.FetchTimeout,
		PageDelay:      cfg.CRM.PageDelay,
		MaxRetries:     cfg.CRM.MaxRetries,
		RetryBase:      cfg.CRM.RetryBase,
	})

	calls := telephony.NewProvider(client, log)
	acts := activity.NewProvider(client, log, cfg.Sync.DispositionPrefix)

	codes := target.DefaultFieldCodes()
	store := target.NewItemStore(client, cfg.CRM.EntityTypeID, codes, log)
	upserter := target.NewUpserter(store, codes, acts, log, target.UpserterOptions{
		VerifySave:           cfg.Sync.VerifySave,
		WriteBackDisposition: cfg.Sync.WriteBackDisposition,
	})

	resolver := match.NewResolver(
		match.NewExtractor(cfg.Sync.DispositionPrefix, cfg.Sync.Dispositions),
		cfg.Sync.MatchWindow,
	)

	runner := backfill.NewRunner(calls, acts, store, upserter, resolver, runs, lock, log, backfill.Options{
		ChunkDays:      cfg.Sync.ChunkDays,
		ProgressStride: cfg.Sync.ProgressStride,
		KeyPolicy:      match.KeyPolicy(cfg.Sync.IndexKey),
	})

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	handlers := httpapi.Handlers{Runner: runner, Runs: runs, Log: log}
	registerRoutes(r, auth.RequireAccessToken(authManager), handlers)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Let a running backfill wind down cleanly before the process exits.
	if err := runner.Cancel(); err == nil {
		select {
		case <-runner.Done():
		case <-shutdownCtx.Done():
			log.Warn("backfill did not stop before shutdown deadline")
		}
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
