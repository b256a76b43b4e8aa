// Package main is the entry point for the logibill numbering API server.
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

	corenumbering "logibill/internal/core/numbering"
	"logibill/internal/core/tx"
	"logibill/internal/domain/auth"
	"logibill/internal/domain/numbering"
	"logibill/internal/infrastructure/config"
	v1 "logibill/internal/infrastructure/http/v1"
	"logibill/internal/infrastructure/http/v1/handlers"
	"logibill/internal/infrastructure/http/v1/middleware"
	"logibill/internal/infrastructure/metrics"
	"logibill/internal/infrastructure/storage/memory"
	"logibill/internal/infrastructure/storage/postgres"
	"logibill/internal/infrastructure/storage/postgres/numbering_repo"
	"logibill/pkg/logger"
)

func main() {
	configFile := flag.String("config", os.Getenv("LOGIBILL_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log.Infow("starting logibill server", "env", cfg.App.Env, "store", cfg.Store)

	recorder := metrics.New()
	readiness := make(map[string]handlers.Pinger)

	// --- Storage ---
	var (
		repo  numbering.Repository
		txm   tx.Manager
		audit numbering.AuditLog
	)
	switch cfg.Store {
	case config.StorePostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
		if cfg.Database.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Database.MaxConns
		}
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()

		pgTx := postgres.NewTxManager(pool)
		pgAudit, err := postgres.NewAuditLog(pgTx, cfg.Audit.CompressThreshold)
		if err != nil {
			log.Fatalw("failed to create audit log", "error", err)
		}

		repo, txm, audit = numbering_repo.New(pgTx), pgTx, pgAudit
		recorder.RegisterPool(pool)
		readiness["database"] = pool

	case config.StoreMemory:
		store := memory.NewStore()
		store.Seed(corenumbering.DefaultConfigs()...)
		repo, txm, audit = store, &memory.TxManager{}, &memory.AuditLog{}
		log.Warn("using in-memory store; numbering state is lost on restart")
	}

	numberingService := numbering.NewService(repo, txm,
		numbering.WithAuditLog(audit),
		numbering.WithMetrics(recorder),
	)

	// --- Auth ---
	jwtService := auth.NewJWTService(auth.JWTConfig{
		Secret:         cfg.JWT.Secret,
		Issuer:         cfg.JWT.Issuer,
		AccessTokenTTL: cfg.JWT.TTL,
	})
	clients := auth.ClientsFromHashes(cfg.Clients)
	if len(clients) == 0 {
		log.Warn("no API clients configured; POST /api/v1/auth/token will reject every request")
	}
	authService := auth.NewService(jwtService, clients...)

	// --- Rate limiting ---
	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst)
		go sweepLimiter(ctx, limiter)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:           log,
		JWTValidator:     jwtService,
		AuthService:      authService,
		NumberingService: numberingService,
		ReadinessChecks:  readiness,
		Metrics:          recorder,
		RateLimiter:      limiter,
		Debug:            cfg.Development(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return
	}

	log.Info("server stopped")
}

func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
