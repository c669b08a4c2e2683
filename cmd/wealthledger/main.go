package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"wealthledger/internal/analytics"
	"wealthledger/internal/config"
	"wealthledger/internal/ingestion"
	"wealthledger/internal/ledger"
	"wealthledger/internal/observability"
	"wealthledger/internal/server"
	"wealthledger/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := observability.NewLoggerWithLevel("wealthledger", level)
	log.Info().Msg("wealthledger starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("postgres connected")

	migrator := store.NewMigrator(db, cfg.MigrationsDir, log)
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}
	log.Info().Msg("migrations applied")

	// --- Engines ---
	st := store.NewPostgres(db)
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	ledgerEngine := ledger.NewEngine(st, log, metrics)
	analyticsEngine := analytics.NewEngine(st, log, metrics)

	// --- NATS (optional: without it, recomputation is HTTP-triggered only) ---
	if cfg.NatsURL != "" {
		nc, js, err := ingestion.Connect(cfg.NatsURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Close()

		if err := ingestion.EnsureStream(ctx, js); err != nil {
			log.Fatal().Err(err).Msg("ensure mutation stream")
		}

		sub := ingestion.NewSubscriber(js, ledgerEngine, log)
		if err := sub.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("start mutation subscriber")
		}
		defer sub.Stop()
	} else {
		log.Warn().Msg("WLOG_NATS_URL unset, mutation notices disabled")
	}

	// --- HTTP ---
	srv := server.New(ledgerEngine, analyticsEngine, st, health, log)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http serve")
		}
	}()

	// --- Metrics ---
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics serve")
		}
	}()

	health.SetReady(true)
	log.Info().Msg("wealthledger ready")

	<-sigChan
	log.Info().Msg("shutdown signal received")
	health.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics shutdown")
	}
	cancel()

	log.Info().Msg("wealthledger stopped")
}
