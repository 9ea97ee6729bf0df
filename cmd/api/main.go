package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"rentalyzer/internal/adapters/airdna"
	"rentalyzer/internal/adapters/alert"
	server "rentalyzer/internal/adapters/http_server"
	"rentalyzer/internal/adapters/observability"
	redisad "rentalyzer/internal/adapters/redis"
	"rentalyzer/internal/app"
	"rentalyzer/internal/domain"
	"rentalyzer/internal/shared"
	mysqlrepo "rentalyzer/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	observability.Serve(cfg.MetricsAddr)

	// db: one pool for the process, handed to the store explicitly
	db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN, mysqlrepo.DefaultPoolOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	var store domain.CacheStore = repo
	if cfg.RedisAddr != "" {
		rc := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		store = redisad.New(rc, repo, cfg.CacheFreshness, cfg.RedisMaxTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache tier enabled")
	}

	provider, err := airdna.New(cfg.ProviderBase, cfg.ProviderKey, airdna.Options{
		RPS:     cfg.ProviderRPS,
		Timeout: cfg.ProviderTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider client")
	}

	var sink domain.AlertSink = alert.LogSink{}
	var webhook *alert.Webhook
	if cfg.AlertWebhookURL != "" {
		webhook = alert.NewWebhook(cfg.AlertWebhookURL, 5*time.Second)
		sink = webhook
	}

	rec := app.NewCacheReconciler(store, provider, sink, cfg.CacheFreshness)
	calc := app.NewRevenueCalculator(app.NewRandomJitter(cfg.JitterSpread))
	svc := app.NewAnalysisService(rec, calc, sink, repo)

	// http
	srv := server.New(cfg.RequestTimeout)
	srv.Mount("/metrics", observability.Handler())
	srv.MountHandlers(&server.Handlers{A: svc})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if webhook != nil {
		webhook.Wait()
	}
}
