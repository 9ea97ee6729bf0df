package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"rentalyzer/internal/adapters/airdna"
	"rentalyzer/internal/adapters/alert"
	"rentalyzer/internal/adapters/observability"
	redisad "rentalyzer/internal/adapters/redis"
	"rentalyzer/internal/app"
	"rentalyzer/internal/domain"
	"rentalyzer/internal/shared"
	mysqlrepo "rentalyzer/internal/storage/mysql"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		file    string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "warmer",
		Short: "Pre-fetch provider data for a list of properties into the analysis cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, file, workers)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file listing properties to warm")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent provider fetches (default WARM_WORKERS)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func run(ctx context.Context, file string, workers int) error {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	props, err := loadProperties(file)
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = cfg.WarmWorkers
	}
	log.Info().Str("file", file).Int("properties", len(props)).Int("workers", workers).Msg("warmer starting")

	db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN, mysqlrepo.DefaultPoolOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	var store domain.CacheStore = mysqlrepo.New(db)
	if cfg.RedisAddr != "" {
		rc := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		store = redisad.New(rc, store, cfg.CacheFreshness, cfg.RedisMaxTTL)
	}

	provider, err := airdna.New(cfg.ProviderBase, cfg.ProviderKey, airdna.Options{
		RPS:     cfg.ProviderRPS,
		Timeout: cfg.ProviderTimeout,
	})
	if err != nil {
		return err
	}
	rec := app.NewCacheReconciler(store, provider, alert.LogSink{}, cfg.CacheFreshness)

	sum := warm(ctx, rec, props, workers)
	log.Info().
		Int("cache", sum.bySource[app.SourceCache]).
		Int("api", sum.bySource[app.SourceAPI]+sum.bySource[app.SourceAPIDueToCacheError]).
		Int("failed", sum.failed).
		Msg("warming completed")
	return nil
}

type summary struct {
	mu       sync.Mutex
	bySource map[app.Source]int
	failed   int
}

type resolver interface {
	Resolve(ctx context.Context, q domain.PropertyQuery) (app.Resolution, error)
}

// warm resolves every property with at most `workers` in flight.
func warm(ctx context.Context, rec resolver, props []domain.PropertyQuery, workers int) *summary {
	sum := &summary{bySource: map[app.Source]int{}}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for _, p := range props {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("warming interrupted")
			break
		}

		wg.Add(1)
		go func(q domain.PropertyQuery) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := rec.Resolve(ctx, q)
			sum.mu.Lock()
			defer sum.mu.Unlock()
			if err != nil {
				sum.failed++
				log.Warn().Str("address", q.Address).Err(err).Msg("warm failed")
				return
			}
			sum.bySource[res.Source]++
			log.Info().Str("address", q.Address).Str("source", string(res.Source)).Msg("warm ok")
		}(p)
	}

	wg.Wait()
	return sum
}
