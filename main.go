package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opeoladettp/yodeco-backend-sub000/breaker"
	"github.com/opeoladettp/yodeco-backend-sub000/cache"
	"github.com/opeoladettp/yodeco-backend-sub000/cliparse"
	"github.com/opeoladettp/yodeco-backend-sub000/db"
	"github.com/opeoladettp/yodeco-backend-sub000/lock"
	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
	"github.com/opeoladettp/yodeco-backend-sub000/middleware"
	"github.com/opeoladettp/yodeco-backend-sub000/router"
	"github.com/opeoladettp/yodeco-backend-sub000/store"
	"github.com/opeoladettp/yodeco-backend-sub000/tally"
	"github.com/opeoladettp/yodeco-backend-sub000/voting"
)

func main() {
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg cliparse.Config) error {
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := db.CreateSchema(dbConn); err != nil {
		return err
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	m := metrics.New()

	// Without Redis every cache operation and lock is process-local
	var rdb redis.UniversalClient
	if cfg.RedisURL != "" {
		opts, err := cfg.RedisOptions()
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		defer client.Close()
		rdb = client
	} else {
		slog.Warn("no Redis configured, using the in-process cache only", "backend", metrics.BackendLocal)
	}

	local := cache.NewLocalStore(cfg.LocalCleanupInterval)
	defer local.Close()

	c := cache.New(cache.Options{
		Client: rdb,
		Local:  local,
		Breaker: breaker.New(breaker.Settings{
			Name:       "redis",
			Failures:   cfg.BreakerFailures,
			Cooldown:   cfg.BreakerCooldown,
			Timeout:    cfg.CallTimeout,
			IsExcluded: cache.IsNotFound,
			Metrics:    m,
		}),
		Metrics: m,
	})
	if rdb != nil {
		pingCtx, cancel := context.WithTimeout(context.Background(), cfg.CallTimeout)
		if err := c.Ping(pingCtx); err != nil {
			slog.Warn("Redis unreachable at startup, serving from the local cache", "error", err)
		}
		cancel()
	}

	storeBreaker := breaker.New(breaker.Settings{
		Name:       "store",
		Failures:   cfg.BreakerFailures,
		Cooldown:   cfg.BreakerCooldown,
		Timeout:    cfg.CallTimeout,
		IsExcluded: voting.IsOutcome,
		Metrics:    m,
	})

	awards := store.NewAwardStore(dbConn)
	votes := store.NewVoteStore(dbConn)
	biasEntries := store.NewBiasStore(dbConn)

	locks := lock.New(c, lock.Options{
		TTL:         cfg.LockTTL,
		RetryDelay:  cfg.LockRetryDelay,
		MaxAttempts: cfg.LockMaxAttempts,
		Metrics:     m,
	})
	updater := voting.NewUpdater(c, locks, voting.UpdaterOptions{
		QueueSize: cfg.UpdateQueueSize,
		Workers:   cfg.UpdateWorkers,
		Metrics:   m,
	})
	go func() {
		// failures are already logged and have invalidated their award
		for range updater.Failures() {
		}
	}()

	votingSvc := voting.NewService(voting.Deps{
		Catalog: awards,
		Votes:   votes,
		Breaker: storeBreaker,
		Updater: updater,
		Metrics: m,
	}, voting.Config{
		MaxRetries:           cfg.SubmitMaxRetries,
		BaseDelay:            cfg.SubmitBaseDelay,
		MaxDelay:             cfg.SubmitMaxDelay,
		SubmissionRetryAfter: cfg.SubmissionRetryAfter,
		StoreRetryAfter:      cfg.StoreRetryAfter,
		OriginSalt:           cfg.IPHashSalt,
	})
	tallySvc := tally.NewService(tally.Deps{
		Votes:   votes,
		Bias:    biasEntries,
		Catalog: awards,
		Cache:   c,
		Breaker: storeBreaker,
		Metrics: m,
	}, cfg.TallyTTL)
	biasSvc := tally.NewBiasService(biasEntries, awards, c, storeBreaker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go tally.NewSweeper(tallySvc, cfg.SweepInterval, cfg.SweepAutoFix, m).Run(ctx)

	mux := router.NewRouter(cfg, router.Services{
		Awards:  awards,
		Voting:  votingSvc,
		Tally:   tallySvc,
		Bias:    biasSvc,
		Metrics: m,
		Ping:    dbConn.PingContext,
	})

	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown incomplete", "error", err)
		}
	}()

	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	// pending cache increments are applied before the connections close
	updater.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("Server closed")
	return nil
}
