package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/billing"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/cron"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/plans"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/subscriptions"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/config"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/metrics"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/migrate"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	subRepo := subscriptions.NewRepository(dbClient.DB())
	planRepo := plans.NewRepository(dbClient.DB())
	billingRepo := billing.NewRepository(dbClient.DB())
	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	expiryJob, err := cron.NewExpiryJob(subRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}
	renewalJob, err := cron.NewRenewalJob(cron.RenewalJobParams{
		Subs:      subRepo,
		Plans:     planRepo,
		Ledger:    billingRepo,
		Processor: subscriptions.NewSimulatedProcessor(),
		Logger:    logg,
		Window:    cfg.Sweeper.RenewalWindow,
		Limit:     cfg.Sweeper.BatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create renewal job", err)
		os.Exit(1)
	}

	expiryService, err := newJobService(redisClient, logg, metricsCollector, cfg.Sweeper.ExpiryInterval, expiryJob)
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry service", err)
		os.Exit(1)
	}
	renewalService, err := newJobService(redisClient, logg, metricsCollector, cfg.Sweeper.RenewalInterval, renewalJob)
	if err != nil {
		logg.Error(context.Background(), "failed to create renewal service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	var wg sync.WaitGroup
	for _, svc := range []*cron.Service{expiryService, renewalService} {
		wg.Add(1)
		go func(svc *cron.Service) {
			defer wg.Done()
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "cron loop stopped unexpectedly", err)
				stop()
			}
		}(svc)
	}
	wg.Wait()

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// newJobService wraps one job in its own schedule and Redis lock so the two
// sweeps run on independent cadences.
func newJobService(redisClient *redis.Client, logg *logger.Logger, m *metrics.CronJobMetrics, interval time.Duration, job cron.Job) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(job.Name()), interval+time.Minute)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  m,
		Interval: interval,
	})
}
