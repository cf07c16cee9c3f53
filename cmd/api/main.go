package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/routes"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/billing"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/coupons"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/interests"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/plans"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/quota"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/subscriptions"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/config"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/meta"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/migrate"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/razorpay"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	razorpayClient, err := razorpay.NewClient(ctx, cfg.Razorpay, logg)
	if err != nil {
		logg.Error(ctx, "failed to create razorpay client", err)
		os.Exit(1)
	}
	metaClient, err := meta.NewClient(ctx, cfg.Meta, logg)
	if err != nil {
		logg.Error(ctx, "failed to create meta client", err)
		os.Exit(1)
	}

	planRepo := plans.NewRepository(dbClient.DB())
	subRepo := subscriptions.NewRepository(dbClient.DB())
	billingRepo := billing.NewRepository(dbClient.DB())
	couponRepo := coupons.NewRepository(dbClient.DB())

	if cfg.FeatureFlags.SeedPlans {
		if err := plans.Seed(ctx, planRepo, logg); err != nil {
			logg.Error(ctx, "failed to seed plan catalog", err)
			os.Exit(1)
		}
	}

	planService, err := plans.NewService(planRepo)
	if err != nil {
		logg.Error(ctx, "failed to create plan service", err)
		os.Exit(1)
	}
	couponService, err := coupons.NewService(couponRepo, planRepo)
	if err != nil {
		logg.Error(ctx, "failed to create coupon service", err)
		os.Exit(1)
	}
	billingService, err := billing.NewService(billingRepo)
	if err != nil {
		logg.Error(ctx, "failed to create billing service", err)
		os.Exit(1)
	}
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		SubRepo:     subRepo,
		PlanRepo:    planRepo,
		BillingRepo: billingRepo,
		Coupons:     couponService,
		Gateway:     razorpayClient,
		Processor:   subscriptions.NewSimulatedProcessor(),
		TxRunner:    dbClient,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create subscription service", err)
		os.Exit(1)
	}
	quotaService, err := quota.NewService(subRepo, logg)
	if err != nil {
		logg.Error(ctx, "failed to create quota service", err)
		os.Exit(1)
	}
	interestService, err := interests.NewService(metaClient)
	if err != nil {
		logg.Error(ctx, "failed to create interest service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Plans:         planService,
			Coupons:       couponService,
			Subscriptions: subscriptionService,
			Billing:       billingService,
			Quota:         quotaService,
			Interests:     interestService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(startCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
