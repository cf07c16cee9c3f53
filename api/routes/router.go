package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/controllers"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/middleware"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/billing"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/coupons"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/interests"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/plans"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/quota"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/subscriptions"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/config"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/redis"
)

const (
	searchRateLimit  = 30
	searchRateWindow = time.Minute
)

// RouterParams groups everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Plans         plans.Service
	Coupons       coupons.Service
	Subscriptions subscriptions.Service
	Billing       billing.Service
	Quota         quota.Service
	Interests     interests.Service
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	// The plan catalog is browsable before sign-in.
	r.Route("/api/v1/plans", func(r chi.Router) {
		r.Get("/", controllers.PlanList(params.Plans, logg))
		r.Get("/{planId}", controllers.PlanDetail(params.Plans, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(params.Redis, logg))

		r.Post("/coupons/validate", controllers.CouponValidate(params.Coupons, logg))

		r.Post("/subscriptions", controllers.SubscriptionCreate(params.Subscriptions, logg))
		r.Get("/subscriptions/current", controllers.SubscriptionCurrent(params.Subscriptions, logg))
		r.Post("/subscriptions/cancel", controllers.SubscriptionCancel(params.Subscriptions, logg))
		r.Post("/subscriptions/change", controllers.SubscriptionChange(params.Subscriptions, logg))

		r.Get("/payments", controllers.PaymentList(params.Billing, logg))
		r.Post("/payments/razorpay/order", controllers.RazorpayOrderCreate(params.Subscriptions, logg))
		r.Post("/payments/razorpay/verify", controllers.RazorpayVerify(params.Subscriptions, logg))

		r.Get("/billing/history", controllers.BillingHistoryList(params.Billing, logg))

		r.With(
			middleware.RateLimit("interest-search", searchRateLimit, searchRateWindow, params.Redis, logg),
			middleware.Quota(params.Quota, logg),
		).Get("/interests/search", controllers.InterestSearch(params.Interests, logg))
	})

	return r
}
