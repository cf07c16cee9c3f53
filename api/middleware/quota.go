package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/responses"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/quota"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

const ctxSubscription contextKey = "subscription"

// SubscriptionFromContext returns the subscription resolved by the Quota
// middleware, or nil outside a quota-guarded route.
func SubscriptionFromContext(ctx context.Context) *models.Subscription {
	if ctx == nil {
		return nil
	}
	if sub, ok := ctx.Value(ctxSubscription).(*models.Subscription); ok {
		return sub
	}
	return nil
}

// Quota gates a route on the caller's remaining search allowance and burns
// one unit once the wrapped handler responds successfully.
func Quota(svc quota.Service, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := uuid.Parse(UserIDFromContext(r.Context()))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			sub, err := svc.CheckLimits(r.Context(), userID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxSubscription, sub)
			if logg != nil {
				ctx = logg.WithSubscriptionID(ctx, sub.ID.String())
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			// Only a delivered result costs a unit; failed searches are free.
			if rec.succeeded() {
				if consumeErr := svc.ConsumeUnit(ctx, sub.ID); consumeErr != nil {
					logError(ctx, logg, "failed to consume search unit", consumeErr)
				}
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) succeeded() bool {
	return r.status >= 200 && r.status < 300
}
