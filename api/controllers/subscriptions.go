package controllers

import (
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/responses"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/validators"
	subsvc "github.com/Siddharth-AI/Intrest-Miner-sub001/internal/subscriptions"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

type subscriptionCreateRequest struct {
	PlanID        uuid.UUID `json:"plan_id" validate:"required"`
	PaymentMethod string    `json:"payment_method" validate:"required"`
	PaymentToken  string    `json:"payment_token,omitempty"`
	AutoRenew     bool      `json:"auto_renew"`
}

type subscriptionCancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type subscriptionChangeRequest struct {
	NewPlanID     uuid.UUID `json:"new_plan_id" validate:"required"`
	PaymentMethod string    `json:"payment_method" validate:"required"`
	PaymentToken  string    `json:"payment_token,omitempty"`
}

type subscriptionResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PlanID             uuid.UUID  `json:"plan_id"`
	Status             string     `json:"status"`
	SearchesUsed       int        `json:"searches_used"`
	SearchesRemaining  int        `json:"searches_remaining"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	AutoRenew          bool       `json:"auto_renew"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
}

func newSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                 sub.ID,
		PlanID:             sub.PlanID,
		Status:             string(sub.Status),
		SearchesUsed:       sub.SearchesUsed,
		SearchesRemaining:  sub.SearchesRemaining,
		StartDate:          sub.StartDate,
		EndDate:            sub.EndDate,
		AutoRenew:          sub.AutoRenew,
		CancelledAt:        sub.CancelledAt,
		CancellationReason: sub.CancellationReason,
	}
}

type subscriptionUsageResponse struct {
	Subscription      subscriptionResponse `json:"subscription"`
	SearchesUsed      int                  `json:"searches_used"`
	SearchesRemaining int                  `json:"searches_remaining"`
	DaysRemaining     int                  `json:"days_remaining"`
}

func SubscriptionCreate(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subscriptionCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Subscribe(r.Context(), userID, subsvc.SubscribeInput{
			PlanID:        payload.PlanID,
			PaymentMethod: payload.PaymentMethod,
			PaymentToken:  payload.PaymentToken,
			AutoRenew:     payload.AutoRenew,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"subscription": newSubscriptionResponse(result.Subscription),
			"payment_id":   result.Payment.ID,
		})
	}
}

func SubscriptionCancel(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subscriptionCancelRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		sub, err := svc.Cancel(r.Context(), userID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func SubscriptionChange(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subscriptionChangeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ChangePlan(r.Context(), userID, subsvc.ChangePlanInput{
			NewPlanID:     payload.NewPlanID,
			PaymentMethod: payload.PaymentMethod,
			PaymentToken:  payload.PaymentToken,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"subscription":   newSubscriptionResponse(result.Subscription),
			"amount_charged": result.AmountCharged,
		})
	}
}

func SubscriptionCurrent(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.GetActive(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		daysRemaining := int(math.Ceil(time.Until(sub.EndDate).Hours() / 24))
		if daysRemaining < 0 {
			daysRemaining = 0
		}
		responses.WriteSuccess(w, subscriptionUsageResponse{
			Subscription:      newSubscriptionResponse(sub),
			SearchesUsed:      sub.SearchesUsed,
			SearchesRemaining: sub.SearchesRemaining,
			DaysRemaining:     daysRemaining,
		})
	}
}
