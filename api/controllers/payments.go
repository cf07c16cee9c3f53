package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/responses"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/validators"
	billingsvc "github.com/Siddharth-AI/Intrest-Miner-sub001/internal/billing"
	subsvc "github.com/Siddharth-AI/Intrest-Miner-sub001/internal/subscriptions"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/pagination"
)

type razorpayOrderRequest struct {
	PlanID     uuid.UUID `json:"plan_id" validate:"required"`
	CouponCode string    `json:"coupon_code,omitempty"`
}

type razorpayOrderResponse struct {
	PaymentID   uuid.UUID       `json:"payment_id"`
	OrderID     string          `json:"order_id"`
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	KeyID       string          `json:"key_id"`
	AmountMajor decimal.Decimal `json:"amount_major"`
}

type razorpayVerifyRequest struct {
	PaymentUUID      uuid.UUID `json:"payment_uuid" validate:"required"`
	PlanID           uuid.UUID `json:"plan_id" validate:"required"`
	RazorpayOrderID  string    `json:"razorpay_order_id" validate:"required"`
	RazorpayPayID    string    `json:"razorpay_payment_id" validate:"required"`
	SignatureFromSDK string    `json:"razorpay_signature" validate:"required"`
	AutoRenew        bool      `json:"auto_renew"`
}

type paymentResponse struct {
	ID             uuid.UUID       `json:"id"`
	SubscriptionID *uuid.UUID      `json:"subscription_id,omitempty"`
	PlanID         uuid.UUID       `json:"plan_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         string          `json:"method"`
	Gateway        string          `json:"gateway"`
	Status         string          `json:"status"`
	PaymentDate    *time.Time      `json:"payment_date,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func newPaymentResponse(payment *models.Payment) paymentResponse {
	return paymentResponse{
		ID:             payment.ID,
		SubscriptionID: payment.SubscriptionID,
		PlanID:         payment.PlanID,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Method:         payment.Method,
		Gateway:        string(payment.Gateway),
		Status:         string(payment.Status),
		PaymentDate:    payment.PaymentDate,
		CreatedAt:      payment.CreatedAt,
	}
}

func RazorpayOrderCreate(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload razorpayOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateGatewayOrder(r.Context(), userID, subsvc.GatewayOrderInput{
			PlanID:     payload.PlanID,
			CouponCode: payload.CouponCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, razorpayOrderResponse{
			PaymentID:   result.Payment.ID,
			OrderID:     result.OrderID,
			Amount:      result.AmountMinor,
			Currency:    result.Currency,
			KeyID:       result.KeyID,
			AmountMajor: result.Payment.Amount,
		})
	}
}

func RazorpayVerify(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload razorpayVerifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.VerifyGatewayPayment(r.Context(), userID, subsvc.VerifyPaymentInput{
			PaymentUUID:      payload.PaymentUUID,
			PlanID:           payload.PlanID,
			GatewayOrderID:   payload.RazorpayOrderID,
			GatewayPaymentID: payload.RazorpayPayID,
			Signature:        payload.SignatureFromSDK,
			AutoRenew:        payload.AutoRenew,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func PaymentList(svc billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListPayments(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]paymentResponse, 0, len(page.Payments))
		for i := range page.Payments {
			out = append(out, newPaymentResponse(&page.Payments[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"payments":    out,
			"next_cursor": page.NextCursor,
		})
	}
}
