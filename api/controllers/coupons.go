package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/responses"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/validators"
	couponsvc "github.com/Siddharth-AI/Intrest-Miner-sub001/internal/coupons"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

type couponValidateRequest struct {
	Code   string    `json:"code" validate:"required"`
	PlanID uuid.UUID `json:"plan_id" validate:"required"`
}

type couponPricingResponse struct {
	Code           string          `json:"code"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	SavingsPercent decimal.Decimal `json:"savings_percent"`
}

func newCouponPricingResponse(pricing *couponsvc.Pricing) couponPricingResponse {
	resp := couponPricingResponse{
		OriginalAmount: pricing.OriginalAmount,
		DiscountAmount: pricing.DiscountAmount,
		FinalAmount:    pricing.FinalAmount,
		SavingsPercent: pricing.SavingsPercent,
	}
	if pricing.Coupon != nil {
		resp.Code = pricing.Coupon.Code
	}
	return resp
}

func CouponValidate(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload couponValidateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pricing, err := svc.Validate(r.Context(), payload.Code, payload.PlanID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCouponPricingResponse(pricing))
	}
}
