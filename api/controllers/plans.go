package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/responses"
	planssvc "github.com/Siddharth-AI/Intrest-Miner-sub001/internal/plans"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

type planResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	SearchLimit  int             `json:"search_limit"`
	DurationDays int             `json:"duration_days"`
	Features     json.RawMessage `json:"features,omitempty"`
	IsPopular    bool            `json:"is_popular"`
	CreatedAt    time.Time       `json:"created_at"`
}

func newPlanResponse(plan *models.Plan) planResponse {
	return planResponse{
		ID:           plan.ID,
		Name:         plan.Name,
		Description:  plan.Description,
		Price:        plan.Price,
		SearchLimit:  plan.SearchLimit,
		DurationDays: plan.DurationDays,
		Features:     plan.Features,
		IsPopular:    plan.IsPopular,
		CreatedAt:    plan.CreatedAt,
	}
}

func PlanList(svc planssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		plans, err := svc.ListPlans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]planResponse, 0, len(plans))
		for i := range plans {
			out = append(out, newPlanResponse(&plans[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func PlanDetail(svc planssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		planID, err := uuid.Parse(chi.URLParam(r, "planId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan id"))
			return
		}

		plan, err := svc.GetPlan(r.Context(), planID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPlanResponse(plan))
	}
}
