package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/responses"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/validators"
	billingsvc "github.com/Siddharth-AI/Intrest-Miner-sub001/internal/billing"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/pagination"
)

type billingHistoryResponse struct {
	ID             uuid.UUID       `json:"id"`
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	PaymentID      *uuid.UUID      `json:"payment_id,omitempty"`
	PlanID         uuid.UUID       `json:"plan_id"`
	BillingType    string          `json:"billing_type"`
	Amount         decimal.Decimal `json:"amount"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	Status         string          `json:"status"`
	InvoiceNumber  string          `json:"invoice_number"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func newBillingHistoryResponse(entry *models.BillingHistory) billingHistoryResponse {
	return billingHistoryResponse{
		ID:             entry.ID,
		SubscriptionID: entry.SubscriptionID,
		PaymentID:      entry.PaymentID,
		PlanID:         entry.PlanID,
		BillingType:    string(entry.BillingType),
		Amount:         entry.Amount,
		PeriodStart:    entry.PeriodStart,
		PeriodEnd:      entry.PeriodEnd,
		Status:         string(entry.Status),
		InvoiceNumber:  entry.InvoiceNumber,
		Description:    entry.Description,
		CreatedAt:      entry.CreatedAt,
	}
}

func BillingHistoryList(svc billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		page, err := svc.ListHistory(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]billingHistoryResponse, 0, len(page.Entries))
		for i := range page.Entries {
			out = append(out, newBillingHistoryResponse(&page.Entries[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"history":     out,
			"next_cursor": page.NextCursor,
		})
	}
}
