package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/pagination"
)

// Service exposes the user-facing billing audit surface.
type Service interface {
	ListHistory(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error)
	ListPayments(ctx context.Context, userID uuid.UUID, params pagination.Params) (*PaymentsPage, error)
}

// HistoryPage is one page of ledger entries plus the next cursor.
type HistoryPage struct {
	Entries    []models.BillingHistory
	NextCursor string
}

// PaymentsPage is one page of payments plus the next cursor.
type PaymentsPage struct {
	Payments   []models.Payment
	NextCursor string
}

// HistoryEntryInput describes one ledger append.
type HistoryEntryInput struct {
	UserID         uuid.UUID
	SubscriptionID uuid.UUID
	PaymentID      *uuid.UUID
	PlanID         uuid.UUID
	BillingType    enums.BillingType
	Amount         decimal.Decimal
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Status         enums.PaymentStatus
	Description    string
}

type service struct {
	repo Repository
}

// NewService builds the billing audit service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListHistory(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListHistoryByUser(ctx, userID, ListQuery{Cursor: cursor, Limit: limit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing billing history")
	}

	page := &HistoryPage{Entries: rows}
	if len(rows) > limit {
		page.Entries = rows[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (s *service) ListPayments(ctx context.Context, userID uuid.UUID, params pagination.Params) (*PaymentsPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListPaymentsByUser(ctx, userID, ListQuery{Cursor: cursor, Limit: limit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payments")
	}

	page := &PaymentsPage{Payments: rows}
	if len(rows) > limit {
		page.Payments = rows[:limit]
		last := page.Payments[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// NewHistoryEntry materializes a ledger row with a generated invoice number.
func NewHistoryEntry(input HistoryEntryInput) *models.BillingHistory {
	return &models.BillingHistory{
		UserID:         input.UserID,
		SubscriptionID: input.SubscriptionID,
		PaymentID:      input.PaymentID,
		PlanID:         input.PlanID,
		BillingType:    input.BillingType,
		Amount:         input.Amount,
		PeriodStart:    input.PeriodStart,
		PeriodEnd:      input.PeriodEnd,
		Status:         input.Status,
		InvoiceNumber:  NewInvoiceNumber(time.Now().UTC()),
		Description:    input.Description,
	}
}

// NewInvoiceNumber produces a unique, human-sortable invoice reference.
func NewInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), suffix)
}
