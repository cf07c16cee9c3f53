package coupons

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
)

type planReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

// Pricing is the outcome of applying a coupon to a plan price.
type Pricing struct {
	Coupon         *models.Coupon
	OriginalAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	SavingsPercent decimal.Decimal
}

// Service exposes coupon validation and redemption bookkeeping.
type Service interface {
	Validate(ctx context.Context, code string, planID, userID uuid.UUID) (*Pricing, error)
	Apply(ctx context.Context, couponID, userID, planID uuid.UUID, originalAmount decimal.Decimal) (*Pricing, error)
	RecordUsage(ctx context.Context, input RecordUsageInput) error
	Redeem(ctx context.Context, input RecordUsageInput) error
}

// RecordUsageInput captures one successful redemption.
type RecordUsageInput struct {
	CouponID       uuid.UUID
	UserID         uuid.UUID
	SubscriptionID *uuid.UUID
	PaymentID      *uuid.UUID
	DiscountAmount decimal.Decimal
	OriginalAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

type service struct {
	repo     Repository
	planRepo planReader
	now      func() time.Time
}

// NewService builds a coupon engine backed by the provided repositories.
func NewService(repo Repository, planRepo planReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if planRepo == nil {
		return nil, fmt.Errorf("plan repository required")
	}
	return &service{repo: repo, planRepo: planRepo, now: time.Now}, nil
}

// Validate runs the rejection checks in a fixed order and prices the coupon
// against the plan. Read-only; nothing is reserved.
func (s *service) Validate(ctx context.Context, code string, planID, userID uuid.UUID) (*Pricing, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if planID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan and user are required")
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up coupon")
	}
	now := s.now().UTC()
	if coupon == nil || !coupon.IsActive || now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid or expired coupon")
	}

	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon usage limit exceeded")
	}

	used, err := s.repo.CountUsagesByUser(ctx, coupon.ID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting coupon usages")
	}
	if used >= int64(coupon.UserUsageLimit) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon already used")
	}

	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up plan")
	}
	if plan == nil || !plan.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid plan")
	}

	applicable, err := coupon.ApplicablePlanIDs()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding applicable plans")
	}
	if len(applicable) > 0 && !containsID(applicable, planID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon not applicable to this plan")
	}

	if plan.Price.LessThan(coupon.MinimumOrderAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum order amount not met")
	}

	return price(coupon, plan.Price), nil
}

// Apply recomputes the discount server-side and reserves one use of the
// coupon via a conditional counter increment. Caller-supplied amounts are
// never trusted for the discount math.
func (s *service) Apply(ctx context.Context, couponID, userID, planID uuid.UUID, originalAmount decimal.Decimal) (*Pricing, error) {
	if couponID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon id is required")
	}

	coupon, err := s.repo.FindByID(ctx, couponID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up coupon")
	}
	if coupon == nil || !coupon.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid or expired coupon")
	}

	ok, err := s.repo.IncrementUsage(ctx, coupon.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "incrementing coupon usage")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon usage limit exceeded")
	}

	return price(coupon, originalAmount), nil
}

// RecordUsage appends the CouponUsage audit row. Callers treat failures as
// non-fatal; the redemption itself already happened.
func (s *service) RecordUsage(ctx context.Context, input RecordUsageInput) error {
	if input.CouponID == uuid.Nil || input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon and user are required")
	}
	usage := &models.CouponUsage{
		CouponID:       input.CouponID,
		UserID:         input.UserID,
		SubscriptionID: input.SubscriptionID,
		PaymentID:      input.PaymentID,
		DiscountAmount: input.DiscountAmount,
		OriginalAmount: input.OriginalAmount,
		FinalAmount:    input.FinalAmount,
	}
	if err := s.repo.CreateUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording coupon usage")
	}
	return nil
}

// Redeem reserves one global use and appends the usage row. Called after the
// money has already moved, so callers log failures instead of unwinding.
func (s *service) Redeem(ctx context.Context, input RecordUsageInput) error {
	if input.CouponID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon id is required")
	}
	if _, err := s.repo.IncrementUsage(ctx, input.CouponID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "incrementing coupon usage")
	}
	return s.RecordUsage(ctx, input)
}

func price(coupon *models.Coupon, original decimal.Decimal) *Pricing {
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount = original.Mul(coupon.DiscountValue).Div(decimal.NewFromInt(100))
	default:
		discount = decimal.Min(coupon.DiscountValue, original)
	}
	if coupon.MaximumDiscountAmount != nil {
		discount = decimal.Min(discount, *coupon.MaximumDiscountAmount)
	}

	final := original.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
		discount = original
	}

	savings := decimal.Zero
	if original.IsPositive() {
		savings = discount.Div(original).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return &Pricing{
		Coupon:         coupon,
		OriginalAmount: original,
		DiscountAmount: discount.Round(2),
		FinalAmount:    final.Round(2),
		SavingsPercent: savings,
	}
}

func containsID(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
