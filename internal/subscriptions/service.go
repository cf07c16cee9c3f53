package subscriptions

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/billing"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/coupons"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/razorpay"
)

const (
	reasonAccumulated   = "New plan purchased (searches accumulated)"
	reasonSuperseded    = "New plan purchased"
	reasonPlanChanged   = "Plan changed"
	reasonPaymentFailed = "Payment failed"
	reasonUserRequested = "User requested cancellation"

	activeSubscriptionConstraint = "idx_subscriptions_one_active"
)

type planReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type gatewayClient interface {
	CreateOrder(ctx context.Context, params razorpay.OrderParams) (*razorpay.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	Currency() string
	KeyID() string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the subscription lifecycle engine.
type Service interface {
	Subscribe(ctx context.Context, userID uuid.UUID, input SubscribeInput) (*SubscribeResult, error)
	CreateGatewayOrder(ctx context.Context, userID uuid.UUID, input GatewayOrderInput) (*GatewayOrderResult, error)
	VerifyGatewayPayment(ctx context.Context, userID uuid.UUID, input VerifyPaymentInput) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID, reason string) (*models.Subscription, error)
	ChangePlan(ctx context.Context, userID uuid.UUID, input ChangePlanInput) (*ChangePlanResult, error)
	GetActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// SubscribeInput starts a directly-charged purchase.
type SubscribeInput struct {
	PlanID        uuid.UUID
	PaymentMethod string
	PaymentToken  string
	AutoRenew     bool
}

// SubscribeResult reports the committed purchase.
type SubscribeResult struct {
	Subscription *models.Subscription
	Payment      *models.Payment
}

// GatewayOrderInput starts a gateway-mediated purchase.
type GatewayOrderInput struct {
	PlanID     uuid.UUID
	CouponCode string
}

// GatewayOrderResult carries what the client needs to run checkout.
type GatewayOrderResult struct {
	Payment     *models.Payment
	OrderID     string
	AmountMinor int64
	Currency    string
	KeyID       string
}

// VerifyPaymentInput completes a gateway-mediated purchase.
type VerifyPaymentInput struct {
	PaymentUUID      uuid.UUID
	PlanID           uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	AutoRenew        bool
}

// ChangePlanInput switches the caller's plan with proration.
type ChangePlanInput struct {
	NewPlanID     uuid.UUID
	PaymentMethod string
	PaymentToken  string
}

// ChangePlanResult reports the swap and the prorated charge.
type ChangePlanResult struct {
	Subscription  *models.Subscription
	AmountCharged decimal.Decimal
}

// ServiceParams groups dependencies for the lifecycle engine.
type ServiceParams struct {
	SubRepo     Repository
	PlanRepo    planReader
	BillingRepo billing.Repository
	Coupons     coupons.Service
	Gateway     gatewayClient
	Processor   ChargeProcessor
	TxRunner    txRunner
	Logger      *logger.Logger
}

type service struct {
	subRepo     Repository
	planRepo    planReader
	billingRepo billing.Repository
	coupons     coupons.Service
	gateway     gatewayClient
	processor   ChargeProcessor
	txRunner    txRunner
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the lifecycle engine with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.SubRepo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.PlanRepo == nil {
		return nil, fmt.Errorf("plan repo required")
	}
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("charge processor required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		subRepo:     params.SubRepo,
		planRepo:    params.PlanRepo,
		billingRepo: params.BillingRepo,
		coupons:     params.Coupons,
		gateway:     params.Gateway,
		processor:   params.Processor,
		txRunner:    params.TxRunner,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

// Subscribe runs the directly-charged purchase: a pending subscription and
// payment are committed first, then the charge settles them into their final
// states. Remaining quota on a superseded subscription carries forward.
func (s *service) Subscribe(ctx context.Context, userID uuid.UUID, input SubscribeInput) (*SubscribeResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	plan, err := s.resolvePlan(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var (
		sub         *models.Subscription
		payment     *models.Payment
		billingType = enums.BillingTypeSubscription
		description = "New subscription"
	)

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		subRepo := s.subRepo.WithTx(tx)
		billingRepo := s.billingRepo.WithTx(tx)

		total := plan.SearchLimit
		existing, err := subRepo.FindActiveByUserForUpdate(ctx, userID, now)
		if err != nil {
			return err
		}
		if existing != nil {
			total += existing.SearchesRemaining
			existing.Status = enums.SubscriptionStatusCancelled
			existing.AutoRenew = false
			existing.CancelledAt = &now
			reason := reasonAccumulated
			existing.CancellationReason = &reason
			if err := subRepo.Update(ctx, existing); err != nil {
				return err
			}
			description = "New subscription (remaining searches accumulated)"
		}

		sub = &models.Subscription{
			UserID:            userID,
			PlanID:            plan.ID,
			Status:            enums.SubscriptionStatusPending,
			SearchesRemaining: total,
			StartDate:         now,
			EndDate:           now.AddDate(0, 0, plan.DurationDays),
			AutoRenew:         input.AutoRenew,
		}
		if err := subRepo.Create(ctx, sub); err != nil {
			return err
		}

		payment = &models.Payment{
			UserID:         userID,
			SubscriptionID: &sub.ID,
			PlanID:         plan.ID,
			Amount:         plan.Price,
			Currency:       "USD",
			Method:         input.PaymentMethod,
			Gateway:        enums.PaymentGatewayInternal,
			Status:         enums.PaymentStatusPending,
		}
		return billingRepo.CreatePayment(ctx, payment)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "preparing subscription")
	}

	ctx = s.logg.WithSubscriptionID(ctx, sub.ID.String())
	transactionID, chargeErr := s.processor.Charge(ctx, payment, input.PaymentToken)
	if chargeErr != nil {
		s.settleFailedCharge(ctx, sub, payment, chargeErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, chargeErr, "payment failed")
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		subRepo := s.subRepo.WithTx(tx)
		billingRepo := s.billingRepo.WithTx(tx)

		settleTime := s.now().UTC()
		sub.Status = enums.SubscriptionStatusActive
		if err := subRepo.Update(ctx, sub); err != nil {
			return err
		}
		payment.Status = enums.PaymentStatusCompleted
		payment.TransactionID = &transactionID
		payment.PaymentDate = &settleTime
		return billingRepo.UpdatePayment(ctx, payment)
	})
	if err != nil {
		if db.IsUniqueViolation(err, activeSubscriptionConstraint) {
			// The charge went through but the activation lost the race. Settle
			// the payment so the row does not sit pending forever; the failure
			// reason carries the transaction id for refund reconciliation.
			payment.TransactionID = &transactionID
			s.settleFailedCharge(ctx, sub, payment,
				fmt.Errorf("superseded by a concurrent activation; transaction %s needs a refund", transactionID))
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "another subscription was activated concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activating subscription")
	}

	s.appendHistory(ctx, billing.HistoryEntryInput{
		UserID:         userID,
		SubscriptionID: sub.ID,
		PaymentID:      &payment.ID,
		PlanID:         plan.ID,
		BillingType:    billingType,
		Amount:         payment.Amount,
		PeriodStart:    sub.StartDate,
		PeriodEnd:      sub.EndDate,
		Status:         enums.PaymentStatusCompleted,
		Description:    description,
	})

	return &SubscribeResult{Subscription: sub, Payment: payment}, nil
}

// CreateGatewayOrder prices the plan (optionally discounted), creates the
// upstream order, and stages a pending payment that records the gateway order
// id and any coupon application for later reconciliation. Coupon validation
// failures never block the purchase; the order proceeds at full price.
func (s *service) CreateGatewayOrder(ctx context.Context, userID uuid.UUID, input GatewayOrderInput) (*GatewayOrderResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	plan, err := s.resolvePlan(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}

	finalPrice := plan.Price
	var couponApp *models.CouponApplication
	if code := strings.TrimSpace(input.CouponCode); code != "" {
		pricing, err := s.coupons.Validate(ctx, code, plan.ID, userID)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "coupon_code", code), "coupon rejected, proceeding at full price")
		} else {
			finalPrice = pricing.FinalAmount
			couponApp = &models.CouponApplication{
				CouponID:       pricing.Coupon.ID,
				Code:           pricing.Coupon.Code,
				DiscountAmount: pricing.DiscountAmount,
				OriginalAmount: pricing.OriginalAmount,
			}
		}
	}

	paymentID := uuid.New()
	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderParams{
		Amount:  finalPrice,
		Receipt: paymentID.String(),
		Notes: map[string]string{
			"user_id": userID.String(),
			"plan_id": plan.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:             paymentID,
		UserID:         userID,
		PlanID:         plan.ID,
		Amount:         finalPrice,
		Currency:       order.Currency,
		Method:         "razorpay",
		Gateway:        enums.PaymentGatewayRazorpay,
		GatewayOrderID: &order.ID,
		Status:         enums.PaymentStatusPending,
	}
	if couponApp != nil {
		if err := payment.SetCouponApplication(couponApp); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding coupon application")
		}
	}
	if err := s.billingRepo.CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "staging gateway payment")
	}

	return &GatewayOrderResult{
		Payment:     payment,
		OrderID:     order.ID,
		AmountMinor: order.Amount,
		Currency:    order.Currency,
		KeyID:       s.gateway.KeyID(),
	}, nil
}

// VerifyGatewayPayment checks the checkout signature and, on success,
// activates a fresh subscription immediately. Unlike Subscribe, remaining
// quota on a superseded subscription is NOT carried forward here; the prior
// subscription is cancelled without accumulation.
func (s *service) VerifyGatewayPayment(ctx context.Context, userID uuid.UUID, input VerifyPaymentInput) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	payment, err := s.billingRepo.FindPaymentByID(ctx, input.PaymentUUID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up payment")
	}
	if payment == nil || payment.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already processed")
	}
	if payment.GatewayOrderID == nil || *payment.GatewayOrderID != input.GatewayOrderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order does not match payment")
	}

	if !s.gateway.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		reason := "Invalid signature"
		payment.Status = enums.PaymentStatusFailed
		payment.FailureReason = &reason
		if err := s.billingRepo.UpdatePayment(ctx, payment); err != nil {
			s.logg.Error(ctx, "recording signature failure", err)
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment signature")
	}

	plan, err := s.resolvePlan(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var sub *models.Subscription
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		subRepo := s.subRepo.WithTx(tx)
		billingRepo := s.billingRepo.WithTx(tx)

		existing, err := subRepo.FindActiveByUserForUpdate(ctx, userID, now)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Status = enums.SubscriptionStatusCancelled
			existing.AutoRenew = false
			existing.CancelledAt = &now
			reason := reasonSuperseded
			existing.CancellationReason = &reason
			if err := subRepo.Update(ctx, existing); err != nil {
				return err
			}
		}

		sub = &models.Subscription{
			UserID:            userID,
			PlanID:            plan.ID,
			Status:            enums.SubscriptionStatusActive,
			SearchesRemaining: plan.SearchLimit,
			StartDate:         now,
			EndDate:           now.AddDate(0, 0, plan.DurationDays),
			AutoRenew:         input.AutoRenew,
		}
		if err := subRepo.Create(ctx, sub); err != nil {
			return err
		}

		payment.Status = enums.PaymentStatusCompleted
		payment.SubscriptionID = &sub.ID
		payment.GatewayPaymentID = &input.GatewayPaymentID
		payment.TransactionID = &input.GatewayPaymentID
		payment.PaymentDate = &now
		return billingRepo.UpdatePayment(ctx, payment)
	})
	if err != nil {
		if db.IsUniqueViolation(err, activeSubscriptionConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "another subscription was activated concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activating subscription")
	}

	ctx = s.logg.WithSubscriptionID(ctx, sub.ID.String())
	if app, appErr := payment.CouponApplication(); appErr != nil {
		s.logg.Error(ctx, "decoding coupon application", appErr)
	} else if app != nil {
		redeemErr := s.coupons.Redeem(ctx, coupons.RecordUsageInput{
			CouponID:       app.CouponID,
			UserID:         userID,
			SubscriptionID: &sub.ID,
			PaymentID:      &payment.ID,
			DiscountAmount: app.DiscountAmount,
			OriginalAmount: app.OriginalAmount,
			FinalAmount:    payment.Amount,
		})
		if redeemErr != nil {
			s.logg.Error(ctx, "recording coupon redemption", redeemErr)
		}
	}

	s.appendHistory(ctx, billing.HistoryEntryInput{
		UserID:         userID,
		SubscriptionID: sub.ID,
		PaymentID:      &payment.ID,
		PlanID:         plan.ID,
		BillingType:    enums.BillingTypeSubscription,
		Amount:         payment.Amount,
		PeriodStart:    sub.StartDate,
		PeriodEnd:      sub.EndDate,
		Status:         enums.PaymentStatusCompleted,
		Description:    "Gateway subscription purchase",
	})

	return sub, nil
}

// Cancel ends the caller's active subscription.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID, reason string) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	now := s.now().UTC()
	sub, err := s.subRepo.FindActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}

	if strings.TrimSpace(reason) == "" {
		reason = reasonUserRequested
	}
	sub.Status = enums.SubscriptionStatusCancelled
	sub.AutoRenew = false
	sub.CancelledAt = &now
	sub.CancellationReason = &reason
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling subscription")
	}
	return sub, nil
}

// ChangePlan swaps the active subscription for a new plan, crediting the
// unused portion of the current period against the new plan's price. A swap
// that nets out to zero or negative moves no money; the ledger still gets a
// zero-amount downgrade entry.
func (s *service) ChangePlan(ctx context.Context, userID uuid.UUID, input ChangePlanInput) (*ChangePlanResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	now := s.now().UTC()
	current, err := s.subRepo.FindActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up subscription")
	}
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}

	newPlan, err := s.resolvePlan(ctx, input.NewPlanID)
	if err != nil {
		return nil, err
	}
	currentPlan, err := s.planRepo.FindByID(ctx, current.PlanID)
	if err != nil || currentPlan == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving current plan")
	}

	remainingDays := int64(math.Ceil(current.EndDate.Sub(now).Hours() / 24))
	if remainingDays < 0 {
		remainingDays = 0
	}
	dailyRate := currentPlan.Price.Div(decimal.NewFromInt(int64(currentPlan.DurationDays)))
	credit := dailyRate.Mul(decimal.NewFromInt(remainingDays))
	upgradeAmount := newPlan.Price.Sub(credit).Round(2)

	var (
		transactionID string
		charged       = decimal.Zero
	)
	if upgradeAmount.IsPositive() {
		charged = upgradeAmount
		draft := &models.Payment{
			UserID:  userID,
			PlanID:  newPlan.ID,
			Amount:  upgradeAmount,
			Method:  input.PaymentMethod,
			Gateway: enums.PaymentGatewayInternal,
		}
		transactionID, err = s.processor.Charge(ctx, draft, input.PaymentToken)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment failed")
		}
	}

	var (
		sub     *models.Subscription
		payment *models.Payment
	)
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		subRepo := s.subRepo.WithTx(tx)
		billingRepo := s.billingRepo.WithTx(tx)

		current.Status = enums.SubscriptionStatusCancelled
		current.CancelledAt = &now
		reason := reasonPlanChanged
		current.CancellationReason = &reason
		if err := subRepo.Update(ctx, current); err != nil {
			return err
		}

		sub = &models.Subscription{
			UserID:            userID,
			PlanID:            newPlan.ID,
			Status:            enums.SubscriptionStatusActive,
			SearchesRemaining: newPlan.SearchLimit,
			StartDate:         now,
			EndDate:           now.AddDate(0, 0, newPlan.DurationDays),
			AutoRenew:         current.AutoRenew,
		}
		if err := subRepo.Create(ctx, sub); err != nil {
			return err
		}

		if charged.IsPositive() {
			payment = &models.Payment{
				UserID:         userID,
				SubscriptionID: &sub.ID,
				PlanID:         newPlan.ID,
				Amount:         charged,
				Currency:       "USD",
				Method:         input.PaymentMethod,
				Gateway:        enums.PaymentGatewayInternal,
				TransactionID:  &transactionID,
				Status:         enums.PaymentStatusCompleted,
				PaymentDate:    &now,
			}
			return billingRepo.CreatePayment(ctx, payment)
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, activeSubscriptionConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "another subscription was activated concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "changing plan")
	}

	entry := billing.HistoryEntryInput{
		UserID:         userID,
		SubscriptionID: sub.ID,
		PlanID:         newPlan.ID,
		BillingType:    enums.BillingTypeUpgrade,
		Amount:         charged,
		PeriodStart:    sub.StartDate,
		PeriodEnd:      sub.EndDate,
		Status:         enums.PaymentStatusCompleted,
		Description:    fmt.Sprintf("Plan change from %s to %s", currentPlan.Name, newPlan.Name),
	}
	if payment != nil {
		entry.PaymentID = &payment.ID
	}
	if !charged.IsPositive() {
		entry.BillingType = enums.BillingTypeDowngrade
	}
	s.appendHistory(s.logg.WithSubscriptionID(ctx, sub.ID.String()), entry)

	return &ChangePlanResult{Subscription: sub, AmountCharged: charged}, nil
}

// GetActive returns the caller's live subscription.
func (s *service) GetActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	sub, err := s.subRepo.FindActiveByUser(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}
	return sub, nil
}

func (s *service) resolvePlan(ctx context.Context, planID uuid.UUID) (*models.Plan, error) {
	if planID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up plan")
	}
	if plan == nil || !plan.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if plan.DurationDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan has no billable duration")
	}
	return plan, nil
}

// settleFailedCharge records the declined charge. Failures here are logged;
// the caller already reports the decline.
func (s *service) settleFailedCharge(ctx context.Context, sub *models.Subscription, payment *models.Payment, chargeErr error) {
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		subRepo := s.subRepo.WithTx(tx)
		billingRepo := s.billingRepo.WithTx(tx)

		reason := chargeErr.Error()
		payment.Status = enums.PaymentStatusFailed
		payment.FailureReason = &reason
		if err := billingRepo.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		failReason := reasonPaymentFailed
		sub.Status = enums.SubscriptionStatusFailed
		sub.CancellationReason = &failReason
		return subRepo.Update(ctx, sub)
	})
	if err != nil {
		s.logg.Error(ctx, "recording failed charge", err)
	}
}

// appendHistory writes the audit ledger entry. The ledger is eventually
// consistent; failures are logged and never unwind the purchase.
func (s *service) appendHistory(ctx context.Context, input billing.HistoryEntryInput) {
	entry := billing.NewHistoryEntry(input)
	if err := s.billingRepo.CreateHistory(ctx, entry); err != nil {
		s.logg.Error(ctx, "appending billing history", err)
	}
}
