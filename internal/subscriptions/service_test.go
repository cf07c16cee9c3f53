package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/billing"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/coupons"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/plans"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/pagination"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/razorpay"
)

type fakeGateway struct {
	lastOrder   razorpay.OrderParams
	orderID     string
	validSig    string
	orderErr    error
	orderCalled bool
}

func (f *fakeGateway) CreateOrder(_ context.Context, params razorpay.OrderParams) (*razorpay.Order, error) {
	f.orderCalled = true
	f.lastOrder = params
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return &razorpay.Order{
		ID:       f.orderID,
		Entity:   "order",
		Amount:   params.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency: "INR",
		Receipt:  params.Receipt,
		Status:   "created",
	}, nil
}

func (f *fakeGateway) VerifyPaymentSignature(_, _, signature string) bool {
	return signature == f.validSig
}

func (f *fakeGateway) Currency() string { return "INR" }
func (f *fakeGateway) KeyID() string    { return "rzp_test_key" }

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type engineFixture struct {
	conn        *gorm.DB
	svc         *service
	subRepo     Repository
	planRepo    plans.Repository
	billingRepo billing.Repository
	couponRepo  coupons.Repository
	gateway     *fakeGateway
	plan        *models.Plan
	userID      uuid.UUID
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Plan{},
		&models.Subscription{},
		&models.Payment{},
		&models.Coupon{},
		&models.CouponUsage{},
		&models.BillingHistory{},
	)
	if err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	subRepo := NewRepository(conn)
	planRepo := plans.NewRepository(conn)
	billingRepo := billing.NewRepository(conn)
	couponRepo := coupons.NewRepository(conn)
	couponSvc, err := coupons.NewService(couponRepo, planRepo)
	if err != nil {
		t.Fatalf("coupon service: %v", err)
	}

	gateway := &fakeGateway{orderID: "order_test1", validSig: "good-signature"}
	svc, err := NewService(ServiceParams{
		SubRepo:     subRepo,
		PlanRepo:    planRepo,
		BillingRepo: billingRepo,
		Coupons:     couponSvc,
		Gateway:     gateway,
		Processor:   NewSimulatedProcessor(),
		TxRunner:    testTxRunner{db: conn},
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	plan := &models.Plan{
		Name:         "Pro",
		Price:        decimal.RequireFromString("29.99"),
		SearchLimit:  1000,
		DurationDays: 30,
		IsActive:     true,
	}
	if err := planRepo.Create(context.Background(), plan); err != nil {
		t.Fatalf("creating plan: %v", err)
	}

	return &engineFixture{
		conn:        conn,
		svc:         svc.(*service),
		subRepo:     subRepo,
		planRepo:    planRepo,
		billingRepo: billingRepo,
		couponRepo:  couponRepo,
		gateway:     gateway,
		plan:        plan,
		userID:      uuid.New(),
	}
}

func (f *engineFixture) historyFor(t *testing.T, userID uuid.UUID) []models.BillingHistory {
	t.Helper()
	page, err := f.billingRepo.ListHistoryByUser(context.Background(), userID, billing.ListQuery{Limit: pagination.DefaultLimit})
	if err != nil {
		t.Fatalf("listing history: %v", err)
	}
	return page
}

func TestSubscribeActivatesAndRecords(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	result, err := f.svc.Subscribe(ctx, f.userID, SubscribeInput{
		PlanID:        f.plan.ID,
		PaymentMethod: "card",
		PaymentToken:  "tok_ok",
		AutoRenew:     true,
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sub := result.Subscription
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active subscription, got %s", sub.Status)
	}
	if sub.SearchesRemaining != f.plan.SearchLimit {
		t.Fatalf("expected %d searches, got %d", f.plan.SearchLimit, sub.SearchesRemaining)
	}
	if !sub.AutoRenew {
		t.Fatal("auto renew not persisted")
	}
	wantEnd := sub.StartDate.AddDate(0, 0, f.plan.DurationDays)
	if !sub.EndDate.Equal(wantEnd) {
		t.Fatalf("expected end %v, got %v", wantEnd, sub.EndDate)
	}

	payment := result.Payment
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", payment.Status)
	}
	if payment.TransactionID == nil || payment.PaymentDate == nil {
		t.Fatal("expected transaction id and payment date")
	}

	history := f.historyFor(t, f.userID)
	if len(history) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(history))
	}
	if history[0].BillingType != enums.BillingTypeSubscription {
		t.Fatalf("unexpected billing type %s", history[0].BillingType)
	}
	if history[0].InvoiceNumber == "" {
		t.Fatal("expected invoice number")
	}
}

func TestSubscribeCarriesOverRemainingQuota(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	first, err := f.svc.Subscribe(ctx, f.userID, SubscribeInput{
		PlanID:        f.plan.ID,
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	// burn some quota
	for i := 0; i < 40; i++ {
		if ok, err := f.subRepo.ConsumeUnit(ctx, first.Subscription.ID); err != nil || !ok {
			t.Fatalf("consume unit %d: ok=%v err=%v", i, ok, err)
		}
	}

	second, err := f.svc.Subscribe(ctx, f.userID, SubscribeInput{
		PlanID:        f.plan.ID,
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("second subscribe: %v", err)
	}

	wantQuota := f.plan.SearchLimit + (f.plan.SearchLimit - 40)
	if second.Subscription.SearchesRemaining != wantQuota {
		t.Fatalf("expected carry-over quota %d, got %d", wantQuota, second.Subscription.SearchesRemaining)
	}

	old, err := f.subRepo.FindByID(ctx, first.Subscription.ID)
	if err != nil {
		t.Fatalf("refetch old sub: %v", err)
	}
	if old.Status != enums.SubscriptionStatusCancelled {
		t.Fatalf("expected old subscription cancelled, got %s", old.Status)
	}
	if old.CancellationReason == nil || *old.CancellationReason != reasonAccumulated {
		t.Fatalf("unexpected cancellation reason %v", old.CancellationReason)
	}
}

func TestSubscribeChargeFailure(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.svc.Subscribe(ctx, f.userID, SubscribeInput{
		PlanID:        f.plan.ID,
		PaymentMethod: "card",
		PaymentToken:  FailureToken,
	})
	if err == nil {
		t.Fatal("expected charge failure")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}

	var sub models.Subscription
	if err := f.conn.First(&sub, "user_id = ?", f.userID).Error; err != nil {
		t.Fatalf("fetching subscription: %v", err)
	}
	if sub.Status != enums.SubscriptionStatusFailed {
		t.Fatalf("expected failed subscription, got %s", sub.Status)
	}
	if sub.CancellationReason == nil || *sub.CancellationReason != reasonPaymentFailed {
		t.Fatalf("unexpected reason %v", sub.CancellationReason)
	}

	var payment models.Payment
	if err := f.conn.First(&payment, "user_id = ?", f.userID).Error; err != nil {
		t.Fatalf("fetching payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusFailed || payment.FailureReason == nil {
		t.Fatalf("expected failed payment with reason, got %s", payment.Status)
	}

	if entries := f.historyFor(t, f.userID); len(entries) != 0 {
		t.Fatalf("failed purchase must not reach the ledger, got %d entries", len(entries))
	}
}

// seedLapsedActive plants a row the sweeper has not expired yet: status is
// still active, so it occupies the one-active-per-user slot, but its window is
// closed and the purchase lookups do not see it.
func (f *engineFixture) seedLapsedActive(t *testing.T) *models.Subscription {
	t.Helper()
	now := time.Now().UTC()
	sub := &models.Subscription{
		UserID:            f.userID,
		PlanID:            f.plan.ID,
		Status:            enums.SubscriptionStatusActive,
		SearchesRemaining: 5,
		StartDate:         now.AddDate(0, 0, -40),
		EndDate:           now.Add(-time.Hour),
	}
	if err := f.subRepo.Create(context.Background(), sub); err != nil {
		t.Fatalf("seeding lapsed subscription: %v", err)
	}
	return sub
}

func TestSubscribeConflictSettlesCompletedCharge(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	lapsed := f.seedLapsedActive(t)

	_, err := f.svc.Subscribe(ctx, f.userID, SubscribeInput{
		PlanID:        f.plan.ID,
		PaymentMethod: "card",
		PaymentToken:  "tok_ok",
	})
	if err == nil {
		t.Fatal("expected activation conflict")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}

	// The charge succeeded before the conflict, so the payment must be settled
	// as failed with the transaction id kept for refund reconciliation.
	var payment models.Payment
	if err := f.conn.First(&payment, "user_id = ?", f.userID).Error; err != nil {
		t.Fatalf("fetching payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", payment.Status)
	}
	if payment.FailureReason == nil || payment.TransactionID == nil {
		t.Fatalf("expected failure reason and transaction id, got %+v", payment)
	}

	var sub models.Subscription
	if err := f.conn.First(&sub, "user_id = ? AND id <> ?", f.userID, lapsed.ID).Error; err != nil {
		t.Fatalf("fetching subscription: %v", err)
	}
	if sub.Status != enums.SubscriptionStatusFailed {
		t.Fatalf("expected failed subscription, got %s", sub.Status)
	}

	if entries := f.historyFor(t, f.userID); len(entries) != 0 {
		t.Fatalf("conflicted purchase must not reach the ledger, got %d entries", len(entries))
	}
}

func TestVerifyGatewayPaymentConflict(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateGatewayOrder(ctx, f.userID, GatewayOrderInput{PlanID: f.plan.ID})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	lapsed := f.seedLapsedActive(t)

	_, err = f.svc.VerifyGatewayPayment(ctx, f.userID, VerifyPaymentInput{
		PaymentUUID:      order.Payment.ID,
		PlanID:           f.plan.ID,
		GatewayOrderID:   order.OrderID,
		GatewayPaymentID: "pay_abc",
		Signature:        "good-signature",
	})
	if err == nil {
		t.Fatal("expected activation conflict")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}

	// The transaction rolled back: no second subscription row, and the payment
	// is still pending so verification can be retried.
	var count int64
	if err := f.conn.Model(&models.Subscription{}).
		Where("user_id = ? AND id <> ?", f.userID, lapsed.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("counting subscriptions: %v", err)
	}
	if count != 0 {
		t.Fatalf("conflicted activation must not leave rows, got %d", count)
	}
	payment, err := f.billingRepo.FindPaymentByID(ctx, order.Payment.ID)
	if err != nil {
		t.Fatalf("refetch payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment after rollback, got %s", payment.Status)
	}
}

func TestCreateGatewayOrderWithCoupon(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	coupon := &models.Coupon{
		Code:           "SAVE20",
		DiscountType:   enums.DiscountTypePercentage,
		DiscountValue:  decimal.RequireFromString("20"),
		UserUsageLimit: 1,
		ValidFrom:      now.Add(-time.Hour),
		ValidUntil:     now.Add(24 * time.Hour),
		IsActive:       true,
	}
	if err := f.couponRepo.Create(ctx, coupon); err != nil {
		t.Fatalf("creating coupon: %v", err)
	}

	result, err := f.svc.CreateGatewayOrder(ctx, f.userID, GatewayOrderInput{
		PlanID:     f.plan.ID,
		CouponCode: "SAVE20",
	})
	if err != nil {
		t.Fatalf("create gateway order: %v", err)
	}

	if result.OrderID != "order_test1" {
		t.Fatalf("unexpected order id %s", result.OrderID)
	}
	if result.KeyID != "rzp_test_key" {
		t.Fatalf("unexpected key id %s", result.KeyID)
	}
	wantFinal := decimal.RequireFromString("23.99")
	if !f.gateway.lastOrder.Amount.Equal(wantFinal) {
		t.Fatalf("expected discounted order amount %s, got %s", wantFinal, f.gateway.lastOrder.Amount)
	}

	payment := result.Payment
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", payment.Status)
	}
	if payment.GatewayOrderID == nil || *payment.GatewayOrderID != "order_test1" {
		t.Fatal("gateway order id not recorded")
	}
	app, err := payment.CouponApplication()
	if err != nil {
		t.Fatalf("decoding coupon application: %v", err)
	}
	if app == nil || app.CouponID != coupon.ID || app.Code != "SAVE20" {
		t.Fatalf("coupon application not staged: %+v", app)
	}
}

func TestCreateGatewayOrderIgnoresBadCoupon(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.svc.CreateGatewayOrder(context.Background(), f.userID, GatewayOrderInput{
		PlanID:     f.plan.ID,
		CouponCode: "NOPE",
	})
	if err != nil {
		t.Fatalf("create gateway order: %v", err)
	}
	if !f.gateway.lastOrder.Amount.Equal(f.plan.Price) {
		t.Fatalf("expected full price order, got %s", f.gateway.lastOrder.Amount)
	}
	if app, _ := result.Payment.CouponApplication(); app != nil {
		t.Fatal("no coupon application should be staged")
	}
}

func TestVerifyGatewayPaymentActivates(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	coupon := &models.Coupon{
		Code:           "SAVE20",
		DiscountType:   enums.DiscountTypePercentage,
		DiscountValue:  decimal.RequireFromString("20"),
		UserUsageLimit: 1,
		ValidFrom:      now.Add(-time.Hour),
		ValidUntil:     now.Add(24 * time.Hour),
		IsActive:       true,
	}
	if err := f.couponRepo.Create(ctx, coupon); err != nil {
		t.Fatalf("creating coupon: %v", err)
	}

	order, err := f.svc.CreateGatewayOrder(ctx, f.userID, GatewayOrderInput{
		PlanID:     f.plan.ID,
		CouponCode: "SAVE20",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	sub, err := f.svc.VerifyGatewayPayment(ctx, f.userID, VerifyPaymentInput{
		PaymentUUID:      order.Payment.ID,
		PlanID:           f.plan.ID,
		GatewayOrderID:   order.OrderID,
		GatewayPaymentID: "pay_abc",
		Signature:        "good-signature",
		AutoRenew:        true,
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}

	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active subscription, got %s", sub.Status)
	}
	if sub.SearchesRemaining != f.plan.SearchLimit {
		t.Fatalf("gateway purchase grants fresh quota, got %d", sub.SearchesRemaining)
	}

	payment, err := f.billingRepo.FindPaymentByID(ctx, order.Payment.ID)
	if err != nil {
		t.Fatalf("refetch payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", payment.Status)
	}
	if payment.GatewayPaymentID == nil || *payment.GatewayPaymentID != "pay_abc" {
		t.Fatal("gateway payment id not recorded")
	}
	if payment.SubscriptionID == nil || *payment.SubscriptionID != sub.ID {
		t.Fatal("payment not linked to subscription")
	}

	// coupon redemption reconciled
	refreshed, err := f.couponRepo.FindByID(ctx, coupon.ID)
	if err != nil {
		t.Fatalf("refetch coupon: %v", err)
	}
	if refreshed.UsageCount != 1 {
		t.Fatalf("expected usage count 1, got %d", refreshed.UsageCount)
	}
	used, err := f.couponRepo.CountUsagesByUser(ctx, coupon.ID, f.userID)
	if err != nil {
		t.Fatalf("counting usages: %v", err)
	}
	if used != 1 {
		t.Fatalf("expected one usage row, got %d", used)
	}

	if entries := f.historyFor(t, f.userID); len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
}

func TestVerifyGatewayPaymentNoCarryOver(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	prior, err := f.svc.Subscribe(ctx, f.userID, SubscribeInput{PlanID: f.plan.ID, PaymentMethod: "card"})
	if err != nil {
		t.Fatalf("prior subscribe: %v", err)
	}

	order, err := f.svc.CreateGatewayOrder(ctx, f.userID, GatewayOrderInput{PlanID: f.plan.ID})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	sub, err := f.svc.VerifyGatewayPayment(ctx, f.userID, VerifyPaymentInput{
		PaymentUUID:      order.Payment.ID,
		PlanID:           f.plan.ID,
		GatewayOrderID:   order.OrderID,
		GatewayPaymentID: "pay_abc",
		Signature:        "good-signature",
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}

	if sub.SearchesRemaining != f.plan.SearchLimit {
		t.Fatalf("gateway path must not accumulate quota, got %d", sub.SearchesRemaining)
	}
	old, err := f.subRepo.FindByID(ctx, prior.Subscription.ID)
	if err != nil {
		t.Fatalf("refetch prior: %v", err)
	}
	if old.Status != enums.SubscriptionStatusCancelled {
		t.Fatalf("prior subscription should be cancelled, got %s", old.Status)
	}
}

func TestVerifyGatewayPaymentBadSignature(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateGatewayOrder(ctx, f.userID, GatewayOrderInput{PlanID: f.plan.ID})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = f.svc.VerifyGatewayPayment(ctx, f.userID, VerifyPaymentInput{
		PaymentUUID:      order.Payment.ID,
		PlanID:           f.plan.ID,
		GatewayOrderID:   order.OrderID,
		GatewayPaymentID: "pay_abc",
		Signature:        "tampered",
	})
	if err == nil {
		t.Fatal("expected signature rejection")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	payment, err := f.billingRepo.FindPaymentByID(ctx, order.Payment.ID)
	if err != nil {
		t.Fatalf("refetch payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", payment.Status)
	}
	if payment.FailureReason == nil || *payment.FailureReason != "Invalid signature" {
		t.Fatalf("unexpected failure reason %v", payment.FailureReason)
	}

	// replay after failure is a state conflict
	_, err = f.svc.VerifyGatewayPayment(ctx, f.userID, VerifyPaymentInput{
		PaymentUUID:      order.Payment.ID,
		PlanID:           f.plan.ID,
		GatewayOrderID:   order.OrderID,
		GatewayPaymentID: "pay_abc",
		Signature:        "good-signature",
	})
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on replay, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Cancel(ctx, f.userID, ""); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found without subscription, got %v", err)
	}

	result, err := f.svc.Subscribe(ctx, f.userID, SubscribeInput{PlanID: f.plan.ID, PaymentMethod: "card", AutoRenew: true})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cancelled, err := f.svc.Cancel(ctx, f.userID, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.ID != result.Subscription.ID {
		t.Fatal("cancelled the wrong subscription")
	}
	if cancelled.Status != enums.SubscriptionStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.AutoRenew {
		t.Fatal("auto renew must be cleared")
	}
	if cancelled.CancelledAt == nil {
		t.Fatal("cancelled_at must be set")
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != reasonUserRequested {
		t.Fatalf("unexpected reason %v", cancelled.CancellationReason)
	}
}

func TestChangePlanUpgradeCharges(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	elite := &models.Plan{
		Name:         "Elite",
		Price:        decimal.RequireFromString("99.99"),
		SearchLimit:  5000,
		DurationDays: 30,
		IsActive:     true,
	}
	if err := f.planRepo.Create(ctx, elite); err != nil {
		t.Fatalf("creating plan: %v", err)
	}

	current, err := f.svc.Subscribe(ctx, f.userID, SubscribeInput{PlanID: f.plan.ID, PaymentMethod: "card", AutoRenew: true})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	result, err := f.svc.ChangePlan(ctx, f.userID, ChangePlanInput{
		NewPlanID:     elite.ID,
		PaymentMethod: "card",
		PaymentToken:  "tok_ok",
	})
	if err != nil {
		t.Fatalf("change plan: %v", err)
	}

	// full 30 days remain, so the credit is the entire old price
	wantCharge := elite.Price.Sub(f.plan.Price).Round(2)
	if !result.AmountCharged.Equal(wantCharge) {
		t.Fatalf("expected charge %s, got %s", wantCharge, result.AmountCharged)
	}
	if result.Subscription.PlanID != elite.ID {
		t.Fatal("subscription not moved to new plan")
	}
	if result.Subscription.SearchesRemaining != elite.SearchLimit {
		t.Fatalf("plan change grants fresh quota, got %d", result.Subscription.SearchesRemaining)
	}
	if !result.Subscription.AutoRenew {
		t.Fatal("auto renew must carry over")
	}

	old, err := f.subRepo.FindByID(ctx, current.Subscription.ID)
	if err != nil {
		t.Fatalf("refetch old: %v", err)
	}
	if old.Status != enums.SubscriptionStatusCancelled {
		t.Fatalf("old subscription should be cancelled, got %s", old.Status)
	}

	history := f.historyFor(t, f.userID)
	var sawUpgrade bool
	for _, entry := range history {
		if entry.BillingType == enums.BillingTypeUpgrade {
			sawUpgrade = true
			if !entry.Amount.Equal(wantCharge) {
				t.Fatalf("upgrade ledger amount %s, want %s", entry.Amount, wantCharge)
			}
		}
	}
	if !sawUpgrade {
		t.Fatal("expected upgrade ledger entry")
	}
}

func TestChangePlanDowngradeMovesNoMoney(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	basic := &models.Plan{
		Name:         "Basic",
		Price:        decimal.RequireFromString("9.99"),
		SearchLimit:  200,
		DurationDays: 30,
		IsActive:     true,
	}
	if err := f.planRepo.Create(ctx, basic); err != nil {
		t.Fatalf("creating plan: %v", err)
	}
	if _, err := f.svc.Subscribe(ctx, f.userID, SubscribeInput{PlanID: f.plan.ID, PaymentMethod: "card"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	result, err := f.svc.ChangePlan(ctx, f.userID, ChangePlanInput{
		NewPlanID:     basic.ID,
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("change plan: %v", err)
	}
	if !result.AmountCharged.IsZero() {
		t.Fatalf("downgrade must not charge, got %s", result.AmountCharged)
	}

	var payments []models.Payment
	if err := f.conn.Where("user_id = ? AND plan_id = ?", f.userID, basic.ID).Find(&payments).Error; err != nil {
		t.Fatalf("listing payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("downgrade must not create payments, got %d", len(payments))
	}

	history := f.historyFor(t, f.userID)
	var sawDowngrade bool
	for _, entry := range history {
		if entry.BillingType == enums.BillingTypeDowngrade {
			sawDowngrade = true
			if !entry.Amount.IsZero() {
				t.Fatalf("downgrade ledger amount should be zero, got %s", entry.Amount)
			}
		}
	}
	if !sawDowngrade {
		t.Fatal("expected downgrade ledger entry")
	}
}
