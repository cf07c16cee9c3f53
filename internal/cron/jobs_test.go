package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/billing"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/plans"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/subscriptions"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

type jobFixture struct {
	conn    *gorm.DB
	subs    subscriptions.Repository
	plans   plans.Repository
	billing billing.Repository
	logg    *logger.Logger
	plan    *models.Plan
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Plan{},
		&models.Subscription{},
		&models.Payment{},
		&models.BillingHistory{},
	); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	f := &jobFixture{
		conn:    conn,
		subs:    subscriptions.NewRepository(conn),
		plans:   plans.NewRepository(conn),
		billing: billing.NewRepository(conn),
		logg:    logger.New(logger.Options{ServiceName: "cron-test"}),
	}
	f.plan = &models.Plan{
		Name:         "Pro",
		Price:        decimal.RequireFromString("29.99"),
		SearchLimit:  1000,
		DurationDays: 30,
		IsActive:     true,
	}
	if err := f.plans.Create(context.Background(), f.plan); err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	return f
}

func (f *jobFixture) seedSub(t *testing.T, status enums.SubscriptionStatus, autoRenew bool, endIn time.Duration) *models.Subscription {
	t.Helper()
	now := time.Now().UTC()
	sub := &models.Subscription{
		UserID:            uuid.New(),
		PlanID:            f.plan.ID,
		Status:            status,
		SearchesUsed:      40,
		SearchesRemaining: 960,
		StartDate:         now.AddDate(0, 0, -30),
		EndDate:           now.Add(endIn),
		AutoRenew:         autoRenew,
	}
	if err := f.subs.Create(context.Background(), sub); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return sub
}

func TestExpiryJobExpiresOnlyDueRows(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	overdue := f.seedSub(t, enums.SubscriptionStatusActive, false, -time.Hour)
	current := f.seedSub(t, enums.SubscriptionStatusActive, false, 24*time.Hour)
	cancelled := f.seedSub(t, enums.SubscriptionStatusCancelled, false, -time.Hour)

	job, err := NewExpiryJob(f.subs, f.logg)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "subscription-expire" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, tc := range []struct {
		id   uuid.UUID
		want enums.SubscriptionStatus
	}{
		{overdue.ID, enums.SubscriptionStatusExpired},
		{current.ID, enums.SubscriptionStatusActive},
		{cancelled.ID, enums.SubscriptionStatusCancelled},
	} {
		got, err := f.subs.FindByID(ctx, tc.id)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Status != tc.want {
			t.Fatalf("subscription %s: expected status %s, got %s", tc.id, tc.want, got.Status)
		}
	}

	// A second run is a no-op.
	if err := job.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func newRenewalJob(t *testing.T, f *jobFixture, processor renewalProcessor) *RenewalJob {
	t.Helper()
	job, err := NewRenewalJob(RenewalJobParams{
		Subs:      f.subs,
		Plans:     f.plans,
		Ledger:    f.billing,
		Processor: processor,
		Logger:    f.logg,
		Window:    24 * time.Hour,
		Limit:     100,
	})
	if err != nil {
		t.Fatalf("new renewal job: %v", err)
	}
	return job
}

func TestRenewalJobExtendsAndResetsQuota(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	due := f.seedSub(t, enums.SubscriptionStatusActive, true, 2*time.Hour)
	notDue := f.seedSub(t, enums.SubscriptionStatusActive, true, 72*time.Hour)
	manual := f.seedSub(t, enums.SubscriptionStatusActive, false, 2*time.Hour)

	job := newRenewalJob(t, f, subscriptions.NewSimulatedProcessor())
	if job.Name() != "subscription-renewal" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	renewed, err := f.subs.FindByID(ctx, due.ID)
	if err != nil {
		t.Fatalf("find renewed: %v", err)
	}
	wantEnd := due.EndDate.AddDate(0, 0, 30)
	if !renewed.EndDate.Equal(wantEnd) {
		t.Fatalf("expected end date %v, got %v", wantEnd, renewed.EndDate)
	}
	if renewed.SearchesUsed != 0 || renewed.SearchesRemaining != 1000 {
		t.Fatalf("expected quota reset, got used=%d remaining=%d", renewed.SearchesUsed, renewed.SearchesRemaining)
	}

	for _, untouched := range []*models.Subscription{notDue, manual} {
		got, err := f.subs.FindByID(ctx, untouched.ID)
		if err != nil {
			t.Fatalf("find untouched: %v", err)
		}
		if !got.EndDate.Equal(untouched.EndDate) {
			t.Fatalf("subscription %s should not have been renewed", untouched.ID)
		}
	}

	var payments []models.Payment
	if err := f.conn.Find(&payments).Error; err != nil {
		t.Fatalf("load payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 renewal payment, got %d", len(payments))
	}
	payment := payments[0]
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", payment.Status)
	}
	if !payment.Amount.Equal(decimal.RequireFromString("29.99")) {
		t.Fatalf("unexpected payment amount %s", payment.Amount)
	}
	if payment.SubscriptionID == nil || *payment.SubscriptionID != due.ID {
		t.Fatal("payment not linked to the renewed subscription")
	}

	var history []models.BillingHistory
	if err := f.conn.Find(&history).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(history))
	}
	if history[0].BillingType != enums.BillingTypeRenewal {
		t.Fatalf("expected renewal ledger entry, got %s", history[0].BillingType)
	}
	if !history[0].PeriodStart.Equal(due.EndDate) || !history[0].PeriodEnd.Equal(wantEnd) {
		t.Fatal("ledger entry covers the wrong period")
	}
}

type failingProcessor struct{}

func (failingProcessor) Charge(context.Context, *models.Payment, string) (string, error) {
	return "", errors.New("charge declined")
}

func TestRenewalJobChargeFailureLeavesRowUntouched(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	due := f.seedSub(t, enums.SubscriptionStatusActive, true, 2*time.Hour)

	job := newRenewalJob(t, f, failingProcessor{})
	if err := job.Run(ctx); err == nil {
		t.Fatal("expected batch error when the charge fails")
	}

	got, err := f.subs.FindByID(ctx, due.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.EndDate.Equal(due.EndDate) {
		t.Fatal("end date should be unchanged after a failed charge")
	}
	if got.SearchesRemaining != 960 {
		t.Fatalf("quota should be unchanged, got %d", got.SearchesRemaining)
	}

	var count int64
	if err := f.conn.Model(&models.Payment{}).Count(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no payment rows, got %d", count)
	}
}

func TestRenewalJobIsolatesPerRowFailures(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	orphanPlan := f.seedSub(t, enums.SubscriptionStatusActive, true, time.Hour)
	orphanPlan.PlanID = uuid.New()
	if err := f.subs.Update(ctx, orphanPlan); err != nil {
		t.Fatalf("detach plan: %v", err)
	}
	healthy := f.seedSub(t, enums.SubscriptionStatusActive, true, 2*time.Hour)

	job := newRenewalJob(t, f, subscriptions.NewSimulatedProcessor())
	if err := job.Run(ctx); err == nil {
		t.Fatal("expected aggregated error for the orphaned row")
	}

	got, err := f.subs.FindByID(ctx, healthy.ID)
	if err != nil {
		t.Fatalf("find healthy: %v", err)
	}
	if !got.EndDate.Equal(healthy.EndDate.AddDate(0, 0, 30)) {
		t.Fatal("healthy subscription should still have been renewed")
	}
}
