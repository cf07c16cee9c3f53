package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/billing"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

const defaultRenewalWindow = 24 * time.Hour

// renewalStore is the subscription access the renewal job needs.
type renewalStore interface {
	ListDueForRenewal(ctx context.Context, now time.Time, window time.Duration, limit int) ([]models.Subscription, error)
	Renew(ctx context.Context, id uuid.UUID, expectedEnd, newEnd time.Time, searchLimit int) (bool, error)
}

// renewalPlanStore resolves the plan being renewed.
type renewalPlanStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

// renewalLedger records the charge and its audit trail.
type renewalLedger interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	CreateHistory(ctx context.Context, entry *models.BillingHistory) error
}

// renewalProcessor charges the renewal amount.
type renewalProcessor interface {
	Charge(ctx context.Context, payment *models.Payment, token string) (string, error)
}

// RenewalJobParams configure the renewal job.
type RenewalJobParams struct {
	Subs      renewalStore
	Plans     renewalPlanStore
	Ledger    renewalLedger
	Processor renewalProcessor
	Logger    *logger.Logger
	Window    time.Duration
	Limit     int
}

// RenewalJob charges and extends active auto-renew subscriptions whose end
// date falls inside the lookahead window. Each row is handled independently;
// one failed renewal never blocks the rest of the batch.
type RenewalJob struct {
	subs      renewalStore
	plans     renewalPlanStore
	ledger    renewalLedger
	processor renewalProcessor
	logg      *logger.Logger
	window    time.Duration
	limit     int
	now       func() time.Time
}

// NewRenewalJob builds the subscription renewal job.
func NewRenewalJob(params RenewalJobParams) (*RenewalJob, error) {
	if params.Subs == nil {
		return nil, fmt.Errorf("subscription store required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan store required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("billing ledger required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("charge processor required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultRenewalWindow
	}
	return &RenewalJob{
		subs:      params.Subs,
		plans:     params.Plans,
		ledger:    params.Ledger,
		processor: params.Processor,
		logg:      params.Logger,
		window:    window,
		limit:     params.Limit,
		now:       time.Now,
	}, nil
}

// Name implements Job.
func (j *RenewalJob) Name() string {
	return "subscription-renewal"
}

// Run implements Job.
func (j *RenewalJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	due, err := j.subs.ListDueForRenewal(ctx, now, j.window, j.limit)
	if err != nil {
		return fmt.Errorf("list due subscriptions: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var errs error
	renewed := 0
	for i := range due {
		sub := due[i]
		subCtx := j.logg.WithSubscriptionID(ctx, sub.ID.String())
		if err := j.renewOne(subCtx, now, &sub); err != nil {
			j.logg.Error(subCtx, "subscription renewal failed", err)
			errs = multierr.Append(errs, fmt.Errorf("renew %s: %w", sub.ID, err))
			continue
		}
		renewed++
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"due_count":     len(due),
		"renewed_count": renewed,
	}), "renewal batch complete")
	return errs
}

func (j *RenewalJob) renewOne(ctx context.Context, now time.Time, sub *models.Subscription) error {
	plan, err := j.plans.FindByID(ctx, sub.PlanID)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	if plan == nil || !plan.IsActive {
		return fmt.Errorf("plan %s no longer available", sub.PlanID)
	}
	if plan.DurationDays <= 0 {
		return fmt.Errorf("plan %s has no billing period", sub.PlanID)
	}

	payment := &models.Payment{
		UserID:         sub.UserID,
		SubscriptionID: &sub.ID,
		PlanID:         plan.ID,
		Amount:         plan.Price,
		Currency:       "USD",
		Method:         "auto_renewal",
		Gateway:        enums.PaymentGatewayInternal,
		Status:         enums.PaymentStatusPending,
	}
	var transactionID string
	if plan.Price.GreaterThan(decimal.Zero) {
		transactionID, err = j.processor.Charge(ctx, payment, "")
		if err != nil {
			// The row keeps its current end date and will lapse through
			// the expiry job if the charge never succeeds.
			return fmt.Errorf("charge: %w", err)
		}
	}

	newEnd := sub.EndDate.AddDate(0, 0, plan.DurationDays)
	ok, err := j.subs.Renew(ctx, sub.ID, sub.EndDate, newEnd, plan.SearchLimit)
	if err != nil {
		return fmt.Errorf("extend period: %w", err)
	}
	if !ok {
		j.logg.Warn(ctx, "subscription changed since listing; skipping renewal")
		return nil
	}

	payment.Status = enums.PaymentStatusCompleted
	if transactionID != "" {
		payment.TransactionID = &transactionID
	}
	payment.PaymentDate = &now
	if err := j.ledger.CreatePayment(ctx, payment); err != nil {
		j.logg.Error(ctx, "failed to record renewal payment", err)
	}
	entry := billing.NewHistoryEntry(billing.HistoryEntryInput{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		PaymentID:      &payment.ID,
		PlanID:         plan.ID,
		BillingType:    enums.BillingTypeRenewal,
		Amount:         plan.Price,
		PeriodStart:    sub.EndDate,
		PeriodEnd:      newEnd,
		Status:         enums.PaymentStatusCompleted,
		Description:    fmt.Sprintf("Automatic renewal of %s plan", plan.Name),
	})
	if err := j.ledger.CreateHistory(ctx, entry); err != nil {
		j.logg.Error(ctx, "failed to append renewal history", err)
	}
	return nil
}
