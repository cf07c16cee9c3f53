package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

// expiryStore is the subscription access the expiry job needs.
type expiryStore interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// ExpiryJob flips active subscriptions whose end date has passed to expired.
// The underlying update is a single conditional statement, so overlapping runs
// are harmless.
type ExpiryJob struct {
	store expiryStore
	logg  *logger.Logger
	now   func() time.Time
}

// NewExpiryJob builds the subscription expiry job.
func NewExpiryJob(store expiryStore, logg *logger.Logger) (*ExpiryJob, error) {
	if store == nil {
		return nil, fmt.Errorf("subscription store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ExpiryJob{store: store, logg: logg, now: time.Now}, nil
}

// Name implements Job.
func (j *ExpiryJob) Name() string {
	return "subscription-expire"
}

// Run implements Job.
func (j *ExpiryJob) Run(ctx context.Context) error {
	expired, err := j.store.ExpireDue(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire due subscriptions: %w", err)
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired_count", expired), "subscriptions expired")
	}
	return nil
}
