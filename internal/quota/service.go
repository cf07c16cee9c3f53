package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/internal/subscriptions"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

// Service gates quota-consuming actions against the active subscription.
type Service interface {
	// CheckLimits returns the caller's active subscription, rejecting when
	// there is none or its quota is exhausted.
	CheckLimits(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	// ConsumeUnit burns one search atomically and auto-suspends the
	// subscription when it runs dry or its period has lapsed.
	ConsumeUnit(ctx context.Context, subscriptionID uuid.UUID) error
}

type service struct {
	repo subscriptions.Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the quota gate.
func NewService(repo subscriptions.Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) CheckLimits(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	sub, err := s.repo.FindActiveByUser(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no active subscription")
	}
	if sub.SearchesRemaining <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeQuotaExceeded, "search limit exceeded")
	}
	return sub, nil
}

func (s *service) ConsumeUnit(ctx context.Context, subscriptionID uuid.UUID) error {
	if subscriptionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	ctx = s.logg.WithSubscriptionID(ctx, subscriptionID.String())

	ok, err := s.repo.ConsumeUnit(ctx, subscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consuming quota unit")
	}
	if !ok {
		// A concurrent consumer drained the quota first.
		s.suspend(ctx, subscriptionID)
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "search limit exceeded")
	}

	sub, err := s.repo.FindByID(ctx, subscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rechecking subscription")
	}
	if sub == nil {
		return nil
	}
	if sub.SearchesRemaining <= 0 || s.now().UTC().After(sub.EndDate) {
		s.suspend(ctx, subscriptionID)
	}
	return nil
}

func (s *service) suspend(ctx context.Context, subscriptionID uuid.UUID) {
	flipped, err := s.repo.Suspend(ctx, subscriptionID)
	if err != nil {
		s.logg.Error(ctx, "suspending subscription", err)
		return
	}
	if flipped {
		s.logg.Info(ctx, "subscription suspended")
	}
}
