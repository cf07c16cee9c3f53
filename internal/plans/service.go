package plans

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
)

// Service exposes the public plan catalog.
type Service interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type service struct {
	repo Repository
}

// NewService builds a plan catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("plan repository required")
	}
	return &service{repo: repo}, nil
}

// ListPlans returns purchasable plans in display order.
func (s *service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing plans")
	}
	return rows, nil
}

// GetPlan returns one purchasable plan. Inactive and deleted plans are
// indistinguishable from missing ones.
func (s *service) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finding plan")
	}
	if plan == nil || !plan.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}
