package plans

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

type seedPlan struct {
	name         string
	description  string
	price        string
	searchLimit  int
	durationDays int
	features     []string
	popular      bool
	sortOrder    int
}

var defaultPlans = []seedPlan{
	{
		name:         "Free",
		description:  "Try interest mining with a small monthly quota.",
		price:        "0.00",
		searchLimit:  25,
		durationDays: 30,
		features:     []string{"25 searches / month", "Basic interest data"},
		sortOrder:    1,
	},
	{
		name:         "Starter",
		description:  "For solo marketers running a handful of campaigns.",
		price:        "9.99",
		searchLimit:  200,
		durationDays: 30,
		features:     []string{"200 searches / month", "Audience size estimates", "CSV export"},
		sortOrder:    2,
	},
	{
		name:         "Pro",
		description:  "For agencies mining interests across many accounts.",
		price:        "29.99",
		searchLimit:  1000,
		durationDays: 30,
		features:     []string{"1000 searches / month", "Audience size estimates", "CSV export", "Priority support"},
		popular:      true,
		sortOrder:    3,
	},
}

// Seed inserts the default catalog, keyed by plan name. Existing plans are
// left untouched so operators can reprice without the seeder reverting them.
func Seed(ctx context.Context, repo Repository, logg *logger.Logger) error {
	for _, sp := range defaultPlans {
		existing, err := repo.FindByName(ctx, sp.name)
		if err != nil {
			return fmt.Errorf("looking up plan %q: %w", sp.name, err)
		}
		if existing != nil {
			continue
		}

		price, err := decimal.NewFromString(sp.price)
		if err != nil {
			return fmt.Errorf("parsing price for plan %q: %w", sp.name, err)
		}
		features, err := json.Marshal(sp.features)
		if err != nil {
			return fmt.Errorf("encoding features for plan %q: %w", sp.name, err)
		}

		plan := &models.Plan{
			Name:         sp.name,
			Description:  sp.description,
			Price:        price,
			SearchLimit:  sp.searchLimit,
			DurationDays: sp.durationDays,
			Features:     features,
			IsActive:     true,
			IsPopular:    sp.popular,
			SortOrder:    sp.sortOrder,
		}
		if err := repo.Create(ctx, plan); err != nil {
			return fmt.Errorf("seeding plan %q: %w", sp.name, err)
		}
		if logg != nil {
			logg.Info(logg.WithPlanID(ctx, plan.ID.String()), fmt.Sprintf("seeded plan %s", sp.name))
		}
	}
	return nil
}
