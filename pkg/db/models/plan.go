package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Plan is a purchasable subscription plan. Administrative edits never
// retroactively change subscriptions that already reference the plan.
type Plan struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name         string          `gorm:"column:name;not null;uniqueIndex"`
	Description  string          `gorm:"column:description"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	SearchLimit  int             `gorm:"column:search_limit;not null"`
	DurationDays int             `gorm:"column:duration_days;not null"`
	Features     json.RawMessage `gorm:"column:features;type:jsonb"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	IsPopular    bool            `gorm:"column:is_popular;not null;default:false"`
	SortOrder    int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

// BeforeCreate assigns an identifier when the caller did not set one.
func (p *Plan) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
