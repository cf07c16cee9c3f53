package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
)

// Coupon is a redeemable discount code. UsageCount is only ever moved by a
// conditional UPDATE; the struct field is a snapshot, not a counter.
type Coupon struct {
	ID                    uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code                  string             `gorm:"column:code;not null;uniqueIndex"`
	DiscountType          enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue         decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinimumOrderAmount    decimal.Decimal    `gorm:"column:minimum_order_amount;type:numeric(12,2);not null;default:0"`
	MaximumDiscountAmount *decimal.Decimal   `gorm:"column:maximum_discount_amount;type:numeric(12,2)"`
	UsageLimit            *int               `gorm:"column:usage_limit"`
	UsageCount            int                `gorm:"column:usage_count;not null;default:0"`
	UserUsageLimit        int                `gorm:"column:user_usage_limit;not null;default:1"`
	ValidFrom             time.Time          `gorm:"column:valid_from;not null"`
	ValidUntil            time.Time          `gorm:"column:valid_until;not null"`
	ApplicablePlans       json.RawMessage    `gorm:"column:applicable_plans;type:jsonb"`
	IsActive              bool               `gorm:"column:is_active;not null;default:true"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an identifier when the caller did not set one.
func (c *Coupon) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ApplicablePlanIDs decodes the plan restriction list. An empty list means
// the coupon applies to every plan.
func (c *Coupon) ApplicablePlanIDs() ([]uuid.UUID, error) {
	if len(c.ApplicablePlans) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(c.ApplicablePlans, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SetApplicablePlanIDs encodes the plan restriction list.
func (c *Coupon) SetApplicablePlanIDs(ids []uuid.UUID) error {
	if len(ids) == 0 {
		c.ApplicablePlans = nil
		return nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	c.ApplicablePlans = raw
	return nil
}
