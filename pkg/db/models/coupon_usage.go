package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CouponUsage records one successful redemption. The per-user usage limit is
// enforced by counting these rows.
type CouponUsage struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CouponID       uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null;index"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	SubscriptionID *uuid.UUID      `gorm:"column:subscription_id;type:uuid"`
	PaymentID      *uuid.UUID      `gorm:"column:payment_id;type:uuid"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	OriginalAmount decimal.Decimal `gorm:"column:original_amount;type:numeric(12,2);not null"`
	FinalAmount    decimal.Decimal `gorm:"column:final_amount;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns an identifier when the caller did not set one.
func (u *CouponUsage) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
