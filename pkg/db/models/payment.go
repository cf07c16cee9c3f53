package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
)

// Payment records a single charge attempt against a plan.
type Payment struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	SubscriptionID   *uuid.UUID           `gorm:"column:subscription_id;type:uuid"`
	PlanID           uuid.UUID            `gorm:"column:plan_id;type:uuid;not null"`
	Amount           decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency         string               `gorm:"column:currency;not null;default:'USD'"`
	Method           string               `gorm:"column:method;not null"`
	Gateway          enums.PaymentGateway `gorm:"column:gateway;not null;default:'internal'"`
	TransactionID    *string              `gorm:"column:transaction_id"`
	GatewayOrderID   *string              `gorm:"column:gateway_order_id;index"`
	GatewayPaymentID *string              `gorm:"column:gateway_payment_id"`
	Status           enums.PaymentStatus  `gorm:"column:status;not null;default:'pending'"`
	PaymentDate      *time.Time           `gorm:"column:payment_date"`
	FailureReason    *string              `gorm:"column:failure_reason"`
	Metadata         json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an identifier when the caller did not set one.
func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CouponApplication is the typed slice of payment metadata describing a coupon
// redemption that must be reconciled once the payment completes.
type CouponApplication struct {
	CouponID       uuid.UUID       `json:"coupon_id"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
}

// paymentMetadata is the stored metadata shape. Extra is the escape hatch for
// fields written by future versions.
type paymentMetadata struct {
	Coupon *CouponApplication `json:"coupon,omitempty"`
	Extra  json.RawMessage    `json:"extra,omitempty"`
}

// SetCouponApplication stores the coupon slice of the payment metadata,
// preserving any opaque extra payload already present.
func (p *Payment) SetCouponApplication(app *CouponApplication) error {
	meta := paymentMetadata{}
	if len(p.Metadata) > 0 {
		if err := json.Unmarshal(p.Metadata, &meta); err != nil {
			return err
		}
	}
	meta.Coupon = app
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	p.Metadata = raw
	return nil
}

// CouponApplication returns the coupon slice of the payment metadata, or nil
// when no coupon was applied.
func (p *Payment) CouponApplication() (*CouponApplication, error) {
	if len(p.Metadata) == 0 {
		return nil, nil
	}
	meta := paymentMetadata{}
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return nil, err
	}
	return meta.Coupon, nil
}
