package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
)

// BillingHistory is an append-only audit entry for a money-affecting event.
// Rows are never updated after creation.
type BillingHistory struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	SubscriptionID uuid.UUID           `gorm:"column:subscription_id;type:uuid;not null"`
	PaymentID      *uuid.UUID          `gorm:"column:payment_id;type:uuid"`
	PlanID         uuid.UUID           `gorm:"column:plan_id;type:uuid;not null"`
	BillingType    enums.BillingType   `gorm:"column:billing_type;not null"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	PeriodStart    time.Time           `gorm:"column:period_start;not null"`
	PeriodEnd      time.Time           `gorm:"column:period_end;not null"`
	Status         enums.PaymentStatus `gorm:"column:status;not null"`
	InvoiceNumber  string              `gorm:"column:invoice_number;not null"`
	Description    string              `gorm:"column:description"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns an identifier when the caller did not set one.
func (b *BillingHistory) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
