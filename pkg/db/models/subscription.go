package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
)

// Subscription holds a user's purchased plan together with its search quota.
// The partial unique index keeps at most one active row per user; the engine
// still re-checks inside its creation transaction to return a clean conflict.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID             uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index;index:idx_subscriptions_one_active,unique,where:status = 'active' AND deleted_at IS NULL"`
	PlanID             uuid.UUID                `gorm:"column:plan_id;type:uuid;not null;index"`
	Status             enums.SubscriptionStatus `gorm:"column:status;not null;default:'pending'"`
	SearchesUsed       int                      `gorm:"column:searches_used;not null;default:0"`
	SearchesRemaining  int                      `gorm:"column:searches_remaining;not null;default:0"`
	StartDate          time.Time                `gorm:"column:start_date;not null"`
	EndDate            time.Time                `gorm:"column:end_date;not null"`
	AutoRenew          bool                     `gorm:"column:auto_renew;not null;default:false"`
	CancelledAt        *time.Time               `gorm:"column:cancelled_at"`
	CancellationReason *string                  `gorm:"column:cancellation_reason"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt          gorm.DeletedAt           `gorm:"column:deleted_at;index"`
}

// BeforeCreate assigns an identifier when the caller did not set one.
func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the subscription window has closed at the given instant.
func (s *Subscription) IsExpired(now time.Time) bool {
	return now.After(s.EndDate)
}
