package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
)

// Repository handles subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	// FindActiveByUser returns the caller's live subscription: status active,
	// end_date in the future, most future end_date first.
	FindActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error)
	// FindActiveByUserForUpdate is the transactional variant: the returned row
	// stays locked until the enclosing transaction ends.
	FindActiveByUserForUpdate(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error)
	// ConsumeUnit moves one search from remaining to used, refusing to go
	// below zero. Returns false when the quota was already exhausted or the
	// row left the active state.
	ConsumeUnit(ctx context.Context, id uuid.UUID) (bool, error)
	// Suspend flips an active subscription to suspended. Idempotent; returns
	// whether this call performed the flip.
	Suspend(ctx context.Context, id uuid.UUID) (bool, error)
	// ExpireDue bulk-expires active subscriptions whose end date has passed.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	// ListDueForRenewal returns active auto-renew subscriptions ending within
	// the window.
	ListDueForRenewal(ctx context.Context, now time.Time, window time.Duration, limit int) ([]models.Subscription, error)
	// Renew extends the period from the previous end date and resets the
	// quota, only if the row is still active with the expected end date.
	Renew(ctx context.Context, id uuid.UUID, expectedEnd, newEnd time.Time, searchLimit int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) Update(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error) {
	return findActive(r.db.WithContext(ctx), userID, now)
}

func (r *repository) FindActiveByUserForUpdate(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error) {
	q := r.db.WithContext(ctx)
	// sqlite has no row locks; its single writer already serializes.
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return findActive(q, userID, now)
}

func findActive(q *gorm.DB, userID uuid.UUID, now time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := q.
		Where("user_id = ? AND status = ? AND end_date > ?", userID, enums.SubscriptionStatusActive, now).
		Order("end_date DESC").
		First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ConsumeUnit(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND searches_remaining > 0", id, enums.SubscriptionStatusActive).
		Updates(map[string]any{
			"searches_used":      gorm.Expr("searches_used + 1"),
			"searches_remaining": gorm.Expr("searches_remaining - 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Suspend(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, enums.SubscriptionStatusActive).
		Update("status", enums.SubscriptionStatusSuspended)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND end_date <= ?", enums.SubscriptionStatusActive, now).
		Update("status", enums.SubscriptionStatusExpired)
	return result.RowsAffected, result.Error
}

func (r *repository) ListDueForRenewal(ctx context.Context, now time.Time, window time.Duration, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 250
	}
	var rows []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND auto_renew = ? AND end_date > ? AND end_date <= ?",
			enums.SubscriptionStatusActive, true, now, now.Add(window)).
		Order("end_date ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Renew(ctx context.Context, id uuid.UUID, expectedEnd, newEnd time.Time, searchLimit int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND end_date = ?", id, enums.SubscriptionStatusActive, expectedEnd).
		Updates(map[string]any{
			"end_date":           newEnd,
			"searches_used":      0,
			"searches_remaining": searchLimit,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
