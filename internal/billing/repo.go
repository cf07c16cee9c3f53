package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/pagination"
)

// Repository handles payment and billing-history persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePayment(ctx context.Context, payment *models.Payment) error
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentByGatewayOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID, query ListQuery) ([]models.Payment, error)
	CreateHistory(ctx context.Context, entry *models.BillingHistory) error
	ListHistoryByUser(ctx context.Context, userID uuid.UUID, query ListQuery) ([]models.BillingHistory, error)
}

// ListQuery configures cursor-paginated list queries.
type ListQuery struct {
	Cursor *pagination.Cursor
	Limit  int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaymentByGatewayOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "gateway_order_id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListPaymentsByUser(ctx context.Context, userID uuid.UUID, query ListQuery) ([]models.Payment, error) {
	q := r.db.WithContext(ctx).Model(&models.Payment{}).Where("user_id = ?", userID)
	if query.Cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}
	q = q.Order("created_at DESC").Order("id DESC").Limit(pagination.LimitWithBuffer(query.Limit))

	var rows []models.Payment
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateHistory(ctx context.Context, entry *models.BillingHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistoryByUser(ctx context.Context, userID uuid.UUID, query ListQuery) ([]models.BillingHistory, error) {
	q := r.db.WithContext(ctx).Model(&models.BillingHistory{}).Where("user_id = ?", userID)
	if query.Cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}
	q = q.Order("created_at DESC").Order("id DESC").Limit(pagination.LimitWithBuffer(query.Limit))

	var rows []models.BillingHistory
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
