package repository

import (
	"context"
	"errors"
	"time"

	"companion-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleStatus is returned when a compare-and-swap status update observes
// that another writer changed the order first.
var ErrStaleStatus = errors.New("order status changed concurrently")

// Scope values for listing orders by actor role.
const (
	ScopePatient   = "patient"
	ScopeCompanion = "companion"
	ScopeAll       = "all"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByActor(ctx context.Context, actorID, scope string, page, limit int) ([]models.Order, int64, error)
	// UpdateStatus applies updates only if the order still has status `from`.
	// Returns ErrStaleStatus when the precondition fails.
	UpdateStatus(ctx context.Context, id uuid.UUID, from models.OrderStatus, updates map[string]interface{}) error
	SetPaymentLink(ctx context.Context, id uuid.UUID, paymentID, reference string) error
	// MarkRefunded flips deposit_status paid -> refunded. Returns
	// ErrStaleStatus if the deposit is no longer in the paid state.
	MarkRefunded(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error)
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByActor retrieves orders where the actor is the patient, the companion,
// or either, with pagination.
func (r *GormOrderRepository) FindByActor(ctx context.Context, actorID, scope string, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{})
	switch scope {
	case ScopePatient:
		query = query.Where("patient_id = ?", actorID)
	case ScopeCompanion:
		query = query.Where("companion_id = ?", actorID)
	default:
		query = query.Where("patient_id = ? OR companion_id = ?", actorID, actorID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from models.OrderStatus, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *GormOrderRepository) SetPaymentLink(ctx context.Context, id uuid.UUID, paymentID, reference string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_id":  paymentID,
			"payment_ref": reference,
		}).Error
}

func (r *GormOrderRepository) MarkRefunded(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND deposit_status = ?", id, models.DepositPaid).
		Updates(map[string]interface{}{
			"deposit_status": models.DepositRefunded,
			"refunded_at":    at,
			"refund_reason":  reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *GormOrderRepository) FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.StatusPendingPayment, olderThan).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
