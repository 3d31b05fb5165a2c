package repository

import (
	"context"

	"companion-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository is append-only: there is intentionally no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.ServiceLog) error
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.ServiceLog, error)
}

type gormAuditRepo struct {
	db *gorm.DB
}

func NewGormAuditRepo(db *gorm.DB) AuditRepository {
	return &gormAuditRepo{db: db}
}

func (r *gormAuditRepo) Append(ctx context.Context, entry *models.ServiceLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormAuditRepo) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.ServiceLog, error) {
	var entries []models.ServiceLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
