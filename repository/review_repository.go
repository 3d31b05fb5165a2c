package repository

import (
	"context"

	"companion-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Review, error)
	FindByCompanion(ctx context.Context, companionID string, page, limit int) ([]models.Review, int64, error)
	RatingsForCompanion(ctx context.Context, companionID string) ([]int, error)
}

type gormReviewRepo struct {
	db *gorm.DB
}

func NewGormReviewRepo(db *gorm.DB) ReviewRepository {
	return &gormReviewRepo{db: db}
}

func (r *gormReviewRepo) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *gormReviewRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *gormReviewRepo) FindByCompanion(ctx context.Context, companionID string, page, limit int) ([]models.Review, int64, error) {
	var reviews []models.Review
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Review{}).Where("companion_id = ?", companionID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return nil, 0, err
	}

	return reviews, total, nil
}

func (r *gormReviewRepo) RatingsForCompanion(ctx context.Context, companionID string) ([]int, error) {
	var ratings []int
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("companion_id = ?", companionID).
		Pluck("rating", &ratings).Error
	return ratings, err
}
