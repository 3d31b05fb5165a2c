package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"companion-service/models"
	"companion-service/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const statsCacheTTL = 5 * time.Minute

type CreateReviewRequest struct {
	OrderID uuid.UUID `json:"order_id" binding:"required"`
	Rating  int       `json:"rating" binding:"required,min=1,max=5"`
	Comment string    `json:"comment"`
	Tags    []string  `json:"tags"`
}

type ReviewListResponse struct {
	Reviews []models.Review `json:"reviews"`
	Meta    MetaData        `json:"meta"`
}

// ReviewService lets the patient rate the companion once the service is done.
type ReviewService interface {
	CreateReview(ctx context.Context, patientID string, req *CreateReviewRequest) (*models.Review, *ServiceError)
	ListReviews(ctx context.Context, companionID string, page, limit int) (*ReviewListResponse, *ServiceError)
	GetStats(ctx context.Context, companionID string) (*models.ReviewStats, *ServiceError)
}

type reviewServiceImpl struct {
	reviewRepo repository.ReviewRepository
	orderRepo  repository.OrderRepository
	cache      *redis.Client
	logger     *zap.Logger
}

// NewReviewService creates a new ReviewService. The cache client may be nil;
// stats are then computed on every request.
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	orderRepo repository.OrderRepository,
	cache *redis.Client,
	logger *zap.Logger,
) ReviewService {
	return &reviewServiceImpl{
		reviewRepo: reviewRepo,
		orderRepo:  orderRepo,
		cache:      cache,
		logger:     logger,
	}
}

// CreateReview records the patient's rating for a completed order. One review
// per order.
func (s *reviewServiceImpl) CreateReview(ctx context.Context, patientID string, req *CreateReviewRequest) (*models.Review, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errOrderNotFound()
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", req.OrderID.String()), zap.Error(err))
		return nil, errInternal("Failed to fetch order")
	}
	if patientID != order.PatientID {
		return nil, errUnauthorized("Only the patient may review this order")
	}
	if order.Status != models.StatusCompleted {
		return nil, errInvalidOrderState("Order is not completed yet")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, errMissingParameter("rating must be between 1 and 5")
	}

	if _, err := s.reviewRepo.FindByOrderID(ctx, req.OrderID); err == nil {
		return nil, &ServiceError{StatusCode: 409, Code: CodeConflict, Message: "Order has already been reviewed"}
	}

	tagsJSON := "[]"
	if len(req.Tags) > 0 {
		if b, merr := json.Marshal(req.Tags); merr == nil {
			tagsJSON = string(b)
		}
	}

	review := &models.Review{
		OrderID:     req.OrderID,
		CompanionID: order.CompanionID,
		PatientID:   patientID,
		Rating:      req.Rating,
		Comment:     req.Comment,
		TagsJSON:    tagsJSON,
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		// The unique index on order_id closes the check-then-create race.
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			return nil, &ServiceError{StatusCode: 409, Code: CodeConflict, Message: "Order has already been reviewed"}
		}
		s.logger.Error("Failed to create review", zap.String("order_id", req.OrderID.String()), zap.Error(err))
		return nil, errInternal("Failed to create review")
	}

	s.invalidateStats(ctx, order.CompanionID)
	s.logger.Info("Review created",
		zap.String("order_id", req.OrderID.String()),
		zap.String("companion_id", order.CompanionID),
		zap.Int("rating", req.Rating),
	)
	return review, nil
}

func (s *reviewServiceImpl) ListReviews(ctx context.Context, companionID string, page, limit int) (*ReviewListResponse, *ServiceError) {
	if companionID == "" {
		return nil, errMissingParameter("companion_id is required")
	}

	reviews, total, err := s.reviewRepo.FindByCompanion(ctx, companionID, page, limit)
	if err != nil {
		s.logger.Error("Failed to list reviews", zap.String("companion_id", companionID), zap.Error(err))
		return nil, errInternal("Failed to fetch reviews")
	}

	return &ReviewListResponse{
		Reviews: reviews,
		Meta: MetaData{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: calculateTotalPages(total, limit),
			HasMore:    total > int64(page*limit),
		},
	}, nil
}

// GetStats returns the companion's average rating and distribution, cached
// briefly since it sits on every companion profile view.
func (s *reviewServiceImpl) GetStats(ctx context.Context, companionID string) (*models.ReviewStats, *ServiceError) {
	if companionID == "" {
		return nil, errMissingParameter("companion_id is required")
	}

	if cached := s.cachedStats(ctx, companionID); cached != nil {
		return cached, nil
	}

	ratings, err := s.reviewRepo.RatingsForCompanion(ctx, companionID)
	if err != nil {
		s.logger.Error("Failed to fetch ratings", zap.String("companion_id", companionID), zap.Error(err))
		return nil, errInternal("Failed to compute review stats")
	}

	stats := &models.ReviewStats{
		CompanionID:        companionID,
		ReviewCount:        int64(len(ratings)),
		RatingDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
	if len(ratings) > 0 {
		sum := 0
		for _, r := range ratings {
			sum += r
			if r >= 1 && r <= 5 {
				stats.RatingDistribution[r]++
			}
		}
		stats.Rating = float64(sum) / float64(len(ratings))
	}

	s.storeStats(ctx, stats)
	return stats, nil
}

func statsCacheKey(companionID string) string {
	return "review_stats:" + companionID
}

func (s *reviewServiceImpl) cachedStats(ctx context.Context, companionID string) *models.ReviewStats {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, statsCacheKey(companionID)).Result()
	if err != nil {
		return nil
	}
	var stats models.ReviewStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil
	}
	return &stats
}

func (s *reviewServiceImpl) storeStats(ctx context.Context, stats *models.ReviewStats) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statsCacheKey(stats.CompanionID), b, statsCacheTTL).Err(); err != nil {
		s.logger.Warn("Failed to cache review stats", zap.String("companion_id", stats.CompanionID), zap.Error(err))
	}
}

func (s *reviewServiceImpl) invalidateStats(ctx context.Context, companionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(companionID)).Err(); err != nil {
		s.logger.Warn("Failed to invalidate review stats cache", zap.String("companion_id", companionID), zap.Error(err))
	}
}
