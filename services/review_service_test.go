package services_test

import (
	"context"
	"errors"
	"testing"

	"companion-service/models"
	"companion-service/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestReviewService(reviewRepo *mockReviewRepo, orderRepo *mockOrderRepo) services.ReviewService {
	return services.NewReviewService(reviewRepo, orderRepo, nil, testLogger())
}

func completedOrder(patientID, companionID string) *models.Order {
	order := pendingOrder(patientID, companionID)
	order.Status = models.StatusCompleted
	order.DepositStatus = models.DepositPaid
	return order
}

func TestCreateReview_Success(t *testing.T) {
	order := completedOrder("p1", "c1")
	reviewRepo := &mockReviewRepo{}
	svc := newTestReviewService(reviewRepo, newMockOrderRepo(order))

	review, serr := svc.CreateReview(context.Background(), "p1", &services.CreateReviewRequest{
		OrderID: order.ID,
		Rating:  5,
		Comment: "Very helpful throughout the visit",
		Tags:    []string{"punctual", "kind"},
	})

	assert.Nil(t, serr)
	assert.Equal(t, "c1", review.CompanionID)
	assert.Equal(t, 5, review.Rating)
	assert.Len(t, reviewRepo.reviews, 1)
}

func TestCreateReview_OrderNotCompleted(t *testing.T) {
	order := pendingOrder("p1", "c1")
	order.Status = models.StatusInService
	svc := newTestReviewService(&mockReviewRepo{}, newMockOrderRepo(order))

	_, serr := svc.CreateReview(context.Background(), "p1", &services.CreateReviewRequest{
		OrderID: order.ID,
		Rating:  4,
	})

	assert.NotNil(t, serr)
	assert.Equal(t, services.CodeInvalidOrderState, serr.Code)
}

func TestCreateReview_NonPatientRejected(t *testing.T) {
	order := completedOrder("p1", "c1")
	svc := newTestReviewService(&mockReviewRepo{}, newMockOrderRepo(order))

	_, serr := svc.CreateReview(context.Background(), "c1", &services.CreateReviewRequest{
		OrderID: order.ID,
		Rating:  5,
	})

	assert.NotNil(t, serr)
	assert.Equal(t, services.CodeUnauthorized, serr.Code)
}

func TestCreateReview_RatingOutOfBounds(t *testing.T) {
	order := completedOrder("p1", "c1")
	svc := newTestReviewService(&mockReviewRepo{}, newMockOrderRepo(order))

	_, serr := svc.CreateReview(context.Background(), "p1", &services.CreateReviewRequest{
		OrderID: order.ID,
		Rating:  6,
	})

	assert.NotNil(t, serr)
	assert.Equal(t, services.CodeMissingParameter, serr.Code)
}

func TestCreateReview_DuplicateRejected(t *testing.T) {
	order := completedOrder("p1", "c1")
	reviewRepo := &mockReviewRepo{}
	svc := newTestReviewService(reviewRepo, newMockOrderRepo(order))

	req := &services.CreateReviewRequest{OrderID: order.ID, Rating: 5}
	_, serr := svc.CreateReview(context.Background(), "p1", req)
	assert.Nil(t, serr)

	_, serr = svc.CreateReview(context.Background(), "p1", req)
	assert.NotNil(t, serr)
	assert.Equal(t, services.CodeConflict, serr.Code)
	assert.Equal(t, 409, serr.StatusCode)
	assert.Len(t, reviewRepo.reviews, 1)
}

func TestCreateReview_DuplicateRaceMapsToConflict(t *testing.T) {
	order := completedOrder("p1", "c1")
	// FindByOrderID sees nothing, but the insert hits the unique index.
	reviewRepo := &mockReviewRepo{
		createErr: errors.New(`duplicate key value violates unique constraint "idx_reviews_order_id"`),
	}
	svc := newTestReviewService(reviewRepo, newMockOrderRepo(order))

	_, serr := svc.CreateReview(context.Background(), "p1", &services.CreateReviewRequest{
		OrderID: order.ID,
		Rating:  5,
	})

	assert.NotNil(t, serr)
	assert.Equal(t, services.CodeConflict, serr.Code)
}

func TestGetStats_Distribution(t *testing.T) {
	reviewRepo := &mockReviewRepo{}
	for _, rating := range []int{5, 5, 4, 3} {
		reviewRepo.reviews = append(reviewRepo.reviews, &models.Review{
			ID:          uuid.New(),
			OrderID:     uuid.New(),
			CompanionID: "c1",
			PatientID:   "p1",
			Rating:      rating,
		})
	}
	svc := newTestReviewService(reviewRepo, newMockOrderRepo())

	stats, serr := svc.GetStats(context.Background(), "c1")

	assert.Nil(t, serr)
	assert.Equal(t, int64(4), stats.ReviewCount)
	assert.InDelta(t, 4.25, stats.Rating, 0.001)
	assert.Equal(t, 2, stats.RatingDistribution[5])
	assert.Equal(t, 1, stats.RatingDistribution[4])
	assert.Equal(t, 1, stats.RatingDistribution[3])
	assert.Equal(t, 0, stats.RatingDistribution[1])
}

func TestGetStats_NoReviews(t *testing.T) {
	svc := newTestReviewService(&mockReviewRepo{}, newMockOrderRepo())

	stats, serr := svc.GetStats(context.Background(), "c1")

	assert.Nil(t, serr)
	assert.Equal(t, int64(0), stats.ReviewCount)
	assert.Equal(t, 0.0, stats.Rating)
}

func TestGetStats_MissingCompanionID(t *testing.T) {
	svc := newTestReviewService(&mockReviewRepo{}, newMockOrderRepo())

	_, serr := svc.GetStats(context.Background(), "")

	assert.NotNil(t, serr)
	assert.Equal(t, services.CodeMissingParameter, serr.Code)
}

func TestListReviews_PaginationMeta(t *testing.T) {
	reviewRepo := &mockReviewRepo{}
	for i := 0; i < 3; i++ {
		reviewRepo.reviews = append(reviewRepo.reviews, &models.Review{
			ID:          uuid.New(),
			OrderID:     uuid.New(),
			CompanionID: "c1",
			PatientID:   "p1",
			Rating:      5,
		})
	}
	svc := newTestReviewService(reviewRepo, newMockOrderRepo())

	result, serr := svc.ListReviews(context.Background(), "c1", 1, 2)

	assert.Nil(t, serr)
	assert.Len(t, result.Reviews, 2)
	assert.Equal(t, int64(3), result.Meta.Total)
	assert.True(t, result.Meta.HasMore)
}

func TestListReviews_MissingCompanionID(t *testing.T) {
	svc := newTestReviewService(&mockReviewRepo{}, newMockOrderRepo())

	_, serr := svc.ListReviews(context.Background(), "", 1, 10)

	assert.NotNil(t, serr)
	assert.Equal(t, services.CodeMissingParameter, serr.Code)
}
