package controllers

import (
	"net/http"

	"companion-service/middleware"
	"companion-service/services"

	"github.com/gin-gonic/gin"
)

type ReviewController struct {
	reviewService services.ReviewService
}

func NewReviewController(reviewService services.ReviewService) *ReviewController {
	return &ReviewController{reviewService: reviewService}
}

// CreateReview records the patient's rating for a completed order.
func (rc *ReviewController) CreateReview(c *gin.Context) {
	actorID := middleware.GetUserID(c)

	var req services.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	review, serr := rc.reviewService.CreateReview(c.Request.Context(), actorID, &req)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"review": review})
}

// GetReviews returns paginated reviews for a companion.
func (rc *ReviewController) GetReviews(c *gin.Context) {
	companionID := c.Query("companion_id")
	page, limit := parsePaginationParams(c)

	result, serr := rc.reviewService.ListReviews(c.Request.Context(), companionID, page, limit)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetStats returns the companion's aggregated rating.
func (rc *ReviewController) GetStats(c *gin.Context) {
	stats, serr := rc.reviewService.GetStats(c.Request.Context(), c.Query("companion_id"))
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "code": serr.Code})
		return
	}

	c.JSON(http.StatusOK, stats)
}
