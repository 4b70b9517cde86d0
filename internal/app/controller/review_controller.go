package controller

import (
	stderrors "errors"
	"net/http"

	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/errors"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/aabhushan/aabhushan-backend/internal/storage"
	"github.com/gin-gonic/gin"
)

type ReviewController struct {
	reviewService *service.ReviewService
	s3Storage     *storage.S3Storage
}

func NewReviewController(reviewService *service.ReviewService, s3Storage *storage.S3Storage) *ReviewController {
	return &ReviewController{
		reviewService: reviewService,
		s3Storage:     s3Storage,
	}
}

type reviewImagePayload struct {
	URL string `json:"url" binding:"required"`
	Key string `json:"key"`
}

type createReviewRequest struct {
	Rating int                  `json:"rating" binding:"required,min=1,max=5"`
	Body   string               `json:"body"`
	Images []reviewImagePayload `json:"images"`
}

type updateReviewRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Body   string `json:"body"`
}

// ListProductReviews returns the reviews of a product.
// GET /api/v1/products/:id/reviews
func (ctrl *ReviewController) ListProductReviews(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	reviews, err := ctrl.reviewService.ListProductReviews(productID)
	if err != nil {
		if stderrors.Is(err, service.ErrProductNotFound) {
			errors.NotFound(c, errors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to list reviews", err, map[string]interface{}{
			"product_id": productID,
		})
		errors.InternalError(c, "")
		return
	}

	rating, err := ctrl.reviewService.GetProductRating(productID)
	if err != nil {
		rating = &service.ProductRating{}
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"rating":  rating,
	})
}

// CreateReview adds the caller's review of a product.
// POST /api/v1/products/:id/reviews
func (ctrl *ReviewController) CreateReview(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "Please sign in to review")
		return
	}

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req createReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "rating between 1 and 5 is required")
		return
	}

	images := make([]service.ReviewImageInput, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, service.ReviewImageInput{URL: img.URL, Key: img.Key})
	}

	review, err := ctrl.reviewService.CreateReview(userID, productID, req.Rating, req.Body, images)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrProductNotFound):
			errors.NotFound(c, errors.ProductNotFound, "Product not found")
		case stderrors.Is(err, service.ErrReviewExists):
			errors.Conflict(c, errors.ReviewAlreadyExists, "You have already reviewed this product")
		case stderrors.Is(err, service.ErrInvalidRating):
			errors.BadRequest(c, errors.ReviewInvalidRating, "Rating must be between 1 and 5")
		default:
			log.Error("Failed to create review", err, map[string]interface{}{
				"user_id":    userID,
				"product_id": productID,
			})
			errors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusCreated, review)
}

// UpdateReview edits the caller's review.
// PUT /api/v1/reviews/:id
func (ctrl *ReviewController) UpdateReview(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	reviewID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "rating between 1 and 5 is required")
		return
	}

	review, err := ctrl.reviewService.UpdateReview(userID, reviewID, req.Rating, req.Body)
	if err != nil {
		ctrl.respondReviewError(c, err)
		return
	}

	c.JSON(http.StatusOK, review)
}

// DeleteReview removes the caller's review and its uploaded images.
// DELETE /api/v1/reviews/:id
func (ctrl *ReviewController) DeleteReview(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	reviewID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	keys, err := ctrl.reviewService.DeleteReview(userID, reviewID)
	if err != nil {
		ctrl.respondReviewError(c, err)
		return
	}

	// Storage cleanup is best effort; orphaned objects cost pennies.
	for _, key := range keys {
		if err := ctrl.s3Storage.DeleteObject(c.Request.Context(), key); err != nil {
			log.Warn("Failed to delete review image from storage", map[string]interface{}{
				"key": key,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Review deleted"})
}

func (ctrl *ReviewController) respondReviewError(c *gin.Context, err error) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case stderrors.Is(err, service.ErrReviewNotFound):
		errors.NotFound(c, errors.ReviewNotFound, "Review not found")
	case stderrors.Is(err, service.ErrInvalidRating):
		errors.BadRequest(c, errors.ReviewInvalidRating, "Rating must be between 1 and 5")
	default:
		log.Error("Review operation failed", err, nil)
		errors.InternalError(c, "")
	}
}
