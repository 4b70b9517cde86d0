package service

import (
	"errors"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrReviewExists   = errors.New("product already reviewed by this user")
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
)

// ReviewImageInput is one uploaded image attached to a review.
type ReviewImageInput struct {
	URL string
	Key string
}

// ProductRating is the aggregate shown on a product page.
type ProductRating struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

type ReviewService struct {
	reviewRepo  repository.ReviewRepository
	productRepo repository.ProductRepository
}

func NewReviewService(reviewRepo repository.ReviewRepository, productRepo repository.ProductRepository) *ReviewService {
	return &ReviewService{
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
	}
}

// CreateReview adds a rating with optional body and images. One review per
// user per product.
func (s *ReviewService) CreateReview(userID, productID uint, rating int, body string, images []ReviewImageInput) (*model.Review, error) {
	logger.Info("Creating review", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"rating":     rating,
	})

	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	_, err := s.reviewRepo.FindByUserAndProduct(userID, productID)
	if err == nil {
		return nil, ErrReviewExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	review := &model.Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    rating,
		Body:      body,
	}
	for _, img := range images {
		review.Images = append(review.Images, model.ReviewImage{URL: img.URL, Key: img.Key})
	}

	if err := s.reviewRepo.Create(review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) ListProductReviews(productID uint) ([]model.Review, error) {
	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return s.reviewRepo.FindByProductID(productID)
}

func (s *ReviewService) GetProductRating(productID uint) (*ProductRating, error) {
	average, count, err := s.reviewRepo.AverageRating(productID)
	if err != nil {
		return nil, err
	}
	return &ProductRating{Average: average, Count: count}, nil
}

func (s *ReviewService) UpdateReview(userID, reviewID uint, rating int, body string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	review, err := s.ownedReview(userID, reviewID)
	if err != nil {
		return nil, err
	}

	review.Rating = rating
	review.Body = body
	if err := s.reviewRepo.Update(review); err != nil {
		return nil, err
	}
	return review, nil
}

// DeleteReview removes the review and reports the storage keys of its
// images so the caller can delete the objects.
func (s *ReviewService) DeleteReview(userID, reviewID uint) ([]string, error) {
	review, err := s.ownedReview(userID, reviewID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(review.Images))
	for _, img := range review.Images {
		if img.Key != "" {
			keys = append(keys, img.Key)
		}
	}

	if err := s.reviewRepo.Delete(reviewID); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *ReviewService) ownedReview(userID, reviewID uint) (*model.Review, error) {
	review, err := s.reviewRepo.FindByID(reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	if review.UserID != userID {
		return nil, ErrReviewNotFound
	}
	return review, nil
}
