package service

import (
	"errors"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrSubCategoryNotFound = errors.New("sub-category not found")
	ErrSubCategoryMismatch = errors.New("sub-category does not belong to the category")
	ErrInvalidPrice        = errors.New("price must be positive")
	ErrInvalidStock        = errors.New("stock quantity cannot be negative")
)

// ProductListResult carries one page of the catalog with paging metadata.
type ProductListResult struct {
	Products   []model.Product `json:"products"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

type ProductService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
}

func NewProductService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
	}
}

func (s *ProductService) GetProduct(id uint) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *ProductService) ListProducts(filter repository.ProductFilter) (*ProductListResult, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	products, total, err := s.productRepo.FindAll(filter)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))
	return &ProductListResult{
		Products:   products,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *ProductService) PopularProducts(limit int) ([]model.Product, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.productRepo.FindPopular(limit)
}

// CreateProduct validates the category pairing before inserting.
func (s *ProductService) CreateProduct(product *model.Product) error {
	logger.Info("Creating product", map[string]interface{}{
		"name":        product.Name,
		"category_id": product.CategoryID,
	})

	if product.Price <= 0 {
		return ErrInvalidPrice
	}
	if product.StockQuantity < 0 {
		return ErrInvalidStock
	}

	if _, err := s.categoryRepo.FindByID(product.CategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}

	if product.SubCategoryID != nil {
		subCategory, err := s.categoryRepo.FindSubCategoryByID(*product.SubCategoryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubCategoryNotFound
			}
			return err
		}
		if subCategory.CategoryID != product.CategoryID {
			return ErrSubCategoryMismatch
		}
	}

	return s.productRepo.Create(product)
}

func (s *ProductService) UpdateProduct(id uint, updates *model.Product) (*model.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	if updates.Price <= 0 {
		return nil, ErrInvalidPrice
	}
	if updates.StockQuantity < 0 {
		return nil, ErrInvalidStock
	}

	product.Name = updates.Name
	product.Description = updates.Description
	product.Price = updates.Price
	product.StockQuantity = updates.StockQuantity
	product.CategoryID = updates.CategoryID
	product.SubCategoryID = updates.SubCategoryID
	product.ThumbnailURL = updates.ThumbnailURL

	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) DeleteProduct(id uint) error {
	if _, err := s.GetProduct(id); err != nil {
		return err
	}
	return s.productRepo.Delete(id)
}

func (s *ProductService) AddProductImage(productID uint, url, key string) (*model.ProductImage, error) {
	if _, err := s.GetProduct(productID); err != nil {
		return nil, err
	}

	image := &model.ProductImage{ProductID: productID, URL: url, Key: key}
	if err := s.productRepo.AddImage(image); err != nil {
		return nil, err
	}
	return image, nil
}

// RemoveProductImage deletes the row and reports the storage key so the
// caller can delete the object too.
func (s *ProductService) RemoveProductImage(imageID uint) (string, error) {
	image, err := s.productRepo.FindImageByID(imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrProductNotFound
		}
		return "", err
	}
	if err := s.productRepo.DeleteImage(imageID); err != nil {
		return "", err
	}
	return image.Key, nil
}
