package repository

import (
	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"gorm.io/gorm"
)

// ProductFilter holds the list query parameters.
type ProductFilter struct {
	CategoryID    *uint
	SubCategoryID *uint
	Search        string
	SortBy        string // price_asc, price_desc, newest
	Page          int
	PageSize      int
}

type ProductRepository interface {
	Create(product *model.Product) error
	BulkCreate(products []model.Product, batchSize int) error
	FindByID(id uint) (*model.Product, error)
	FindByIDs(ids []uint) ([]model.Product, error)
	FindAll(filter ProductFilter) ([]model.Product, int64, error)
	FindPopular(limit int) ([]model.Product, error)
	Update(product *model.Product) error
	Delete(id uint) error

	AddImage(image *model.ProductImage) error
	FindImageByID(id uint) (*model.ProductImage, error)
	DeleteImage(id uint) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":        product.Name,
		"category_id": product.CategoryID,
	})

	if err := r.db.Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
		})
		return err
	}
	return nil
}

// BulkCreate inserts products in batches, used by the catalog importer.
func (r *productRepository) BulkCreate(products []model.Product, batchSize int) error {
	if err := r.db.CreateInBatches(products, batchSize).Error; err != nil {
		logger.Error("Failed to bulk create products in database", err, map[string]interface{}{
			"count": len(products),
		})
		return err
	}
	return nil
}

func (r *productRepository) FindByID(id uint) (*model.Product, error) {
	var product model.Product
	err := r.db.
		Preload("Category").
		Preload("SubCategory").
		Preload("Images").
		First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs fetches several products in one query. Missing IDs are simply
// absent from the result; callers decide how to treat them.
func (r *productRepository) FindByIDs(ids []uint) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	var products []model.Product
	if err := r.db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		logger.Error("Failed to find products by IDs in database", err, map[string]interface{}{
			"count": len(ids),
		})
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindAll(filter ProductFilter) ([]model.Product, int64, error) {
	query := r.db.Model(&model.Product{})

	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.SubCategoryID != nil {
		query = query.Where("sub_category_id = ?", *filter.SubCategoryID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count products in database", err)
		return nil, 0, err
	}

	switch filter.SortBy {
	case "price_asc":
		query = query.Order("price ASC")
	case "price_desc":
		query = query.Order("price DESC")
	case "newest":
		query = query.Order("created_at DESC")
	default:
		query = query.Order("id DESC")
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var products []model.Product
	err := query.
		Preload("Category").
		Preload("SubCategory").
		Preload("Images").
		Find(&products).Error
	if err != nil {
		logger.Error("Failed to list products in database", err)
		return nil, 0, err
	}

	return products, total, nil
}

// FindPopular returns products ordered by how often they appear in order
// items, falling back to newest when nothing has sold yet.
func (r *productRepository) FindPopular(limit int) ([]model.Product, error) {
	var products []model.Product
	err := r.db.
		Joins("LEFT JOIN order_items ON order_items.product_id = products.id").
		Group("products.id").
		Order("COUNT(order_items.id) DESC, products.created_at DESC").
		Limit(limit).
		Preload("Images").
		Find(&products).Error
	if err != nil {
		logger.Error("Failed to find popular products in database", err)
		return nil, err
	}
	return products, nil
}

func (r *productRepository) Update(product *model.Product) error {
	logger.Debug("Updating product in database", map[string]interface{}{
		"product_id": product.ID,
	})

	if err := r.db.Save(product).Error; err != nil {
		logger.Error("Failed to update product in database", err, map[string]interface{}{
			"product_id": product.ID,
		})
		return err
	}
	return nil
}

func (r *productRepository) Delete(id uint) error {
	logger.Debug("Deleting product from database", map[string]interface{}{
		"product_id": id,
	})

	if err := r.db.Delete(&model.Product{}, id).Error; err != nil {
		logger.Error("Failed to delete product from database", err, map[string]interface{}{
			"product_id": id,
		})
		return err
	}
	return nil
}

func (r *productRepository) AddImage(image *model.ProductImage) error {
	if err := r.db.Create(image).Error; err != nil {
		logger.Error("Failed to create product image in database", err, map[string]interface{}{
			"product_id": image.ProductID,
		})
		return err
	}
	return nil
}

func (r *productRepository) FindImageByID(id uint) (*model.ProductImage, error) {
	var image model.ProductImage
	if err := r.db.First(&image, id).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *productRepository) DeleteImage(id uint) error {
	if err := r.db.Delete(&model.ProductImage{}, id).Error; err != nil {
		logger.Error("Failed to delete product image from database", err, map[string]interface{}{
			"image_id": id,
		})
		return err
	}
	return nil
}
