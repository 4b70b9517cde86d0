package controller

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/errors"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/aabhushan/aabhushan-backend/internal/storage"
	"github.com/gin-gonic/gin"
)

type ProductController struct {
	productService *service.ProductService
	reviewService  *service.ReviewService
	s3Storage      *storage.S3Storage
}

func NewProductController(productService *service.ProductService, reviewService *service.ReviewService, s3Storage *storage.S3Storage) *ProductController {
	return &ProductController{
		productService: productService,
		reviewService:  reviewService,
		s3Storage:      s3Storage,
	}
}

type productRequest struct {
	Name          string  `json:"name" binding:"required"`
	Description   string  `json:"description"`
	Price         float64 `json:"price" binding:"required,gt=0"`
	StockQuantity int     `json:"stock_quantity" binding:"gte=0"`
	CategoryID    uint    `json:"category_id" binding:"required"`
	SubCategoryID *uint   `json:"sub_category_id"`
	ThumbnailURL  string  `json:"thumbnail_url"`
}

type productImageRequest struct {
	URL string `json:"url" binding:"required"`
	Key string `json:"key"`
}

// ListProducts returns a filtered catalog page.
// GET /api/v1/products
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	filter := repository.ProductFilter{
		Search:   c.Query("search"),
		SortBy:   c.Query("sort"),
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}
	if id, err := strconv.ParseUint(c.Query("category_id"), 10, 32); err == nil {
		categoryID := uint(id)
		filter.CategoryID = &categoryID
	}
	if id, err := strconv.ParseUint(c.Query("sub_category_id"), 10, 32); err == nil {
		subCategoryID := uint(id)
		filter.SubCategoryID = &subCategoryID
	}

	result, err := ctrl.productService.ListProducts(filter)
	if err != nil {
		log.Error("Failed to list products", err, nil)
		errors.InternalError(c, "Could not load products")
		return
	}

	c.JSON(http.StatusOK, result)
}

// PopularProducts returns the best sellers for the home page.
// GET /api/v1/products/popular
func (ctrl *ProductController) PopularProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	products, err := ctrl.productService.PopularProducts(parseIntQuery(c, "limit", 10))
	if err != nil {
		log.Error("Failed to load popular products", err, nil)
		errors.InternalError(c, "Could not load products")
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetProduct returns one product with its images and rating aggregate.
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	product, err := ctrl.productService.GetProduct(id)
	if err != nil {
		if stderrors.Is(err, service.ErrProductNotFound) {
			errors.NotFound(c, errors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": id,
		})
		errors.InternalError(c, "")
		return
	}

	rating, err := ctrl.reviewService.GetProductRating(id)
	if err != nil {
		log.Warn("Failed to load product rating", map[string]interface{}{
			"product_id": id,
		})
		rating = &service.ProductRating{}
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"rating":  rating,
	})
}

// CreateProduct adds a product to the catalog (admin).
// POST /api/v1/admin/products
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid product data")
		return
	}

	product := &model.Product{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
		ThumbnailURL:  req.ThumbnailURL,
	}

	if err := ctrl.productService.CreateProduct(product); err != nil {
		ctrl.respondProductError(c, err, "create")
		return
	}

	log.Info("Product created", map[string]interface{}{
		"product_id": product.ID,
	})
	c.JSON(http.StatusCreated, product)
}

// UpdateProduct edits a product (admin).
// PUT /api/v1/admin/products/:id
func (ctrl *ProductController) UpdateProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid product data")
		return
	}

	product, err := ctrl.productService.UpdateProduct(id, &model.Product{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
		ThumbnailURL:  req.ThumbnailURL,
	})
	if err != nil {
		ctrl.respondProductError(c, err, "update")
		return
	}

	c.JSON(http.StatusOK, product)
}

// DeleteProduct removes a product (admin).
// DELETE /api/v1/admin/products/:id
func (ctrl *ProductController) DeleteProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.productService.DeleteProduct(id); err != nil {
		if stderrors.Is(err, service.ErrProductNotFound) {
			errors.NotFound(c, errors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to delete product", err, map[string]interface{}{
			"product_id": id,
		})
		info := errors.ParseError(err, "product delete")
		errors.RespondWithError(c, http.StatusConflict, info.Code, info.Message)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

// AddProductImage attaches an uploaded image to a product (admin).
// POST /api/v1/admin/products/:id/images
func (ctrl *ProductController) AddProductImage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req productImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "url is required")
		return
	}

	image, err := ctrl.productService.AddProductImage(id, req.URL, req.Key)
	if err != nil {
		ctrl.respondProductError(c, err, "image")
		return
	}

	c.JSON(http.StatusCreated, image)
}

// DeleteProductImage detaches an image and removes it from storage (admin).
// DELETE /api/v1/admin/products/images/:imageId
func (ctrl *ProductController) DeleteProductImage(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	imageID, ok := parseIDParam(c, "imageId")
	if !ok {
		return
	}

	key, err := ctrl.productService.RemoveProductImage(imageID)
	if err != nil {
		ctrl.respondProductError(c, err, "image delete")
		return
	}

	if err := ctrl.s3Storage.DeleteObject(c.Request.Context(), key); err != nil {
		log.Warn("Failed to delete product image from storage", map[string]interface{}{
			"key": key,
		})
	}

	c.JSON(http.StatusOK, gin.H{"message": "Image deleted"})
}

func (ctrl *ProductController) respondProductError(c *gin.Context, err error, context string) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case stderrors.Is(err, service.ErrProductNotFound):
		errors.NotFound(c, errors.ProductNotFound, "Product not found")
	case stderrors.Is(err, service.ErrCategoryNotFound):
		errors.NotFound(c, errors.CategoryNotFound, "Category not found")
	case stderrors.Is(err, service.ErrSubCategoryNotFound):
		errors.NotFound(c, errors.SubCategoryNotFound, "Sub-category not found")
	case stderrors.Is(err, service.ErrSubCategoryMismatch):
		errors.BadRequest(c, errors.ValidationInvalidInput, "The sub-category belongs to another category")
	case stderrors.Is(err, service.ErrInvalidPrice), stderrors.Is(err, service.ErrInvalidStock):
		errors.BadRequest(c, errors.ValidationInvalidRange, err.Error())
	default:
		log.Error("Product operation failed", err, map[string]interface{}{
			"context": context,
		})
		info := errors.ParseError(err, "product "+context)
		errors.RespondWithError(c, http.StatusInternalServerError, info.Code, info.Message)
	}
}

// parseIDParam reads a numeric path parameter, responding on failure.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		errors.BadRequest(c, errors.ValidationInvalidID, "Invalid ID")
		return 0, false
	}
	return uint(id), true
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return value
}
