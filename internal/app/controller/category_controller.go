package controller

import (
	stderrors "errors"
	"net/http"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/errors"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type CategoryController struct {
	categoryService *service.CategoryService
}

func NewCategoryController(categoryService *service.CategoryService) *CategoryController {
	return &CategoryController{categoryService: categoryService}
}

type categoryRequest struct {
	Name     string `json:"name" binding:"required"`
	ImageURL string `json:"image_url"`
	ImageKey string `json:"image_key"`
}

type subCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListCategories returns all categories with their sub-categories.
// GET /api/v1/categories
func (ctrl *CategoryController) ListCategories(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	categories, err := ctrl.categoryService.ListCategories()
	if err != nil {
		log.Error("Failed to list categories", err, nil)
		errors.InternalError(c, "Could not load categories")
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetCategory returns one category.
// GET /api/v1/categories/:id
func (ctrl *CategoryController) GetCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	category, err := ctrl.categoryService.GetCategory(id)
	if err != nil {
		ctrl.respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, category)
}

// CreateCategory adds a category (admin).
// POST /api/v1/admin/categories
func (ctrl *CategoryController) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "name is required")
		return
	}

	category := &model.Category{
		Name:     req.Name,
		ImageURL: req.ImageURL,
		ImageKey: req.ImageKey,
	}
	if err := ctrl.categoryService.CreateCategory(category); err != nil {
		info := errors.ParseError(err, "category create")
		errors.RespondWithError(c, http.StatusConflict, info.Code, info.Message)
		return
	}

	c.JSON(http.StatusCreated, category)
}

// UpdateCategory edits a category (admin).
// PUT /api/v1/admin/categories/:id
func (ctrl *CategoryController) UpdateCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "name is required")
		return
	}

	category, err := ctrl.categoryService.UpdateCategory(id, &model.Category{
		Name:     req.Name,
		ImageURL: req.ImageURL,
		ImageKey: req.ImageKey,
	})
	if err != nil {
		ctrl.respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, category)
}

// DeleteCategory removes a category (admin).
// DELETE /api/v1/admin/categories/:id
func (ctrl *CategoryController) DeleteCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.categoryService.DeleteCategory(id); err != nil {
		if stderrors.Is(err, service.ErrCategoryNotFound) {
			errors.NotFound(c, errors.CategoryNotFound, "Category not found")
			return
		}
		log.Error("Failed to delete category", err, map[string]interface{}{
			"category_id": id,
		})
		info := errors.ParseError(err, "category delete")
		errors.RespondWithError(c, http.StatusConflict, info.Code, info.Message)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

// ListSubCategories returns the sub-categories of a category.
// GET /api/v1/categories/:id/sub-categories
func (ctrl *CategoryController) ListSubCategories(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	subCategories, err := ctrl.categoryService.ListSubCategories(id)
	if err != nil {
		ctrl.respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sub_categories": subCategories})
}

// CreateSubCategory adds a sub-category (admin).
// POST /api/v1/admin/categories/:id/sub-categories
func (ctrl *CategoryController) CreateSubCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req subCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "name is required")
		return
	}

	subCategory := &model.SubCategory{CategoryID: id, Name: req.Name}
	if err := ctrl.categoryService.CreateSubCategory(subCategory); err != nil {
		ctrl.respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, subCategory)
}

// DeleteSubCategory removes a sub-category (admin).
// DELETE /api/v1/admin/sub-categories/:id
func (ctrl *CategoryController) DeleteSubCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.categoryService.DeleteSubCategory(id); err != nil {
		ctrl.respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Sub-category deleted"})
}

func (ctrl *CategoryController) respondCategoryError(c *gin.Context, err error) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case stderrors.Is(err, service.ErrCategoryNotFound):
		errors.NotFound(c, errors.CategoryNotFound, "Category not found")
	case stderrors.Is(err, service.ErrSubCategoryNotFound):
		errors.NotFound(c, errors.SubCategoryNotFound, "Sub-category not found")
	default:
		log.Error("Category operation failed", err, nil)
		errors.InternalError(c, "")
	}
}
