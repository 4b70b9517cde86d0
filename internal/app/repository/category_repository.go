package repository

import (
	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"gorm.io/gorm"
)

type CategoryRepository interface {
	Create(category *model.Category) error
	FindAll() ([]model.Category, error)
	FindByID(id uint) (*model.Category, error)
	Update(category *model.Category) error
	Delete(id uint) error

	CreateSubCategory(subCategory *model.SubCategory) error
	FindSubCategoryByID(id uint) (*model.SubCategory, error)
	FindSubCategoriesByCategoryID(categoryID uint) ([]model.SubCategory, error)
	UpdateSubCategory(subCategory *model.SubCategory) error
	DeleteSubCategory(id uint) error
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(category *model.Category) error {
	logger.Debug("Creating category in database", map[string]interface{}{
		"name": category.Name,
	})

	if err := r.db.Create(category).Error; err != nil {
		logger.Error("Failed to create category in database", err, map[string]interface{}{
			"name": category.Name,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) FindAll() ([]model.Category, error) {
	var categories []model.Category
	err := r.db.Preload("SubCategories").Order("id").Find(&categories).Error
	if err != nil {
		logger.Error("Failed to list categories in database", err)
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) FindByID(id uint) (*model.Category, error) {
	var category model.Category
	err := r.db.Preload("SubCategories").First(&category, id).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) Update(category *model.Category) error {
	logger.Debug("Updating category in database", map[string]interface{}{
		"category_id": category.ID,
	})

	if err := r.db.Save(category).Error; err != nil {
		logger.Error("Failed to update category in database", err, map[string]interface{}{
			"category_id": category.ID,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) Delete(id uint) error {
	logger.Debug("Deleting category from database", map[string]interface{}{
		"category_id": id,
	})

	if err := r.db.Delete(&model.Category{}, id).Error; err != nil {
		logger.Error("Failed to delete category from database", err, map[string]interface{}{
			"category_id": id,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) CreateSubCategory(subCategory *model.SubCategory) error {
	logger.Debug("Creating sub-category in database", map[string]interface{}{
		"category_id": subCategory.CategoryID,
		"name":        subCategory.Name,
	})

	if err := r.db.Create(subCategory).Error; err != nil {
		logger.Error("Failed to create sub-category in database", err, map[string]interface{}{
			"category_id": subCategory.CategoryID,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) FindSubCategoryByID(id uint) (*model.SubCategory, error) {
	var subCategory model.SubCategory
	if err := r.db.First(&subCategory, id).Error; err != nil {
		return nil, err
	}
	return &subCategory, nil
}

func (r *categoryRepository) FindSubCategoriesByCategoryID(categoryID uint) ([]model.SubCategory, error) {
	var subCategories []model.SubCategory
	err := r.db.Where("category_id = ?", categoryID).Order("id").Find(&subCategories).Error
	if err != nil {
		logger.Error("Failed to list sub-categories in database", err, map[string]interface{}{
			"category_id": categoryID,
		})
		return nil, err
	}
	return subCategories, nil
}

func (r *categoryRepository) UpdateSubCategory(subCategory *model.SubCategory) error {
	if err := r.db.Save(subCategory).Error; err != nil {
		logger.Error("Failed to update sub-category in database", err, map[string]interface{}{
			"sub_category_id": subCategory.ID,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) DeleteSubCategory(id uint) error {
	if err := r.db.Delete(&model.SubCategory{}, id).Error; err != nil {
		logger.Error("Failed to delete sub-category from database", err, map[string]interface{}{
			"sub_category_id": id,
		})
		return err
	}
	return nil
}
