package service

import (
	"errors"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"gorm.io/gorm"
)

type CategoryService struct {
	categoryRepo repository.CategoryRepository
}

func NewCategoryService(categoryRepo repository.CategoryRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo}
}

func (s *CategoryService) ListCategories() ([]model.Category, error) {
	return s.categoryRepo.FindAll()
}

func (s *CategoryService) GetCategory(id uint) (*model.Category, error) {
	category, err := s.categoryRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) CreateCategory(category *model.Category) error {
	logger.Info("Creating category", map[string]interface{}{
		"name": category.Name,
	})
	return s.categoryRepo.Create(category)
}

func (s *CategoryService) UpdateCategory(id uint, updates *model.Category) (*model.Category, error) {
	category, err := s.GetCategory(id)
	if err != nil {
		return nil, err
	}

	category.Name = updates.Name
	if updates.ImageURL != "" {
		category.ImageURL = updates.ImageURL
		category.ImageKey = updates.ImageKey
	}

	if err := s.categoryRepo.Update(category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) DeleteCategory(id uint) error {
	if _, err := s.GetCategory(id); err != nil {
		return err
	}
	return s.categoryRepo.Delete(id)
}

func (s *CategoryService) CreateSubCategory(subCategory *model.SubCategory) error {
	if _, err := s.GetCategory(subCategory.CategoryID); err != nil {
		return err
	}
	return s.categoryRepo.CreateSubCategory(subCategory)
}

func (s *CategoryService) ListSubCategories(categoryID uint) ([]model.SubCategory, error) {
	if _, err := s.GetCategory(categoryID); err != nil {
		return nil, err
	}
	return s.categoryRepo.FindSubCategoriesByCategoryID(categoryID)
}

func (s *CategoryService) UpdateSubCategory(id uint, updates *model.SubCategory) (*model.SubCategory, error) {
	subCategory, err := s.categoryRepo.FindSubCategoryByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubCategoryNotFound
		}
		return nil, err
	}

	subCategory.Name = updates.Name
	if err := s.categoryRepo.UpdateSubCategory(subCategory); err != nil {
		return nil, err
	}
	return subCategory, nil
}

func (s *CategoryService) DeleteSubCategory(id uint) error {
	if _, err := s.categoryRepo.FindSubCategoryByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubCategoryNotFound
		}
		return err
	}
	return s.categoryRepo.DeleteSubCategory(id)
}
