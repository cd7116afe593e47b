package service

import (
	"context"
	"fmt"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

const msgCategoryNotFound = "Category not found"

// CategoryService handles product categories
type CategoryService struct {
	repo   store.Repository
	cache  *ProductCache
	logger *zap.Logger
}

// NewCategoryService creates a new category service
func NewCategoryService(repo store.Repository, cache *ProductCache) *CategoryService {
	return &CategoryService{repo: repo, cache: cache, logger: util.GetLogger()}
}

// Create adds a category
func (s *CategoryService) Create(ctx context.Context, req *CategoryCreateRequest) (*CategoryResponse, error) {
	category := &models.Category{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("Category created", zap.Int64("category_id", category.ID))
	resp := toCategoryResponse(category)
	return &resp, nil
}

// Get returns a category by id
func (s *CategoryService) Get(ctx context.Context, id int64) (*CategoryResponse, error) {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, msgCategoryNotFound, "", "")
	}
	resp := toCategoryResponse(category)
	return &resp, nil
}

// GetAll returns every category
func (s *CategoryService) GetAll(ctx context.Context) ([]CategoryResponse, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]CategoryResponse, 0, len(categories))
	for i := range categories {
		resp = append(resp, toCategoryResponse(&categories[i]))
	}
	return resp, nil
}

// Update applies the non-nil fields of req. Cached products of the
// category are dropped since they carry its name.
func (s *CategoryService) Update(ctx context.Context, id int64, req *CategoryUpdateRequest) (*CategoryResponse, error) {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, msgCategoryNotFound, "", "")
	}

	if req.Name != nil {
		category.Name = *req.Name
	}
	if req.Description != nil {
		category.Description = req.Description
	}

	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, storeErr(err, msgCategoryNotFound, "", "")
	}
	s.invalidateProducts(ctx, id)

	resp := toCategoryResponse(category)
	return &resp, nil
}

// Delete removes a category without products
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	s.invalidateProducts(ctx, id)
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return storeErr(err, msgCategoryNotFound, "", "Category has products and cannot be deleted")
	}
	s.logger.Info("Category deleted", zap.Int64("category_id", id))
	return nil
}

func (s *CategoryService) invalidateProducts(ctx context.Context, categoryID int64) {
	if s.cache == nil {
		return
	}
	ids, err := s.repo.ListProductIDsByCategory(ctx, categoryID)
	if err != nil {
		s.logger.Warn("Failed to list category products for cache invalidation",
			zap.Int64("category_id", categoryID), zap.Error(fmt.Errorf("list products: %w", err)))
		return
	}
	s.cache.invalidate(ctx, ids...)
}
