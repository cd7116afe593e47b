package service

import (
	"context"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const msgProductNotFound = "Product not found"

// ProductService handles the product catalogue
type ProductService struct {
	repo   store.Repository
	cache  *ProductCache
	logger *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(repo store.Repository, cache *ProductCache) *ProductService {
	return &ProductService{repo: repo, cache: cache, logger: util.GetLogger()}
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return BadRequest("Price must be >= 0")
	}
	return nil
}

// Create adds a product to an existing category
func (s *ProductService) Create(ctx context.Context, req *ProductCreateRequest) (*ProductResponse, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create")
	defer span.End()

	category, err := s.repo.GetCategoryByID(ctx, req.CategoryID)
	if err != nil {
		return nil, storeErr(err, msgCategoryNotFound, "", "")
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  category.ID,
	}
	if req.Price != nil {
		product.Price = req.Price.Round(2)
	}
	if req.StockCount != nil {
		product.StockCount = *req.StockCount
	}
	if err := validatePrice(product.Price); err != nil {
		return nil, err
	}
	if product.StockCount < 0 {
		return nil, BadRequest("Stock count must be >= 0")
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		util.RecordError(span, err)
		return nil, storeErr(err, "", "", msgCategoryNotFound)
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.Int64("category_id", product.CategoryID))
	resp := toProductResponse(product, category.Name)
	return &resp, nil
}

// Get returns a product, served from the cache when possible
func (s *ProductService) Get(ctx context.Context, id int64) (*ProductResponse, error) {
	cached, version, ok := s.cache.get(ctx, id)
	if ok {
		return cached, nil
	}

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, msgProductNotFound, "", "")
	}
	category, err := s.repo.GetCategoryByID(ctx, product.CategoryID)
	if err != nil {
		return nil, err
	}

	resp := toProductResponse(product, category.Name)
	s.cache.set(ctx, &resp, version)
	return &resp, nil
}

// GetAll returns every product
func (s *ProductService) GetAll(ctx context.Context) ([]ProductResponse, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	resp := make([]ProductResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i], names[products[i].CategoryID]))
	}
	return resp, nil
}

// Update applies the non-nil fields of req. A new category id must exist.
func (s *ProductService) Update(ctx context.Context, id int64, req *ProductUpdateRequest) (*ProductResponse, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Update")
	defer span.End()

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, msgProductNotFound, "", "")
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = req.Description
	}
	if req.Price != nil {
		if err := validatePrice(*req.Price); err != nil {
			return nil, err
		}
		product.Price = req.Price.Round(2)
	}
	if req.StockCount != nil {
		if *req.StockCount < 0 {
			return nil, BadRequest("Stock count must be >= 0")
		}
		product.StockCount = *req.StockCount
	}
	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}

	category, err := s.repo.GetCategoryByID(ctx, product.CategoryID)
	if err != nil {
		return nil, storeErr(err, msgCategoryNotFound, "", "")
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		util.RecordError(span, err)
		return nil, storeErr(err, msgProductNotFound, "", msgCategoryNotFound)
	}
	s.cache.invalidate(ctx, id)

	resp := toProductResponse(product, category.Name)
	return &resp, nil
}

// Delete removes a product that was never ordered
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return storeErr(err, msgProductNotFound, "", "Product has been ordered and cannot be deleted")
	}
	s.cache.invalidate(ctx, id)
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}
