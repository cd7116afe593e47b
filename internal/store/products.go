package store

import (
	"context"
	"fmt"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateCategory inserts a new category
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO category (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at`

	if err := s.insert(ctx, category, query, category.Name, category.Description); err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

// GetCategoryByID retrieves a category by ID
func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	if err := s.get(ctx, &category, "SELECT * FROM category WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("category %d: %w", id, err)
	}
	return &category, nil
}

// ListCategories retrieves all categories
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.selectAll(ctx, &categories, "SELECT * FROM category ORDER BY id")
	return categories, err
}

// UpdateCategory overwrites the mutable category columns
func (s *Store) UpdateCategory(ctx context.Context, category *models.Category) error {
	err := s.execAffecting(ctx,
		"UPDATE category SET name = $1, description = $2 WHERE id = $3",
		category.Name, category.Description, category.ID)
	if err != nil {
		return fmt.Errorf("failed to update category %d: %w", category.ID, err)
	}
	return nil
}

// DeleteCategory removes a category
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.execAffecting(ctx, "DELETE FROM category WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete category %d: %w", id, err)
	}
	return nil
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO product (name, description, price, stock_count, category_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.insert(ctx, product, query,
		product.Name, product.Description, product.Price, product.StockCount, product.CategoryID)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := s.get(ctx, &product, "SELECT * FROM product WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("product %d: %w", id, err)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM product WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	query = s.q.Rebind(query)

	var products []models.Product
	err = s.selectAll(ctx, &products, query, args...)
	return products, err
}

// ListProducts retrieves all products
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.selectAll(ctx, &products, "SELECT * FROM product ORDER BY id")
	return products, err
}

// ListProductIDsByCategory retrieves the IDs of every product in a category
func (s *Store) ListProductIDsByCategory(ctx context.Context, categoryID int64) ([]int64, error) {
	var ids []int64
	err := s.selectAll(ctx, &ids, "SELECT id FROM product WHERE category_id = $1 ORDER BY id", categoryID)
	return ids, err
}

// UpdateProduct overwrites the mutable product columns
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	err := s.execAffecting(ctx,
		`UPDATE product SET name = $1, description = $2, price = $3, stock_count = $4, category_id = $5
		 WHERE id = $6`,
		product.Name, product.Description, product.Price, product.StockCount, product.CategoryID, product.ID)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", product.ID, err)
	}
	return nil
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.execAffecting(ctx, "DELETE FROM product WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	return nil
}

// DecrementStock deducts stock with a guard against going negative
func (s *Store) DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE product SET stock_count = stock_count - $1 WHERE id = $2 AND stock_count >= $1",
		quantity, productID)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
