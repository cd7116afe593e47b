package store

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CreateOrder creates a new order and its items
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, order_date, status, total_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := s.insert(ctx, order, query,
		order.UserID, order.OrderDate, order.Status, order.TotalAmount)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := s.createOrderItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO orderitem (order_id, product_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.insert(ctx, item, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.get(ctx, &order, "SELECT * FROM orders WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("order %d: %w", id, err)
	}

	err := s.selectAll(ctx, &order.Items,
		"SELECT * FROM orderitem WHERE order_id = $1 ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return &order, nil
}

// ListOrdersByUser retrieves every order of a user with their items
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.selectAll(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	query, args, err := sqlx.In("SELECT * FROM orderitem WHERE order_id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}

	var items []models.OrderItem
	if err := s.selectAll(ctx, &items, s.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	for _, item := range items {
		o := &orders[index[item.OrderID]]
		o.Items = append(o.Items, item)
	}
	return orders, nil
}

// UpdateOrderStatus updates order status if it still has the expected value
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountUserOrdersBetween counts the user's orders placed within [from, to]
func (s *Store) CountUserOrdersBetween(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	var count int64
	err := s.get(ctx, &count,
		"SELECT COUNT(*) FROM orders WHERE user_id = $1 AND order_date BETWEEN $2 AND $3",
		userID, from, to)
	return count, err
}

// SumUserOrderTotalBetween sums the totals of the user's orders within [from, to]
func (s *Store) SumUserOrderTotalBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.get(ctx, &total,
		"SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE user_id = $1 AND order_date BETWEEN $2 AND $3",
		userID, from, to)
	return total, err
}

// ListUserOrderItemsBetween retrieves the items of the user's orders within [from, to]
func (s *Store) ListUserOrderItemsBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.OrderItem, error) {
	query := `
		SELECT oi.*
		FROM orderitem oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id = $1 AND o.order_date BETWEEN $2 AND $3
		ORDER BY o.order_date, oi.id`

	var items []models.OrderItem
	err := s.selectAll(ctx, &items, query, userID, from, to)
	return items, err
}

// CountDistinctUsersByProduct counts the users who ever ordered the product
func (s *Store) CountDistinctUsersByProduct(ctx context.Context, productID int64) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT o.user_id)
		FROM orderitem oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.product_id = $1`

	var count int64
	err := s.get(ctx, &count, query, productID)
	return count, err
}

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payment (order_id, user_id, payment_method, amount, payment_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.insert(ctx, payment, query,
		payment.OrderID, payment.UserID, payment.PaymentMethod, payment.Amount, payment.PaymentDate, payment.Status)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetPaymentByOrderID retrieves payment for an order
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.get(ctx, &payment,
		"SELECT * FROM payment WHERE order_id = $1 ORDER BY id DESC LIMIT 1", orderID)
	if err != nil {
		return nil, fmt.Errorf("payment for order %d: %w", orderID, err)
	}
	return &payment, nil
}

// ListPaymentsByUser retrieves every payment made by a user
func (s *Store) ListPaymentsByUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.selectAll(ctx, &payments, "SELECT * FROM payment WHERE user_id = $1 ORDER BY id", userID)
	return payments, err
}
