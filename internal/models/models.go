package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserRole is the role a user account holds
type UserRole string

const (
	UserRoleAdmin UserRole = "ADMIN"
	UserRoleUser  UserRole = "USER"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusFinished  OrderStatus = "FINISHED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether s is one of the known order statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusDelivered, OrderStatusFinished, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentMethod is how an order was paid
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

// PaymentStatus is the state of a payment record
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// User represents a customer or administrator account
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	FullName  string    `db:"full_name"`
	Email     string    `db:"email"`
	Address   *string   `db:"address"`
	Role      UserRole  `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

// Category groups products
type Category struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Product represents a sellable item with its current stock
type Product struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Description *string         `db:"description"`
	Price       decimal.Decimal `db:"price"`
	StockCount  int             `db:"stock_count"`
	CategoryID  int64           `db:"category_id"`
	CreatedAt   time.Time       `db:"created_at"`
}

// Order represents a placed customer order
type Order struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	OrderDate   time.Time       `db:"order_date"`
	Status      OrderStatus     `db:"status"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	CreatedAt   time.Time       `db:"created_at"`
	Items       []OrderItem     `db:"-"`
}

// OrderItem is one product line of an order. UnitPrice is the product
// price at the moment the order was placed.
type OrderItem struct {
	ID         int64           `db:"id"`
	OrderID    int64           `db:"order_id"`
	ProductID  int64           `db:"product_id"`
	Quantity   int             `db:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price"`
	TotalPrice decimal.Decimal `db:"total_price"`
	CreatedAt  time.Time       `db:"created_at"`
}

// Payment is the payment record attached to an order
type Payment struct {
	ID            int64           `db:"id"`
	OrderID       int64           `db:"order_id"`
	UserID        int64           `db:"user_id"`
	PaymentMethod PaymentMethod   `db:"payment_method"`
	Amount        decimal.Decimal `db:"amount"`
	PaymentDate   time.Time       `db:"payment_date"`
	Status        PaymentStatus   `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
}

// OrderEvent is an audit log entry recorded from the order event stream
type OrderEvent struct {
	ID         int64     `db:"id"`
	EventID    string    `db:"event_id"`
	EventType  string    `db:"event_type"`
	OrderID    int64     `db:"order_id"`
	UserID     int64     `db:"user_id"`
	Status     string    `db:"status"`
	Payload    []byte    `db:"payload"`
	OccurredAt time.Time `db:"occurred_at"`
	RecordedAt time.Time `db:"recorded_at"`
}
