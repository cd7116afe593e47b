package service

import (
	"encoding/json"
	"time"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
)

// UserCreateRequest represents a request to create a user
type UserCreateRequest struct {
	Username string          `json:"username" binding:"required,max=50"`
	FullName string          `json:"fullName" binding:"required,max=100"`
	Email    string          `json:"email" binding:"required,email,max=100"`
	Address  *string         `json:"address" binding:"omitempty,max=255"`
	Role     models.UserRole `json:"role" binding:"omitempty,oneof=ADMIN USER"`
}

// UserUpdateRequest is a patch: only non-nil fields are applied
type UserUpdateRequest struct {
	FullName *string          `json:"fullName" binding:"omitempty,min=1,max=100"`
	Email    *string          `json:"email" binding:"omitempty,email,max=100"`
	Address  *string          `json:"address" binding:"omitempty,max=255"`
	Role     *models.UserRole `json:"role" binding:"omitempty,oneof=ADMIN USER"`
}

// UserResponse is the API view of a user
type UserResponse struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	FullName  string          `json:"fullName"`
	Email     string          `json:"email"`
	Address   *string         `json:"address"`
	Role      models.UserRole `json:"role"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CategoryCreateRequest represents a request to create a category
type CategoryCreateRequest struct {
	Name        string  `json:"name" binding:"required,max=50"`
	Description *string `json:"description" binding:"omitempty,max=255"`
}

// CategoryUpdateRequest is a patch: only non-nil fields are applied
type CategoryUpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=50"`
	Description *string `json:"description" binding:"omitempty,max=255"`
}

// CategoryResponse is the API view of a category
type CategoryResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProductCreateRequest represents a request to create a product
type ProductCreateRequest struct {
	Name        string           `json:"name" binding:"required,max=100"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	StockCount  *int             `json:"stockCount" binding:"required,min=0"`
	CategoryID  int64            `json:"categoryId" binding:"required"`
}

// ProductUpdateRequest is a patch: only non-nil fields are applied
type ProductUpdateRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	StockCount  *int             `json:"stockCount" binding:"omitempty,min=0"`
	CategoryID  *int64           `json:"categoryId"`
}

// ProductResponse is the API view of a product with its category name
type ProductResponse struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  *string         `json:"description"`
	Price        decimal.Decimal `json:"price"`
	StockCount   int             `json:"stockCount"`
	CategoryID   int64           `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// OrderItemRequest is one requested line. Quantity is checked by the
// service so that the business message reaches the caller.
type OrderItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity"`
}

// OrderCreateRequest represents a request to place an order
type OrderCreateRequest struct {
	UserID        int64                `json:"userId" binding:"required"`
	Items         []OrderItemRequest   `json:"items" binding:"dive"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod" binding:"required,oneof=CASH CARD"`
	// IdempotencyKey comes from the Idempotency-Key header
	IdempotencyKey string `json:"-"`
}

// OrderItemResponse is one line of a placed order
type OrderItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// PaymentResponse is the payment recorded for an order
type PaymentResponse struct {
	ID            int64                `json:"id"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	Status        models.PaymentStatus `json:"status"`
	PaymentDate   time.Time            `json:"paymentDate"`
}

// OrderResponse is an order with its items and payment, if any
type OrderResponse struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"userId"`
	Status      models.OrderStatus  `json:"status"`
	OrderDate   time.Time           `json:"orderDate"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Items       []OrderItemResponse `json:"items"`
	Payment     *PaymentResponse    `json:"payment"`
}

// OrderEventResponse is one recorded order event
type OrderEventResponse struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OrderID    int64           `json:"orderId"`
	UserID     int64           `json:"userId"`
	Status     string          `json:"status,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// UserMonthlyOrderStatsResponse holds the order count and spend of a user in one month
type UserMonthlyOrderStatsResponse struct {
	UserID      int64           `json:"userId"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	OrderCount  int64           `json:"orderCount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// UserProductOrderStatsItem aggregates the lines of one product
type UserProductOrderStatsItem struct {
	ProductID     int64           `json:"productId"`
	ProductName   string          `json:"productName"`
	TotalQuantity int64           `json:"totalQuantity"`
	OrderCount    int64           `json:"orderCount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

// UserProductOrderStatsResponse groups a user's order lines by product over a period
type UserProductOrderStatsResponse struct {
	UserID      int64                       `json:"userId"`
	From        time.Time                   `json:"from"`
	To          time.Time                   `json:"to"`
	Items       []UserProductOrderStatsItem `json:"items"`
	TotalAmount decimal.Decimal             `json:"totalAmount"`
}

// ProductUserCountResponse holds how many distinct users ordered a product
type ProductUserCountResponse struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	UserCount   int64  `json:"userCount"`
}
