package store

import (
	"context"
	"errors"
	"time"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique constraint
	ErrConflict = errors.New("record conflicts with an existing record")
	// ErrReferenced is returned when a delete would orphan dependent rows
	ErrReferenced = errors.New("record is referenced by other records")
)

// Repository is the persistence contract used by the services. Every
// implementation gives read-your-writes within one call chain and runs
// WithTx callbacks atomically.
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListProductIDsByCategory(ctx context.Context, categoryID int64) ([]int64, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	// DecrementStock subtracts quantity only while enough stock remains.
	// It reports false when the guard rejected the update.
	DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error)

	// CreateOrder inserts the order together with all of its items
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	// UpdateOrderStatus moves the order from one status to another and
	// reports false when the order was no longer in the from status.
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error)
	CountUserOrdersBetween(ctx context.Context, userID int64, from, to time.Time) (int64, error)
	SumUserOrderTotalBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error)
	ListUserOrderItemsBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.OrderItem, error)
	CountDistinctUsersByProduct(ctx context.Context, productID int64) (int64, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID int64) ([]models.Payment, error)

	// RecordOrderEvent stores the event once and reports whether it was new
	RecordOrderEvent(ctx context.Context, event *models.OrderEvent) (bool, error)
	ListOrderEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error)

	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(repo Repository) error) error
}
