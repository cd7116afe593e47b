package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/redisclient"
	"shop-service/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) record(eventType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishPaymentRecorded(_ context.Context, e *models.PaymentRecordedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func newRedis(t *testing.T) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redisclient.NewFromRedis(rdb), mr
}

type fixture struct {
	repo     *store.MemoryStore
	users    *UserService
	cats     *CategoryService
	products *ProductService
	orders   *OrderService
	stats    *StatisticsService
}

func newFixture() *fixture {
	repo := store.NewMemoryStore()
	return &fixture{
		repo:     repo,
		users:    NewUserService(repo),
		cats:     NewCategoryService(repo, nil),
		products: NewProductService(repo, nil),
		orders:   NewOrderService(repo, nil, nil, nil, 0),
		stats:    NewStatisticsService(repo),
	}
}

func (f *fixture) user(t *testing.T, username string) int64 {
	t.Helper()
	resp, err := f.users.Create(context.Background(), &UserCreateRequest{
		Username: username,
		FullName: username + " Example",
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return resp.ID
}

func (f *fixture) category(t *testing.T, name string) int64 {
	t.Helper()
	resp, err := f.cats.Create(context.Background(), &CategoryCreateRequest{Name: name})
	require.NoError(t, err)
	return resp.ID
}

func (f *fixture) product(t *testing.T, categoryID int64, name, price string, stock int) int64 {
	t.Helper()
	p := decimal.RequireFromString(price)
	resp, err := f.products.Create(context.Background(), &ProductCreateRequest{
		Name:       name,
		Price:      &p,
		StockCount: &stock,
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	return resp.ID
}

func (f *fixture) stock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := f.repo.GetProductByID(context.Background(), productID)
	require.NoError(t, err)
	return p.StockCount
}

// placeAt places an order as if it happened at the given instant
func (f *fixture) placeAt(t *testing.T, at time.Time, req *OrderCreateRequest) *OrderResponse {
	t.Helper()
	f.orders.now = func() time.Time { return at }
	defer func() { f.orders.now = time.Now }()

	resp, err := f.orders.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func orderReq(userID int64, items ...OrderItemRequest) *OrderCreateRequest {
	return &OrderCreateRequest{
		UserID:        userID,
		Items:         items,
		PaymentMethod: models.PaymentMethodCard,
	}
}

func item(productID int64, quantity int) OrderItemRequest {
	return OrderItemRequest{ProductID: productID, Quantity: quantity}
}

func requireKind(t *testing.T, err error, kind Kind, message string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, kind, domainErr.Kind)
	require.Equal(t, message, domainErr.Message)
}
