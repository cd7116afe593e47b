package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderExample(t *testing.T) {
	f := newFixture()
	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)

	resp, err := f.orders.CreateOrder(context.Background(), orderReq(userID, item(productID, 2)))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, resp.Status)
	assert.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("19.98")), resp.TotalAmount.String())
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Mug", resp.Items[0].ProductName)
	assert.True(t, resp.Items[0].UnitPrice.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, 3, f.stock(t, productID))

	require.NotNil(t, resp.Payment)
	assert.Equal(t, models.PaymentStatusPaid, resp.Payment.Status)
	assert.Equal(t, models.PaymentMethodCard, resp.Payment.PaymentMethod)
	assert.True(t, resp.Payment.Amount.Equal(decimal.RequireFromString("19.98")))
}

func TestCreateOrderTotalMatchesItems(t *testing.T) {
	f := newFixture()
	userID := f.user(t, "alice")
	cat := f.category(t, "Kitchen")
	mug := f.product(t, cat, "Mug", "9.99", 10)
	plate := f.product(t, cat, "Plate", "3.35", 10)

	resp, err := f.orders.CreateOrder(context.Background(),
		orderReq(userID, item(mug, 3), item(plate, 7), item(mug, 1)))
	require.NoError(t, err)

	sum := decimal.Zero
	for _, it := range resp.Items {
		assert.True(t, it.TotalPrice.Equal(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))))
		sum = sum.Add(it.TotalPrice)
	}
	assert.True(t, sum.Equal(resp.TotalAmount))
	assert.Equal(t, 6, f.stock(t, mug))
	assert.Equal(t, 3, f.stock(t, plate))
}

func TestCreateOrderUnitPriceIsSnapshot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)

	placed, err := f.orders.CreateOrder(ctx, orderReq(userID, item(productID, 1)))
	require.NoError(t, err)

	newPrice := decimal.RequireFromString("15.00")
	_, err = f.products.Update(ctx, productID, &ProductUpdateRequest{Price: &newPrice})
	require.NoError(t, err)

	got, err := f.orders.GetOrder(ctx, placed.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("9.99")))
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture()
	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)

	tests := []struct {
		name    string
		req     *OrderCreateRequest
		kind    Kind
		message string
	}{
		{"unknown user", orderReq(999, item(productID, 1)), KindNotFound, "User not found"},
		{"empty items", orderReq(userID), KindBadRequest, "Order must contain at least one item"},
		{"unknown product", orderReq(userID, item(404, 1)), KindNotFound, "Product not found: 404"},
		{"zero quantity", orderReq(userID, item(productID, 0)), KindBadRequest, "Quantity must be > 0"},
		{"negative quantity", orderReq(userID, item(productID, -2)), KindBadRequest, "Quantity must be > 0"},
		{"insufficient stock", orderReq(userID, item(productID, 6)), KindBadRequest, "Not enough stock for product Mug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(context.Background(), tt.req)
			requireKind(t, err, tt.kind, tt.message)
		})
	}

	orders, err := f.orders.GetUserOrders(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 5, f.stock(t, productID))
}

func TestCreateOrderIsAtomic(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := f.user(t, "alice")
	cat := f.category(t, "Kitchen")
	plenty := f.product(t, cat, "Mug", "9.99", 10)
	scarce := f.product(t, cat, "Teapot", "30.00", 1)

	_, err := f.orders.CreateOrder(ctx, orderReq(userID, item(plenty, 4), item(scarce, 2)))
	requireKind(t, err, KindBadRequest, "Not enough stock for product Teapot")

	assert.Equal(t, 10, f.stock(t, plenty))
	assert.Equal(t, 1, f.stock(t, scarce))

	orders, err := f.stats.UserOrders(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	payments, err := f.stats.UserPayments(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCreateOrderRepeatedProductCountsAgainstStock(t *testing.T) {
	f := newFixture()
	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 3)

	_, err := f.orders.CreateOrder(context.Background(), orderReq(userID, item(productID, 2), item(productID, 2)))
	requireKind(t, err, KindBadRequest, "Not enough stock for product Mug")
	assert.Equal(t, 3, f.stock(t, productID))
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	f := newFixture()
	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "1.00", 5)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.orders.CreateOrder(context.Background(), orderReq(userID, item(productID, 1))); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, success)
	assert.Equal(t, 0, f.stock(t, productID))
}

func TestCreateOrderPublishesAndInvalidatesCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	client, mr := newRedis(t)
	cache := NewProductCache(client, time.Minute)
	pub := &recordingPublisher{}
	f.products = NewProductService(f.repo, cache)
	f.orders = NewOrderService(f.repo, cache, pub, nil, 0)

	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)

	_, err := f.products.Get(ctx, productID)
	require.NoError(t, err)
	require.True(t, mr.Exists(productKey(productID)))

	_, err = f.orders.CreateOrder(ctx, orderReq(userID, item(productID, 2)))
	require.NoError(t, err)

	assert.False(t, mr.Exists(productKey(productID)))
	got, err := f.products.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockCount)

	assert.Equal(t, []string{models.EventTypeOrderPlaced, models.EventTypePaymentRecorded}, pub.types())
}

func TestPublishFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture()
	pub := &recordingPublisher{err: errors.New("kafka unavailable")}
	f.orders = NewOrderService(f.repo, nil, pub, nil, 0)
	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)

	_, err := f.orders.CreateOrder(context.Background(), orderReq(userID, item(productID, 1)))
	require.NoError(t, err)
	assert.Len(t, pub.types(), 2)
}

func TestCreateOrderIdempotencyKeyReplaysOriginal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	client, _ := newRedis(t)
	f.orders = NewOrderService(f.repo, nil, nil, client, time.Hour)
	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)

	req := orderReq(userID, item(productID, 2))
	req.IdempotencyKey = "checkout-123"

	first, err := f.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	second, err := f.orders.CreateOrder(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, f.stock(t, productID))

	orders, err := f.orders.GetUserOrders(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCreateOrderIdempotencyKeyIsScopedToUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	client, _ := newRedis(t)
	f.orders = NewOrderService(f.repo, nil, nil, client, time.Hour)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)

	aliceReq := orderReq(alice, item(productID, 1))
	aliceReq.IdempotencyKey = "k1"
	aliceOrder, err := f.orders.CreateOrder(ctx, aliceReq)
	require.NoError(t, err)

	bobReq := orderReq(bob, item(productID, 3))
	bobReq.IdempotencyKey = "k1"
	bobOrder, err := f.orders.CreateOrder(ctx, bobReq)
	require.NoError(t, err)

	assert.NotEqual(t, aliceOrder.ID, bobOrder.ID)
	assert.Equal(t, bob, bobOrder.UserID)
	require.Len(t, bobOrder.Items, 1)
	assert.Equal(t, 3, bobOrder.Items[0].Quantity)
	assert.Equal(t, 1, f.stock(t, productID))
}

func TestCreateOrderRejectsRecordOfAnotherUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	client, _ := newRedis(t)
	f.orders = NewOrderService(f.repo, nil, nil, client, time.Hour)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)

	aliceOrder, err := f.orders.CreateOrder(ctx, orderReq(alice, item(productID, 1)))
	require.NoError(t, err)
	require.NoError(t, client.SetIdempotencyKey(ctx,
		fmt.Sprintf("%d:k1", bob), strconv.FormatInt(aliceOrder.ID, 10), time.Hour))

	req := orderReq(bob, item(productID, 1))
	req.IdempotencyKey = "k1"
	_, err = f.orders.CreateOrder(ctx, req)
	requireKind(t, err, KindBadRequest, "Idempotency-Key was used for another user's order")
	assert.Equal(t, 4, f.stock(t, productID))
}

func TestCreateOrderIdempotencyKeyInFlight(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	client, _ := newRedis(t)
	f.orders = NewOrderService(f.repo, nil, nil, client, time.Hour)
	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)

	_, ok, err := client.AcquireLock(ctx, fmt.Sprintf("order:%d:busy", userID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	req := orderReq(userID, item(productID, 1))
	req.IdempotencyKey = "busy"
	_, err = f.orders.CreateOrder(ctx, req)
	requireKind(t, err, KindBadRequest, "Order with this Idempotency-Key is already being processed")
	assert.Equal(t, 5, f.stock(t, productID))
}

func TestGetOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.orders.GetOrder(ctx, 1)
	requireKind(t, err, KindNotFound, "Order not found")

	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)
	placed, err := f.orders.CreateOrder(ctx, orderReq(userID, item(productID, 1)))
	require.NoError(t, err)

	got, err := f.orders.GetOrder(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, got.ID)
	require.NotNil(t, got.Payment)
	assert.Equal(t, placed.Payment.ID, got.Payment.ID)
}

func placeOne(t *testing.T, f *fixture) (orderID, userID int64) {
	t.Helper()
	userID = f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)
	resp, err := f.orders.CreateOrder(context.Background(), orderReq(userID, item(productID, 2)))
	require.NoError(t, err)
	return resp.ID, userID
}

func orderStatus(t *testing.T, f *fixture, orderID int64) models.OrderStatus {
	t.Helper()
	resp, err := f.orders.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return resp.Status
}

func TestCancelOrderByUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pub := &recordingPublisher{}
	f.orders = NewOrderService(f.repo, nil, pub, nil, 0)
	orderID, userID := placeOne(t, f)

	err := f.orders.CancelOrderByUser(ctx, 999, userID)
	requireKind(t, err, KindNotFound, "Order not found")

	err = f.orders.CancelOrderByUser(ctx, orderID, userID+100)
	requireKind(t, err, KindBadRequest, "You can cancel only your own orders")
	assert.Equal(t, models.OrderStatusPending, orderStatus(t, f, orderID))

	require.NoError(t, f.orders.CancelOrderByUser(ctx, orderID, userID))
	assert.Equal(t, models.OrderStatusCancelled, orderStatus(t, f, orderID))

	err = f.orders.CancelOrderByUser(ctx, orderID, userID)
	requireKind(t, err, KindBadRequest, "Only PENDING orders can be cancelled")

	assert.Contains(t, pub.types(), models.EventTypeOrderCancelled)
}

func TestCancelDoesNotRestoreStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 5)
	resp, err := f.orders.CreateOrder(ctx, orderReq(userID, item(productID, 2)))
	require.NoError(t, err)

	require.NoError(t, f.orders.CancelOrderByUser(ctx, resp.ID, userID))
	assert.Equal(t, 3, f.stock(t, productID))
}

func TestCancelNonPendingOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	orderID, userID := placeOne(t, f)

	require.NoError(t, f.orders.ChangeStatusByAdmin(ctx, orderID, models.OrderStatusDelivered))

	err := f.orders.CancelOrderByUser(ctx, orderID, userID)
	requireKind(t, err, KindBadRequest, "Only PENDING orders can be cancelled")
	assert.Equal(t, models.OrderStatusDelivered, orderStatus(t, f, orderID))
}

func TestChangeStatusByAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pub := &recordingPublisher{}
	f.orders = NewOrderService(f.repo, nil, pub, nil, 0)
	orderID, _ := placeOne(t, f)

	// rejected before the order is even looked up
	err := f.orders.ChangeStatusByAdmin(ctx, 999, models.OrderStatusCancelled)
	requireKind(t, err, KindBadRequest, "Admin cannot set status to CANCELLED")

	err = f.orders.ChangeStatusByAdmin(ctx, orderID, models.OrderStatusCancelled)
	requireKind(t, err, KindBadRequest, "Admin cannot set status to CANCELLED")

	err = f.orders.ChangeStatusByAdmin(ctx, 999, models.OrderStatusDelivered)
	requireKind(t, err, KindNotFound, "Order not found")

	// no ordering between non-cancelled states is enforced
	require.NoError(t, f.orders.ChangeStatusByAdmin(ctx, orderID, models.OrderStatusFinished))
	assert.Equal(t, models.OrderStatusFinished, orderStatus(t, f, orderID))
	require.NoError(t, f.orders.ChangeStatusByAdmin(ctx, orderID, models.OrderStatusPending))
	assert.Equal(t, models.OrderStatusPending, orderStatus(t, f, orderID))

	assert.Contains(t, pub.types(), models.EventTypeOrderStatusChanged)
}

func TestChangeStatusOfCancelledOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	orderID, userID := placeOne(t, f)
	require.NoError(t, f.orders.CancelOrderByUser(ctx, orderID, userID))

	for _, status := range []models.OrderStatus{models.OrderStatusPending, models.OrderStatusDelivered, models.OrderStatusFinished} {
		err := f.orders.ChangeStatusByAdmin(ctx, orderID, status)
		requireKind(t, err, KindBadRequest, "Cancelled order status cannot be changed")
	}
	assert.Equal(t, models.OrderStatusCancelled, orderStatus(t, f, orderID))
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	orderID, _ := placeOne(t, f)

	err := f.orders.ChangeStatusByAdmin(context.Background(), orderID, models.OrderStatus("SHIPPED"))
	requireKind(t, err, KindBadRequest, "Unknown order status: SHIPPED")
}

func TestListOrderEvents(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.orders.ListOrderEvents(ctx, 999)
	requireKind(t, err, KindNotFound, "Order not found")

	orderID, userID := placeOne(t, f)
	recorded, err := f.repo.RecordOrderEvent(ctx, &models.OrderEvent{
		EventID:    "evt-1",
		EventType:  models.EventTypeOrderPlaced,
		OrderID:    orderID,
		UserID:     userID,
		Status:     string(models.OrderStatusPending),
		Payload:    []byte(`{"order_id":1}`),
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, recorded)

	events, err := f.orders.ListOrderEvents(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].EventID)
	assert.JSONEq(t, `{"order_id":1}`, string(events[0].Payload))
}
