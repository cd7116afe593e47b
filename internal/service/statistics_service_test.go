package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthWindow(t *testing.T) {
	from, to := MonthWindow(2024, 2)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), to)

	from, to = MonthWindow(2023, 12)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), to)
}

func TestDayWindow(t *testing.T) {
	from, to := DayWindow(
		time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 7, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 7, 23, 59, 59, 0, time.UTC), to)
}

func TestUserMonthlyStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := f.user(t, "alice")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "9.99", 10)

	f.placeAt(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), orderReq(userID, item(productID, 2)))
	f.placeAt(t, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), orderReq(userID, item(productID, 1)))
	f.placeAt(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), orderReq(userID, item(productID, 4)))

	stats, err := f.stats.UserMonthlyStats(ctx, userID, 2024, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.OrderCount)
	assert.True(t, stats.TotalAmount.Equal(decimal.RequireFromString("29.97")), stats.TotalAmount.String())

	empty, err := f.stats.UserMonthlyStats(ctx, userID, 2000, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.OrderCount)
	assert.True(t, empty.TotalAmount.IsZero())

	_, err = f.stats.UserMonthlyStats(ctx, userID, 2024, 13)
	requireKind(t, err, KindBadRequest, "Month must be between 1 and 12")
}

func TestUserProductStatsGroupsByProduct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := f.user(t, "alice")
	cat := f.category(t, "Kitchen")
	mug := f.product(t, cat, "Mug", "9.99", 10)
	plate := f.product(t, cat, "Plate", "2.50", 10)

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	f.placeAt(t, day.Add(9*time.Hour), orderReq(userID, item(mug, 2), item(plate, 1)))
	f.placeAt(t, day.Add(23*time.Hour+59*time.Minute), orderReq(userID, item(mug, 3)))
	f.placeAt(t, day.AddDate(0, 0, 1), orderReq(userID, item(plate, 4)))

	stats, err := f.stats.UserProductStats(ctx, userID, day, day)
	require.NoError(t, err)
	require.Len(t, stats.Items, 2)

	first := stats.Items[0]
	assert.Equal(t, mug, first.ProductID)
	assert.Equal(t, "Mug", first.ProductName)
	assert.Equal(t, int64(5), first.TotalQuantity)
	assert.Equal(t, int64(2), first.OrderCount)
	assert.True(t, first.TotalAmount.Equal(decimal.RequireFromString("49.95")), first.TotalAmount.String())

	second := stats.Items[1]
	assert.Equal(t, plate, second.ProductID)
	assert.Equal(t, int64(1), second.OrderCount)

	assert.True(t, stats.TotalAmount.Equal(decimal.RequireFromString("52.45")), stats.TotalAmount.String())
	assert.Equal(t, 0, stats.From.Hour())
	assert.Equal(t, 23, stats.To.Hour())
}

func TestUserProductStatsEmptyWindow(t *testing.T) {
	f := newFixture()
	userID := f.user(t, "alice")

	day := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	stats, err := f.stats.UserProductStats(context.Background(), userID, day, day)
	require.NoError(t, err)
	assert.NotNil(t, stats.Items)
	assert.Empty(t, stats.Items)
	assert.True(t, stats.TotalAmount.IsZero())
}

func TestProductUserCountCountsDistinctUsers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	productID := f.product(t, f.category(t, "Kitchen"), "Mug", "1.00", 100)

	for i := 0; i < 3; i++ {
		_, err := f.orders.CreateOrder(ctx, orderReq(alice, item(productID, 1)))
		require.NoError(t, err)
	}
	bobOrder, err := f.orders.CreateOrder(ctx, orderReq(bob, item(productID, 1)))
	require.NoError(t, err)
	require.NoError(t, f.orders.CancelOrderByUser(ctx, bobOrder.ID, bob))

	resp, err := f.stats.ProductUserCount(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.UserCount)
	assert.Equal(t, "Mug", resp.ProductName)

	_, err = f.stats.ProductUserCount(ctx, 999)
	requireKind(t, err, KindNotFound, "Product not found")
}

func TestUserOrdersAndPayments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	orderID, userID := placeOne(t, f)

	orders, err := f.stats.UserOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, orderID, orders[0].ID)
	require.NotNil(t, orders[0].Payment)

	payments, err := f.stats.UserPayments(ctx, userID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Amount.Equal(orders[0].TotalAmount))

	none, err := f.stats.UserOrders(ctx, userID+100)
	require.NoError(t, err)
	assert.Empty(t, none)
}
