package service

import (
	"context"
	"time"

	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
)

// StatisticsService aggregates order data per user and per product
type StatisticsService struct {
	repo store.Repository
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo store.Repository) *StatisticsService {
	return &StatisticsService{repo: repo}
}

// UserOrders returns all orders of a user with their payments
func (s *StatisticsService) UserOrders(ctx context.Context, userID int64) ([]OrderResponse, error) {
	return userOrderResponses(ctx, s.repo, userID)
}

// UserPayments returns all payments of a user
func (s *StatisticsService) UserPayments(ctx context.Context, userID int64) ([]PaymentResponse, error) {
	payments, err := s.repo.ListPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		resp = append(resp, toPaymentResponse(&payments[i]))
	}
	return resp, nil
}

// MonthWindow returns the first instant and the last second of a calendar month
func MonthWindow(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	// day 0 of the next month is the last day of this one
	to := time.Date(year, time.Month(month)+1, 0, 23, 59, 59, 0, time.UTC)
	return from, to
}

// DayWindow spans from the start of from's day to 23:59:59 of to's day
func DayWindow(from, to time.Time) (time.Time, time.Time) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)
	return start, end
}

// UserMonthlyStats counts and sums the user's orders placed in one month
func (s *StatisticsService) UserMonthlyStats(ctx context.Context, userID int64, year, month int) (*UserMonthlyOrderStatsResponse, error) {
	ctx, span := util.StartSpan(ctx, "StatisticsService.UserMonthlyStats")
	defer span.End()

	if month < 1 || month > 12 {
		return nil, BadRequest("Month must be between 1 and 12")
	}
	from, to := MonthWindow(year, month)

	count, err := s.repo.CountUserOrdersBetween(ctx, userID, from, to)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	total, err := s.repo.SumUserOrderTotalBetween(ctx, userID, from, to)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	return &UserMonthlyOrderStatsResponse{
		UserID:      userID,
		Year:        year,
		Month:       month,
		OrderCount:  count,
		TotalAmount: total,
	}, nil
}

// UserProductStats groups the user's order items in [from, to] by product
func (s *StatisticsService) UserProductStats(ctx context.Context, userID int64, from, to time.Time) (*UserProductOrderStatsResponse, error) {
	ctx, span := util.StartSpan(ctx, "StatisticsService.UserProductStats")
	defer span.End()

	start, end := DayWindow(from, to)
	resp := &UserProductOrderStatsResponse{
		UserID:      userID,
		From:        start,
		To:          end,
		Items:       []UserProductOrderStatsItem{},
		TotalAmount: decimal.Zero,
	}

	items, err := s.repo.ListUserOrderItemsBetween(ctx, userID, start, end)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	if len(items) == 0 {
		return resp, nil
	}

	type group struct {
		stats  UserProductOrderStatsItem
		orders map[int64]struct{}
	}
	var order []int64
	groups := make(map[int64]*group)
	for _, item := range items {
		g, ok := groups[item.ProductID]
		if !ok {
			g = &group{
				stats:  UserProductOrderStatsItem{ProductID: item.ProductID, TotalAmount: decimal.Zero},
				orders: make(map[int64]struct{}),
			}
			groups[item.ProductID] = g
			order = append(order, item.ProductID)
		}
		g.stats.TotalQuantity += int64(item.Quantity)
		g.stats.TotalAmount = g.stats.TotalAmount.Add(item.TotalPrice)
		g.orders[item.OrderID] = struct{}{}
	}

	products, err := s.repo.GetProductsByIDs(ctx, order)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if g, ok := groups[p.ID]; ok {
			g.stats.ProductName = p.Name
		}
	}

	for _, id := range order {
		g := groups[id]
		g.stats.OrderCount = int64(len(g.orders))
		resp.Items = append(resp.Items, g.stats)
		resp.TotalAmount = resp.TotalAmount.Add(g.stats.TotalAmount)
	}
	return resp, nil
}

// ProductUserCount counts the distinct users who ever ordered a product
func (s *StatisticsService) ProductUserCount(ctx context.Context, productID int64) (*ProductUserCountResponse, error) {
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, storeErr(err, msgProductNotFound, "", "")
	}

	count, err := s.repo.CountDistinctUsersByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return &ProductUserCountResponse{
		ProductID:   product.ID,
		ProductName: product.Name,
		UserCount:   count,
	}, nil
}
