package service

import (
	"context"

	"shop-service/internal/models"
	"shop-service/internal/store"
)

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		Address:   u.Address,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func toCategoryResponse(c *models.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
}

func toProductResponse(p *models.Product, categoryName string) ProductResponse {
	return ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		StockCount:   p.StockCount,
		CategoryID:   p.CategoryID,
		CategoryName: categoryName,
		CreatedAt:    p.CreatedAt,
	}
}

func toPaymentResponse(p *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		Amount:        p.Amount,
		PaymentMethod: p.PaymentMethod,
		Status:        p.Status,
		PaymentDate:   p.PaymentDate,
	}
}

func toOrderResponse(o *models.Order, productNames map[int64]string, payment *models.Payment) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: productNames[item.ProductID],
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
		})
	}

	resp := OrderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		OrderDate:   o.OrderDate,
		TotalAmount: o.TotalAmount,
		Items:       items,
	}
	if payment != nil {
		pr := toPaymentResponse(payment)
		resp.Payment = &pr
	}
	return resp
}

func toOrderEventResponse(e *models.OrderEvent) OrderEventResponse {
	return OrderEventResponse{
		EventID:    e.EventID,
		EventType:  e.EventType,
		OrderID:    e.OrderID,
		UserID:     e.UserID,
		Status:     e.Status,
		Payload:    e.Payload,
		OccurredAt: e.OccurredAt,
		RecordedAt: e.RecordedAt,
	}
}

// productNames resolves the names of every product referenced by orders
func productNames(ctx context.Context, repo store.Repository, orders []models.Order) (map[int64]string, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, o := range orders {
		for _, item := range o.Items {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				ids = append(ids, item.ProductID)
			}
		}
	}

	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	products, err := repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}

// userOrderResponses assembles every order of a user with its payment
func userOrderResponses(ctx context.Context, repo store.Repository, userID int64) ([]OrderResponse, error) {
	orders, err := repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	payments, err := repo.ListPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	names, err := productNames(ctx, repo, orders)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[int64]*models.Payment, len(payments))
	for i := range payments {
		byOrder[payments[i].OrderID] = &payments[i]
	}

	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i], names, byOrder[orders[i].ID]))
	}
	return resp, nil
}
