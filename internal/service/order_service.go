package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	msgOrderNotFound      = "Order not found"
	msgEmptyOrder         = "Order must contain at least one item"
	msgBadQuantity        = "Quantity must be > 0"
	msgNotYourOrder       = "You can cancel only your own orders"
	msgOnlyPendingCancel  = "Only PENDING orders can be cancelled"
	msgAdminCannotCancel  = "Admin cannot set status to CANCELLED"
	msgCancelledImmutable = "Cancelled order status cannot be changed"

	msgIdempotencyKeyReused = "Idempotency-Key was used for another user's order"

	idempotencyLockTTL = 30 * time.Second
)

// EventPublisher publishes order domain events after they are committed
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// IdempotencyStore remembers which order an idempotency key produced
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// OrderService handles order placement and the order status lifecycle
type OrderService struct {
	repo           store.Repository
	cache          *ProductCache
	events         EventPublisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

// NewOrderService creates a new order service. cache, events and
// idempotency are optional.
func NewOrderService(
	repo store.Repository,
	cache *ProductCache,
	events EventPublisher,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
) *OrderService {
	return &OrderService{
		repo:           repo,
		cache:          cache,
		events:         events,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		now:            time.Now,
		logger:         util.GetLogger(),
	}
}

// CreateOrder places an order with its payment. A request carrying an
// idempotency key that was already served returns the original order.
func (s *OrderService) CreateOrder(ctx context.Context, req *OrderCreateRequest) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
	}()

	var (
		resp *OrderResponse
		err  error
	)
	if req.IdempotencyKey != "" && s.idempotency != nil {
		resp, err = s.createOrderOnce(ctx, req)
	} else {
		resp, err = s.placeOrder(ctx, req)
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return resp, nil
}

// createOrderOnce scopes the idempotency key to the requesting user, so two
// users sending the same key place independent orders.
func (s *OrderService) createOrderOnce(ctx context.Context, req *OrderCreateRequest) (*OrderResponse, error) {
	key := fmt.Sprintf("%d:%s", req.UserID, req.IdempotencyKey)

	if resp, ok, err := s.replay(ctx, key, req.UserID); err != nil || ok {
		return resp, err
	}

	lockKey := fmt.Sprintf("order:%s", key)
	token, acquired, err := s.idempotency.AcquireLock(ctx, lockKey, idempotencyLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire idempotency lock: %w", err)
	}
	if !acquired {
		return nil, BadRequest("Order with this Idempotency-Key is already being processed")
	}
	defer func() {
		if err := s.idempotency.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Warn("Failed to release idempotency lock", zap.String("idempotency_key", key), zap.Error(err))
		}
	}()

	// the previous holder may have finished while we waited for the lock
	if resp, ok, err := s.replay(ctx, key, req.UserID); err != nil || ok {
		return resp, err
	}

	resp, err := s.placeOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.idempotency.SetIdempotencyKey(ctx, key, strconv.FormatInt(resp.ID, 10), s.idempotencyTTL); err != nil {
		s.logger.Warn("Failed to store idempotency key",
			zap.String("idempotency_key", key),
			zap.Int64("order_id", resp.ID),
			zap.Error(err))
	}
	return resp, nil
}

func (s *OrderService) replay(ctx context.Context, key string, userID int64) (*OrderResponse, bool, error) {
	value, found, err := s.idempotency.GetIdempotencyKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	orderID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt idempotency record %q: %w", value, err)
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", orderID))
	resp, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if resp.UserID != userID {
		return nil, false, BadRequest(msgIdempotencyKeyReused)
	}
	return resp, true, nil
}

// placeOrder runs the whole placement in one transaction: any failure
// leaves stock, orders and payments untouched.
func (s *OrderService) placeOrder(ctx context.Context, req *OrderCreateRequest) (*OrderResponse, error) {
	var (
		order   *models.Order
		payment *models.Payment
		names   = make(map[int64]string, len(req.Items))
	)

	err := s.repo.WithTx(ctx, func(repo store.Repository) error {
		if _, err := repo.GetUserByID(ctx, req.UserID); err != nil {
			return storeErr(err, msgUserNotFound, "", "")
		}
		if len(req.Items) == 0 {
			return BadRequest(msgEmptyOrder)
		}
		if req.PaymentMethod != models.PaymentMethodCash && req.PaymentMethod != models.PaymentMethodCard {
			return BadRequest("Unsupported payment method: %s", req.PaymentMethod)
		}

		now := s.now().UTC()
		o := &models.Order{
			UserID:    req.UserID,
			OrderDate: now,
			Status:    models.OrderStatusPending,
			Items:     make([]models.OrderItem, 0, len(req.Items)),
		}
		total := decimal.Zero

		for _, item := range req.Items {
			product, err := repo.GetProductByID(ctx, item.ProductID)
			if err != nil {
				return storeErr(err, fmt.Sprintf("Product not found: %d", item.ProductID), "", "")
			}
			if item.Quantity <= 0 {
				return BadRequest(msgBadQuantity)
			}
			if product.StockCount < item.Quantity {
				return BadRequest("Not enough stock for product %s", product.Name)
			}

			ok, err := repo.DecrementStock(ctx, product.ID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return BadRequest("Not enough stock for product %s", product.Name)
			}

			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			o.Items = append(o.Items, models.OrderItem{
				ProductID:  product.ID,
				Quantity:   item.Quantity,
				UnitPrice:  product.Price,
				TotalPrice: lineTotal,
			})
			total = total.Add(lineTotal)
			names[product.ID] = product.Name
		}
		o.TotalAmount = total

		if err := repo.CreateOrder(ctx, o); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		p := &models.Payment{
			OrderID:       o.ID,
			UserID:        o.UserID,
			PaymentMethod: req.PaymentMethod,
			Amount:        total,
			PaymentDate:   now,
			Status:        models.PaymentStatusPaid,
		}
		if err := repo.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		order, payment = o, p
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	util.PaymentsRecordedTotal.WithLabelValues(string(payment.PaymentMethod)).Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)))

	productIDs := make([]int64, 0, len(names))
	for id := range names {
		productIDs = append(productIDs, id)
	}
	s.cache.invalidate(ctx, productIDs...)

	s.publishPlaced(ctx, order, payment)

	resp := toOrderResponse(order, names, payment)
	return &resp, nil
}

func failureReason(err error) string {
	switch {
	case IsKind(err, KindNotFound):
		return "not_found"
	case IsKind(err, KindBadRequest):
		return "rejected"
	}
	return "error"
}

// GetOrder returns an order with its payment, if any
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*OrderResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, msgOrderNotFound, "", "")
	}

	payment, err := s.repo.GetPaymentByOrderID(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	names, err := productNames(ctx, s.repo, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	resp := toOrderResponse(order, names, payment)
	return &resp, nil
}

// GetUserOrders returns all orders of a user
func (s *OrderService) GetUserOrders(ctx context.Context, userID int64) ([]OrderResponse, error) {
	return userOrderResponses(ctx, s.repo, userID)
}

// CancelOrderByUser cancels a PENDING order owned by userID. Stock is not
// restored.
func (s *OrderService) CancelOrderByUser(ctx context.Context, orderID, userID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrderByUser")
	defer span.End()

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return storeErr(err, msgOrderNotFound, "", "")
	}
	if order.UserID != userID {
		return BadRequest(msgNotYourOrder)
	}
	if order.Status != models.OrderStatusPending {
		return BadRequest(msgOnlyPendingCancel)
	}

	ok, err := s.repo.UpdateOrderStatus(ctx, orderID, models.OrderStatusPending, models.OrderStatusCancelled)
	if err != nil {
		util.RecordError(span, err)
		return err
	}
	if !ok {
		return BadRequest(msgOnlyPendingCancel)
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled", zap.Int64("order_id", orderID), zap.Int64("user_id", userID))

	s.publish(ctx, models.EventTypeOrderCancelled, func(ctx context.Context) error {
		return s.events.PublishOrderCancelled(ctx, &models.OrderCancelledEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderCancelled),
			OrderID:   orderID,
			UserID:    order.UserID,
		})
	})
	return nil
}

// ChangeStatusByAdmin moves an order to newStatus. Admins may not cancel
// and cancelled orders are final.
func (s *OrderService) ChangeStatusByAdmin(ctx context.Context, orderID int64, newStatus models.OrderStatus) error {
	ctx, span := util.StartSpan(ctx, "OrderService.ChangeStatusByAdmin")
	defer span.End()

	if newStatus == models.OrderStatusCancelled {
		return BadRequest(msgAdminCannotCancel)
	}
	if !newStatus.Valid() {
		return BadRequest("Unknown order status: %s", newStatus)
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return storeErr(err, msgOrderNotFound, "", "")
	}
	if order.Status == models.OrderStatusCancelled {
		return BadRequest(msgCancelledImmutable)
	}

	ok, err := s.repo.UpdateOrderStatus(ctx, orderID, order.Status, newStatus)
	if err != nil {
		util.RecordError(span, err)
		return err
	}
	if !ok {
		return BadRequest("Order status changed concurrently, retry the request")
	}

	util.OrderStatusChangesTotal.WithLabelValues(string(newStatus)).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(newStatus)))

	s.publish(ctx, models.EventTypeOrderStatusChanged, func(ctx context.Context) error {
		return s.events.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
			BaseEvent:  models.NewBaseEvent(models.EventTypeOrderStatusChanged),
			OrderID:    orderID,
			UserID:     order.UserID,
			FromStatus: order.Status,
			ToStatus:   newStatus,
		})
	})
	return nil
}

// ListOrderEvents returns the audit trail recorded for an order
func (s *OrderService) ListOrderEvents(ctx context.Context, orderID int64) ([]OrderEventResponse, error) {
	if _, err := s.repo.GetOrderByID(ctx, orderID); err != nil {
		return nil, storeErr(err, msgOrderNotFound, "", "")
	}

	events, err := s.repo.ListOrderEvents(ctx, orderID)
	if err != nil {
		return nil, err
	}
	resp := make([]OrderEventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, toOrderEventResponse(&events[i]))
	}
	return resp, nil
}

func (s *OrderService) publishPlaced(ctx context.Context, order *models.Order, payment *models.Payment) {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	s.publish(ctx, models.EventTypeOrderPlaced, func(ctx context.Context) error {
		return s.events.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{
			BaseEvent:   models.NewBaseEvent(models.EventTypeOrderPlaced),
			OrderID:     order.ID,
			UserID:      order.UserID,
			Status:      order.Status,
			TotalAmount: order.TotalAmount,
			Items:       items,
		})
	})
	s.publish(ctx, models.EventTypePaymentRecorded, func(ctx context.Context) error {
		return s.events.PublishPaymentRecorded(ctx, &models.PaymentRecordedEvent{
			BaseEvent:     models.NewBaseEvent(models.EventTypePaymentRecorded),
			OrderID:       order.ID,
			UserID:        order.UserID,
			PaymentID:     payment.ID,
			PaymentMethod: payment.PaymentMethod,
			Amount:        payment.Amount,
			Status:        payment.Status,
		})
	})
}

// publish sends an event after the change is committed. Failures are
// logged only; the request already succeeded.
func (s *OrderService) publish(ctx context.Context, eventType string, send func(context.Context) error) {
	if s.events == nil {
		return
	}
	if err := send(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("Failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
