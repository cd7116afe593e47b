package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Repository. Transactions are serialized and
// applied by swapping in a modified copy of the data on success.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memData
	tx   bool
}

type memData struct {
	seq        int64
	users      map[int64]models.User
	categories map[int64]models.Category
	products   map[int64]models.Product
	orders     map[int64]models.Order
	payments   map[int64]models.Payment
	events     map[int64]models.OrderEvent
	eventIDs   map[string]bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		data: &memData{
			users:      make(map[int64]models.User),
			categories: make(map[int64]models.Category),
			products:   make(map[int64]models.Product),
			orders:     make(map[int64]models.Order),
			payments:   make(map[int64]models.Payment),
			events:     make(map[int64]models.OrderEvent),
			eventIDs:   make(map[string]bool),
		},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		seq:        d.seq,
		users:      make(map[int64]models.User, len(d.users)),
		categories: make(map[int64]models.Category, len(d.categories)),
		products:   make(map[int64]models.Product, len(d.products)),
		orders:     make(map[int64]models.Order, len(d.orders)),
		payments:   make(map[int64]models.Payment, len(d.payments)),
		events:     make(map[int64]models.OrderEvent, len(d.events)),
		eventIDs:   make(map[string]bool, len(d.eventIDs)),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.orders {
		v.Items = append([]models.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.eventIDs {
		c.eventIDs[k] = v
	}
	return c
}

func (d *memData) nextID() int64 {
	d.seq++
	return d.seq
}

func (m *MemoryStore) lock() func() {
	if m.tx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func now() time.Time {
	return time.Now().UTC()
}

func sortedKeys[T any](rows map[int64]T) []int64 {
	keys := make([]int64, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// WithTx runs fn against a private copy and publishes it when fn succeeds
func (m *MemoryStore) WithTx(ctx context.Context, fn func(repo Repository) error) error {
	if m.tx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	view := &MemoryStore{mu: m.mu, data: m.data.clone(), tx: true}
	if err := fn(view); err != nil {
		return err
	}
	m.data = view.data
	return nil
}

// CreateUser inserts a new user
func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	defer m.lock()()

	for _, u := range m.data.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("failed to insert user: %w", ErrConflict)
		}
	}
	user.ID = m.data.nextID()
	user.CreatedAt = now()
	m.data.users[user.ID] = *user
	return nil
}

// GetUserByID retrieves a user by ID
func (m *MemoryStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	defer m.lock()()

	user, ok := m.data.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	defer m.lock()()

	for _, u := range m.data.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

// ListUsers retrieves all users
func (m *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	defer m.lock()()

	users := make([]models.User, 0, len(m.data.users))
	for _, id := range sortedKeys(m.data.users) {
		users = append(users, m.data.users[id])
	}
	return users, nil
}

// UpdateUser overwrites the mutable user fields
func (m *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	defer m.lock()()

	existing, ok := m.data.users[user.ID]
	if !ok {
		return fmt.Errorf("failed to update user %d: %w", user.ID, ErrNotFound)
	}
	for _, u := range m.data.users {
		if u.ID != user.ID && u.Email == user.Email {
			return fmt.Errorf("failed to update user %d: %w", user.ID, ErrConflict)
		}
	}
	existing.FullName = user.FullName
	existing.Email = user.Email
	existing.Address = user.Address
	existing.Role = user.Role
	m.data.users[user.ID] = existing
	return nil
}

// DeleteUser removes a user
func (m *MemoryStore) DeleteUser(ctx context.Context, id int64) error {
	defer m.lock()()

	if _, ok := m.data.users[id]; !ok {
		return fmt.Errorf("failed to delete user %d: %w", id, ErrNotFound)
	}
	for _, o := range m.data.orders {
		if o.UserID == id {
			return fmt.Errorf("failed to delete user %d: %w", id, ErrReferenced)
		}
	}
	delete(m.data.users, id)
	return nil
}

// CreateCategory inserts a new category
func (m *MemoryStore) CreateCategory(ctx context.Context, category *models.Category) error {
	defer m.lock()()

	category.ID = m.data.nextID()
	category.CreatedAt = now()
	m.data.categories[category.ID] = *category
	return nil
}

// GetCategoryByID retrieves a category by ID
func (m *MemoryStore) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	defer m.lock()()

	category, ok := m.data.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	return &category, nil
}

// ListCategories retrieves all categories
func (m *MemoryStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	defer m.lock()()

	categories := make([]models.Category, 0, len(m.data.categories))
	for _, id := range sortedKeys(m.data.categories) {
		categories = append(categories, m.data.categories[id])
	}
	return categories, nil
}

// UpdateCategory overwrites the mutable category fields
func (m *MemoryStore) UpdateCategory(ctx context.Context, category *models.Category) error {
	defer m.lock()()

	existing, ok := m.data.categories[category.ID]
	if !ok {
		return fmt.Errorf("failed to update category %d: %w", category.ID, ErrNotFound)
	}
	existing.Name = category.Name
	existing.Description = category.Description
	m.data.categories[category.ID] = existing
	return nil
}

// DeleteCategory removes a category
func (m *MemoryStore) DeleteCategory(ctx context.Context, id int64) error {
	defer m.lock()()

	if _, ok := m.data.categories[id]; !ok {
		return fmt.Errorf("failed to delete category %d: %w", id, ErrNotFound)
	}
	for _, p := range m.data.products {
		if p.CategoryID == id {
			return fmt.Errorf("failed to delete category %d: %w", id, ErrReferenced)
		}
	}
	delete(m.data.categories, id)
	return nil
}

// CreateProduct inserts a new product
func (m *MemoryStore) CreateProduct(ctx context.Context, product *models.Product) error {
	defer m.lock()()

	if _, ok := m.data.categories[product.CategoryID]; !ok {
		return fmt.Errorf("failed to insert product: %w", ErrReferenced)
	}
	product.ID = m.data.nextID()
	product.CreatedAt = now()
	m.data.products[product.ID] = *product
	return nil
}

// GetProductByID retrieves a product by ID
func (m *MemoryStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	defer m.lock()()

	product, ok := m.data.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return &product, nil
}

// GetProductsByIDs retrieves the products that exist among ids
func (m *MemoryStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	defer m.lock()()

	seen := make(map[int64]bool, len(ids))
	products := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := m.data.products[id]; ok {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// ListProducts retrieves all products
func (m *MemoryStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	defer m.lock()()

	products := make([]models.Product, 0, len(m.data.products))
	for _, id := range sortedKeys(m.data.products) {
		products = append(products, m.data.products[id])
	}
	return products, nil
}

// ListProductIDsByCategory retrieves the IDs of every product in a category
func (m *MemoryStore) ListProductIDsByCategory(ctx context.Context, categoryID int64) ([]int64, error) {
	defer m.lock()()

	var ids []int64
	for _, id := range sortedKeys(m.data.products) {
		if m.data.products[id].CategoryID == categoryID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// UpdateProduct overwrites the mutable product fields
func (m *MemoryStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	defer m.lock()()

	existing, ok := m.data.products[product.ID]
	if !ok {
		return fmt.Errorf("failed to update product %d: %w", product.ID, ErrNotFound)
	}
	if _, ok := m.data.categories[product.CategoryID]; !ok {
		return fmt.Errorf("failed to update product %d: %w", product.ID, ErrReferenced)
	}
	existing.Name = product.Name
	existing.Description = product.Description
	existing.Price = product.Price
	existing.StockCount = product.StockCount
	existing.CategoryID = product.CategoryID
	m.data.products[product.ID] = existing
	return nil
}

// DeleteProduct removes a product
func (m *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	defer m.lock()()

	if _, ok := m.data.products[id]; !ok {
		return fmt.Errorf("failed to delete product %d: %w", id, ErrNotFound)
	}
	for _, o := range m.data.orders {
		for _, item := range o.Items {
			if item.ProductID == id {
				return fmt.Errorf("failed to delete product %d: %w", id, ErrReferenced)
			}
		}
	}
	delete(m.data.products, id)
	return nil
}

// DecrementStock deducts stock with a guard against going negative
func (m *MemoryStore) DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	defer m.lock()()

	product, ok := m.data.products[productID]
	if !ok || product.StockCount < quantity {
		return false, nil
	}
	product.StockCount -= quantity
	m.data.products[productID] = product
	return true, nil
}

// CreateOrder creates a new order and its items
func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	defer m.lock()()

	if _, ok := m.data.users[order.UserID]; !ok {
		return fmt.Errorf("failed to insert order: %w", ErrReferenced)
	}
	order.ID = m.data.nextID()
	order.CreatedAt = now()
	for i := range order.Items {
		item := &order.Items[i]
		item.ID = m.data.nextID()
		item.OrderID = order.ID
		item.CreatedAt = order.CreatedAt
	}

	stored := *order
	stored.Items = append([]models.OrderItem(nil), order.Items...)
	m.data.orders[order.ID] = stored
	return nil
}

func copyOrder(o models.Order) *models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return &o
}

// GetOrderByID retrieves an order with its items
func (m *MemoryStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	defer m.lock()()

	order, ok := m.data.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return copyOrder(order), nil
}

// ListOrdersByUser retrieves every order of a user with their items
func (m *MemoryStore) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	defer m.lock()()

	var orders []models.Order
	for _, id := range sortedKeys(m.data.orders) {
		if o := m.data.orders[id]; o.UserID == userID {
			orders = append(orders, *copyOrder(o))
		}
	}
	return orders, nil
}

// UpdateOrderStatus updates order status if it still has the expected value
func (m *MemoryStore) UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	defer m.lock()()

	order, ok := m.data.orders[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	m.data.orders[orderID] = order
	return true, nil
}

func (m *MemoryStore) userOrdersBetween(userID int64, from, to time.Time) []models.Order {
	var orders []models.Order
	for _, id := range sortedKeys(m.data.orders) {
		o := m.data.orders[id]
		if o.UserID == userID && !o.OrderDate.Before(from) && !o.OrderDate.After(to) {
			orders = append(orders, o)
		}
	}
	return orders
}

// CountUserOrdersBetween counts the user's orders placed within [from, to]
func (m *MemoryStore) CountUserOrdersBetween(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	defer m.lock()()

	return int64(len(m.userOrdersBetween(userID, from, to))), nil
}

// SumUserOrderTotalBetween sums the totals of the user's orders within [from, to]
func (m *MemoryStore) SumUserOrderTotalBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error) {
	defer m.lock()()

	total := decimal.Zero
	for _, o := range m.userOrdersBetween(userID, from, to) {
		total = total.Add(o.TotalAmount)
	}
	return total, nil
}

// ListUserOrderItemsBetween retrieves the items of the user's orders within [from, to]
func (m *MemoryStore) ListUserOrderItemsBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.OrderItem, error) {
	defer m.lock()()

	orders := m.userOrdersBetween(userID, from, to)
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].OrderDate.Before(orders[j].OrderDate) })

	var items []models.OrderItem
	for _, o := range orders {
		items = append(items, o.Items...)
	}
	return items, nil
}

// CountDistinctUsersByProduct counts the users who ever ordered the product
func (m *MemoryStore) CountDistinctUsersByProduct(ctx context.Context, productID int64) (int64, error) {
	defer m.lock()()

	users := make(map[int64]bool)
	for _, o := range m.data.orders {
		for _, item := range o.Items {
			if item.ProductID == productID {
				users[o.UserID] = true
				break
			}
		}
	}
	return int64(len(users)), nil
}

// CreatePayment creates a new payment record
func (m *MemoryStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	defer m.lock()()

	if _, ok := m.data.orders[payment.OrderID]; !ok {
		return fmt.Errorf("failed to insert payment: %w", ErrReferenced)
	}
	payment.ID = m.data.nextID()
	payment.CreatedAt = now()
	m.data.payments[payment.ID] = *payment
	return nil
}

// GetPaymentByOrderID retrieves payment for an order
func (m *MemoryStore) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	defer m.lock()()

	ids := sortedKeys(m.data.payments)
	for i := len(ids) - 1; i >= 0; i-- {
		if p := m.data.payments[ids[i]]; p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("payment for order %d: %w", orderID, ErrNotFound)
}

// ListPaymentsByUser retrieves every payment made by a user
func (m *MemoryStore) ListPaymentsByUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	defer m.lock()()

	var payments []models.Payment
	for _, id := range sortedKeys(m.data.payments) {
		if p := m.data.payments[id]; p.UserID == userID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

// RecordOrderEvent appends an event to the audit log, ignoring duplicates
func (m *MemoryStore) RecordOrderEvent(ctx context.Context, event *models.OrderEvent) (bool, error) {
	defer m.lock()()

	if m.data.eventIDs[event.EventID] {
		return false, nil
	}
	event.ID = m.data.nextID()
	event.RecordedAt = now()
	m.data.events[event.ID] = *event
	m.data.eventIDs[event.EventID] = true
	return true, nil
}

// ListOrderEvents retrieves the recorded events of an order
func (m *MemoryStore) ListOrderEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error) {
	defer m.lock()()

	var events []models.OrderEvent
	for _, id := range sortedKeys(m.data.events) {
		if e := m.data.events[id]; e.OrderID == orderID {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })
	return events, nil
}
