package store

import (
	"context"
	"fmt"

	"shop-service/internal/models"
)

// RecordOrderEvent appends an event to the audit log, ignoring duplicates
func (s *Store) RecordOrderEvent(ctx context.Context, event *models.OrderEvent) (bool, error) {
	query := `
		INSERT INTO order_events (event_id, event_type, order_id, user_id, status, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
		ON CONFLICT (event_id) DO NOTHING`

	res, err := s.q.ExecContext(ctx, query,
		event.EventID, event.EventType, event.OrderID, event.UserID, event.Status,
		string(event.Payload), event.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("failed to record order event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListOrderEvents retrieves the recorded events of an order
func (s *Store) ListOrderEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error) {
	var events []models.OrderEvent
	err := s.selectAll(ctx, &events,
		"SELECT * FROM order_events WHERE order_id = $1 ORDER BY occurred_at, id", orderID)
	return events, err
}
