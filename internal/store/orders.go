package store

import (
	"context"
	"database/sql"
	"fmt"

	"commerce-api/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrder persists the order, its items, and the stock decrements in one
// transaction. Each decrement is conditional on remaining stock; if any item
// loses the race the whole transaction rolls back and ErrInsufficientStock is
// returned wrapped with the product id.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertOrder = `
		INSERT INTO orders (
			id, order_number, user_id, status,
			subtotal, shipping_cost, discount, total, notes,
			shipping_name, shipping_street, shipping_city, shipping_state, shipping_country, shipping_zip
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	err = tx.QueryRowxContext(ctx, insertOrder,
		order.ID, order.OrderNumber, order.UserID, order.Status,
		order.Subtotal, order.ShippingCost, order.Discount, order.Total, order.Notes,
		order.Name, order.Street, order.City, order.State, order.Country, order.Zip,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	const insertItem = `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, grind, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		if _, err := tx.ExecContext(ctx, insertItem,
			item.ID, item.OrderID, item.ProductID, item.Quantity,
			item.UnitPrice, item.Grind, item.Subtotal); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
			item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its items. Returns nil when not found.
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := s.getItemsForOrders(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	return &order, nil
}

// GetPendingOrderForUser retrieves an order only when it belongs to the user
// and is still PENDING. Used to scope payment intent creation.
func (s *Store) GetPendingOrderForUser(ctx context.Context, orderID, userID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND user_id = $2 AND status = $3",
		orderID, userID, models.StatusPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns a page of orders newest first, with items attached.
// An empty userID lists all orders (admin view).
func (s *Store) ListOrders(ctx context.Context, userID string, page, limit int) ([]models.Order, int, error) {
	where := ""
	args := []interface{}{}
	if userID != "" {
		where = "WHERE user_id = $1"
		args = append(args, userID)
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		fmt.Sprintf("SELECT COUNT(*) FROM orders %s", where), args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	listArgs := append(args, limit, offset)
	query := fmt.Sprintf(
		"SELECT * FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)

	var orders []models.Order
	if err := s.db.SelectContext(ctx, &orders, query, listArgs...); err != nil {
		return nil, 0, err
	}

	if len(orders) > 0 {
		ids := make([]string, len(orders))
		for i := range orders {
			ids[i] = orders[i].ID
		}
		items, err := s.getItemsForOrders(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range orders {
			orders[i].Items = items[orders[i].ID]
		}
	}

	return orders, total, nil
}

// getItemsForOrders loads items for a set of orders with product names joined.
func (s *Store) getItemsForOrders(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	query, args, err := sqlx.In(`
		SELECT i.id, i.order_id, i.product_id, i.quantity, i.unit_price, i.grind, i.subtotal,
		       p.name AS product_name
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id IN (?)`, orderIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}

	byOrder := make(map[string][]models.OrderItem, len(orderIDs))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder, nil
}

// UpdateOrderStatus overwrites the status of an order unconditionally.
// Returns false when the order does not exist.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status models.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// TransitionOrderStatus moves an order from one status to another only when
// it is still in the expected status. Returns false when no row matched,
// which callers treat as "already moved" rather than an error.
func (s *Store) TransitionOrderStatus(ctx context.Context, orderID string, from, to models.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// MarkOrderPaid confirms a pending order and stamps paid_at. The status guard
// keeps paid_at stable when the same success event is delivered twice.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, paid_at = NOW(), updated_at = NOW() WHERE id = $2 AND status = $3",
		models.StatusConfirmed, orderID, models.StatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// SetPaymentIntent stores the payment intent reference on an order.
func (s *Store) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_intent_id = $1, updated_at = NOW() WHERE id = $2",
		intentID, orderID)
	return err
}

// IsEventProcessed checks whether a webhook event id has been handled before.
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed records a webhook event id so redelivery short-circuits.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
