package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/srgjo27/roomshare/internal/core/domain"
)

// OrderRepository reads the tables the order system writes.
type OrderRepository struct {
	q querier
}

const orderColumns = `
	SELECT o.id, o.event_id, o.code, o.status,
		COALESCE(array_agg(p.item_id ORDER BY p.id) FILTER (WHERE p.item_id IS NOT NULL AND NOT p.canceled), '{}')
	FROM orders o
	LEFT JOIN order_positions p ON p.order_id = o.id
	`

func (r *OrderRepository) GetByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	return scanOrder(r.q.QueryRowContext(ctx, orderColumns+`WHERE o.id = $1 GROUP BY o.id`, orderID))
}

func (r *OrderRepository) ListByStatus(ctx context.Context, eventID int64, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, orderColumns+`
	WHERE o.event_id = $1 AND o.status = $2
	GROUP BY o.id
	ORDER BY o.id
	`, eventID, status)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	return orders, rows.Err()
}

func (r *OrderRepository) CartPositions(ctx context.Context, eventID int64, cartID string) ([]domain.CartPosition, error) {
	query := `
	SELECT id, event_id, cart_id, item_id, expires
	FROM cart_positions
	WHERE event_id = $1 AND cart_id = $2
	ORDER BY id
	`

	rows, err := r.q.QueryContext(ctx, query, eventID, cartID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var positions []domain.CartPosition
	for rows.Next() {
		var p domain.CartPosition
		if err := rows.Scan(&p.ID, &p.EventID, &p.CartID, &p.ItemID, &p.Expires); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

func scanOrder(row scanner) (*domain.Order, error) {
	var order domain.Order
	var items pq.Int64Array

	err := row.Scan(&order.ID, &order.EventID, &order.Code, &order.Status, &items)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	order.ItemIDs = []int64(items)
	return &order, nil
}
