package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	db
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db{pool: pool}}
}

func (r *OrderRepository) GetSessionForUpdate(ctx context.Context, id string) (domain.Session, error) {
	return r.getSession(ctx, id, "FOR UPDATE")
}

func (r *OrderRepository) UpdateSessionState(ctx context.Context, id string, st domain.SessionState) error {
	return r.updateSessionState(ctx, id, st)
}

func (r *OrderRepository) ListLineItems(ctx context.Context, sessionID string) ([]domain.LineItem, error) {
	return r.listLineItems(ctx, sessionID)
}

func (r *OrderRepository) GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	const query = `
SELECT id, session_id, client_id, payment_terms, notes, total, created_at
FROM orders
WHERE session_id = $1`

	var o domain.Order
	err := r.queryRow(ctx, query, sessionID).
		Scan(&o.ID, &o.SessionID, &o.ClientID, &o.PaymentTerms, &o.Notes, &o.Total, &o.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	const linesQuery = `
SELECT line_item_id, batch_id, product_id, quantity, unit_price
FROM order_lines
WHERE order_id = $1
ORDER BY line_no`

	rows, err := r.query(ctx, linesQuery, o.ID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.LineItemID, &l.BatchID, &l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate order lines: %w", rows.Err())
	}
	return &o, nil
}

// CreateOrder writes the order and its lines and moves the ordered quantities
// into each batch's reserved stock. A second order for the same session
// violates orders.session_id and is reported as already converted.
func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	reservations := order.Reservations()
	for _, res := range reservations {
		if err := r.reserve(ctx, res); err != nil {
			return err
		}
	}

	const stmt = `
INSERT INTO orders (id, session_id, client_id, payment_terms, notes, total, created_at)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)`

	_, err := r.exec(ctx, stmt,
		order.ID,
		order.SessionID,
		order.ClientID,
		order.PaymentTerms,
		order.Notes,
		order.Total.String(),
		order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.InvalidSessionStateError{Status: domain.SessionStatusConverted}
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}

	const lineStmt = `
INSERT INTO order_lines (order_id, line_no, line_item_id, batch_id, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)`

	for i, l := range order.Lines {
		_, err := r.exec(ctx, lineStmt, order.ID, i+1, l.LineItemID, l.BatchID, l.ProductID,
			l.Quantity.String(), l.UnitPrice.String())
		if err != nil {
			return fmt.Errorf("create order line: %w", err)
		}
	}
	return nil
}

// reserve locks the batch row and adds qty to reserved. Callers pass batches
// in id order.
func (r *OrderRepository) reserve(ctx context.Context, res domain.BatchReservation) error {
	const lockQuery = `
SELECT on_hand - reserved - held - quarantined
FROM inventory_batches
WHERE id = $1
FOR UPDATE`

	var avail decimal.Decimal
	if err := r.queryRow(ctx, lockQuery, res.BatchID).Scan(&avail); err != nil {
		if isInvalidUUID(err) || errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrBatchNotFound
		}
		return fmt.Errorf("lock batch: %w", err)
	}
	if avail.LessThan(res.Quantity) {
		return &domain.InsufficientInventoryError{
			BatchID: res.BatchID, Requested: res.Quantity, Available: avail, NetAvailable: avail,
		}
	}

	const stmt = `
UPDATE inventory_batches
SET reserved = reserved + $2::numeric
WHERE id = $1`

	if _, err := r.exec(ctx, stmt, res.BatchID, res.Quantity.String()); err != nil {
		return fmt.Errorf("reserve batch: %w", err)
	}
	return nil
}
