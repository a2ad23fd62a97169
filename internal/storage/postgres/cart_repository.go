package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const batchSelect = `
SELECT b.id, b.code, b.product_id, p.name, p.category,
       b.unit_cost, b.on_hand, b.reserved, b.held, b.quarantined
FROM inventory_batches b
JOIN products p ON p.id = b.product_id`

const lineItemSelect = `
SELECT i.id, i.session_id, i.batch_id, b.code, b.product_id, p.name,
       i.quantity, i.unit_price, i.price_source, i.item_status, i.highlighted,
       i.added_by, i.created_at, i.updated_at
FROM session_cart_items i
JOIN inventory_batches b ON b.id = i.batch_id
JOIN products p ON p.id = b.product_id`

// CartRepository persists cart lines. Cart writes lock the session row
// FOR SHARE and then the batch row FOR UPDATE, in that order.
type CartRepository struct {
	db
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{db: db{pool: pool}}
}

func (r *CartRepository) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return r.getSession(ctx, id, "")
}

func (r *CartRepository) GetSessionForShare(ctx context.Context, id string) (domain.Session, error) {
	return r.getSession(ctx, id, "FOR SHARE")
}

func (r *CartRepository) GetBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	return r.getBatch(ctx, batchID, "")
}

func (r *CartRepository) GetBatchForUpdate(ctx context.Context, batchID string) (domain.Batch, error) {
	return r.getBatch(ctx, batchID, "FOR UPDATE OF b")
}

func (r *CartRepository) getBatch(ctx context.Context, batchID, lock string) (domain.Batch, error) {
	query := batchSelect + ` WHERE b.id = $1 ` + lock
	b, err := scanBatch(r.queryRow(ctx, query, batchID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Batch{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Batch{}, domain.ErrBatchNotFound
		}
		return domain.Batch{}, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (r *CartRepository) SumSoftHolds(ctx context.Context, batchID, excludeSessionID string) (decimal.Decimal, error) {
	const query = `
SELECT COALESCE(SUM(i.quantity), 0)
FROM session_cart_items i
JOIN live_sessions s ON s.id = i.session_id
WHERE i.batch_id = $1
  AND s.status IN ` + openStatuses + `
  AND i.session_id::text <> $2`

	var total decimal.Decimal
	if err := r.queryRow(ctx, query, batchID, excludeSessionID).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return decimal.Zero, domain.ErrInvalidID
		}
		return decimal.Zero, fmt.Errorf("sum soft holds: %w", err)
	}
	return total, nil
}

func (r *CartRepository) SearchBatches(ctx context.Context, query string, limit int) ([]domain.Batch, error) {
	const stmt = batchSelect + `
WHERE $1 = '' OR b.code ILIKE '%' || $1 || '%' OR p.name ILIKE '%' || $1 || '%'
ORDER BY b.code
LIMIT $2`

	rows, err := r.query(ctx, stmt, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search batches: %w", err)
	}
	defer rows.Close()

	var batches []domain.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate batches: %w", rows.Err())
	}
	return batches, nil
}

func (r *CartRepository) FindLineItemByBatch(ctx context.Context, sessionID, batchID string) (*domain.LineItem, error) {
	const query = lineItemSelect + ` WHERE i.session_id = $1 AND i.batch_id = $2`

	item, err := scanLineItem(r.queryRow(ctx, query, sessionID, batchID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find line item: %w", err)
	}
	return &item, nil
}

func (r *CartRepository) GetLineItem(ctx context.Context, sessionID, itemID string) (domain.LineItem, error) {
	const query = lineItemSelect + ` WHERE i.session_id = $1 AND i.id::text = $2`

	item, err := scanLineItem(r.queryRow(ctx, query, sessionID, itemID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.LineItem{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LineItem{}, domain.ErrItemNotFound
		}
		return domain.LineItem{}, fmt.Errorf("get line item: %w", err)
	}
	return item, nil
}

func (r *CartRepository) SaveLineItem(ctx context.Context, item domain.LineItem) error {
	const stmt = `
INSERT INTO session_cart_items (
	id, session_id, batch_id, quantity, unit_price, price_source,
	item_status, highlighted, added_by, created_at, updated_at
)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11)
ON CONFLICT (session_id, batch_id) DO UPDATE SET
	quantity = EXCLUDED.quantity,
	unit_price = EXCLUDED.unit_price,
	price_source = EXCLUDED.price_source,
	item_status = EXCLUDED.item_status,
	highlighted = EXCLUDED.highlighted,
	updated_at = EXCLUDED.updated_at`

	_, err := r.exec(ctx, stmt,
		item.ID,
		item.SessionID,
		item.BatchID,
		item.Quantity.String(),
		item.UnitPrice.String(),
		string(item.PriceSource),
		string(item.ItemStatus),
		item.Highlighted,
		string(item.AddedBy),
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrBatchNotFound
		}
		return fmt.Errorf("save line item: %w", err)
	}
	return nil
}

func (r *CartRepository) DeleteLineItem(ctx context.Context, sessionID, itemID string) error {
	const stmt = `DELETE FROM session_cart_items WHERE session_id = $1 AND id::text = $2`

	tag, err := r.exec(ctx, stmt, sessionID, itemID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete line item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *CartRepository) ListLineItems(ctx context.Context, sessionID string) ([]domain.LineItem, error) {
	return r.listLineItems(ctx, sessionID)
}

func (r *CartRepository) SetHighlight(ctx context.Context, sessionID, itemID string, now time.Time) error {
	const stmt = `
UPDATE session_cart_items
SET highlighted = (id::text = $2), updated_at = $3
WHERE session_id = $1 AND highlighted <> (id::text = $2)`

	if _, err := r.exec(ctx, stmt, sessionID, itemID, now); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("set highlight: %w", err)
	}
	return nil
}

// listLineItems returns a session's lines in insertion order.
func (d db) listLineItems(ctx context.Context, sessionID string) ([]domain.LineItem, error) {
	const query = lineItemSelect + ` WHERE i.session_id = $1 ORDER BY i.created_at, i.id`

	rows, err := d.query(ctx, query, sessionID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0)
	for rows.Next() {
		item, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("iterate line items: %w", err)
	}
	return items, nil
}

func scanBatch(row pgx.Row) (domain.Batch, error) {
	var b domain.Batch
	err := row.Scan(
		&b.ID, &b.Code, &b.ProductID, &b.ProductName, &b.Category,
		&b.UnitCost, &b.OnHand, &b.Reserved, &b.Held, &b.Quarantined,
	)
	return b, err
}

func scanLineItem(row pgx.Row) (domain.LineItem, error) {
	var item domain.LineItem
	var priceSource, itemStatus, addedBy string
	err := row.Scan(
		&item.ID, &item.SessionID, &item.BatchID, &item.BatchCode, &item.ProductID, &item.ProductName,
		&item.Quantity, &item.UnitPrice, &priceSource, &itemStatus, &item.Highlighted,
		&addedBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return domain.LineItem{}, err
	}
	item.PriceSource = domain.PriceSource(priceSource)
	item.ItemStatus = domain.ItemStatus(itemStatus)
	item.AddedBy = domain.Role(addedBy)
	return item, nil
}
