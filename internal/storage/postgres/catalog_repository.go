package postgres

import (
	"context"
	"fmt"

	"github.com/cimillas/live-commerce/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CatalogRepository struct {
	db
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: db{pool: pool}}
}

func (r *CatalogRepository) CreateClient(ctx context.Context, c domain.Client) error {
	const stmt = `
INSERT INTO clients (id, name, credit_limit, current_exposure)
VALUES ($1, $2, $3::numeric, $4::numeric)`
	_, err := r.exec(ctx, stmt, c.ID, c.Name, c.CreditLimit.String(), c.CurrentExposure.String())
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListClients(ctx context.Context) ([]domain.Client, error) {
	const query = `
SELECT id, name, credit_limit, current_exposure
FROM clients
ORDER BY name ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]domain.Client, 0)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.CreditLimit, &c.CurrentExposure); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate clients: %w", rows.Err())
	}
	return clients, nil
}

func (r *CatalogRepository) CreateBatch(ctx context.Context, b domain.Batch) error {
	return r.WithTx(ctx, func(txCtx context.Context) error {
		const productStmt = `INSERT INTO products (id, name, category) VALUES ($1, $2, $3)`
		if _, err := r.exec(txCtx, productStmt, b.ProductID, b.ProductName, b.Category); err != nil {
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			return fmt.Errorf("create product: %w", err)
		}

		const batchStmt = `
INSERT INTO inventory_batches (id, product_id, code, unit_cost, on_hand, reserved, held, quarantined)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric)`
		_, err := r.exec(txCtx, batchStmt, b.ID, b.ProductID, b.Code,
			b.UnitCost.String(), b.OnHand.String(), b.Reserved.String(), b.Held.String(), b.Quarantined.String())
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrBatchCodeTaken
			}
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			return fmt.Errorf("create batch: %w", err)
		}
		return nil
	})
}

func (r *CatalogRepository) SetMargin(ctx context.Context, m domain.CategoryMargin) error {
	const stmt = `
INSERT INTO client_category_margins (client_id, category, margin_percent)
VALUES ($1, $2, $3::numeric)
ON CONFLICT (client_id, category) DO UPDATE SET margin_percent = EXCLUDED.margin_percent`
	_, err := r.exec(ctx, stmt, m.ClientID, m.Category, m.Percent.String())
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrClientNotFound
		}
		return fmt.Errorf("set margin: %w", err)
	}
	return nil
}
