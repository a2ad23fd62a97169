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

type PricingRepository struct {
	db
}

func NewPricingRepository(pool *pgxpool.Pool) *PricingRepository {
	return &PricingRepository{db: db{pool: pool}}
}

func (r *PricingRepository) GetOverride(ctx context.Context, sessionID, productID string) (*domain.PriceOverride, error) {
	const query = `
SELECT session_id, product_id, price, created_at, updated_at
FROM session_price_overrides
WHERE session_id = $1 AND product_id = $2`

	var o domain.PriceOverride
	err := r.queryRow(ctx, query, sessionID, productID).
		Scan(&o.SessionID, &o.ProductID, &o.Price, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get override: %w", err)
	}
	return &o, nil
}

func (r *PricingRepository) UpsertOverride(ctx context.Context, o domain.PriceOverride) error {
	const stmt = `
INSERT INTO session_price_overrides (session_id, product_id, price, created_at, updated_at)
VALUES ($1, $2, $3::numeric, $4, $5)
ON CONFLICT (session_id, product_id) DO UPDATE SET
	price = EXCLUDED.price,
	updated_at = EXCLUDED.updated_at`

	_, err := r.exec(ctx, stmt, o.SessionID, o.ProductID, o.Price.String(), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

func (r *PricingRepository) DeleteOverride(ctx context.Context, sessionID, productID string) error {
	const stmt = `DELETE FROM session_price_overrides WHERE session_id = $1 AND product_id::text = $2`

	if _, err := r.exec(ctx, stmt, sessionID, productID); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete override: %w", err)
	}
	return nil
}

func (r *PricingRepository) GetMargin(ctx context.Context, clientID, category string) (*decimal.Decimal, error) {
	const query = `
SELECT margin_percent
FROM client_category_margins
WHERE client_id = $1 AND category = $2`

	var m decimal.Decimal
	if err := r.queryRow(ctx, query, clientID, category).Scan(&m); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get margin: %w", err)
	}
	return &m, nil
}

// CreditRepository reads the client's credit position. Exposure is owned by
// the accounting side and only read here.
type CreditRepository struct {
	db
}

func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{db: db{pool: pool}}
}

func (r *CreditRepository) GetCreditProfile(ctx context.Context, clientID string) (domain.CreditProfile, error) {
	const query = `SELECT id, credit_limit, current_exposure FROM clients WHERE id = $1`

	var p domain.CreditProfile
	err := r.queryRow(ctx, query, clientID).Scan(&p.ClientID, &p.CreditLimit, &p.CurrentExposure)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CreditProfile{}, domain.ErrClientNotFound
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CreditProfile{}, domain.ErrClientNotFound
		}
		return domain.CreditProfile{}, fmt.Errorf("get credit profile: %w", err)
	}
	return p, nil
}
