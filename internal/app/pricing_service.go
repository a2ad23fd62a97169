package app

import (
	"context"
	"errors"

	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

type PricingRepository interface {
	GetOverride(ctx context.Context, sessionID, productID string) (*domain.PriceOverride, error)
	UpsertOverride(ctx context.Context, o domain.PriceOverride) error
	DeleteOverride(ctx context.Context, sessionID, productID string) error
	// GetMargin returns nil when the client has no margin for the category.
	GetMargin(ctx context.Context, clientID, category string) (*decimal.Decimal, error)
}

type SessionReader interface {
	GetSession(ctx context.Context, id string) (domain.Session, error)
}

type BatchReader interface {
	GetBatch(ctx context.Context, batchID string) (domain.Batch, error)
}

type PricingService struct {
	repo     PricingRepository
	sessions SessionReader
	batches  BatchReader
	clock    clock.Clock
	opts     options
	events   emitter
}

func NewPricingService(repo PricingRepository, sessions SessionReader, batches BatchReader, clk clock.Clock, opts ...Option) *PricingService {
	o := buildOptions(opts)
	return &PricingService{
		repo:     repo,
		sessions: sessions,
		batches:  batches,
		clock:    clk,
		opts:     o,
		events:   newEmitter(o, clk),
	}
}

// ResolvePrice returns the unit price for batch within sess. The first match
// wins: session override, client category margin, raw unit cost.
func (s *PricingService) ResolvePrice(ctx context.Context, sess domain.Session, batch domain.Batch) (domain.PriceQuote, error) {
	override, err := s.repo.GetOverride(ctx, sess.ID, batch.ProductID)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	if override != nil {
		return domain.PriceQuote{Price: override.Price, Source: domain.PriceSourceOverride}, nil
	}

	margin, err := s.repo.GetMargin(ctx, sess.ClientID, batch.Category)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	if margin != nil {
		price, err := domain.PriceFromMargin(batch.UnitCost, *margin)
		switch {
		case err == nil:
			return domain.PriceQuote{Price: price, Source: domain.PriceSourceMarginCalc, MarginPercent: *margin}, nil
		case errors.Is(err, domain.ErrInvalidMargin):
			s.opts.logger.Warn("ignoring invalid margin",
				"client_id", sess.ClientID, "category", batch.Category, "margin", margin.String())
		default:
			return domain.PriceQuote{}, err
		}
	}

	return domain.PriceQuote{
		Price:         batch.UnitCost,
		Source:        domain.PriceSourceCostFallback,
		MarginPercent: decimal.Zero,
		Fallback:      true,
	}, nil
}

// QuoteBatch resolves the current price of a batch for the host panel.
func (s *PricingService) QuoteBatch(ctx context.Context, sessionID, batchID string) (domain.PriceQuote, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return s.ResolvePrice(ctx, sess, batch)
}

type SetOverrideInput struct {
	SessionID string
	ProductID string
	Price     decimal.Decimal
	Role      domain.Role
}

// SetOverride upserts a session price override. Existing cart lines keep their
// price snapshot until they are written again or refreshed.
func (s *PricingService) SetOverride(ctx context.Context, in SetOverrideInput) (domain.PriceOverride, error) {
	if err := requireHost(in.Role); err != nil {
		return domain.PriceOverride{}, err
	}
	if in.ProductID == "" {
		return domain.PriceOverride{}, domain.ErrInvalidID
	}
	if in.Price.Sign() < 0 || !in.Price.Bounded() {
		return domain.PriceOverride{}, domain.ErrInvalidPrice
	}
	if _, err := s.openSession(ctx, in.SessionID); err != nil {
		return domain.PriceOverride{}, err
	}

	now := s.clock.Now()
	override := domain.PriceOverride{
		SessionID: in.SessionID,
		ProductID: in.ProductID,
		Price:     in.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.UpsertOverride(ctx, override); err != nil {
		return domain.PriceOverride{}, err
	}

	s.events.emit(ctx, broadcast.EventPriceChanged, in.SessionID, priceChangedPayload{
		ProductID: in.ProductID,
		Price:     &override.Price,
		Source:    domain.PriceSourceOverride,
	})
	return override, nil
}

// RemoveOverride is idempotent: removing a missing override succeeds.
func (s *PricingService) RemoveOverride(ctx context.Context, sessionID, productID string, role domain.Role) error {
	if err := requireHost(role); err != nil {
		return err
	}
	if _, err := s.openSession(ctx, sessionID); err != nil {
		return err
	}
	if err := s.repo.DeleteOverride(ctx, sessionID, productID); err != nil {
		return err
	}
	s.events.emit(ctx, broadcast.EventPriceChanged, sessionID, priceChangedPayload{
		ProductID: productID,
		Removed:   true,
	})
	return nil
}

func (s *PricingService) openSession(ctx context.Context, id string) (domain.Session, error) {
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if !sess.Status.IsOpen() {
		return domain.Session{}, &domain.InvalidSessionStateError{Status: sess.Status}
	}
	return sess, nil
}

type priceChangedPayload struct {
	ProductID string             `json:"product_id,omitempty"`
	Price     *decimal.Decimal   `json:"price,omitempty"`
	Source    domain.PriceSource `json:"source,omitempty"`
	Removed   bool               `json:"removed,omitempty"`
	Refreshed int                `json:"refreshed,omitempty"`
}

func requireHost(role domain.Role) error {
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	if role != domain.RoleHost {
		return domain.ErrHostOnly
	}
	return nil
}
