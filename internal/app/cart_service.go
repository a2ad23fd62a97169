package app

import (
	"context"
	"time"

	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type CartRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	// GetSessionForShare blocks status changes to the session until the
	// surrounding transaction ends.
	GetSessionForShare(ctx context.Context, id string) (domain.Session, error)
	GetBatch(ctx context.Context, batchID string) (domain.Batch, error)
	// GetBatchForUpdate serializes inventory-affecting writes on one batch.
	GetBatchForUpdate(ctx context.Context, batchID string) (domain.Batch, error)
	// SumSoftHolds totals the batch quantity in carts of open sessions other
	// than excludeSessionID.
	SumSoftHolds(ctx context.Context, batchID, excludeSessionID string) (decimal.Decimal, error)
	FindLineItemByBatch(ctx context.Context, sessionID, batchID string) (*domain.LineItem, error)
	GetLineItem(ctx context.Context, sessionID, itemID string) (domain.LineItem, error)
	// SaveLineItem inserts or updates the line for (session, batch).
	SaveLineItem(ctx context.Context, item domain.LineItem) error
	DeleteLineItem(ctx context.Context, sessionID, itemID string) error
	ListLineItems(ctx context.Context, sessionID string) ([]domain.LineItem, error)
	// SetHighlight highlights itemID and clears every other line of the
	// session. An empty itemID clears all.
	SetHighlight(ctx context.Context, sessionID, itemID string, now time.Time) error
	SearchBatches(ctx context.Context, query string, limit int) ([]domain.Batch, error)
}

type PriceResolver interface {
	ResolvePrice(ctx context.Context, sess domain.Session, batch domain.Batch) (domain.PriceQuote, error)
}

type CartService struct {
	repo    CartRepository
	pricing PriceResolver
	clock   clock.Clock
	opts    options
	events  emitter
}

func NewCartService(repo CartRepository, pricing PriceResolver, clk clock.Clock, opts ...Option) *CartService {
	o := buildOptions(opts)
	return &CartService{
		repo:    repo,
		pricing: pricing,
		clock:   clk,
		opts:    o,
		events:  newEmitter(o, clk),
	}
}

type AddItemInput struct {
	SessionID  string
	BatchID    string
	Quantity   decimal.Decimal
	Role       domain.Role
	ItemStatus domain.ItemStatus
}

// AddItem adds quantity of a batch to the session cart, merging with an
// existing line for the same batch. The merged quantity may not exceed what
// other open sessions leave available.
func (s *CartService) AddItem(ctx context.Context, in AddItemInput) (item domain.LineItem, err error) {
	ctx, span := s.startSpan(ctx, "CartService.AddItem", in.SessionID, attribute.String("batch.id", in.BatchID))
	defer func() { endSpan(span, err) }()

	if in.Quantity.Sign() <= 0 || !in.Quantity.Bounded() {
		return domain.LineItem{}, domain.ErrInvalidQuantity
	}
	if !in.Role.Valid() {
		return domain.LineItem{}, domain.ErrInvalidRole
	}
	if !in.ItemStatus.Valid() {
		return domain.LineItem{}, domain.ErrInvalidItemStatus
	}

	now := s.clock.Now()
	change := domain.PickChangeItemAdded

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		sess, err := s.openSessionForShare(txCtx, in.SessionID)
		if err != nil {
			return err
		}
		batch, err := s.repo.GetBatchForUpdate(txCtx, in.BatchID)
		if err != nil {
			return err
		}
		existing, err := s.repo.FindLineItemByBatch(txCtx, in.SessionID, in.BatchID)
		if err != nil {
			return err
		}
		softHeld, err := s.repo.SumSoftHolds(txCtx, in.BatchID, in.SessionID)
		if err != nil {
			return err
		}

		avail := domain.NewBatchAvailability(batch, softHeld)
		current := decimal.Zero
		if existing != nil {
			current = existing.Quantity
		}
		if current.Add(in.Quantity).GreaterThan(avail.NetAvailable) {
			return &domain.InsufficientInventoryError{
				BatchID:      in.BatchID,
				Requested:    in.Quantity,
				Available:    decimal.Max(avail.NetAvailable.Sub(current), decimal.Zero),
				NetAvailable: avail.NetAvailable,
			}
		}

		quote, err := s.pricing.ResolvePrice(txCtx, sess, batch)
		if err != nil {
			return err
		}

		if existing != nil {
			item = *existing
			item.Quantity = current.Add(in.Quantity)
			change = domain.PickChangeItemUpdated
		} else {
			item = domain.LineItem{
				ID:          newUUID(),
				SessionID:   in.SessionID,
				BatchID:     batch.ID,
				BatchCode:   batch.Code,
				ProductID:   batch.ProductID,
				ProductName: batch.ProductName,
				Quantity:    in.Quantity,
				AddedBy:     in.Role,
				CreatedAt:   now,
			}
		}
		if in.ItemStatus != domain.ItemStatusNone {
			item.ItemStatus = in.ItemStatus
		}
		item.UnitPrice = quote.Price
		item.PriceSource = quote.Source
		item.UpdatedAt = now

		return s.repo.SaveLineItem(txCtx, item)
	})
	if err != nil {
		return domain.LineItem{}, err
	}

	s.cartChanged(ctx, in.SessionID, change, &item)
	return item, nil
}

// UpdateQuantity sets a line to an absolute quantity. Zero or less removes
// the line and returns nil.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, itemID string, quantity decimal.Decimal) (updated *domain.LineItem, err error) {
	if quantity.Sign() <= 0 {
		return nil, s.RemoveItem(ctx, sessionID, itemID)
	}
	if !quantity.Bounded() {
		return nil, domain.ErrInvalidQuantity
	}

	ctx, span := s.startSpan(ctx, "CartService.UpdateQuantity", sessionID, attribute.String("item.id", itemID))
	defer func() { endSpan(span, err) }()

	now := s.clock.Now()
	var item domain.LineItem

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		sess, err := s.openSessionForShare(txCtx, sessionID)
		if err != nil {
			return err
		}
		item, err = s.repo.GetLineItem(txCtx, sessionID, itemID)
		if err != nil {
			return err
		}
		batch, err := s.repo.GetBatchForUpdate(txCtx, item.BatchID)
		if err != nil {
			return err
		}
		softHeld, err := s.repo.SumSoftHolds(txCtx, item.BatchID, sessionID)
		if err != nil {
			return err
		}

		avail := domain.NewBatchAvailability(batch, softHeld)
		if quantity.GreaterThan(avail.NetAvailable) {
			return &domain.InsufficientInventoryError{
				BatchID:      item.BatchID,
				Requested:    quantity,
				Available:    decimal.Max(avail.NetAvailable, decimal.Zero),
				NetAvailable: avail.NetAvailable,
			}
		}

		quote, err := s.pricing.ResolvePrice(txCtx, sess, batch)
		if err != nil {
			return err
		}
		item.Quantity = quantity
		item.UnitPrice = quote.Price
		item.PriceSource = quote.Source
		item.UpdatedAt = now

		return s.repo.SaveLineItem(txCtx, item)
	})
	if err != nil {
		return nil, err
	}

	s.cartChanged(ctx, sessionID, domain.PickChangeItemUpdated, &item)
	return &item, nil
}

// RemoveItem deletes a line. It only releases inventory, so it needs no batch
// lock and works in any session status.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, itemID string) (err error) {
	ctx, span := s.startSpan(ctx, "CartService.RemoveItem", sessionID, attribute.String("item.id", itemID))
	defer func() { endSpan(span, err) }()

	var item domain.LineItem
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetSessionForShare(txCtx, sessionID); err != nil {
			return err
		}
		var err error
		item, err = s.repo.GetLineItem(txCtx, sessionID, itemID)
		if err != nil {
			return err
		}
		return s.repo.DeleteLineItem(txCtx, sessionID, itemID)
	})
	if err != nil {
		return err
	}

	s.cartChanged(ctx, sessionID, domain.PickChangeItemRemoved, &item)
	return nil
}

func (s *CartService) GetCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return domain.Cart{}, err
	}
	items, err := s.repo.ListLineItems(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	return domain.NewCart(sessionID, items), nil
}

func (s *CartService) ItemsByStatus(ctx context.Context, sessionID string) (domain.ItemsByStatus, error) {
	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return domain.ItemsByStatus{}, err
	}
	return domain.GroupByStatus(cart), nil
}

func (s *CartService) UpdateItemStatus(ctx context.Context, sessionID, itemID string, status domain.ItemStatus) (domain.LineItem, error) {
	if !status.Valid() {
		return domain.LineItem{}, domain.ErrInvalidItemStatus
	}

	var item domain.LineItem
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.openSessionForShare(txCtx, sessionID); err != nil {
			return err
		}
		var err error
		item, err = s.repo.GetLineItem(txCtx, sessionID, itemID)
		if err != nil {
			return err
		}
		item.ItemStatus = status
		item.UpdatedAt = s.clock.Now()
		return s.repo.SaveLineItem(txCtx, item)
	})
	if err != nil {
		return domain.LineItem{}, err
	}

	s.events.emit(ctx, broadcast.EventItemStatusChanged, sessionID, item)
	s.cartChanged(ctx, sessionID, domain.PickChangeItemUpdated, &item)
	return item, nil
}

// SetHighlight makes itemID the only highlighted line of the session, or
// clears the highlight when on is false.
func (s *CartService) SetHighlight(ctx context.Context, sessionID, itemID string, on bool) error {
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.openSessionForShare(txCtx, sessionID); err != nil {
			return err
		}
		if _, err := s.repo.GetLineItem(txCtx, sessionID, itemID); err != nil {
			return err
		}
		target := itemID
		if !on {
			target = ""
		}
		return s.repo.SetHighlight(txCtx, sessionID, target, s.clock.Now())
	})
	if err != nil {
		return err
	}

	s.events.emit(ctx, broadcast.EventItemHighlighted, sessionID, highlightPayload{ItemID: itemID, Highlighted: on})
	return nil
}

const (
	defaultSearchLimit = 25
	maxSearchLimit     = 100
)

// SearchBatches returns batches matching query with availability as seen from
// the session: its own cart is not subtracted.
func (s *CartService) SearchBatches(ctx context.Context, sessionID, query string, limit int) ([]domain.BatchAvailability, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	batches, err := s.repo.SearchBatches(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BatchAvailability, 0, len(batches))
	for _, b := range batches {
		held, err := s.repo.SumSoftHolds(ctx, b.ID, sessionID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.NewBatchAvailability(b, held))
	}
	return out, nil
}

// RefreshPrices re-resolves every line's price snapshot.
func (s *CartService) RefreshPrices(ctx context.Context, sessionID string, role domain.Role) (cart domain.Cart, err error) {
	if err := requireHost(role); err != nil {
		return domain.Cart{}, err
	}

	ctx, span := s.startSpan(ctx, "CartService.RefreshPrices", sessionID)
	defer func() { endSpan(span, err) }()

	changed := 0
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		sess, err := s.openSessionForShare(txCtx, sessionID)
		if err != nil {
			return err
		}
		items, err := s.repo.ListLineItems(txCtx, sessionID)
		if err != nil {
			return err
		}
		for _, item := range items {
			ok, err := s.reprice(txCtx, sess, &item)
			if err != nil {
				return err
			}
			if ok {
				changed++
			}
		}
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.events.emit(ctx, broadcast.EventPriceChanged, sessionID, priceChangedPayload{Refreshed: changed})
	cart, err = s.GetCart(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	s.events.emit(ctx, broadcast.EventCartUpdated, sessionID, cart)
	return cart, nil
}

// RepriceItem re-resolves the price snapshot of a single line.
func (s *CartService) RepriceItem(ctx context.Context, sessionID, itemID string) (domain.LineItem, error) {
	var item domain.LineItem
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		sess, err := s.openSessionForShare(txCtx, sessionID)
		if err != nil {
			return err
		}
		item, err = s.repo.GetLineItem(txCtx, sessionID, itemID)
		if err != nil {
			return err
		}
		_, err = s.reprice(txCtx, sess, &item)
		return err
	})
	if err != nil {
		return domain.LineItem{}, err
	}
	s.cartChanged(ctx, sessionID, domain.PickChangeItemUpdated, &item)
	return item, nil
}

func (s *CartService) reprice(ctx context.Context, sess domain.Session, item *domain.LineItem) (bool, error) {
	batch, err := s.repo.GetBatch(ctx, item.BatchID)
	if err != nil {
		return false, err
	}
	quote, err := s.pricing.ResolvePrice(ctx, sess, batch)
	if err != nil {
		return false, err
	}
	if quote.Price.Equal(item.UnitPrice) && quote.Source == item.PriceSource {
		return false, nil
	}
	item.UnitPrice = quote.Price
	item.PriceSource = quote.Source
	item.UpdatedAt = s.clock.Now()
	return true, s.repo.SaveLineItem(ctx, *item)
}

func (s *CartService) openSessionForShare(ctx context.Context, id string) (domain.Session, error) {
	sess, err := s.repo.GetSessionForShare(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if !sess.Status.IsOpen() {
		return domain.Session{}, &domain.InvalidSessionStateError{Status: sess.Status}
	}
	return sess, nil
}

// cartChanged runs after commit. A failure to load the snapshot is logged;
// the write itself already succeeded.
func (s *CartService) cartChanged(ctx context.Context, sessionID string, change domain.PickChange, item *domain.LineItem) {
	s.opts.pickList.NotifyChange(ctx, sessionID, change, item)

	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		s.opts.logger.Error("load cart for broadcast", "session_id", sessionID, "error", err)
		return
	}
	s.events.emit(ctx, broadcast.EventCartUpdated, sessionID, cart)
}

func (s *CartService) startSpan(ctx context.Context, name, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("session.id", sessionID))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type highlightPayload struct {
	ItemID      string `json:"item_id"`
	Highlighted bool   `json:"highlighted"`
}
