package app

import (
	"context"

	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

type LineItemReader interface {
	GetLineItem(ctx context.Context, sessionID, itemID string) (domain.LineItem, error)
}

type OverrideSetter interface {
	SetOverride(ctx context.Context, in SetOverrideInput) (domain.PriceOverride, error)
}

type ItemRepricer interface {
	RepriceItem(ctx context.Context, sessionID, itemID string) (domain.LineItem, error)
}

type CreditValidator interface {
	ValidateCartCredit(ctx context.Context, sessionID string) (domain.CreditCheck, error)
}

// InteractionService carries the conversational side of a session: price
// negotiation and checkout requests.
type InteractionService struct {
	sessions  SessionReader
	items     LineItemReader
	overrides OverrideSetter
	repricer  ItemRepricer
	credit    CreditValidator
	clock     clock.Clock
	events    emitter
}

func NewInteractionService(
	sessions SessionReader,
	items LineItemReader,
	overrides OverrideSetter,
	repricer ItemRepricer,
	credit CreditValidator,
	clk clock.Clock,
	opts ...Option,
) *InteractionService {
	return &InteractionService{
		sessions:  sessions,
		items:     items,
		overrides: overrides,
		repricer:  repricer,
		credit:    credit,
		clock:     clk,
		events:    newEmitter(buildOptions(opts), clk),
	}
}

type RequestNegotiationInput struct {
	SessionID     string
	ItemID        string
	ProposedPrice decimal.Decimal
	Note          string
	Role          domain.Role
}

func (s *InteractionService) RequestNegotiation(ctx context.Context, in RequestNegotiationInput) (domain.Negotiation, error) {
	if !in.Role.Valid() {
		return domain.Negotiation{}, domain.ErrInvalidRole
	}
	if in.ProposedPrice.Sign() < 0 || !in.ProposedPrice.Bounded() {
		return domain.Negotiation{}, domain.ErrInvalidPrice
	}
	if err := s.requireOpen(ctx, in.SessionID); err != nil {
		return domain.Negotiation{}, err
	}
	item, err := s.items.GetLineItem(ctx, in.SessionID, in.ItemID)
	if err != nil {
		return domain.Negotiation{}, err
	}

	n := domain.Negotiation{
		ID:            newUUID(),
		SessionID:     in.SessionID,
		ItemID:        item.ID,
		ProductID:     item.ProductID,
		CurrentPrice:  item.UnitPrice,
		ProposedPrice: in.ProposedPrice,
		Note:          in.Note,
		RequestedBy:   in.Role,
		RequestedAt:   s.clock.Now(),
	}
	s.events.emit(ctx, broadcast.EventNegotiationRequested, in.SessionID, n)
	return n, nil
}

type RespondNegotiationInput struct {
	SessionID     string
	NegotiationID string
	ItemID        string
	Accept        bool
	Price         decimal.Decimal
	Role          domain.Role
}

// RespondNegotiation lets the host settle a proposal. Accepting sets a
// session override for the line's product and re-prices the line.
func (s *InteractionService) RespondNegotiation(ctx context.Context, in RespondNegotiationInput) (domain.NegotiationOutcome, error) {
	if err := requireHost(in.Role); err != nil {
		return domain.NegotiationOutcome{}, err
	}
	if err := s.requireOpen(ctx, in.SessionID); err != nil {
		return domain.NegotiationOutcome{}, err
	}
	item, err := s.items.GetLineItem(ctx, in.SessionID, in.ItemID)
	if err != nil {
		return domain.NegotiationOutcome{}, err
	}

	out := domain.NegotiationOutcome{
		NegotiationID: in.NegotiationID,
		ItemID:        item.ID,
		Accepted:      in.Accept,
		Price:         item.UnitPrice,
	}
	if in.Accept {
		if in.Price.Sign() < 0 || !in.Price.Bounded() {
			return domain.NegotiationOutcome{}, domain.ErrInvalidPrice
		}
		if _, err := s.overrides.SetOverride(ctx, SetOverrideInput{
			SessionID: in.SessionID,
			ProductID: item.ProductID,
			Price:     in.Price,
			Role:      in.Role,
		}); err != nil {
			return domain.NegotiationOutcome{}, err
		}
		repriced, err := s.repricer.RepriceItem(ctx, in.SessionID, item.ID)
		if err != nil {
			return domain.NegotiationOutcome{}, err
		}
		out.Price = repriced.UnitPrice
		out.Item = &repriced
	}

	s.events.emit(ctx, broadcast.EventNegotiationResponded, in.SessionID, out)
	return out, nil
}

// RequestCheckout signals that a participant wants to close the deal. The
// current credit position travels with the event.
func (s *InteractionService) RequestCheckout(ctx context.Context, sessionID string, role domain.Role) (domain.CreditCheck, error) {
	if !role.Valid() {
		return domain.CreditCheck{}, domain.ErrInvalidRole
	}
	if err := s.requireOpen(ctx, sessionID); err != nil {
		return domain.CreditCheck{}, err
	}
	check, err := s.credit.ValidateCartCredit(ctx, sessionID)
	if err != nil {
		return domain.CreditCheck{}, err
	}
	s.events.emit(ctx, broadcast.EventCheckoutRequested, sessionID, checkoutPayload{
		RequestedBy: role,
		Credit:      check,
	})
	return check, nil
}

func (s *InteractionService) requireOpen(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.Status.IsOpen() {
		return &domain.InvalidSessionStateError{Status: sess.Status}
	}
	return nil
}

type checkoutPayload struct {
	RequestedBy domain.Role        `json:"requested_by"`
	Credit      domain.CreditCheck `json:"credit"`
}
