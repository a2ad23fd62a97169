package app

import (
	"context"

	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetSessionForUpdate(ctx context.Context, id string) (domain.Session, error)
	UpdateSessionState(ctx context.Context, id string, st domain.SessionState) error
	ListLineItems(ctx context.Context, sessionID string) ([]domain.LineItem, error)
	GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) error
}

type CreditEvaluator interface {
	Evaluate(ctx context.Context, clientID string, amount decimal.Decimal) (domain.CreditCheck, error)
}

// ConversionService ends sessions, optionally turning the purchase intent of
// the cart into an order.
type ConversionService struct {
	repo   OrderRepository
	credit CreditEvaluator
	clock  clock.Clock
	opts   options
	events emitter
}

func NewConversionService(repo OrderRepository, credit CreditEvaluator, clk clock.Clock, opts ...Option) *ConversionService {
	o := buildOptions(opts)
	return &ConversionService{
		repo:   repo,
		credit: credit,
		clock:  clk,
		opts:   o,
		events: newEmitter(o, clk),
	}
}

type EndSessionInput struct {
	SessionID         string
	ConvertToOrder    bool
	PaymentTerms      string
	Notes             string
	BypassCreditCheck bool
	Role              domain.Role
}

type EndSessionResult struct {
	Session domain.Session
	Order   *domain.Order
	Credit  *domain.CreditCheck
	// Created is false when a converted session is ended again and the
	// existing order is returned.
	Created bool
}

func (s *ConversionService) EndSession(ctx context.Context, in EndSessionInput) (res EndSessionResult, err error) {
	if err := requireHost(in.Role); err != nil {
		return EndSessionResult{}, err
	}

	ctx, span := tracer.Start(ctx, "ConversionService.EndSession")
	defer func() { endSpan(span, err) }()

	var previous domain.SessionStatus
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		sess, err := s.repo.GetSessionForUpdate(txCtx, in.SessionID)
		if err != nil {
			return err
		}
		previous = sess.Status

		if !in.ConvertToOrder {
			next, err := domain.Transition(sess.SessionState, domain.EventEnd, s.clock.Now(), s.opts.policy)
			if err != nil {
				return err
			}
			if err := s.repo.UpdateSessionState(txCtx, sess.ID, next); err != nil {
				return err
			}
			sess.SessionState = next
			res = EndSessionResult{Session: sess}
			return nil
		}

		if sess.Status == domain.SessionStatusConverted {
			existing, err := s.repo.GetOrderBySession(txCtx, sess.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				res = EndSessionResult{Session: sess, Order: existing}
				return nil
			}
		}
		if !sess.Status.IsOpen() {
			return &domain.InvalidSessionStateError{Status: sess.Status}
		}

		items, err := s.repo.ListLineItems(txCtx, sess.ID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		order := domain.Order{
			ID:           newUUID(),
			SessionID:    sess.ID,
			ClientID:     sess.ClientID,
			PaymentTerms: in.PaymentTerms,
			Notes:        in.Notes,
			Total:        decimal.Zero,
			CreatedAt:    now,
		}
		for _, item := range items {
			if item.ItemStatus != domain.ItemStatusToPurchase {
				continue
			}
			line := domain.OrderLine{
				LineItemID: item.ID,
				BatchID:    item.BatchID,
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
			}
			order.Lines = append(order.Lines, line)
			order.Total = order.Total.Add(line.Subtotal())
		}
		if len(order.Lines) == 0 {
			return domain.ErrEmptyCart
		}

		var check *domain.CreditCheck
		if !in.BypassCreditCheck {
			c, err := s.credit.Evaluate(txCtx, sess.ClientID, order.Total)
			if err != nil {
				return err
			}
			if !c.Approved {
				return &domain.CreditDeclinedError{Check: c}
			}
			check = &c
		} else {
			s.opts.logger.Warn("credit check bypassed", "session_id", sess.ID, "total", order.Total.String())
		}

		if err := s.repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		next, err := domain.Transition(sess.SessionState, domain.EventConvert, now, s.opts.policy)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateSessionState(txCtx, sess.ID, next); err != nil {
			return err
		}
		sess.SessionState = next
		res = EndSessionResult{Session: sess, Order: &order, Credit: check, Created: true}
		return nil
	})
	if err != nil {
		return EndSessionResult{}, err
	}

	if res.Session.Status != previous {
		payload := statusPayload{
			Status:         res.Session.Status,
			PreviousStatus: previous,
			EndedAt:        res.Session.EndedAt,
		}
		if res.Order != nil {
			payload.OrderID = res.Order.ID
			s.opts.logger.Info("session converted", "session_id", res.Session.ID,
				"order_id", res.Order.ID, "total", res.Order.Total.String())
		}
		s.events.emit(ctx, broadcast.EventStatusChanged, res.Session.ID, payload)
		s.opts.pickList.NotifyChange(ctx, res.Session.ID, domain.PickChangeRefresh, nil)
	}
	return res, nil
}
