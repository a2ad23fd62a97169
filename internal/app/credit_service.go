package app

import (
	"context"

	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

type CreditRepository interface {
	GetCreditProfile(ctx context.Context, clientID string) (domain.CreditProfile, error)
}

type CartReader interface {
	GetCart(ctx context.Context, sessionID string) (domain.Cart, error)
}

// CreditService checks a client's exposure. It never blocks cart edits; only
// conversion to an order consults it as a gate.
type CreditService struct {
	repo     CreditRepository
	sessions SessionReader
	carts    CartReader
	opts     options
}

func NewCreditService(repo CreditRepository, sessions SessionReader, carts CartReader, opts ...Option) *CreditService {
	return &CreditService{
		repo:     repo,
		sessions: sessions,
		carts:    carts,
		opts:     buildOptions(opts),
	}
}

// ValidateCartCredit evaluates the session's cart, sample requests excluded.
func (s *CreditService) ValidateCartCredit(ctx context.Context, sessionID string) (domain.CreditCheck, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return domain.CreditCheck{}, err
	}
	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return domain.CreditCheck{}, err
	}
	return s.Evaluate(ctx, sess.ClientID, cart.PurchaseTotal)
}

func (s *CreditService) Evaluate(ctx context.Context, clientID string, amount decimal.Decimal) (domain.CreditCheck, error) {
	profile, err := s.repo.GetCreditProfile(ctx, clientID)
	if err != nil {
		return domain.CreditCheck{}, err
	}
	check := domain.EvaluateCredit(profile, amount, s.opts.approachingPercent)
	if check.Warning != domain.CreditWarningNone {
		s.opts.logger.Info("credit warning",
			"client_id", clientID, "warning", check.Warning,
			"projected", check.ProjectedExposure.String(), "limit", check.CreditLimit.String())
	}
	return check, nil
}
