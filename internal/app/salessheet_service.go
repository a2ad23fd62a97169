package app

import (
	"bytes"
	"context"

	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/salessheet"
)

type SalesSheetService struct {
	sessions SessionReader
	carts    CartReader
	renderer *salessheet.Renderer
	currency string
	clock    clock.Clock
}

func NewSalesSheetService(sessions SessionReader, carts CartReader, renderer *salessheet.Renderer, currency string, clk clock.Clock) *SalesSheetService {
	return &SalesSheetService{
		sessions: sessions,
		carts:    carts,
		renderer: renderer,
		currency: currency,
		clock:    clk,
	}
}

// Generate renders the current cart. The session keeps running.
func (s *SalesSheetService) Generate(ctx context.Context, sessionID string) ([]byte, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, salessheet.FromCart(sess, cart, s.currency, s.clock.Now())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
