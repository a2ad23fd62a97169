package app

import (
	"context"

	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/domain"
)

type LineItemLister interface {
	ListLineItems(ctx context.Context, sessionID string) ([]domain.LineItem, error)
}

// PickListService keeps the warehouse informed of what each session intends
// to take.
type PickListService struct {
	sessions SessionReader
	items    LineItemLister
	events   emitter
}

func NewPickListService(sessions SessionReader, items LineItemLister, clk clock.Clock, opts ...Option) *PickListService {
	return &PickListService{
		sessions: sessions,
		items:    items,
		events:   newEmitter(buildOptions(opts), clk),
	}
}

func (s *PickListService) GetPickList(ctx context.Context, sessionID string) ([]domain.PickListItem, error) {
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	items, err := s.items.ListLineItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return domain.BuildPickList(items), nil
}

// NotifyChange publishes on the warehouse channel. item is nil for a full
// refresh.
func (s *PickListService) NotifyChange(ctx context.Context, sessionID string, change domain.PickChange, item *domain.LineItem) {
	payload := pickListUpdate{SessionID: sessionID, Change: change}
	if item != nil {
		entry := domain.BuildPickList([]domain.LineItem{*item})[0]
		payload.Item = &entry
	}
	s.events.emitOn(ctx, broadcast.WarehouseChannel, broadcast.EventPickListUpdate, sessionID, payload)
}

type pickListUpdate struct {
	SessionID string               `json:"session_id"`
	Change    domain.PickChange    `json:"change"`
	Item      *domain.PickListItem `json:"item,omitempty"`
}
