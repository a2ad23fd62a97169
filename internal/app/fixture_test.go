package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
	"github.com/cimillas/live-commerce/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev broadcast.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

// types lists event types for sessionID outside the warehouse channel.
func (p *recordingPublisher) types(sessionID string) []broadcast.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []broadcast.EventType
	for _, ev := range p.events {
		if ev.SessionID == sessionID && ev.Channel == "" {
			out = append(out, ev.Type)
		}
	}
	return out
}

func (p *recordingPublisher) warehouse() []broadcast.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []broadcast.Event
	for _, ev := range p.events {
		if ev.Channel == broadcast.WarehouseChannel {
			out = append(out, ev)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

type fixture struct {
	store       *memory.Store
	clock       *clock.Manual
	pub         *recordingPublisher
	pricing     *PricingService
	cart        *CartService
	sessions    *SessionService
	credit      *CreditService
	conversion  *ConversionService
	pickList    *PickListService
	interaction *InteractionService
}

const (
	clientID = "client-1"
	hostID   = "host-1"
)

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		clock: clock.NewManual(t0),
		pub:   &recordingPublisher{},
	}
	f.store.PutClient(domain.CreditProfile{
		ClientID:        clientID,
		CreditLimit:     decimal.MustParse("1000"),
		CurrentExposure: decimal.MustParse("100"),
	})

	f.pickList = NewPickListService(f.store, f.store, f.clock, WithPublisher(f.pub))
	all := append([]Option{WithPublisher(f.pub), WithPickListNotifier(f.pickList)}, opts...)
	f.pricing = NewPricingService(f.store, f.store, f.store, f.clock, all...)
	f.cart = NewCartService(f.store, f.pricing, f.clock, all...)
	f.sessions = NewSessionService(f.store, f.clock, all...)
	f.credit = NewCreditService(f.store, f.store, f.cart, all...)
	f.conversion = NewConversionService(f.store, f.credit, f.clock, all...)
	f.interaction = NewInteractionService(f.store, f.store, f.pricing, f.cart, f.credit, f.clock, all...)
	return f
}

func (f *fixture) batch(t *testing.T, id string, onHand int64, cost string) domain.Batch {
	t.Helper()
	b := domain.Batch{
		ID:          id,
		Code:        "CODE-" + id,
		ProductID:   "product-" + id,
		ProductName: "Product " + id,
		Category:    "FLOWER",
		UnitCost:    decimal.MustParse(cost),
		OnHand:      decimal.FromInt(onHand),
	}
	f.store.PutBatch(b)
	return b
}

func (f *fixture) session(t *testing.T) domain.Session {
	t.Helper()
	sess, err := f.sessions.Create(context.Background(), CreateSessionInput{
		HostID:         hostID,
		ClientID:       clientID,
		Title:          "Live",
		TimeoutSeconds: 600,
	})
	require.NoError(t, err)
	return sess
}

func (f *fixture) add(t *testing.T, sessionID, batchID string, qty int64) (domain.LineItem, error) {
	t.Helper()
	return f.cart.AddItem(context.Background(), AddItemInput{
		SessionID: sessionID,
		BatchID:   batchID,
		Quantity:  decimal.FromInt(qty),
		Role:      domain.RoleClient,
	})
}

func decodeData(t *testing.T, ev broadcast.Event, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(ev.Data, v))
}
