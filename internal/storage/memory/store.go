// Package memory is an in-process implementation of every repository the
// services need. Row locks are real mutexes held for the life of a WithTx
// call, so it keeps the same concurrency guarantees as the Postgres store
// within one process.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

type itemRow struct {
	item domain.LineItem
	seq  uint64
}

type Store struct {
	mu        sync.RWMutex
	clients   map[string]domain.Client
	batches   map[string]domain.Batch
	margins   map[string]decimal.Decimal
	sessions  map[string]domain.Session
	items     map[string]*itemRow
	overrides map[string]domain.PriceOverride
	orders    map[string]domain.Order
	seq       uint64

	locksMu      sync.Mutex
	sessionLocks map[string]*sync.RWMutex
	batchLocks   map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		clients:      make(map[string]domain.Client),
		batches:      make(map[string]domain.Batch),
		margins:      make(map[string]decimal.Decimal),
		sessions:     make(map[string]domain.Session),
		items:        make(map[string]*itemRow),
		overrides:    make(map[string]domain.PriceOverride),
		orders:       make(map[string]domain.Order),
		sessionLocks: make(map[string]*sync.RWMutex),
		batchLocks:   make(map[string]*sync.Mutex),
	}
}

// PutClient registers a client by its credit position.
func (s *Store) PutClient(p domain.CreditProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[p.ClientID] = domain.Client{
		ID:              p.ClientID,
		Name:            p.ClientID,
		CreditLimit:     p.CreditLimit,
		CurrentExposure: p.CurrentExposure,
	}
}

func (s *Store) PutBatch(b domain.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
}

func (s *Store) PutMargin(clientID, category string, percent decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.margins[pairKey(clientID, category)] = percent
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

// Sessions

func (s *Store) ClientExists(_ context.Context, clientID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clients[clientID]
	return ok, nil
}

func (s *Store) CreateSession(ctx context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[sess.ClientID]; !ok {
		return domain.ErrClientNotFound
	}
	s.sessions[sess.ID] = sess
	record(ctx, func() { delete(s.sessions, sess.ID) })
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) GetSessionByRoomToken(_ context.Context, token string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.RoomToken == token {
			return sess, nil
		}
	}
	return domain.Session{}, domain.ErrSessionNotFound
}

func (s *Store) GetSessionForShare(ctx context.Context, id string) (domain.Session, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return domain.Session{}, err
	}
	s.lockSession(ctx, id, lockShared)
	return s.GetSession(ctx, id)
}

func (s *Store) GetSessionForUpdate(ctx context.Context, id string) (domain.Session, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return domain.Session{}, err
	}
	s.lockSession(ctx, id, lockExclusive)
	return s.GetSession(ctx, id)
}

func (s *Store) ListSessions(_ context.Context, f domain.SessionFilter) ([]domain.Session, error) {
	s.mu.RLock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if f.Status != "" && sess.Status != f.Status {
			continue
		}
		if f.ClientID != "" && sess.ClientID != f.ClientID {
			continue
		}
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Offset >= len(out) {
		return []domain.Session{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) UpdateSessionState(ctx context.Context, id string, st domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	prev := sess
	sess.SessionState = st
	s.sessions[id] = sess
	record(ctx, func() { s.sessions[id] = prev })
	return nil
}

func (s *Store) UpdateSessionNotes(ctx context.Context, id, internalNotes, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	prev := sess
	sess.InternalNotes = internalNotes
	sess.Notes = notes
	s.sessions[id] = sess
	record(ctx, func() { s.sessions[id] = prev })
	return nil
}

func (s *Store) ListExpiredSessionIDs(_ context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, sess := range s.sessions {
		if sess.Status.IsOpen() && sess.ExpiresAt != nil && !sess.ExpiresAt.After(now) {
			ids = append(ids, sess.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListSessionsExpiringBetween(_ context.Context, from, to time.Time) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Session
	for _, sess := range s.sessions {
		if !sess.Status.IsOpen() || sess.ExpiresAt == nil {
			continue
		}
		if sess.ExpiresAt.After(from) && !sess.ExpiresAt.After(to) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	return out, nil
}

// Inventory

func (s *Store) GetBatch(_ context.Context, batchID string) (domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchID]
	if !ok {
		return domain.Batch{}, domain.ErrBatchNotFound
	}
	return b, nil
}

func (s *Store) GetBatchForUpdate(ctx context.Context, batchID string) (domain.Batch, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return domain.Batch{}, err
	}
	s.lockBatch(ctx, batchID)
	return s.GetBatch(ctx, batchID)
}

func (s *Store) SumSoftHolds(_ context.Context, batchID, excludeSessionID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, row := range s.items {
		if row.item.BatchID != batchID || row.item.SessionID == excludeSessionID {
			continue
		}
		if sess, ok := s.sessions[row.item.SessionID]; ok && sess.Status.IsOpen() {
			total = total.Add(row.item.Quantity)
		}
	}
	return total, nil
}

func (s *Store) SearchBatches(_ context.Context, query string, limit int) ([]domain.Batch, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	var out []domain.Batch
	for _, b := range s.batches {
		if q == "" || strings.Contains(strings.ToLower(b.Code), q) || strings.Contains(strings.ToLower(b.ProductName), q) {
			out = append(out, b)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cart lines

func (s *Store) FindLineItemByBatch(_ context.Context, sessionID, batchID string) (*domain.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row := s.findRow(sessionID, batchID); row != nil {
		item := row.item
		return &item, nil
	}
	return nil, nil
}

func (s *Store) findRow(sessionID, batchID string) *itemRow {
	for _, row := range s.items {
		if row.item.SessionID == sessionID && row.item.BatchID == batchID {
			return row
		}
	}
	return nil
}

func (s *Store) GetLineItem(_ context.Context, sessionID, itemID string) (domain.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.items[itemID]
	if !ok || row.item.SessionID != sessionID {
		return domain.LineItem{}, domain.ErrItemNotFound
	}
	return row.item, nil
}

// SaveLineItem behaves like an upsert on (session, batch): a second line for
// the same pair updates the first one and keeps its id.
func (s *Store) SaveLineItem(ctx context.Context, item domain.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[item.SessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	if _, ok := s.batches[item.BatchID]; !ok {
		return domain.ErrBatchNotFound
	}

	row, ok := s.items[item.ID]
	if !ok {
		row = s.findRow(item.SessionID, item.BatchID)
	}
	if row != nil {
		prev := *row
		item.ID = row.item.ID
		item.CreatedAt = row.item.CreatedAt
		row.item = item
		record(ctx, func() { *row = prev })
		return nil
	}

	s.seq++
	s.items[item.ID] = &itemRow{item: item, seq: s.seq}
	record(ctx, func() { delete(s.items, item.ID) })
	return nil
}

func (s *Store) DeleteLineItem(ctx context.Context, sessionID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.items[itemID]
	if !ok || row.item.SessionID != sessionID {
		return domain.ErrItemNotFound
	}
	delete(s.items, itemID)
	record(ctx, func() { s.items[itemID] = row })
	return nil
}

func (s *Store) ListLineItems(_ context.Context, sessionID string) ([]domain.LineItem, error) {
	s.mu.RLock()
	rows := make([]*itemRow, 0)
	for _, row := range s.items {
		if row.item.SessionID == sessionID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]domain.LineItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.item)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) SetHighlight(ctx context.Context, sessionID, itemID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if itemID != "" {
		if row, ok := s.items[itemID]; !ok || row.item.SessionID != sessionID {
			return domain.ErrItemNotFound
		}
	}
	for _, row := range s.items {
		if row.item.SessionID != sessionID {
			continue
		}
		on := row.item.ID == itemID
		if row.item.Highlighted == on {
			continue
		}
		prev := *row
		row.item.Highlighted = on
		row.item.UpdatedAt = now
		r := row
		record(ctx, func() { *r = prev })
	}
	return nil
}

// Pricing and credit

func (s *Store) GetOverride(_ context.Context, sessionID, productID string) (*domain.PriceOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[pairKey(sessionID, productID)]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *Store) UpsertOverride(ctx context.Context, o domain.PriceOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[o.SessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	key := pairKey(o.SessionID, o.ProductID)
	prev, existed := s.overrides[key]
	if existed {
		o.CreatedAt = prev.CreatedAt
	}
	s.overrides[key] = o
	record(ctx, func() {
		if existed {
			s.overrides[key] = prev
		} else {
			delete(s.overrides, key)
		}
	})
	return nil
}

func (s *Store) DeleteOverride(ctx context.Context, sessionID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(sessionID, productID)
	prev, ok := s.overrides[key]
	if !ok {
		return nil
	}
	delete(s.overrides, key)
	record(ctx, func() { s.overrides[key] = prev })
	return nil
}

func (s *Store) GetMargin(_ context.Context, clientID, category string) (*decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.margins[pairKey(clientID, category)]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) GetCreditProfile(_ context.Context, clientID string) (domain.CreditProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return domain.CreditProfile{}, domain.ErrClientNotFound
	}
	return c.CreditProfile(), nil
}

// Orders

// CreateOrder writes the order and moves its quantities into the reserved
// stock of each batch, so the goods stay claimed once the cart closes.
func (s *Store) CreateOrder(ctx context.Context, order domain.Order) error {
	reservations := order.Reservations()
	for _, r := range reservations {
		if _, err := s.GetBatchForUpdate(ctx, r.BatchID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.SessionID]; ok {
		return &domain.InvalidSessionStateError{Status: domain.SessionStatusConverted}
	}
	for _, r := range reservations {
		b := s.batches[r.BatchID]
		if avail := b.StaticAvailable(); avail.LessThan(r.Quantity) {
			return &domain.InsufficientInventoryError{
				BatchID: r.BatchID, Requested: r.Quantity, Available: avail, NetAvailable: avail,
			}
		}
	}
	for _, r := range reservations {
		prev := s.batches[r.BatchID]
		next := prev
		next.Reserved = prev.Reserved.Add(r.Quantity)
		s.batches[r.BatchID] = next
		record(ctx, func() { s.batches[prev.ID] = prev })
	}
	s.orders[order.SessionID] = order
	record(ctx, func() { delete(s.orders, order.SessionID) })
	return nil
}

func (s *Store) GetOrderBySession(_ context.Context, sessionID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[sessionID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

// Catalog

func (s *Store) CreateClient(_ context.Context, c domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
	return nil
}

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateBatch(_ context.Context, b domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.batches {
		if existing.Code == b.Code {
			return domain.ErrBatchCodeTaken
		}
	}
	s.batches[b.ID] = b
	return nil
}

func (s *Store) SetMargin(_ context.Context, m domain.CategoryMargin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[m.ClientID]; !ok {
		return domain.ErrClientNotFound
	}
	s.margins[pairKey(m.ClientID, m.Category)] = m.Percent
	return nil
}
