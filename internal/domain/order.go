package domain

import (
	"sort"
	"time"

	"github.com/cimillas/live-commerce/internal/decimal"
)

// Order is the durable purchase produced when a session converts.
type Order struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	ClientID     string          `json:"client_id"`
	PaymentTerms string          `json:"payment_terms"`
	Notes        string          `json:"notes"`
	Total        decimal.Decimal `json:"total"`
	Lines        []OrderLine     `json:"lines"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderLine is a purchase-intent line with its locked-in unit price.
type OrderLine struct {
	LineItemID string          `json:"line_item_id"`
	BatchID    string          `json:"batch_id"`
	ProductID  string          `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// BatchReservation is the stock an order takes out of one batch.
type BatchReservation struct {
	BatchID  string
	Quantity decimal.Decimal
}

// Reservations sums the lines per batch, sorted by batch id so batches are
// always locked in the same order.
func (o Order) Reservations() []BatchReservation {
	totals := make(map[string]decimal.Decimal, len(o.Lines))
	for _, l := range o.Lines {
		totals[l.BatchID] = totals[l.BatchID].Add(l.Quantity)
	}
	out := make([]BatchReservation, 0, len(totals))
	for id, qty := range totals {
		out = append(out, BatchReservation{BatchID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchID < out[j].BatchID })
	return out
}
