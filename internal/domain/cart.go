package domain

import (
	"time"

	"github.com/cimillas/live-commerce/internal/decimal"
)

type ItemStatus string

const (
	ItemStatusNone          ItemStatus = ""
	ItemStatusSampleRequest ItemStatus = "SAMPLE_REQUEST"
	ItemStatusInterested    ItemStatus = "INTERESTED"
	ItemStatusToPurchase    ItemStatus = "TO_PURCHASE"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusNone, ItemStatusSampleRequest, ItemStatusInterested, ItemStatusToPurchase:
		return true
	}
	return false
}

// LineItem is one (session, batch) pairing in a cart.
type LineItem struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	BatchID     string          `json:"batch_id"`
	BatchCode   string          `json:"batch_code"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	PriceSource PriceSource     `json:"price_source"`
	ItemStatus  ItemStatus      `json:"item_status"`
	Highlighted bool            `json:"highlighted"`
	AddedBy     Role            `json:"added_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

func (li LineItem) IsSample() bool {
	return li.ItemStatus == ItemStatusSampleRequest
}

// CartLine is a line item with its computed subtotal.
type CartLine struct {
	LineItem
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Cart is a computed view over a session's line items.
type Cart struct {
	SessionID string          `json:"session_id"`
	Lines     []CartLine      `json:"lines"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
	// PurchaseTotal excludes sample requests; it is what credit is checked against.
	PurchaseTotal decimal.Decimal `json:"purchase_total"`
}

// NewCart sums items exactly.
func NewCart(sessionID string, items []LineItem) Cart {
	cart := Cart{
		SessionID:     sessionID,
		Lines:         make([]CartLine, 0, len(items)),
		Total:         decimal.Zero,
		PurchaseTotal: decimal.Zero,
	}
	for _, item := range items {
		sub := item.Subtotal()
		cart.Lines = append(cart.Lines, CartLine{LineItem: item, Subtotal: sub})
		cart.Total = cart.Total.Add(sub)
		if !item.IsSample() {
			cart.PurchaseTotal = cart.PurchaseTotal.Add(sub)
		}
	}
	cart.ItemCount = len(cart.Lines)
	return cart
}

// ItemsByStatus groups a cart for the three-status workflow.
type ItemsByStatus struct {
	SampleRequests  []CartLine      `json:"sample_requests"`
	Interested      []CartLine      `json:"interested"`
	ToPurchase      []CartLine      `json:"to_purchase"`
	Unassigned      []CartLine      `json:"unassigned"`
	ToPurchaseValue decimal.Decimal `json:"to_purchase_value"`
}

func GroupByStatus(cart Cart) ItemsByStatus {
	out := ItemsByStatus{ToPurchaseValue: decimal.Zero}
	for _, line := range cart.Lines {
		switch line.ItemStatus {
		case ItemStatusSampleRequest:
			out.SampleRequests = append(out.SampleRequests, line)
		case ItemStatusInterested:
			out.Interested = append(out.Interested, line)
		case ItemStatusToPurchase:
			out.ToPurchase = append(out.ToPurchase, line)
			out.ToPurchaseValue = out.ToPurchaseValue.Add(line.Subtotal)
		default:
			out.Unassigned = append(out.Unassigned, line)
		}
	}
	return out
}
