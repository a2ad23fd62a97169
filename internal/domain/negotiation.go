package domain

import (
	"time"

	"github.com/cimillas/live-commerce/internal/decimal"
)

// Negotiation is a price proposal for one cart line. It lives only on the
// event stream; accepting it turns the price into a session override.
type Negotiation struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	ItemID        string          `json:"item_id"`
	ProductID     string          `json:"product_id"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	ProposedPrice decimal.Decimal `json:"proposed_price"`
	Note          string          `json:"note,omitempty"`
	RequestedBy   Role            `json:"requested_by"`
	RequestedAt   time.Time       `json:"requested_at"`
}

type NegotiationOutcome struct {
	NegotiationID string          `json:"negotiation_id,omitempty"`
	ItemID        string          `json:"item_id"`
	Accepted      bool            `json:"accepted"`
	Price         decimal.Decimal `json:"price"`
	Item          *LineItem       `json:"item,omitempty"`
}
