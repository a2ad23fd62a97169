package domain

import "github.com/cimillas/live-commerce/internal/decimal"

// Batch is a read-only snapshot of one inventory batch.
type Batch struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	OnHand      decimal.Decimal `json:"on_hand"`
	Reserved    decimal.Decimal `json:"reserved"`
	Held        decimal.Decimal `json:"held"`
	Quarantined decimal.Decimal `json:"quarantined"`
}

// StaticAvailable is on hand minus every durable claim on the batch.
func (b Batch) StaticAvailable() decimal.Decimal {
	return b.OnHand.Sub(b.Reserved).Sub(b.Held).Sub(b.Quarantined)
}

// BatchAvailability is a batch as seen from one session: other sessions' soft
// holds are subtracted, the session's own cart is not.
type BatchAvailability struct {
	Batch           Batch           `json:"batch"`
	StaticAvailable decimal.Decimal `json:"static_available"`
	SoftHeld        decimal.Decimal `json:"soft_held"`
	NetAvailable    decimal.Decimal `json:"net_available"`
}

func NewBatchAvailability(b Batch, softHeld decimal.Decimal) BatchAvailability {
	static := b.StaticAvailable()
	return BatchAvailability{
		Batch:           b,
		StaticAvailable: static,
		SoftHeld:        softHeld,
		NetAvailable:    static.Sub(softHeld),
	}
}
