package domain

import (
	"time"

	"github.com/cimillas/live-commerce/internal/decimal"
)

type PriceSource string

const (
	PriceSourceOverride     PriceSource = "OVERRIDE"
	PriceSourceMarginCalc   PriceSource = "MARGIN_CALC"
	PriceSourceCostFallback PriceSource = "COST_FALLBACK"
)

// PriceOverride is a host-set price for one product within one session.
type PriceOverride struct {
	SessionID string          `json:"session_id"`
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PriceQuote is the resolved unit price for a (session, batch) pair.
type PriceQuote struct {
	Price         decimal.Decimal `json:"price"`
	Source        PriceSource     `json:"source"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	// Fallback marks a cost-priced quote; the UI must flag it.
	Fallback bool `json:"fallback"`
}

var hundred = decimal.FromInt(100)

// PriceFromMargin returns cost / (1 - margin/100) rounded to cents.
func PriceFromMargin(cost, marginPercent decimal.Decimal) (decimal.Decimal, error) {
	if marginPercent.Cmp(hundred) >= 0 {
		return decimal.Zero, ErrInvalidMargin
	}
	fraction, err := marginPercent.Div(hundred)
	if err != nil {
		return decimal.Zero, err
	}
	price, err := cost.Div(decimal.FromInt(1).Sub(fraction))
	if err != nil {
		return decimal.Zero, err
	}
	return price.Round(2), nil
}
