package domain

import "github.com/cimillas/live-commerce/internal/decimal"

// Client is a buyer account with its credit position.
type Client struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	CurrentExposure decimal.Decimal `json:"current_exposure"`
}

func (c Client) CreditProfile() CreditProfile {
	return CreditProfile{
		ClientID:        c.ID,
		CreditLimit:     c.CreditLimit,
		CurrentExposure: c.CurrentExposure,
	}
}

// CategoryMargin is the markup a client pays over unit cost for one product
// category, in percent.
type CategoryMargin struct {
	ClientID string          `json:"client_id"`
	Category string          `json:"category"`
	Percent  decimal.Decimal `json:"percent"`
}
