package domain

import "github.com/cimillas/live-commerce/internal/decimal"

type CreditWarning string

const (
	CreditWarningNone        CreditWarning = "NONE"
	CreditWarningApproaching CreditWarning = "APPROACHING"
	CreditWarningExceeded    CreditWarning = "EXCEEDED"
)

// CreditProfile is the client's credit position as reported by the ledger.
type CreditProfile struct {
	ClientID        string          `json:"client_id"`
	CreditLimit     decimal.Decimal `json:"credit_limit"` // zero means unlimited
	CurrentExposure decimal.Decimal `json:"current_exposure"`
}

func (p CreditProfile) Unlimited() bool {
	return p.CreditLimit.IsZero()
}

type CreditCheck struct {
	ClientID          string          `json:"client_id"`
	Approved          bool            `json:"approved"`
	Warning           CreditWarning   `json:"warning"`
	CartTotal         decimal.Decimal `json:"cart_total"`
	CurrentExposure   decimal.Decimal `json:"current_exposure"`
	ProjectedExposure decimal.Decimal `json:"projected_exposure"`
	CreditLimit       decimal.Decimal `json:"credit_limit"`
	AvailableCredit   decimal.Decimal `json:"available_credit"`
}

// EvaluateCredit compares exposure plus cart against the limit. approachingPercent
// is the share of the limit at which the warning tier becomes APPROACHING.
func EvaluateCredit(p CreditProfile, cartTotal, approachingPercent decimal.Decimal) CreditCheck {
	projected := p.CurrentExposure.Add(cartTotal)
	check := CreditCheck{
		ClientID:          p.ClientID,
		Approved:          true,
		Warning:           CreditWarningNone,
		CartTotal:         cartTotal,
		CurrentExposure:   p.CurrentExposure,
		ProjectedExposure: projected,
		CreditLimit:       p.CreditLimit,
	}
	if p.Unlimited() {
		return check
	}

	check.AvailableCredit = decimal.Max(p.CreditLimit.Sub(p.CurrentExposure), decimal.Zero)
	if projected.GreaterThan(p.CreditLimit) {
		check.Approved = false
		check.Warning = CreditWarningExceeded
		return check
	}
	threshold := p.CreditLimit.Mul(approachingPercent).Mul(decimal.New(1, -2))
	if projected.Cmp(threshold) >= 0 {
		check.Warning = CreditWarningApproaching
	}
	return check
}
