package domain

import (
	"errors"
	"fmt"

	"github.com/cimillas/live-commerce/internal/decimal"
)

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrItemNotFound          = errors.New("cart item not found")
	ErrBatchNotFound         = errors.New("batch not found")
	ErrClientNotFound        = errors.New("client not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidSessionState   = errors.New("session is not open for changes")
	ErrInvalidTransition     = errors.New("invalid session status transition")
	ErrInvalidStatus         = errors.New("invalid session status")
	ErrSessionNotExpired     = errors.New("session has not expired")
	ErrMaxExtensionsReached  = errors.New("maximum session extensions reached")
	ErrInvalidMargin         = errors.New("invalid margin")
	ErrCreditDeclined        = errors.New("credit declined")
	ErrEmptyCart             = errors.New("no items marked to purchase")
	ErrHostOnly              = errors.New("only the host can do this")
	ErrInvalidRole           = errors.New("invalid participant role")
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrInvalidPrice          = errors.New("invalid price")
	ErrInvalidItemStatus     = errors.New("invalid item status")
	ErrInvalidID             = errors.New("invalid id")
	ErrNameRequired          = errors.New("name is required")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrBatchCodeTaken        = errors.New("batch code already exists")
)

// InsufficientInventoryError reports how much of a batch the session could
// still take when a cart write is refused.
type InsufficientInventoryError struct {
	BatchID      string
	Requested    decimal.Decimal
	Available    decimal.Decimal
	NetAvailable decimal.Decimal
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for batch %s: requested %s, available %s",
		e.BatchID, e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Unwrap() error {
	return ErrInsufficientInventory
}

// InvalidSessionStateError carries the status that blocked the operation.
type InvalidSessionStateError struct {
	Status SessionStatus
}

func (e *InvalidSessionStateError) Error() string {
	return fmt.Sprintf("session is %s", e.Status)
}

func (e *InvalidSessionStateError) Unwrap() error {
	return ErrInvalidSessionState
}

// CreditDeclinedError carries the check that declined the conversion.
type CreditDeclinedError struct {
	Check CreditCheck
}

func (e *CreditDeclinedError) Error() string {
	return fmt.Sprintf("credit declined: projected exposure %s exceeds limit %s",
		e.Check.ProjectedExposure, e.Check.CreditLimit)
}

func (e *CreditDeclinedError) Unwrap() error {
	return ErrCreditDeclined
}
