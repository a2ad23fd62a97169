package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cimillas/live-commerce/internal/domain"
)

const (
	codeMethodNotAllowed      = "method_not_allowed"
	codeNotFound              = "not_found"
	codeInvalidRequestBody    = "invalid_request_body"
	codeValidationFailed      = "validation_failed"
	codeInvalidID             = "invalid_id"
	codeInvalidRole           = "invalid_role"
	codeHostOnly              = "host_only"
	codeSessionNotFound       = "session_not_found"
	codeItemNotFound          = "item_not_found"
	codeBatchNotFound         = "batch_not_found"
	codeClientNotFound        = "client_not_found"
	codeProductNotFound       = "product_not_found"
	codeInsufficientInventory = "insufficient_inventory"
	codeInvalidSessionState   = "invalid_session_state"
	codeInvalidTransition     = "invalid_transition"
	codeInvalidStatus         = "invalid_status"
	codeInvalidItemStatus     = "invalid_item_status"
	codeInvalidQuantity       = "invalid_quantity"
	codeInvalidPrice          = "invalid_price"
	codeInvalidMargin         = "invalid_margin"
	codeInvalidAmount         = "invalid_amount"
	codeNameRequired          = "name_required"
	codeBatchCodeTaken        = "batch_code_taken"
	codeCreditDeclined        = "credit_declined"
	codeEmptyCart             = "empty_cart"
	codeStreamingUnsupported  = "streaming_unsupported"
	codeForbidden             = "forbidden"
	codeInternalError         = "internal_error"
)

type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorDetails(w, status, code, msg, nil)
}

func writeErrorDetails(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error:   msg,
		Code:    code,
		Details: details,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

var sentinelErrors = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrSessionNotFound, http.StatusNotFound, codeSessionNotFound},
	{domain.ErrItemNotFound, http.StatusNotFound, codeItemNotFound},
	{domain.ErrBatchNotFound, http.StatusNotFound, codeBatchNotFound},
	{domain.ErrClientNotFound, http.StatusNotFound, codeClientNotFound},
	{domain.ErrProductNotFound, http.StatusNotFound, codeProductNotFound},
	{domain.ErrInvalidID, http.StatusNotFound, codeInvalidID},
	{domain.ErrHostOnly, http.StatusForbidden, codeHostOnly},
	{domain.ErrInvalidRole, http.StatusBadRequest, codeInvalidRole},
	{domain.ErrInvalidStatus, http.StatusBadRequest, codeInvalidStatus},
	{domain.ErrInvalidItemStatus, http.StatusBadRequest, codeInvalidItemStatus},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrInvalidPrice, http.StatusBadRequest, codeInvalidPrice},
	{domain.ErrInvalidAmount, http.StatusBadRequest, codeInvalidAmount},
	{domain.ErrNameRequired, http.StatusBadRequest, codeNameRequired},
	{domain.ErrBatchCodeTaken, http.StatusConflict, codeBatchCodeTaken},
	{domain.ErrInvalidMargin, http.StatusUnprocessableEntity, codeInvalidMargin},
	{domain.ErrEmptyCart, http.StatusUnprocessableEntity, codeEmptyCart},
}

// writeServiceError translates an error returned by an app service into the
// JSON error envelope. Unknown errors are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		inventoryErr  *domain.InsufficientInventoryError
		stateErr      *domain.InvalidSessionStateError
		transitionErr *domain.TransitionError
		creditErr     *domain.CreditDeclinedError
	)
	switch {
	case errors.As(err, &inventoryErr):
		writeErrorDetails(w, http.StatusConflict, codeInsufficientInventory, err.Error(), map[string]any{
			"batch_id":      inventoryErr.BatchID,
			"requested":     inventoryErr.Requested,
			"available":     inventoryErr.Available,
			"net_available": inventoryErr.NetAvailable,
		})
		return
	case errors.As(err, &stateErr):
		writeErrorDetails(w, http.StatusConflict, codeInvalidSessionState, err.Error(), map[string]any{
			"status": stateErr.Status,
		})
		return
	case errors.As(err, &transitionErr):
		writeErrorDetails(w, http.StatusConflict, codeInvalidTransition, err.Error(), map[string]any{
			"status": transitionErr.From,
		})
		return
	case errors.As(err, &creditErr):
		writeErrorDetails(w, http.StatusUnprocessableEntity, codeCreditDeclined, err.Error(), map[string]any{
			"credit": creditErr.Check,
		})
		return
	}

	for _, s := range sentinelErrors {
		if errors.Is(err, s.err) {
			writeError(w, s.status, s.code, s.err.Error())
			return
		}
	}

	slog.Error("unhandled service error", "error", err)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
