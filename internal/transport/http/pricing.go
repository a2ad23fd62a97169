package http

import (
	"context"
	"net/http"

	"github.com/cimillas/live-commerce/internal/app"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

// PriceManager is the pricing surface used by the override and quote routes.
type PriceManager interface {
	SetOverride(ctx context.Context, in app.SetOverrideInput) (domain.PriceOverride, error)
	RemoveOverride(ctx context.Context, sessionID, productID string, role domain.Role) error
	QuoteBatch(ctx context.Context, sessionID, batchID string) (domain.PriceQuote, error)
}

type setOverrideRequest struct {
	Price decimal.Decimal `json:"price" validate:"decimal,dec_gte=0"`
}

func HandleSetOverride(svc PriceManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		var req setOverrideRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		o, err := svc.SetOverride(r.Context(), app.SetOverrideInput{
			SessionID: r.PathValue("id"),
			ProductID: r.PathValue("productID"),
			Price:     req.Price,
			Role:      role,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

func HandleRemoveOverride(svc PriceManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		if err := svc.RemoveOverride(r.Context(), r.PathValue("id"), r.PathValue("productID"), role); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleQuote(svc PriceManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := r.URL.Query().Get("batch_id")
		if batchID == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "batch_id is required")
			return
		}
		quote, err := svc.QuoteBatch(r.Context(), r.PathValue("id"), batchID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, quote)
	}
}
