package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cimillas/live-commerce/internal/app"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

// CartManager is the cart surface used by the cart routes.
type CartManager interface {
	AddItem(ctx context.Context, in app.AddItemInput) (domain.LineItem, error)
	UpdateQuantity(ctx context.Context, sessionID, itemID string, quantity decimal.Decimal) (*domain.LineItem, error)
	RemoveItem(ctx context.Context, sessionID, itemID string) error
	GetCart(ctx context.Context, sessionID string) (domain.Cart, error)
	ItemsByStatus(ctx context.Context, sessionID string) (domain.ItemsByStatus, error)
	UpdateItemStatus(ctx context.Context, sessionID, itemID string, status domain.ItemStatus) (domain.LineItem, error)
	SetHighlight(ctx context.Context, sessionID, itemID string, on bool) error
	SearchBatches(ctx context.Context, sessionID, query string, limit int) ([]domain.BatchAvailability, error)
	RefreshPrices(ctx context.Context, sessionID string, role domain.Role) (domain.Cart, error)
}

// ActivityRecorder slides a session's expiry after participant activity.
type ActivityRecorder interface {
	UpdateActivity(ctx context.Context, id string) (domain.Session, error)
}

type addItemRequest struct {
	BatchID    string          `json:"batch_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity" validate:"decimal,dec_gt=0"`
	ItemStatus string          `json:"item_status,omitempty" validate:"omitempty,oneof=SAMPLE_REQUEST INTERESTED TO_PURCHASE"`
}

type updateQuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"decimal,dec_gte=0"`
}

type updateItemStatusRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=SAMPLE_REQUEST INTERESTED TO_PURCHASE"`
}

type highlightRequest struct {
	Highlighted bool `json:"highlighted"`
}

type updateQuantityResponse struct {
	Removed bool             `json:"removed"`
	Item    *domain.LineItem `json:"item,omitempty"`
}

// recordActivity is best effort: a failed touch never fails the cart write
// that triggered it.
func recordActivity(ctx context.Context, rec ActivityRecorder, sessionID string) {
	if rec == nil {
		return
	}
	if _, err := rec.UpdateActivity(ctx, sessionID); err != nil {
		slog.Debug("record session activity", "session_id", sessionID, "error", err)
	}
}

func HandleGetCart(svc CartManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cart, err := svc.GetCart(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	}
}

func HandleCartByStatus(svc CartManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grouped, err := svc.ItemsByStatus(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, grouped)
	}
}

func HandleAddItem(svc CartManager, rec ActivityRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		var req addItemRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sessionID := r.PathValue("id")
		item, err := svc.AddItem(r.Context(), app.AddItemInput{
			SessionID:  sessionID,
			BatchID:    req.BatchID,
			Quantity:   req.Quantity,
			Role:       role,
			ItemStatus: domain.ItemStatus(req.ItemStatus),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		recordActivity(r.Context(), rec, sessionID)
		writeJSON(w, http.StatusCreated, item)
	}
}

// HandleUpdateQuantity sets a line's quantity; zero removes the line.
func HandleUpdateQuantity(svc CartManager, rec ActivityRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateQuantityRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sessionID := r.PathValue("id")
		item, err := svc.UpdateQuantity(r.Context(), sessionID, r.PathValue("itemID"), req.Quantity)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		recordActivity(r.Context(), rec, sessionID)
		writeJSON(w, http.StatusOK, updateQuantityResponse{Removed: item == nil, Item: item})
	}
}

func HandleRemoveItem(svc CartManager, rec ActivityRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if err := svc.RemoveItem(r.Context(), sessionID, r.PathValue("itemID")); err != nil {
			writeServiceError(w, err)
			return
		}
		recordActivity(r.Context(), rec, sessionID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleUpdateItemStatus(svc CartManager, rec ActivityRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateItemStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sessionID := r.PathValue("id")
		item, err := svc.UpdateItemStatus(r.Context(), sessionID, r.PathValue("itemID"), domain.ItemStatus(req.Status))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		recordActivity(r.Context(), rec, sessionID)
		writeJSON(w, http.StatusOK, item)
	}
}

func HandleHighlightItem(svc CartManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req highlightRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.SetHighlight(r.Context(), r.PathValue("id"), r.PathValue("itemID"), req.Highlighted); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleSearchBatches(svc CartManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryInt(r, "limit", 0)
		if !ok {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a non-negative integer")
			return
		}
		batches, err := svc.SearchBatches(r.Context(), r.PathValue("id"), r.URL.Query().Get("q"), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if batches == nil {
			batches = []domain.BatchAvailability{}
		}
		writeJSON(w, http.StatusOK, batches)
	}
}

func HandleRefreshPrices(svc CartManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		cart, err := svc.RefreshPrices(r.Context(), r.PathValue("id"), role)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	}
}
