package http

import (
	"context"
	"net/http"

	"github.com/cimillas/live-commerce/internal/app"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

type CreditChecker interface {
	ValidateCartCredit(ctx context.Context, sessionID string) (domain.CreditCheck, error)
}

type PickListReader interface {
	GetPickList(ctx context.Context, sessionID string) ([]domain.PickListItem, error)
}

type SalesSheetGenerator interface {
	Generate(ctx context.Context, sessionID string) ([]byte, error)
}

// Negotiator covers price negotiation and checkout requests.
type Negotiator interface {
	RequestNegotiation(ctx context.Context, in app.RequestNegotiationInput) (domain.Negotiation, error)
	RespondNegotiation(ctx context.Context, in app.RespondNegotiationInput) (domain.NegotiationOutcome, error)
	RequestCheckout(ctx context.Context, sessionID string, role domain.Role) (domain.CreditCheck, error)
}

type requestNegotiationRequest struct {
	ItemID        string          `json:"item_id" validate:"required"`
	ProposedPrice decimal.Decimal `json:"proposed_price" validate:"decimal,dec_gte=0"`
	Note          string          `json:"note,omitempty" validate:"max=500"`
}

type respondNegotiationRequest struct {
	NegotiationID string          `json:"negotiation_id,omitempty"`
	ItemID        string          `json:"item_id" validate:"required"`
	Accept        bool            `json:"accept"`
	Price         decimal.Decimal `json:"price" validate:"decimal,dec_gte=0"`
}

func HandleCreditCheck(svc CreditChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		check, err := svc.ValidateCartCredit(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, check)
	}
}

func HandlePickList(svc PickListReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.GetPickList(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if items == nil {
			items = []domain.PickListItem{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// HandleSalesSheet returns the plain-text sales sheet of the current cart.
func HandleSalesSheet(svc SalesSheetGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sheet, err := svc.Generate(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(sheet)
	}
}

func HandleRequestNegotiation(svc Negotiator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		var req requestNegotiationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		n, err := svc.RequestNegotiation(r.Context(), app.RequestNegotiationInput{
			SessionID:     r.PathValue("id"),
			ItemID:        req.ItemID,
			ProposedPrice: req.ProposedPrice,
			Note:          req.Note,
			Role:          role,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	}
}

func HandleRespondNegotiation(svc Negotiator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		var req respondNegotiationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		out, err := svc.RespondNegotiation(r.Context(), app.RespondNegotiationInput{
			SessionID:     r.PathValue("id"),
			NegotiationID: req.NegotiationID,
			ItemID:        req.ItemID,
			Accept:        req.Accept,
			Price:         req.Price,
			Role:          role,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func HandleCheckoutRequest(svc Negotiator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := requireRole(w, r)
		if !ok {
			return
		}
		check, err := svc.RequestCheckout(r.Context(), r.PathValue("id"), role)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, check)
	}
}
