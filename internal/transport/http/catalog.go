package http

import (
	"context"
	"net/http"

	"github.com/cimillas/live-commerce/internal/app"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
)

// CatalogAdmin is the minimal interface needed for the admin catalog endpoints.
type CatalogAdmin interface {
	CreateClient(ctx context.Context, in app.CreateClientInput) (domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	CreateBatch(ctx context.Context, in app.CreateBatchInput) (domain.Batch, error)
	SetMargin(ctx context.Context, clientID, category string, percent decimal.Decimal) (domain.CategoryMargin, error)
}

type createClientRequest struct {
	Name            string          `json:"name" validate:"required,max=200"`
	CreditLimit     decimal.Decimal `json:"credit_limit" validate:"decimal,dec_gte=0"`
	CurrentExposure decimal.Decimal `json:"current_exposure" validate:"decimal,dec_gte=0"`
}

type createBatchRequest struct {
	Code        string          `json:"code" validate:"required,max=64"`
	ProductName string          `json:"product_name" validate:"required,max=200"`
	Category    string          `json:"category" validate:"required,max=64"`
	UnitCost    decimal.Decimal `json:"unit_cost" validate:"decimal,dec_gte=0"`
	OnHand      decimal.Decimal `json:"on_hand" validate:"decimal,dec_gte=0"`
}

type setMarginRequest struct {
	Percent decimal.Decimal `json:"percent" validate:"decimal,dec_gte=0,dec_lt=100"`
}

// HandleListClients returns every client ordered by name.
func HandleListClients(svc CatalogAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clients, err := svc.ListClients(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if clients == nil {
			clients = []domain.Client{}
		}
		writeJSON(w, http.StatusOK, clients)
	}
}

func HandleCreateClient(svc CatalogAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createClientRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		client, err := svc.CreateClient(r.Context(), app.CreateClientInput{
			Name:            req.Name,
			CreditLimit:     req.CreditLimit,
			CurrentExposure: req.CurrentExposure,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, client)
	}
}

func HandleCreateBatch(svc CatalogAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBatchRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		batch, err := svc.CreateBatch(r.Context(), app.CreateBatchInput{
			Code:        req.Code,
			ProductName: req.ProductName,
			Category:    req.Category,
			UnitCost:    req.UnitCost,
			OnHand:      req.OnHand,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, batch)
	}
}

func HandleSetMargin(svc CatalogAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setMarginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		m, err := svc.SetMargin(r.Context(), r.PathValue("id"), r.PathValue("category"), req.Percent)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}
