package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cimillas/live-commerce/internal/app"
	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
	"github.com/cimillas/live-commerce/internal/salessheet"
	"github.com/cimillas/live-commerce/internal/storage/memory"
	"golang.org/x/text/language"
)

const testClientID = "client-1"

type testAPI struct {
	mux   *http.ServeMux
	store *memory.Store
	hub   *broadcast.Hub
	clock *clock.Manual
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.New()
	store.PutClient(domain.CreditProfile{
		ClientID:        testClientID,
		CreditLimit:     decimal.FromInt(1000),
		CurrentExposure: decimal.Zero,
	})
	store.PutBatch(domain.Batch{
		ID: "batch-1", Code: "BD-001", ProductID: "product-1", ProductName: "Blue Dream",
		Category: "FLOWER", UnitCost: decimal.MustParse("10.00"), OnHand: decimal.FromInt(5),
	})

	clk := clock.NewManual(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	hub := broadcast.NewHub(nil)
	pickList := app.NewPickListService(store, store, clk, app.WithPublisher(hub))
	opts := []app.Option{app.WithPublisher(hub), app.WithPickListNotifier(pickList)}

	pricing := app.NewPricingService(store, store, store, clk, opts...)
	cart := app.NewCartService(store, pricing, clk, opts...)
	sessions := app.NewSessionService(store, clk, opts...)
	credit := app.NewCreditService(store, store, cart, opts...)

	mux := NewRouter(Services{
		Sessions:     sessions,
		Ender:        app.NewConversionService(store, credit, clk, opts...),
		Cart:         cart,
		Pricing:      pricing,
		Credit:       credit,
		PickList:     pickList,
		SalesSheet:   app.NewSalesSheetService(store, cart, salessheet.NewRenderer(language.AmericanEnglish), "USD", clk),
		Interactions: app.NewInteractionService(store, store, pricing, cart, credit, clk, opts...),
		Catalog:      app.NewCatalogService(store),
		Events:       hub,
		Stream:       StreamConfig{Heartbeat: time.Hour, Clock: clk},
	})
	return &testAPI{mux: mux, store: store, hub: hub, clock: clk}
}

func (a *testAPI) do(t *testing.T, method, path string, role domain.Role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.Header.Set(RoleHeader, string(role))
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) createSession(t *testing.T) domain.Session {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/sessions", domain.RoleHost,
		`{"host_id":"host-1","client_id":"client-1","title":"Friday drop","internal_notes":"push the edibles"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var sess domain.Session
	if err := json.NewDecoder(rec.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestRouter_NotFound(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/missing", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != codeNotFound {
		t.Fatalf("expected code %s, got %s", codeNotFound, resp.Code)
	}

	rec = api.do(t, http.MethodGet, "/sessions/nope", domain.RoleHost, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != codeSessionNotFound {
		t.Fatalf("expected code %s, got %s", codeSessionNotFound, resp.Code)
	}
}

func TestRouter_SessionLifecycle(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/sessions", domain.RoleClient, `{"host_id":"h","client_id":"client-1"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client-created session, got %d", rec.Code)
	}
	rec = api.do(t, http.MethodPost, "/sessions", "SPECTATOR", `{"host_id":"h","client_id":"client-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", rec.Code)
	}

	sess := api.createSession(t)
	if sess.Status != domain.SessionStatusActive || sess.InternalNotes == "" {
		t.Fatalf("unexpected created session: %+v", sess)
	}

	rec = api.do(t, http.MethodGet, "/sessions/"+sess.ID, domain.RoleClient, "")
	var seen domain.Session
	if err := json.NewDecoder(rec.Body).Decode(&seen); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if seen.InternalNotes != "" {
		t.Fatalf("expected internal notes hidden from client, got %q", seen.InternalNotes)
	}

	rec = api.do(t, http.MethodGet, "/rooms/"+sess.RoomToken, domain.RoleClient, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected room lookup to succeed, got %d", rec.Code)
	}

	for i := 0; i < 3; i++ {
		rec = api.do(t, http.MethodPost, "/sessions/"+sess.ID+"/extend", domain.RoleHost, "")
		if !strings.Contains(rec.Body.String(), `"extended":true`) {
			t.Fatalf("extension %d: expected extended, got %s", i+1, rec.Body.String())
		}
	}
	rec = api.do(t, http.MethodPost, "/sessions/"+sess.ID+"/extend", domain.RoleHost, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"extended":false`) {
		t.Fatalf("expected fourth extension to be refused with 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, "/sessions/"+sess.ID+"/status", domain.RoleHost, `{"status":"PAUSED"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", rec.Code)
	}
	rec = api.do(t, http.MethodPost, "/sessions/"+sess.ID+"/status", domain.RoleHost, `{"status":"CONVERTED"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for CONVERTED target, got %d", rec.Code)
	}
	rec = api.do(t, http.MethodPost, "/sessions/"+sess.ID+"/status", domain.RoleHost, `{"status":"PAUSED"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 pausing a paused session, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != codeInvalidTransition || resp.Details["status"] != "PAUSED" {
		t.Fatalf("unexpected error: %+v", resp)
	}
}

func TestRouter_CartFlow(t *testing.T) {
	api := newTestAPI(t)
	sess := api.createSession(t)
	other := api.createSession(t)
	base := "/sessions/" + sess.ID

	rec := api.do(t, http.MethodPost, base+"/cart/items", domain.RoleClient, `{"batch_id":"batch-1","quantity":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != codeValidationFailed {
		t.Fatalf("expected validation_failed, got %s", resp.Code)
	}

	rec = api.do(t, http.MethodPost, base+"/cart/items", domain.RoleClient, `{"batch_id":"batch-1","quantity":"3","item_status":"TO_PURCHASE"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add item: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var item domain.LineItem
	if err := json.NewDecoder(rec.Body).Decode(&item); err != nil {
		t.Fatalf("decode item: %v", err)
	}

	rec = api.do(t, http.MethodPost, "/sessions/"+other.ID+"/cart/items", domain.RoleClient, `{"batch_id":"batch-1","quantity":3}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when other session over-asks, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Code != codeInsufficientInventory || resp.Details["available"] != "2" {
		t.Fatalf("unexpected inventory error: %+v", resp)
	}

	rec = api.do(t, http.MethodGet, base+"/cart", "", "")
	var cart domain.Cart
	if err := json.NewDecoder(rec.Body).Decode(&cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if cart.ItemCount != 1 || cart.Total.String() != "30.00" {
		t.Fatalf("unexpected cart: %+v", cart)
	}

	rec = api.do(t, http.MethodGet, base+"/batches?q=bd", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"net_available":"5"`) {
		t.Fatalf("expected own cart not to reduce availability, got %s", rec.Body.String())
	}

	rec = api.do(t, http.MethodPatch, base+"/cart/items/"+item.ID, domain.RoleClient, `{"quantity":"0"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"removed":true`) {
		t.Fatalf("expected zero quantity to remove the line, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodDelete, base+"/cart/items/"+item.ID, domain.RoleClient, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 removing a removed line, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, base+"/end", domain.RoleHost, `{"convert_to_order":true}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 converting an empty cart, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != codeEmptyCart {
		t.Fatalf("expected empty_cart, got %s", resp.Code)
	}
}

func TestRouter_ConvertAndSalesSheet(t *testing.T) {
	api := newTestAPI(t)
	sess := api.createSession(t)
	base := "/sessions/" + sess.ID

	api.do(t, http.MethodPost, base+"/cart/items", domain.RoleClient, `{"batch_id":"batch-1","quantity":2,"item_status":"TO_PURCHASE"}`)

	rec := api.do(t, http.MethodPut, base+"/overrides/product-1", domain.RoleClient, `{"price":"8.50"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client override, got %d", rec.Code)
	}
	rec = api.do(t, http.MethodPut, base+"/overrides/product-1", domain.RoleHost, `{"price":"8.50"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set override: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodGet, base+"/quote?batch_id=batch-1", "", "")
	if !strings.Contains(rec.Body.String(), `"OVERRIDE"`) {
		t.Fatalf("expected override quote, got %s", rec.Body.String())
	}
	rec = api.do(t, http.MethodPost, base+"/prices/refresh", domain.RoleHost, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":"17.00"`) {
		t.Fatalf("expected refreshed total 17.00, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodGet, base+"/sales-sheet", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "BD-001") {
		t.Fatalf("unexpected sales sheet: %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, base+"/end", domain.RoleHost, `{"convert_to_order":true,"payment_terms":"NET30"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("convert: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodPost, base+"/end", domain.RoleHost, `{"convert_to_order":true}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"created":false`) {
		t.Fatalf("expected idempotent conversion, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, base+"/cart/items", domain.RoleClient, `{"batch_id":"batch-1","quantity":1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 adding to a converted session, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Details["status"] != "CONVERTED" {
		t.Fatalf("expected CONVERTED status detail, got %+v", resp)
	}
}

func TestRouter_AddItemRecordsActivity(t *testing.T) {
	api := newTestAPI(t)
	sess := api.createSession(t)

	api.clock.Advance(5 * time.Minute)
	rec := api.do(t, http.MethodPost, "/sessions/"+sess.ID+"/cart/items", domain.RoleClient, `{"batch_id":"batch-1","quantity":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add item: expected 201, got %d", rec.Code)
	}

	got, err := api.store.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !got.LastActivityAt.Equal(api.clock.Now()) {
		t.Fatalf("expected activity at %v, got %v", api.clock.Now(), got.LastActivityAt)
	}
}

func TestRouter_SessionEventStream(t *testing.T) {
	api := newTestAPI(t)
	sess := api.createSession(t)

	srv := httptest.NewServer(api.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+sess.ID+"/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if typ := readEventType(t, reader); typ != string(broadcast.EventConnected) {
		t.Fatalf("expected CONNECTED first, got %s", typ)
	}

	rec := api.do(t, http.MethodPost, "/sessions/"+sess.ID+"/cart/items", domain.RoleClient, `{"batch_id":"batch-1","quantity":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add item: expected 201, got %d", rec.Code)
	}
	if typ := readEventType(t, reader); typ != string(broadcast.EventCartUpdated) {
		t.Fatalf("expected CART_UPDATED, got %s", typ)
	}
}

func readEventType(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var typ string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" && typ != "" {
			return typ
		}
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			typ = v
		}
	}
}

func TestWriteServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"session not found", domain.ErrSessionNotFound, http.StatusNotFound, codeSessionNotFound},
		{"wrapped batch not found", errors.Join(errors.New("lookup"), domain.ErrBatchNotFound), http.StatusNotFound, codeBatchNotFound},
		{"invalid id", domain.ErrInvalidID, http.StatusNotFound, codeInvalidID},
		{"host only", domain.ErrHostOnly, http.StatusForbidden, codeHostOnly},
		{"invalid role", domain.ErrInvalidRole, http.StatusBadRequest, codeInvalidRole},
		{"invalid margin", domain.ErrInvalidMargin, http.StatusUnprocessableEntity, codeInvalidMargin},
		{"inventory", &domain.InsufficientInventoryError{Available: decimal.FromInt(2)}, http.StatusConflict, codeInsufficientInventory},
		{"state", &domain.InvalidSessionStateError{Status: domain.SessionStatusEnded}, http.StatusConflict, codeInvalidSessionState},
		{"credit", &domain.CreditDeclinedError{}, http.StatusUnprocessableEntity, codeCreditDeclined},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, codeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if resp := decodeError(t, rec); resp.Code != tt.wantCode {
				t.Fatalf("expected code %s, got %s", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestRouter_RejectsOutOfRangeDecimals(t *testing.T) {
	api := newTestAPI(t)
	sess := api.createSession(t)
	base := "/sessions/" + sess.ID

	tests := []struct {
		name   string
		method string
		path   string
		role   domain.Role
		body   string
	}{
		{"huge quantity", http.MethodPost, base + "/cart/items", domain.RoleClient, `{"batch_id":"batch-1","quantity":1e40}`},
		{"tiny quantity", http.MethodPost, base + "/cart/items", domain.RoleClient, `{"batch_id":"batch-1","quantity":"1e-40"}`},
		{"huge override", http.MethodPut, base + "/overrides/product-1", domain.RoleHost, `{"price":"1e40"}`},
		{"tiny override", http.MethodPut, base + "/overrides/product-1", domain.RoleHost, `{"price":1e-40}`},
		{"huge unit cost", http.MethodPost, "/admin/batches", domain.RoleHost,
			`{"code":"BD-9","product_name":"Big","category":"FLOWER","unit_cost":"1e40","on_hand":"1"}`},
		{"tiny unit cost", http.MethodPost, "/admin/batches", domain.RoleHost,
			`{"code":"BD-9","product_name":"Big","category":"FLOWER","unit_cost":"1e-40","on_hand":"1"}`},
		{"huge credit limit", http.MethodPost, "/admin/clients", domain.RoleHost, `{"name":"Acme","credit_limit":"1e40"}`},
		{"margin of 100", http.MethodPut, "/admin/clients/client-1/margins/FLOWER", domain.RoleHost, `{"percent":"100"}`},
		{"negative margin", http.MethodPut, "/admin/clients/client-1/margins/FLOWER", domain.RoleHost, `{"percent":"-0.5"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.role, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != codeValidationFailed {
				t.Fatalf("expected validation_failed, got %s", resp.Code)
			}
		})
	}

	rec := api.do(t, http.MethodPut, "/admin/clients/client-1/margins/FLOWER", domain.RoleHost, `{"percent":"99.5"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("margin 99.5: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodPost, base+"/cart/items", domain.RoleClient, `{"batch_id":"batch-1","quantity":"0.125"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("fractional quantity: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}
