package http

import "net/http"

// Services bundles everything the router dispatches to. Catalog and Store are
// optional.
type Services struct {
	Sessions     SessionManager
	Ender        SessionEnder
	Cart         CartManager
	Pricing      PriceManager
	Credit       CreditChecker
	PickList     PickListReader
	SalesSheet   SalesSheetGenerator
	Interactions Negotiator
	Catalog      CatalogAdmin
	Events       Subscriber
	Store        Pinger
	Stream       StreamConfig
}

// NewRouter registers every route on a fresh mux.
func NewRouter(s Services) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /health", HandleHealth(s.Store))

	mux.Handle("POST /sessions", HandleCreateSession(s.Sessions))
	mux.Handle("GET /sessions", HandleListSessions(s.Sessions))
	mux.Handle("GET /sessions/{id}", HandleGetSession(s.Sessions))
	mux.Handle("GET /rooms/{token}", HandleJoinRoom(s.Sessions))
	mux.Handle("POST /sessions/{id}/status", HandleUpdateSessionStatus(s.Sessions))
	mux.Handle("POST /sessions/{id}/activity", HandleSessionActivity(s.Sessions))
	mux.Handle("POST /sessions/{id}/extend", HandleExtendSession(s.Sessions))
	mux.Handle("POST /sessions/{id}/end", HandleEndSession(s.Ender))
	mux.Handle("PUT /sessions/{id}/notes", HandleUpdateNotes(s.Sessions))

	mux.Handle("GET /sessions/{id}/cart", HandleGetCart(s.Cart))
	mux.Handle("GET /sessions/{id}/cart/by-status", HandleCartByStatus(s.Cart))
	mux.Handle("POST /sessions/{id}/cart/items", HandleAddItem(s.Cart, s.Sessions))
	mux.Handle("PATCH /sessions/{id}/cart/items/{itemID}", HandleUpdateQuantity(s.Cart, s.Sessions))
	mux.Handle("DELETE /sessions/{id}/cart/items/{itemID}", HandleRemoveItem(s.Cart, s.Sessions))
	mux.Handle("POST /sessions/{id}/cart/items/{itemID}/status", HandleUpdateItemStatus(s.Cart, s.Sessions))
	mux.Handle("POST /sessions/{id}/cart/items/{itemID}/highlight", HandleHighlightItem(s.Cart))
	mux.Handle("GET /sessions/{id}/batches", HandleSearchBatches(s.Cart))
	mux.Handle("POST /sessions/{id}/prices/refresh", HandleRefreshPrices(s.Cart))

	mux.Handle("PUT /sessions/{id}/overrides/{productID}", HandleSetOverride(s.Pricing))
	mux.Handle("DELETE /sessions/{id}/overrides/{productID}", HandleRemoveOverride(s.Pricing))
	mux.Handle("GET /sessions/{id}/quote", HandleQuote(s.Pricing))

	mux.Handle("GET /sessions/{id}/credit", HandleCreditCheck(s.Credit))
	mux.Handle("GET /sessions/{id}/pick-list", HandlePickList(s.PickList))
	mux.Handle("GET /sessions/{id}/sales-sheet", HandleSalesSheet(s.SalesSheet))
	mux.Handle("POST /sessions/{id}/negotiations", HandleRequestNegotiation(s.Interactions))
	mux.Handle("POST /sessions/{id}/negotiations/respond", HandleRespondNegotiation(s.Interactions))
	mux.Handle("POST /sessions/{id}/checkout-request", HandleCheckoutRequest(s.Interactions))

	mux.Handle("GET /sessions/{id}/events", HandleSessionEvents(s.Sessions, s.Events, s.Stream))
	mux.Handle("GET /warehouse/events", HandleWarehouseEvents(s.Events, s.Stream))

	if s.Catalog != nil {
		mux.Handle("GET /admin/clients", HandleListClients(s.Catalog))
		mux.Handle("POST /admin/clients", HandleCreateClient(s.Catalog))
		mux.Handle("POST /admin/batches", HandleCreateBatch(s.Catalog))
		mux.Handle("PUT /admin/clients/{id}/margins/{category}", HandleSetMargin(s.Catalog))
	}

	mux.Handle("/", NotFoundHandler())
	return mux
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}
