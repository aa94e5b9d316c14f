package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/arpit8955/ecommerce/internal/orders"
)

type OrdersHandler struct {
	Svc  *orders.Service
	Auth *Authenticator
	Log  *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)

	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Middleware)

		r.Post("/checkout", h.checkout)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/pay", h.pay)

		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addCartItem)
		r.Delete("/cart/items/{productId}", h.removeCartItem)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.Auth.Middleware, RequireRole(RoleAdmin))

		r.Get("/orders", h.adminListOrders)
		r.Get("/orders/{id}", h.adminGetOrder)
		r.Patch("/orders/{id}/status", h.adminUpdateStatus)
		r.Post("/products", h.adminCreateProduct)
		r.Post("/products/{id}/restock", h.adminRestock)
	})
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Checkout(ctx, p.UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Pay(ctx, chi.URLParam(r, "id"), p.UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	page, err := h.Svc.ListOrders(ctx, orders.ListFilter{
		UserID: p.UserID,
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache dulu, fallback DB (di dalam service)
	o, err := h.Svc.GetOrder(ctx, chi.URLParam(r, "id"), p.UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Svc.ListProducts(ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

// queryInt returns 0 for a missing or malformed value; the service applies defaults.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
