package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arpit8955/ecommerce/internal/orders"
)

type addCartItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *OrdersHandler) getCart(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	c, err := h.Svc.GetCart(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, normalizeCart(c.UserID, c.Items))
}

func (h *OrdersHandler) addCartItem(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	var req addCartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, errBody("missing product_id"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	c, err := h.Svc.AddCartItem(r.Context(), p.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, normalizeCart(c.UserID, c.Items))
}

func (h *OrdersHandler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	c, err := h.Svc.RemoveCartItem(r.Context(), p.UserID, chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, normalizeCart(c.UserID, c.Items))
}

func normalizeCart(userID string, items []orders.CartItem) orders.Cart {
	if items == nil {
		items = []orders.CartItem{}
	}
	return orders.Cart{UserID: userID, Items: items}
}
