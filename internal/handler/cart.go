package handler

import (
	"net/http"

	"larmone-cart/internal/model"
)

// cartResponse is the full observable cart state plus derived views, shaped
// for direct binding by UI layers.
type cartResponse struct {
	Cart        model.Cart           `json:"cart"`
	Items       []model.CartItemView `json:"items"`
	ItemCount   int                  `json:"itemCount"`
	TotalAmount float64              `json:"totalAmount"`
	IsEmpty     bool                 `json:"isEmpty"`
	Loading     bool                 `json:"loading"`
	Error       string               `json:"error,omitempty"`
	DrawerOpen  bool                 `json:"drawerOpen"`
}

func (h *Handler) cartState() cartResponse {
	state := h.store.State()
	return cartResponse{
		Cart:        state.Cart,
		Items:       h.store.Items(),
		ItemCount:   state.Cart.ItemCount(),
		TotalAmount: state.Cart.Total,
		IsEmpty:     state.Cart.IsEmpty(),
		Loading:     state.Loading,
		Error:       state.Error,
		DrawerOpen:  h.store.DrawerOpen(),
	}
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cartState())
}

func (h *Handler) handleGetItems(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Items())
}

// addItemRequest is the body of POST /cart/items.
type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if err := h.store.AddItem(r.Context(), req.ProductID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartState())
}

// updateQuantityRequest is the body of PATCH /cart/items/{productId}.
type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.store.UpdateQuantity(r.Context(), r.PathValue("productId"), req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartState())
}

func (h *Handler) handleIncrement(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Increment(r.Context(), r.PathValue("productId")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartState())
}

func (h *Handler) handleDecrement(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Decrement(r.Context(), r.PathValue("productId")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartState())
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RemoveItem(r.Context(), r.PathValue("productId")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartState())
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearCart(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartState())
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Refresh(r.Context(), true); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartState())
}

// availabilityRequest is the body of POST /cart/availability.
type availabilityRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.store.EnsureAvailability(r.Context(), req.ProductID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"available": true})
}
