package handler

import (
	"net/http"

	"larmone-cart/internal/checkout"
)

// checkoutResponse is the observable checkout state.
type checkoutResponse struct {
	ReadyForShipping bool                   `json:"readyForShipping"`
	ReadyForPayment  bool                   `json:"readyForPayment"`
	ShippingCost     float64                `json:"shippingCost"`
	PaymentStatus    checkout.PaymentStatus `json:"paymentStatus"`
}

func (h *Handler) checkoutState() checkoutResponse {
	return checkoutResponse{
		ReadyForShipping: h.flow.ReadyForShipping(),
		ReadyForPayment:  h.flow.ReadyForPayment(),
		ShippingCost:     h.flow.ShippingCost(),
		PaymentStatus:    h.flow.Status(),
	}
}

func (h *Handler) handleShippingOptions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, checkout.ShippingOptions())
}

// setModeRequest is the body of POST /checkout/mode.
type setModeRequest struct {
	Mode checkout.PurchaseMode `json:"mode"`
}

func (h *Handler) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.flow.SetPurchaseMode(req.Mode); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.checkoutState())
}

// setShippingRequest is the body of POST /checkout/shipping.
type setShippingRequest struct {
	Address  checkout.Address `json:"address"`
	OptionID string           `json:"optionId"`
}

func (h *Handler) handleSetShipping(w http.ResponseWriter, r *http.Request) {
	var req setShippingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.flow.SetShippingDetails(req.Address, req.OptionID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.checkoutState())
}

// paymentRequest is the body of POST /checkout/payment.
// ForceStatus lets the demo storefront exercise both outcomes.
type paymentRequest struct {
	ForceStatus checkout.PaymentStatus `json:"forceStatus,omitempty"`
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	status, err := h.flow.ProcessPayment(r.Context(), req.ForceStatus)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// A successful payment empties the cart; a failed one leaves it intact
	// so the shopper can retry.
	if status == checkout.PaymentSuccess {
		if err := h.store.ClearCart(r.Context()); err != nil {
			h.writeError(w, err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, h.checkoutState())
}

func (h *Handler) handleClearCheckout(w http.ResponseWriter, r *http.Request) {
	h.flow.Clear()
	h.writeJSON(w, http.StatusOK, h.checkoutState())
}
