// Package handler provides the HTTP surface of the cart service.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"larmone-cart/internal/cart"
	"larmone-cart/internal/checkout"
	"larmone-cart/internal/model"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store  *cart.Store
	flow   *checkout.Flow
	logger *slog.Logger
}

// New creates a Handler around a cart store and checkout flow.
func New(store *cart.Store, flow *checkout.Flow, logger *slog.Logger) *Handler {
	return &Handler{store: store, flow: flow, logger: logger}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Cart state and derived views
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("GET /cart/items", h.handleGetItems)

	// Cart mutations
	mux.HandleFunc("POST /cart/items", h.handleAddItem)
	mux.HandleFunc("PATCH /cart/items/{productId}", h.handleUpdateQuantity)
	mux.HandleFunc("POST /cart/items/{productId}/increment", h.handleIncrement)
	mux.HandleFunc("POST /cart/items/{productId}/decrement", h.handleDecrement)
	mux.HandleFunc("DELETE /cart/items/{productId}", h.handleRemoveItem)
	mux.HandleFunc("POST /cart/clear", h.handleClearCart)
	mux.HandleFunc("POST /cart/refresh", h.handleRefresh)
	mux.HandleFunc("POST /cart/availability", h.handleAvailability)

	// Checkout flow
	mux.HandleFunc("GET /checkout/shipping-options", h.handleShippingOptions)
	mux.HandleFunc("POST /checkout/mode", h.handleSetMode)
	mux.HandleFunc("POST /checkout/shipping", h.handleSetShipping)
	mux.HandleFunc("POST /checkout/payment", h.handlePayment)
	mux.HandleFunc("POST /checkout/clear", h.handleClearCheckout)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if
// present. Uses errors.As() to unwrap error chains.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if errors.As(err, &apiErr) {
		// Found APIError in error chain - use it
	} else {
		apiErr = &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// handleHealth responds to health probes.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
