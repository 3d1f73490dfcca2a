// MCP transport handler for the cart service using the official MCP Go SDK.
// Exposes cart operations as MCP tools so agent clients can drive the same
// engine the storefront UI binds to.
package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"larmone-cart/internal/model"
)

// === MCP Tool Input Types ===

// GetCartInput is the input schema for the get_cart tool.
type GetCartInput struct{}

// AddItemInput is the input schema for the add_item tool.
type AddItemInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID,required"`
	Quantity  int    `json:"quantity,omitempty" jsonschema:"quantity, defaults to 1"`
}

// UpdateQuantityInput is the input schema for the update_quantity tool.
type UpdateQuantityInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID,required"`
	Quantity  int    `json:"quantity" jsonschema:"absolute quantity; 0 removes the line,required"`
}

// RemoveItemInput is the input schema for the remove_item tool.
type RemoveItemInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID,required"`
}

// ClearCartInput is the input schema for the clear_cart tool.
type ClearCartInput struct{}

// CheckAvailabilityInput is the input schema for the check_availability tool.
type CheckAvailabilityInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID,required"`
	Quantity  int    `json:"quantity" jsonschema:"desired quantity,required"`
}

// AvailabilityResult is the output of check_availability.
type AvailabilityResult struct {
	Available bool `json:"available"`
}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "larmone-cart",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Larmone storefront cart operations. " +
				"Use these tools to inspect and mutate the shopping cart; quantities " +
				"are validated against live inventory before committing.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the current cart state with derived totals and display items.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_item",
		Description: "Add a product to the cart. The desired total quantity is validated against live stock.",
	}, h.mcpAddItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_quantity",
		Description: "Set the absolute quantity of a cart line. Zero or below removes the line.",
	}, h.mcpUpdateQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_item",
		Description: "Remove a cart line. Removing a product that is not in the cart succeeds silently.",
	}, h.mcpRemoveItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Reset to a fresh empty cart.",
	}, h.mcpClearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_availability",
		Description: "Force a catalog refresh and verify a desired quantity can be satisfied.",
	}, h.mcpCheckAvailability)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetCartInput,
) (*mcp.CallToolResult, *cartResponse, error) {
	state := h.cartState()
	return nil, &state, nil
}

func (h *Handler) mcpAddItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddItemInput,
) (*mcp.CallToolResult, *cartResponse, error) {
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}

	if err := h.store.AddItem(ctx, input.ProductID, quantity); err != nil {
		return nil, nil, h.mcpError(err)
	}

	state := h.cartState()
	return nil, &state, nil
}

func (h *Handler) mcpUpdateQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateQuantityInput,
) (*mcp.CallToolResult, *cartResponse, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}

	if err := h.store.UpdateQuantity(ctx, input.ProductID, input.Quantity); err != nil {
		return nil, nil, h.mcpError(err)
	}

	state := h.cartState()
	return nil, &state, nil
}

func (h *Handler) mcpRemoveItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveItemInput,
) (*mcp.CallToolResult, *cartResponse, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}

	if err := h.store.RemoveItem(ctx, input.ProductID); err != nil {
		return nil, nil, h.mcpError(err)
	}

	state := h.cartState()
	return nil, &state, nil
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ClearCartInput,
) (*mcp.CallToolResult, *cartResponse, error) {
	if err := h.store.ClearCart(ctx); err != nil {
		return nil, nil, h.mcpError(err)
	}

	state := h.cartState()
	return nil, &state, nil
}

func (h *Handler) mcpCheckAvailability(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CheckAvailabilityInput,
) (*mcp.CallToolResult, *AvailabilityResult, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}

	if err := h.store.EnsureAvailability(ctx, input.ProductID, input.Quantity); err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, &AvailabilityResult{Available: true}, nil
}

// mcpError converts engine errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	if apiErr, ok := err.(*model.APIError); ok {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
