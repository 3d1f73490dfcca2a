package storage

import (
	"encoding/json"
	"time"

	"larmone-cart/internal/model"
)

// === Snapshot Sanitization ===
// Persisted snapshots may come from older app revisions or be corrupted, so
// they are re-validated field by field on every load. Loose numeric fields go
// through model.ParseAmount; anything that cannot be repaired is dropped
// rather than carried forward half-populated.

// rawCart mirrors the snapshot JSON with coercible fields left untyped.
type rawCart struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Items     json.RawMessage `json:"items"`
	Discount  any             `json:"discount"`
	Tax       any             `json:"tax"`
	UpdatedAt string          `json:"updatedAt"`
}

type rawItem struct {
	ID        string      `json:"id"`
	ProductID string      `json:"productId"`
	Quantity  any         `json:"quantity"`
	UnitPrice any         `json:"unitPrice"`
	Subtotal  any         `json:"subtotal"`
	Product   *rawSummary `json:"product"`
}

type rawSummary struct {
	ID       string               `json:"id"`
	SKU      string               `json:"sku"`
	Name     string               `json:"name"`
	Slug     string               `json:"slug"`
	Brand    string               `json:"brand"`
	Price    any                  `json:"price"`
	Active   *bool                `json:"active"`
	Featured *bool                `json:"featured"`
	Images   []model.ProductImage `json:"images"`
}

// SanitizeCart parses a stored snapshot into a valid cart.
// A snapshot that is not a JSON object, or whose items field is not an array,
// yields a fresh empty cart. Individual malformed items are dropped.
func SanitizeCart(payload []byte) model.Cart {
	var raw rawCart
	if err := json.Unmarshal(payload, &raw); err != nil {
		return model.NewEmptyCart()
	}

	var rawItems []rawItem
	if len(raw.Items) > 0 {
		if err := json.Unmarshal(raw.Items, &rawItems); err != nil {
			return model.NewEmptyCart()
		}
	}

	cart := model.NewEmptyCart()
	if raw.ID != "" {
		cart.ID = raw.ID
	}
	cart.UserID = raw.UserID

	seen := make(map[string]bool, len(rawItems))
	for _, ri := range rawItems {
		item, ok := sanitizeItem(ri)
		if !ok || seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		cart.Items = append(cart.Items, item)
		cart.Subtotal += item.Subtotal
	}

	if d, ok := model.ParseAmount(raw.Discount); ok && d > 0 {
		cart.Discount = d
	}
	if t, ok := model.ParseAmount(raw.Tax); ok && t > 0 {
		cart.Tax = t
	}
	cart.Total = cart.Subtotal - cart.Discount + cart.Tax
	if cart.Total < 0 {
		cart.Total = 0
	}

	if ts, err := time.Parse(time.RFC3339Nano, raw.UpdatedAt); err == nil {
		cart.UpdatedAt = ts
	}

	return cart
}

// sanitizeItem validates one stored line. Lines without a resolvable product
// ID or a positive quantity are unrecoverable and dropped.
func sanitizeItem(ri rawItem) (model.CartItem, bool) {
	quantity := model.CoerceQuantity(ri.Quantity)
	if quantity <= 0 {
		return model.CartItem{}, false
	}

	productID := ri.ProductID
	summary := sanitizeSummary(ri.Product)
	if productID == "" && summary != nil {
		productID = summary.ID
	}
	if productID == "" {
		return model.CartItem{}, false
	}

	unitPrice, ok := model.ParseAmount(ri.UnitPrice)
	if !ok {
		if summary != nil {
			unitPrice = summary.Price
		} else {
			unitPrice = 0
		}
	}

	subtotal, ok := model.ParseAmount(ri.Subtotal)
	if !ok {
		subtotal = float64(quantity) * unitPrice
	}

	id := ri.ID
	if id == "" {
		id = model.LineItemID(productID)
	}

	return model.CartItem{
		ID:        id,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  subtotal,
		Product:   summary,
	}, true
}

// sanitizeSummary repairs the cached product summary, defaulting flags the
// way the catalog does (active true, featured false).
func sanitizeSummary(rs *rawSummary) *model.ProductSummary {
	if rs == nil {
		return nil
	}

	id := rs.ID
	if id == "" {
		id = rs.Slug
	}
	if id == "" {
		return nil
	}

	summary := &model.ProductSummary{
		ID:       id,
		SKU:      rs.SKU,
		Name:     rs.Name,
		Slug:     rs.Slug,
		Brand:    rs.Brand,
		Active:   true,
		Featured: false,
		Images:   rs.Images,
	}
	if summary.Slug == "" {
		summary.Slug = id
	}
	if price, ok := model.ParseAmount(rs.Price); ok {
		summary.Price = price
	}
	if rs.Active != nil {
		summary.Active = *rs.Active
	}
	if rs.Featured != nil {
		summary.Featured = *rs.Featured
	}
	return summary
}
