// Package model defines the cart and catalog domain types shared across the
// storefront cart engine, plus the error taxonomy for API responses.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// FallbackImageURL is served for a line whose product has no resolvable image.
const FallbackImageURL = "/images/product-placeholder.svg"

// Cart is the aggregate root of the shopping cart.
// Subtotal, Discount, Tax and Total are derived fields: they are recomputed by
// cart.Reconcile on every mutation and never edited directly.
//
// Invariants after reconciliation:
//   - Total = max(0, Subtotal - Discount + Tax)
//   - no two items share a ProductID
//   - every item quantity is a positive integer
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId,omitempty"`
	Items     []CartItem `json:"items"`
	Subtotal  float64    `json:"subtotal"`
	Discount  float64    `json:"discount,omitempty"`
	Tax       float64    `json:"tax,omitempty"`
	Total     float64    `json:"total"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartItem is one line in the cart. Its ID is derived from the product ID so
// repeated reconciliation of the same cart is idempotent.
type CartItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice float64         `json:"unitPrice"`
	Subtotal  float64         `json:"subtotal"`
	Product   *ProductSummary `json:"product,omitempty"`
}

// ProductSummary is denormalized display data cached on a cart line.
// It is a cache, not a source of truth; the reconciliation engine refreshes it
// opportunistically from the catalog snapshot.
type ProductSummary struct {
	ID       string         `json:"id"`
	SKU      string         `json:"sku,omitempty"`
	Name     string         `json:"name"`
	Slug     string         `json:"slug"`
	Brand    string         `json:"brand,omitempty"`
	Price    float64        `json:"price"`
	Active   bool           `json:"active"`
	Featured bool           `json:"featured"`
	Images   []ProductImage `json:"images,omitempty"`
}

// ProductImage is a single product image reference.
type ProductImage struct {
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Primary bool   `json:"primary,omitempty"`
	Order   int    `json:"order,omitempty"`
}

// CartItemView is the display projection of a cart line handed to UI layers.
// Name and image come from the live catalog when available, falling back to
// the cached summary, then to FallbackImageURL.
type CartItemView struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Name      string  `json:"name,omitempty"`
	Image     string  `json:"image"`
}

// NewEmptyCart creates a cart with a fresh identifier and no items.
// The identifier is stable for the cart's lifetime; clearing the cart
// generates a new one.
func NewEmptyCart() Cart {
	return Cart{
		ID:        newCartID(),
		Items:     []CartItem{},
		Subtotal:  0,
		Total:     0,
		UpdatedAt: time.Now().UTC(),
	}
}

// LineItemID derives the stable per-line identifier for a product.
// Deterministic so reconciliation never churns line ids.
func LineItemID(productID string) string {
	if productID == "" {
		return "item"
	}
	return "item-" + productID
}

// newCartID generates an opaque cart identifier.
func newCartID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// Timestamp fallback keeps ids unique enough for a single-user cart.
		return "cart-" + time.Now().UTC().Format("20060102150405.000000000")
	}
	return "cart-" + hex.EncodeToString(buf)
}

// Find returns the index of the line holding productID, or -1.
func (c Cart) Find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Quantity returns the quantity currently held for productID, 0 if absent.
func (c Cart) Quantity(productID string) int {
	if i := c.Find(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// ItemCount is the total number of units across all lines.
func (c *Cart) ItemCount() int {
	count := 0
	for i := range c.Items {
		count += c.Items[i].Quantity
	}
	return count
}

// IsEmpty reports whether the cart holds no units.
func (c *Cart) IsEmpty() bool {
	return c.ItemCount() == 0
}

// Clone returns a deep copy of the cart. Store methods hand out clones so
// callers can never mutate engine-owned state.
func (c *Cart) Clone() Cart {
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	for i := range out.Items {
		if out.Items[i].Product != nil {
			p := *out.Items[i].Product
			if p.Images != nil {
				imgs := make([]ProductImage, len(p.Images))
				copy(imgs, p.Images)
				p.Images = imgs
			}
			out.Items[i].Product = &p
		}
	}
	return out
}

// PrimaryImage resolves the display image for a summary: the image flagged as
// primary, else the first image, else empty.
func (p *ProductSummary) PrimaryImage() string {
	if p == nil {
		return ""
	}
	for _, img := range p.Images {
		if img.Primary && img.URL != "" {
			return img.URL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}
