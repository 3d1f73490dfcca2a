// Package cart implements the client-authoritative shopping cart engine:
// a reconciliation function that keeps cart lines consistent with the latest
// catalog snapshot, a mutation API gated by live stock, and a polling
// controller that refreshes the snapshot with single-flight coalescing.
package cart

import (
	"time"

	"larmone-cart/internal/catalog"
	"larmone-cart/internal/model"
)

// Reconcile recomputes a cart against a catalog snapshot. Pure function, no
// I/O: callers persist the result themselves.
//
// For each line it resolves the product (primary ID first, cached summary ID
// as fallback), refreshes the cached summary on a hit, and takes the catalog
// price only when it is a finite number; a product whose price vanished from
// the catalog keeps its last known price. Lines whose quantity coerces to
// zero or below are dropped, as are duplicates of an already-seen product.
// Totals are then rederived: subtotal is the sum of line subtotals, discount
// and tax pass through only when positive and finite, and the grand total is
// clamped at zero.
//
// Idempotent: reconciling the result again with the same snapshot yields an
// identical cart apart from UpdatedAt.
func Reconcile(c model.Cart, snap catalog.Snapshot) model.Cart {
	out := c.Clone()

	items := make([]model.CartItem, 0, len(out.Items))
	seen := make(map[string]bool, len(out.Items))
	subtotal := 0.0

	for _, item := range out.Items {
		if item.Quantity <= 0 {
			continue
		}

		fallbackID := ""
		if item.Product != nil {
			fallbackID = item.Product.ID
		}
		if entry, ok := snap.Lookup(item.ProductID, fallbackID); ok {
			item.ProductID = entry.ID
			item.Product = entry.Summary()
			if entry.Price != nil && model.IsFiniteNumber(*entry.Price) {
				item.UnitPrice = *entry.Price
			}
		}

		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true

		if !model.IsFiniteNumber(item.UnitPrice) {
			item.UnitPrice = 0
		}
		item.ID = model.LineItemID(item.ProductID)
		item.Subtotal = float64(item.Quantity) * item.UnitPrice

		items = append(items, item)
		subtotal += item.Subtotal
	}

	out.Items = items
	out.Subtotal = subtotal

	if !(out.Discount > 0) || !model.IsFiniteNumber(out.Discount) {
		out.Discount = 0
	}
	if !(out.Tax > 0) || !model.IsFiniteNumber(out.Tax) {
		out.Tax = 0
	}

	out.Total = out.Subtotal - out.Discount + out.Tax
	if out.Total < 0 {
		out.Total = 0
	}

	out.UpdatedAt = time.Now().UTC()
	return out
}
