package model

// CatalogEntry is one product as seen by the cart engine after the catalog
// client has normalized the backend's loosely-typed payload.
//
// Stock is nil when the backend reported no stock figure at all. The cart
// engine treats unknown stock as unconstrained, never as zero.
type CatalogEntry struct {
	ID       string
	SKU      string
	Name     string
	Slug     string
	Brand    string
	Price    *float64
	Stock    *float64
	Active   bool
	Featured bool
	Images   []ProductImage
}

// Summary builds the denormalized display snapshot cached on a cart line.
func (e *CatalogEntry) Summary() *ProductSummary {
	price := 0.0
	if e.Price != nil {
		price = *e.Price
	}
	imgs := make([]ProductImage, len(e.Images))
	copy(imgs, e.Images)
	return &ProductSummary{
		ID:       e.ID,
		SKU:      e.SKU,
		Name:     e.Name,
		Slug:     e.Slug,
		Brand:    e.Brand,
		Price:    price,
		Active:   e.Active,
		Featured: e.Featured,
		Images:   imgs,
	}
}

// HasStock reports whether the entry carries a known stock figure.
func (e *CatalogEntry) HasStock() bool {
	return e.Stock != nil
}

// StockCount returns the known stock as a non-negative integer.
// Only meaningful when HasStock is true.
func (e *CatalogEntry) StockCount() int {
	if e.Stock == nil {
		return 0
	}
	if *e.Stock < 0 {
		return 0
	}
	return int(*e.Stock)
}
