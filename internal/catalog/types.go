package catalog

import (
	"strings"

	"larmone-cart/internal/model"
)

// === Wire Types ===
// The catalog backend keeps its original Spanish field names and is loose
// about numeric types: prices and stock figures arrive as numbers or quoted
// strings depending on which backend revision served the page. Fields that
// need coercion are declared as `any` and resolved through model.ParseAmount.

// pagedResponse is one page of the product listing endpoint.
type pagedResponse struct {
	Items      []productPayload `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
}

// productPayload is a raw product record as served by the backend.
type productPayload struct {
	ID        string         `json:"id"`
	ProductID string         `json:"id_producto"`
	SKU       string         `json:"sku"`
	Name      string         `json:"nombre"`
	Slug      string         `json:"slug"`
	Brand     string         `json:"marca"`
	Price     any            `json:"precio"`
	Active    *bool          `json:"activo"`
	Featured  *bool          `json:"destacado"`
	Images    []imagePayload `json:"imagenes"`

	// Competing stock field spellings across backend revisions.
	// resolveStock picks the first that parses as a finite number.
	StockTotal        any `json:"stockTotal"`
	StockAvailableOld any `json:"stock_disponible"`
	StockAvailable    any `json:"stockDisponible"`
	Stock             any `json:"stock"`
}

// imagePayload is a raw product image reference.
type imagePayload struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Primary bool   `json:"principal"`
	Order   int    `json:"orden"`
}

// normalize converts a raw payload into a typed catalog entry.
// Returns false when the record has no usable identifier; such records are
// skipped rather than published half-populated.
func normalize(p productPayload) (model.CatalogEntry, bool) {
	id := firstNonEmpty(p.ID, p.ProductID, p.Slug)
	if id == "" {
		return model.CatalogEntry{}, false
	}

	entry := model.CatalogEntry{
		ID:       id,
		SKU:      p.SKU,
		Name:     p.Name,
		Slug:     firstNonEmpty(p.Slug, id),
		Brand:    p.Brand,
		Active:   true,
		Featured: false,
	}
	if p.Active != nil {
		entry.Active = *p.Active
	}
	if p.Featured != nil {
		entry.Featured = *p.Featured
	}

	if price, ok := model.ParseAmount(p.Price); ok {
		entry.Price = &price
	}
	if stock, ok := resolveStock(p); ok {
		entry.Stock = &stock
	}

	for _, img := range p.Images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		entry.Images = append(entry.Images, model.ProductImage{
			URL:     img.URL,
			Alt:     img.Alt,
			Primary: img.Primary,
			Order:   img.Order,
		})
	}

	return entry, true
}

// resolveStock collapses the backend's stock field spellings into one figure.
// Order matters: newer spellings win over older ones.
func resolveStock(p productPayload) (float64, bool) {
	return model.FirstAmount(p.StockTotal, p.StockAvailableOld, p.StockAvailable, p.Stock)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
