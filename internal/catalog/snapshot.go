package catalog

import "larmone-cart/internal/model"

// Snapshot is a read-only index of the catalog keyed by product ID.
// It is rebuilt wholesale on every refresh and shared by the reconciliation
// engine and the mutation API; nothing patches it in place.
type Snapshot map[string]model.CatalogEntry

// BuildSnapshot indexes entries by product ID. Later duplicates win, matching
// the backend's own "latest revision is authoritative" behavior.
func BuildSnapshot(entries []model.CatalogEntry) Snapshot {
	snap := make(Snapshot, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		snap[e.ID] = e
	}
	return snap
}

// Lookup resolves a product by primary ID, falling back to a secondary ID
// (typically the cached summary's ID on a cart line).
func (s Snapshot) Lookup(productID, fallbackID string) (model.CatalogEntry, bool) {
	if e, ok := s[productID]; ok {
		return e, true
	}
	if fallbackID != "" && fallbackID != productID {
		if e, ok := s[fallbackID]; ok {
			return e, true
		}
	}
	return model.CatalogEntry{}, false
}
