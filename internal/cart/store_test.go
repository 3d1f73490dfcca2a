package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"larmone-cart/internal/catalog"
	"larmone-cart/internal/clienthdr"
	"larmone-cart/internal/model"
)

// fakeFetcher counts fetches, records the options of the last one, and can
// inject latency and failures. Inactive entries are withheld unless the fetch
// asks for them, mirroring the backend's soloActivos behavior.
type fakeFetcher struct {
	mu       sync.Mutex
	calls    int
	lastOpts catalog.FetchOptions
	entries  []model.CatalogEntry
	err      error
	delay    time.Duration
}

func (f *fakeFetcher) FetchSnapshot(ctx context.Context, opts catalog.FetchOptions) (catalog.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	f.lastOpts = opts
	delay, err, entries := f.delay, f.err, f.entries
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	visible := make([]model.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Active && !opts.IncludeInactive {
			continue
		}
		visible = append(visible, e)
	}
	return catalog.BuildSnapshot(visible), nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) lastOptions() catalog.FetchOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

// memStore is an in-memory SnapshotStore that records saves.
type memStore struct {
	mu    sync.Mutex
	cart  model.Cart
	saves int
	err   error
}

func (m *memStore) Load() model.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cart.ID == "" {
		return model.NewEmptyCart()
	}
	return m.cart.Clone()
}

func (m *memStore) Save(cart model.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart = cart.Clone()
	m.saves++
	return nil
}

func (m *memStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = model.Cart{}
	return nil
}

func (m *memStore) saved() model.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Clone()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, fetcher *fakeFetcher, storage *memStore) *Store {
	t.Helper()
	if storage == nil {
		storage = &memStore{}
	}
	return NewStore(Options{
		Fetcher: fetcher,
		Storage: storage,
		Logger:  testLogger(),
	})
}

func TestAddItem_NewLine(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Name: "Serum", Price: ptr(19990), Stock: ptr(5), Active: true},
	}}
	storage := &memStore{}
	s := newTestStore(t, fetcher, storage)

	if err := s.AddItem(context.Background(), "prod-1", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	got := s.Cart()
	if len(got.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(got.Items))
	}
	if got.Items[0].Quantity != 2 {
		t.Errorf("quantity = %d, want 2", got.Items[0].Quantity)
	}
	if got.Items[0].UnitPrice != 19990 {
		t.Errorf("unit price = %v, want catalog 19990", got.Items[0].UnitPrice)
	}
	if got.Total != 2*19990 {
		t.Errorf("total = %v, want %v", got.Total, 2*19990.0)
	}
	if saved := storage.saved(); len(saved.Items) != 1 {
		t.Errorf("persisted items = %d, want 1", len(saved.Items))
	}
}

func TestAddItem_MergesExistingLine(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Name: "Serum", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)
	ctx := context.Background()

	if err := s.AddItem(ctx, "prod-1", 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.AddItem(ctx, "prod-1", 3); err != nil {
		t.Fatalf("second add: %v", err)
	}

	got := s.Cart()
	if len(got.Items) != 1 {
		t.Fatalf("items = %d, want 1 merged line", len(got.Items))
	}
	if got.Items[0].Quantity != 5 {
		t.Errorf("quantity = %d, want 5", got.Items[0].Quantity)
	}
}

func TestAddItem_StockGate(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Name: "Serum", Price: ptr(1000), Stock: ptr(5), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)
	ctx := context.Background()

	// Adding more than stock in one go fails.
	err := s.AddItem(ctx, "prod-1", 6)
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("AddItem(6) err = %v, want ErrInsufficientStock", err)
	}
	if !s.IsEmpty() {
		t.Errorf("cart mutated by rejected add")
	}

	// Exactly the stock is fine.
	if err := s.AddItem(ctx, "prod-1", 5); err != nil {
		t.Fatalf("AddItem(5): %v", err)
	}

	// One more unit now exceeds the available 5, because the gate checks
	// existing + requested.
	err = s.AddItem(ctx, "prod-1", 1)
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("AddItem(+1) err = %v, want ErrInsufficientStock", err)
	}
	if got := s.Cart().Quantity("prod-1"); got != 5 {
		t.Errorf("quantity after rejected add = %d, want 5", got)
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("stock error is not an APIError: %v", err)
	}
	if apiErr.StatusCode != 409 {
		t.Errorf("status = %d, want 409", apiErr.StatusCode)
	}
}

func TestAddItem_UnknownStockIsUnconstrained(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Name: "Serum", Price: ptr(1000), Active: true}, // nil stock
	}}
	s := newTestStore(t, fetcher, nil)

	if err := s.AddItem(context.Background(), "prod-1", 999); err != nil {
		t.Fatalf("AddItem with unknown stock: %v", err)
	}
	if got := s.Cart().Quantity("prod-1"); got != 999 {
		t.Errorf("quantity = %d, want 999", got)
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := newTestStore(t, fetcher, nil)

	err := s.AddItem(context.Background(), "nope", 1)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if state := s.State(); state.Error == "" {
		t.Errorf("state error not set after failed add")
	}
}

func TestAddItem_EmptyProductID(t *testing.T) {
	s := newTestStore(t, &fakeFetcher{}, nil)

	err := s.AddItem(context.Background(), "", 1)
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestAddItem_ZeroQuantityTreatedAsOne(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)

	if err := s.AddItem(context.Background(), "prod-1", 0); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if got := s.Cart().Quantity("prod-1"); got != 1 {
		t.Errorf("quantity = %d, want 1", got)
	}
}

func TestAddItem_CatalogFailureLeavesCartUntouched(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)
	ctx := context.Background()

	if err := s.AddItem(ctx, "prod-1", 1); err != nil {
		t.Fatalf("seed add: %v", err)
	}

	fetcher.mu.Lock()
	fetcher.err = model.NewCatalogError(errors.New("backend down"))
	fetcher.mu.Unlock()

	err := s.AddItem(ctx, "prod-1", 1)
	if !errors.Is(err, model.ErrCatalogFetch) {
		t.Fatalf("err = %v, want ErrCatalogFetch", err)
	}
	if got := s.Cart().Quantity("prod-1"); got != 1 {
		t.Errorf("quantity after failed refresh = %d, want 1", got)
	}
}

func TestUpdateQuantity(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)
	ctx := context.Background()

	if err := s.AddItem(ctx, "prod-1", 2); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := s.UpdateQuantity(ctx, "prod-1", 7); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := s.Cart().Quantity("prod-1"); got != 7 {
		t.Errorf("quantity = %d, want 7", got)
	}

	// Over stock is rejected.
	err := s.UpdateQuantity(ctx, "prod-1", 11)
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	// Zero removes the line.
	if err := s.UpdateQuantity(ctx, "prod-1", 0); err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if !s.IsEmpty() {
		t.Errorf("cart not empty after updating to zero")
	}
}

func TestUpdateQuantity_MissingLine(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)

	err := s.UpdateQuantity(context.Background(), "prod-1", 3)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for a line not in the cart", err)
	}
}

func TestIncrementDecrement(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)
	ctx := context.Background()

	if err := s.AddItem(ctx, "prod-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Increment(ctx, "prod-1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got := s.Cart().Quantity("prod-1"); got != 2 {
		t.Errorf("after increment quantity = %d, want 2", got)
	}

	if err := s.Decrement(ctx, "prod-1"); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := s.Decrement(ctx, "prod-1"); err != nil {
		t.Fatalf("decrement to zero: %v", err)
	}
	if !s.IsEmpty() {
		t.Errorf("cart not empty after decrementing to zero")
	}

	// Decrementing an absent product is a no-op, not an error.
	if err := s.Decrement(ctx, "prod-1"); err != nil {
		t.Errorf("decrement on empty cart: %v", err)
	}
}

func TestRemoveItem_AbsentIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)

	if err := s.RemoveItem(context.Background(), "never-added"); err != nil {
		t.Fatalf("RemoveItem on absent product: %v", err)
	}
}

func TestClearCart_PersistsEmptyState(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	storage := &memStore{}
	s := newTestStore(t, fetcher, storage)
	ctx := context.Background()

	if err := s.AddItem(ctx, "prod-1", 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.ClearCart(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if !s.IsEmpty() {
		t.Errorf("cart not empty after clear")
	}
	saved := storage.saved()
	if len(saved.Items) != 0 || saved.Total != 0 {
		t.Errorf("persisted cart not empty: %+v", saved)
	}
	if saved.ID == "" {
		t.Errorf("cleared cart has no ID")
	}
}

func TestRefresh_MinIntervalShortCircuits(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Active: true},
	}}
	s := NewStore(Options{
		Fetcher:            fetcher,
		Storage:            &memStore{},
		Logger:             testLogger(),
		MinRefreshInterval: time.Minute,
	})
	ctx := context.Background()

	if err := s.Refresh(ctx, false); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if err := s.Refresh(ctx, false); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	if got := fetcher.callCount(); got != 1 {
		t.Errorf("fetch count = %d, want 1 (fresh snapshot short-circuits)", got)
	}

	// A forced refresh ignores the interval.
	if err := s.Refresh(ctx, true); err != nil {
		t.Fatalf("forced refresh: %v", err)
	}
	if got := fetcher.callCount(); got != 2 {
		t.Errorf("fetch count = %d, want 2 after forced refresh", got)
	}
}

func TestRefresh_ConcurrentCallsCoalesce(t *testing.T) {
	fetcher := &fakeFetcher{
		entries: []model.CatalogEntry{{ID: "prod-1", Price: ptr(1000), Active: true}},
		delay:   50 * time.Millisecond,
	}
	s := newTestStore(t, fetcher, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Refresh(context.Background(), true); err != nil {
				t.Errorf("concurrent refresh: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fetcher.callCount(); got != 1 {
		t.Errorf("fetch count = %d, want 1 (concurrent refreshes share one fetch)", got)
	}
}

func TestRefresh_AdminContextUnlocksInactiveProducts(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Stock: ptr(10), Active: true},
		{ID: "retired", Name: "Retired", Price: ptr(500), Stock: ptr(3), Active: false},
	}}
	s := newTestStore(t, fetcher, nil)

	// Customer context: the inactive product is invisible.
	err := s.AddItem(context.Background(), "retired", 1)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("customer add of inactive product err = %v, want ErrNotFound", err)
	}
	if opts := fetcher.lastOptions(); opts.Admin || opts.IncludeInactive {
		t.Errorf("customer fetch options = %+v, want neither admin nor inactive", opts)
	}

	// Admin context widens the fetch and resolves the product.
	adminCtx := clienthdr.WithInfo(context.Background(), clienthdr.Info{Version: "1.4.0", Role: clienthdr.RoleAdmin})
	if err := s.AddItem(adminCtx, "retired", 1); err != nil {
		t.Fatalf("admin add of inactive product: %v", err)
	}
	if opts := fetcher.lastOptions(); !opts.Admin || !opts.IncludeInactive {
		t.Errorf("admin fetch options = %+v, want admin and inactive", opts)
	}
	if got := s.Cart().Quantity("retired"); got != 1 {
		t.Errorf("quantity = %d, want 1", got)
	}
}

func TestRefresh_SuccessClearsError(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)
	ctx := context.Background()

	if err := s.AddItem(ctx, "missing", 1); err == nil {
		t.Fatalf("add of unknown product succeeded")
	}
	if s.State().Error == "" {
		t.Fatalf("state error not set by failed add")
	}

	if err := s.Refresh(ctx, true); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := s.State().Error; got != "" {
		t.Errorf("state error = %q after successful refresh, want empty", got)
	}
}

func TestRefresh_FailurePreservesSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(2000), Stock: ptr(10), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)
	ctx := context.Background()

	if err := s.AddItem(ctx, "prod-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	fetcher.mu.Lock()
	fetcher.err = errors.New("network unreachable")
	fetcher.mu.Unlock()

	if err := s.Refresh(ctx, true); err == nil {
		t.Fatalf("refresh succeeded despite fetch failure")
	}

	// The old snapshot still serves availability checks via Items().
	views := s.Items()
	if len(views) != 1 || views[0].Name != "" && views[0].ProductID != "prod-1" {
		t.Errorf("views after failed refresh = %+v", views)
	}
	if got := s.Cart().Quantity("prod-1"); got != 1 {
		t.Errorf("cart changed after failed refresh")
	}
}

func TestRefresh_ReconcilesPricesIntoCart(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Name: "Serum", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	storage := &memStore{}
	s := newTestStore(t, fetcher, storage)
	ctx := context.Background()

	if err := s.AddItem(ctx, "prod-1", 2); err != nil {
		t.Fatalf("add: %v", err)
	}

	fetcher.mu.Lock()
	fetcher.entries = []model.CatalogEntry{
		{ID: "prod-1", Name: "Serum", Price: ptr(1500), Stock: ptr(10), Active: true},
	}
	fetcher.mu.Unlock()

	if err := s.Refresh(ctx, true); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got := s.Cart()
	if got.Items[0].UnitPrice != 1500 {
		t.Errorf("unit price after price change = %v, want 1500", got.Items[0].UnitPrice)
	}
	if got.Total != 3000 {
		t.Errorf("total = %v, want 3000", got.Total)
	}
	if saved := storage.saved(); saved.Total != 3000 {
		t.Errorf("persisted total = %v, want 3000", saved.Total)
	}
}

func TestSubscribe(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)

	var mu sync.Mutex
	var states []State
	unsub := s.Subscribe(func(st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	if err := s.AddItem(context.Background(), "prod-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	mu.Lock()
	n := len(states)
	mu.Unlock()
	if n == 0 {
		t.Fatalf("no notifications delivered")
	}

	mu.Lock()
	last := states[n-1]
	mu.Unlock()
	if last.Cart.ItemCount() != 1 {
		t.Errorf("last state item count = %d, want 1", last.Cart.ItemCount())
	}
	if last.Loading {
		t.Errorf("last state still loading")
	}

	unsub()
	before := n
	if err := s.RemoveItem(context.Background(), "prod-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	mu.Lock()
	after := len(states)
	mu.Unlock()
	if after != before {
		t.Errorf("callback fired after unsubscribe")
	}
}

func TestPollingLifecycle(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Active: true},
	}}
	s := NewStore(Options{
		Fetcher:      fetcher,
		Storage:      &memStore{},
		Logger:       testLogger(),
		Interactive:  true,
		PollInterval: 10 * time.Millisecond,
	})

	s.StartPolling()
	if !s.Polling() {
		t.Fatalf("Polling() = false after StartPolling")
	}
	s.StartPolling() // idempotent

	deadline := time.Now().Add(time.Second)
	for fetcher.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fetcher.callCount() < 2 {
		t.Errorf("poll loop never refreshed: %d fetches", fetcher.callCount())
	}

	s.StopPolling()
	if s.Polling() {
		t.Errorf("Polling() = true after StopPolling")
	}
	s.StopPolling() // idempotent
}

func TestPolling_NonInteractiveNeverStarts(t *testing.T) {
	s := newTestStore(t, &fakeFetcher{}, nil)

	s.StartPolling()
	if s.Polling() {
		t.Errorf("non-interactive store started polling")
	}
}

func TestDrawerToggles(t *testing.T) {
	s := newTestStore(t, &fakeFetcher{}, nil)

	if s.DrawerOpen() {
		t.Fatalf("drawer open by default")
	}
	s.OpenDrawer()
	if !s.DrawerOpen() {
		t.Errorf("OpenDrawer did not open")
	}
	s.ToggleDrawer()
	if s.DrawerOpen() {
		t.Errorf("ToggleDrawer did not close")
	}
	s.CloseDrawer()
	if s.DrawerOpen() {
		t.Errorf("CloseDrawer left drawer open")
	}
}

func TestItems_FallbackImage(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Name: "Serum", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	s := newTestStore(t, fetcher, nil)

	if err := s.AddItem(context.Background(), "prod-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	views := s.Items()
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
	if views[0].Image != model.FallbackImageURL {
		t.Errorf("image = %s, want fallback for product with no images", views[0].Image)
	}
	if views[0].Name != "Serum" {
		t.Errorf("name = %s, want live catalog name", views[0].Name)
	}
}

func TestStorageFailureSurfacesError(t *testing.T) {
	fetcher := &fakeFetcher{entries: []model.CatalogEntry{
		{ID: "prod-1", Price: ptr(1000), Stock: ptr(10), Active: true},
	}}
	storage := &memStore{err: model.NewStorageError("save", errors.New("disk full"))}
	s := newTestStore(t, fetcher, storage)

	err := s.AddItem(context.Background(), "prod-1", 1)
	if !errors.Is(err, model.ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
}
