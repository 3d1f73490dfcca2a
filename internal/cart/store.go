package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"larmone-cart/internal/catalog"
	"larmone-cart/internal/model"
)

// Fetcher supplies catalog snapshots. Implemented by catalog.Client.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, opts catalog.FetchOptions) (catalog.Snapshot, error)
}

// SnapshotStore persists cart snapshots. Implemented by storage.SQLiteStore
// and storage.NoopStore.
type SnapshotStore interface {
	Load() model.Cart
	Save(cart model.Cart) error
	Clear() error
}

// Defaults for the polling controller.
const (
	// DefaultMinRefreshInterval is how fresh a snapshot must be for an
	// unforced refresh to short-circuit.
	DefaultMinRefreshInterval = 4 * time.Second

	// DefaultPollInterval is the cadence of forced background refreshes.
	DefaultPollInterval = 15 * time.Second
)

// Options configures a Store.
type Options struct {
	Fetcher Fetcher
	Storage SnapshotStore
	Logger  *slog.Logger

	// FetchOptions are passed to every catalog refresh; admin surfaces set
	// IncludeInactive and Admin here.
	FetchOptions catalog.FetchOptions

	// Interactive marks a UI-attached instance. Polling never activates on
	// non-interactive instances (server rendering, CLI).
	Interactive bool

	// Zero values fall back to the package defaults above.
	MinRefreshInterval time.Duration
	PollInterval       time.Duration
}

// State is an observable view of the store handed to subscribers and the UI.
type State struct {
	Cart    model.Cart `json:"cart"`
	Loading bool       `json:"loading"`
	// Error is the human-readable message of the last failed operation,
	// empty after a success.
	Error string `json:"error,omitempty"`
}

// Store owns one cart and one catalog snapshot. Mutations are serialized by
// an operation lock (the Go rendering of the original single-threaded store);
// catalog refreshes coalesce through a single-flight group so concurrent
// callers share one network fetch.
//
// All state lives in explicit fields on the instance; there are deliberately
// no package-level poller or in-flight variables.
type Store struct {
	fetcher Fetcher
	storage SnapshotStore
	logger  *slog.Logger

	fetchOpts   catalog.FetchOptions
	interactive bool
	minRefresh  time.Duration
	pollEvery   time.Duration

	// opMu serializes mutation operations end to end, network included.
	opMu sync.Mutex

	// mu guards the fields below.
	mu          sync.Mutex
	cart        model.Cart
	snapshot    catalog.Snapshot
	lastRefresh time.Time
	loading     bool
	lastErr     string

	group singleflight.Group

	pollMu   sync.Mutex
	pollStop chan struct{}

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int

	drawerMu   sync.Mutex
	drawerOpen bool
}

// NewStore creates a cart store, materializing the persisted cart (or a fresh
// empty one) immediately.
func NewStore(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MinRefreshInterval <= 0 {
		opts.MinRefreshInterval = DefaultMinRefreshInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	s := &Store{
		fetcher:     opts.Fetcher,
		storage:     opts.Storage,
		logger:      opts.Logger,
		fetchOpts:   opts.FetchOptions,
		interactive: opts.Interactive,
		minRefresh:  opts.MinRefreshInterval,
		pollEvery:   opts.PollInterval,
		subs:        make(map[int]func(State)),
	}
	s.cart = opts.Storage.Load()
	return s
}

// === Observable State ===

// State returns the current observable state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Cart: s.cart.Clone(), Loading: s.loading, Error: s.lastErr}
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Subscribe registers a callback invoked after every state change.
// Returns an unsubscribe function. Callbacks run synchronously on the
// mutating goroutine and must not call back into the store.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	state := s.State()
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

// === Derived Views ===

// Items maps cart lines through the live catalog into display projections.
// The catalog wins for names and images, the cached summary backs it up, and
// a fixed placeholder image covers products with no image at all.
func (s *Store) Items() []model.CartItemView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]model.CartItemView, 0, len(s.cart.Items))
	for _, item := range s.cart.Items {
		view := model.CartItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Image:     model.FallbackImageURL,
		}

		summary := item.Product
		if entry, ok := s.snapshot.Lookup(item.ProductID, ""); ok {
			summary = entry.Summary()
		}
		if summary != nil {
			view.Name = summary.Name
			if img := summary.PrimaryImage(); img != "" {
				view.Image = img
			}
		}

		views = append(views, view)
	}
	return views
}

// ItemCount is the total number of units across all lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

// TotalAmount is the cart's grand total.
func (s *Store) TotalAmount() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total
}

// IsEmpty reports whether the cart holds no units.
func (s *Store) IsEmpty() bool {
	return s.ItemCount() == 0
}

// === Mutation API ===
// Every operation follows the same shape: validate against the live snapshot
// (refreshing it when needed), mutate the line list, reconcile, persist,
// notify. The operation lock keeps two mutations from interleaving.

// AddItem adds quantity units of a product, merging with an existing line.
// The desired total (existing + requested) is validated against live stock
// before anything is committed.
func (s *Store) AddItem(ctx context.Context, productID string, quantity int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if productID == "" {
		return s.fail(model.NewValidationError("productId", "a product identifier is required"))
	}
	if quantity < 1 {
		quantity = 1
	}

	s.begin()
	desired := s.Cart().Quantity(productID) + quantity

	entry, err := s.ensureAvailable(ctx, productID, desired)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if i := s.cart.Find(entry.ID); i >= 0 {
		s.cart.Items[i].Quantity = desired
	} else {
		s.cart.Items = append(s.cart.Items, model.CartItem{
			ID:        model.LineItemID(entry.ID),
			ProductID: entry.ID,
			Quantity:  desired,
			Product:   entry.Summary(),
		})
	}
	s.mu.Unlock()

	return s.commit()
}

// UpdateQuantity sets the absolute quantity of an existing line.
// Quantities at or below zero delegate to RemoveItem.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if productID == "" {
		return s.fail(model.NewValidationError("productId", "a product identifier is required"))
	}

	s.begin()
	if s.Cart().Find(productID) < 0 {
		return s.fail(model.NewNotFoundError("cart item"))
	}

	if _, err := s.ensureAvailable(ctx, productID, quantity); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if i := s.cart.Find(productID); i >= 0 {
		s.cart.Items[i].Quantity = quantity
	}
	s.mu.Unlock()

	return s.commit()
}

// Increment raises a line's quantity by one.
func (s *Store) Increment(ctx context.Context, productID string) error {
	return s.UpdateQuantity(ctx, productID, s.Cart().Quantity(productID)+1)
}

// Decrement lowers a line's quantity by one, removing the line at zero.
// Decrementing a product that is not in the cart is a no-op.
func (s *Store) Decrement(ctx context.Context, productID string) error {
	current := s.Cart().Quantity(productID)
	if current == 0 {
		return nil
	}
	return s.UpdateQuantity(ctx, productID, current-1)
}

// RemoveItem drops a line unconditionally. Removing a product that is not in
// the cart succeeds silently.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if productID == "" {
		return s.fail(model.NewValidationError("productId", "a product identifier is required"))
	}

	s.begin()

	s.mu.Lock()
	if i := s.cart.Find(productID); i >= 0 {
		s.cart.Items = append(s.cart.Items[:i], s.cart.Items[i+1:]...)
	}
	s.mu.Unlock()

	return s.commit()
}

// ClearCart resets to a fresh empty cart, independent of catalog state, and
// persists that exact state.
func (s *Store) ClearCart(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.begin()

	s.mu.Lock()
	s.cart = model.NewEmptyCart()
	cart := s.cart.Clone()
	s.mu.Unlock()

	if err := s.storage.Save(cart); err != nil {
		return s.fail(err)
	}
	s.finish("")
	s.notify()
	return nil
}

// EnsureAvailability forces a catalog refresh and verifies that the desired
// quantity of a product can be satisfied. A product without a known stock
// figure is treated as unconstrained, not as out of stock.
func (s *Store) EnsureAvailability(ctx context.Context, productID string, desired int) error {
	_, err := s.ensureAvailable(ctx, productID, desired)
	return err
}

// ensureAvailable refreshes the catalog, resolves the product and runs the
// stock gate. Returns the resolved entry for the caller to upsert from.
func (s *Store) ensureAvailable(ctx context.Context, productID string, desired int) (model.CatalogEntry, error) {
	if productID == "" {
		return model.CatalogEntry{}, model.NewValidationError("productId", "a product identifier is required")
	}

	if err := s.Refresh(ctx, true); err != nil {
		return model.CatalogEntry{}, err
	}

	s.mu.Lock()
	entry, ok := s.snapshot.Lookup(productID, "")
	s.mu.Unlock()
	if !ok {
		return model.CatalogEntry{}, model.NewNotFoundError("product " + productID)
	}

	if entry.HasStock() && desired > entry.StockCount() {
		name := entry.Name
		if name == "" {
			name = entry.ID
		}
		return model.CatalogEntry{}, model.NewStockError(name, entry.StockCount())
	}

	return entry, nil
}

// === UI Toggles ===
// Drawer state rides along with the store so a headless UI can bind to one
// object, but it touches neither the cart nor persistence.

// OpenDrawer, CloseDrawer and ToggleDrawer manage the cart drawer flag.
func (s *Store) OpenDrawer() { s.setDrawer(true) }

func (s *Store) CloseDrawer() { s.setDrawer(false) }

func (s *Store) ToggleDrawer() {
	s.drawerMu.Lock()
	s.drawerOpen = !s.drawerOpen
	s.drawerMu.Unlock()
}

// DrawerOpen reports whether the cart drawer is open.
func (s *Store) DrawerOpen() bool {
	s.drawerMu.Lock()
	defer s.drawerMu.Unlock()
	return s.drawerOpen
}

func (s *Store) setDrawer(open bool) {
	s.drawerMu.Lock()
	s.drawerOpen = open
	s.drawerMu.Unlock()
}

// === Operation Bookkeeping ===

// begin marks an operation in flight and clears the previous error.
func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
}

// commit reconciles the mutated cart against the current snapshot, persists
// it, and notifies subscribers.
func (s *Store) commit() error {
	s.mu.Lock()
	s.cart = Reconcile(s.cart, s.snapshot)
	cart := s.cart.Clone()
	s.mu.Unlock()

	if err := s.storage.Save(cart); err != nil {
		return s.fail(err)
	}

	s.finish("")
	s.notify()
	return nil
}

// fail records a human-readable error without touching the cart, notifies
// subscribers, and passes the error through.
func (s *Store) fail(err error) error {
	s.finish(userMessage(err))
	s.notify()
	return err
}

func (s *Store) finish(errMsg string) {
	s.mu.Lock()
	s.loading = false
	s.lastErr = errMsg
	s.mu.Unlock()
}

// userMessage extracts a displayable message from an error chain.
func userMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "something went wrong, please try again"
}
