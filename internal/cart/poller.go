package cart

import (
	"context"
	"log/slog"
	"time"

	"larmone-cart/internal/clienthdr"
)

// === Inventory Polling Controller ===
// One logical state machine per store: Idle → Fetching → Idle. Concurrent
// refresh requests collapse into a single network fetch through the
// singleflight group, and a fresh-enough snapshot short-circuits unforced
// refreshes entirely.

// Refresh rebuilds the catalog snapshot and re-reconciles the cart.
//
// Unforced refreshes resolve immediately from cache when the last successful
// refresh is younger than the minimum interval. Concurrent callers await the
// same in-flight fetch rather than issuing duplicates, so no caller ever
// observes a snapshot older than the one its own call triggered.
//
// An admin client identified on the request context widens the fetch to
// include inactive products; admin and customer fetches coalesce separately
// so an admin refresh is never satisfied by an in-flight customer one.
//
// On failure the previous snapshot and the cart are left untouched and the
// error is returned to the caller.
func (s *Store) Refresh(ctx context.Context, force bool) error {
	if !force {
		s.mu.Lock()
		fresh := s.snapshot != nil && time.Since(s.lastRefresh) < s.minRefresh
		s.mu.Unlock()
		if fresh {
			return nil
		}
	}

	opts := s.fetchOpts
	key := "catalog-refresh"
	if clienthdr.FromContext(ctx).IsAdmin() {
		opts.Admin = true
		opts.IncludeInactive = true
		key = "catalog-refresh-admin"
	}

	_, err, _ := s.group.Do(key, func() (any, error) {
		snap, err := s.fetcher.FetchSnapshot(ctx, opts)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.snapshot = snap
		s.lastRefresh = time.Now()
		s.cart = Reconcile(s.cart, snap)
		cart := s.cart.Clone()
		s.mu.Unlock()

		// A persistence hiccup must not discard a successful refresh; the
		// next mutation will persist the reconciled cart again.
		if err := s.storage.Save(cart); err != nil {
			s.logger.Warn("could not persist reconciled cart",
				slog.String("error", err.Error()))
		}

		return nil, nil
	})
	if err != nil {
		s.mu.Lock()
		s.lastErr = userMessage(err)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
	return nil
}

// StartPolling begins the fixed-interval forced refresh loop. Idempotent:
// calling it while polling is already running has no effect. Polling never
// activates on a non-interactive store instance.
func (s *Store) StartPolling() {
	if !s.interactive {
		return
	}

	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.pollStop != nil {
		return
	}

	stop := make(chan struct{})
	s.pollStop = stop
	go s.pollLoop(stop)

	s.logger.Info("inventory polling started",
		slog.Duration("interval", s.pollEvery))
}

// StopPolling cancels the polling loop. Must be called when the owning UI
// context is torn down or the timer keeps firing.
func (s *Store) StopPolling() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.pollStop == nil {
		return
	}
	close(s.pollStop)
	s.pollStop = nil

	s.logger.Info("inventory polling stopped")
}

// Polling reports whether the background loop is running.
func (s *Store) Polling() bool {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	return s.pollStop != nil
}

func (s *Store) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.pollEvery)
			if err := s.Refresh(ctx, true); err != nil {
				s.logger.Warn("inventory poll failed",
					slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}
