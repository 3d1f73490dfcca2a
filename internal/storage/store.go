// Package storage persists cart snapshots in a local SQLite key-value table.
//
// The cart is always written whole and read whole (last-write-wins); there is
// no optimistic concurrency because a storefront instance owns its cart.
// A load can never surface a broken cart: anything unreadable degrades to a
// fresh empty cart.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"larmone-cart/internal/model"
)

// CartKey is the snapshot key for the active cart. Versioned so a future
// incompatible snapshot format can change keys instead of migrating rows.
const CartKey = "larmone_cart_v1"

const schema = `
CREATE TABLE IF NOT EXISTS cart_snapshots (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLiteStore persists cart snapshots in a SQLite database file.
type SQLiteStore struct {
	db     *sqlx.DB
	key    string
	logger *slog.Logger
}

// Open creates (or opens) the snapshot database at path.
// WAL mode and a busy timeout keep the single-writer workload smooth when the
// poller and a mutation persist back to back.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot table: %w", err)
	}
	return &SQLiteStore{db: db, key: CartKey, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the persisted cart snapshot. A missing, unreadable or
// structurally invalid snapshot yields a fresh empty cart; Load never fails.
func (s *SQLiteStore) Load() model.Cart {
	var payload string
	err := s.db.Get(&payload, `SELECT payload FROM cart_snapshots WHERE key = ?`, s.key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("could not read cart snapshot, starting fresh",
				slog.String("error", err.Error()))
		}
		return model.NewEmptyCart()
	}
	return SanitizeCart([]byte(payload))
}

// Save serializes and writes the full cart unconditionally.
func (s *SQLiteStore) Save(cart model.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return model.NewStorageError("save", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO cart_snapshots (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		s.key, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return model.NewStorageError("save", err)
	}
	return nil
}

// Clear removes the persisted snapshot.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM cart_snapshots WHERE key = ?`, s.key); err != nil {
		return model.NewStorageError("clear", err)
	}
	return nil
}

// NoopStore is the storage adapter for environments without a durable medium
// (server rendering, one-shot CLI runs). Loads produce an empty cart and
// writes succeed silently.
type NoopStore struct{}

// Load returns a fresh empty cart.
func (NoopStore) Load() model.Cart { return model.NewEmptyCart() }

// Save is a successful no-op.
func (NoopStore) Save(model.Cart) error { return nil }

// Clear is a successful no-op.
func (NoopStore) Clear() error { return nil }
