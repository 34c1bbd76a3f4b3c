/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Durable persistence for the capital ledger. Implements ledger.Store and
  ledger.TxStore so the Lifecycle commits each transition (asset mutation,
  event, entry, postings) in a single database transaction.

APPEND-ONLY ENFORCEMENT:
  - events, entries, journal_entries and proofs are INSERT-only
  - No UPDATE or DELETE statements touch them (Reset aside)
  - assets is the one table with UPDATE, and only through UpdateAsset

KEY TABLES:
  assets:          One row per capitalized asset (mutable owner/status/value)
  events:          Immutable CapitalEvents
  entries:         One LedgerEntry per event
  journal_entries: Double-entry postings, indexed by event id
  proofs:          Hash-chained snapshots

STORE ORDER:
  Every table carries an AUTOINCREMENT seq column. "Recording order",
  "most recent entry" and "previous proof" all mean highest seq, never
  timestamp order.

MONEY AND TIME:
  Decimals are stored as TEXT through decimal.Decimal's sql.Scanner and
  driver.Valuer, so values round-trip exactly. Timestamps are RFC 3339
  (nanosecond) UTC strings so proof hashes recompute identically.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety plus a single pooled connection,
  which keeps ":memory:" databases shared and writes serialized.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  lifecycle := ledger.NewLifecycle(store, id.New)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/capital-ledger/id"
	"github.com/warp/capital-ledger/ledger"
)

var (
	_ ledger.TxStore = (*Store)(nil)
	_ ledger.Store   = (*conn)(nil)
)

// Store implements ledger.Store and ledger.TxStore using SQLite.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex
	newID ledger.IDGenerator
	now   func() time.Time
}

type Option func(*Store)

// WithIDGenerator overrides how entry and proof ids are minted.
func WithIDGenerator(gen ledger.IDGenerator) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithClock overrides time.Now for proof timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, newID: id.New, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Assets (the only mutable table)
	CREATE TABLE IF NOT EXISTS assets (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		owner TEXT NOT NULL,
		initial_value TEXT NOT NULL,
		depreciation_method TEXT NOT NULL,
		useful_life_months INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		status TEXT NOT NULL,
		current_value TEXT
	);

	-- Capital events (append-only)
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		asset_id TEXT NOT NULL REFERENCES assets(id),
		event_type TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		details_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_asset
		ON events(asset_id, seq);

	-- Ledger entries, exactly one per event (append-only)
	CREATE TABLE IF NOT EXISTS entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		asset_id TEXT NOT NULL REFERENCES assets(id),
		timestamp TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL,
		metadata_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_asset
		ON entries(asset_id, seq);

	-- Journal entries, keyed by event id (append-only)
	CREATE TABLE IF NOT EXISTS journal_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		debit_account TEXT NOT NULL,
		credit_account TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL,
		metadata_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_event
		ON journal_entries(event_id, seq);

	-- Proofs (append-only, hash-chained per asset)
	CREATE TABLE IF NOT EXISTS proofs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		asset_id TEXT NOT NULL REFERENCES assets(id),
		event_id TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL,
		origin TEXT NOT NULL,
		content TEXT NOT NULL,
		previous_hash TEXT NOT NULL DEFAULT '',
		hash TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_proofs_asset
		ON proofs(asset_id, seq);
	CREATE INDEX IF NOT EXISTS idx_proofs_id
		ON proofs(id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

func (s *Store) conn(q querier) *conn {
	return &conn{q: q, newID: s.newID, now: s.now}
}

// atomic runs a multi-statement write in its own database transaction.
func (s *Store) atomic(ctx context.Context, fn func(c *conn) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ledger.ErrTransactionFailed, err)
	}
	defer sqlTx.Rollback()

	if err := fn(s.conn(sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", ledger.ErrTransactionFailed, err)
	}
	return nil
}

func (s *Store) CreateAsset(ctx context.Context, in ledger.NewAsset) (ledger.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn(s.db).CreateAsset(ctx, in)
}

func (s *Store) UpdateAsset(ctx context.Context, assetID ledger.AssetID, fn func(*ledger.Asset) error) (updated ledger.Asset, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.atomic(ctx, func(c *conn) error {
		updated, err = c.UpdateAsset(ctx, assetID, fn)
		return err
	})
	return updated, err
}

func (s *Store) RecordEvent(ctx context.Context, event ledger.CapitalEvent) (entry ledger.LedgerEntry, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.atomic(ctx, func(c *conn) error {
		entry, err = c.RecordEvent(ctx, event)
		return err
	})
	return entry, err
}

func (s *Store) RecordJournalEntry(ctx context.Context, entry ledger.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn(s.db).RecordJournalEntry(ctx, entry)
}

func (s *Store) GenerateProof(ctx context.Context, assetID ledger.AssetID, eventID ledger.EventID) (proof ledger.CapitalProof, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.atomic(ctx, func(c *conn) error {
		proof, err = c.GenerateProof(ctx, assetID, eventID)
		return err
	})
	return proof, err
}

func (s *Store) Asset(ctx context.Context, assetID ledger.AssetID) (*ledger.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).Asset(ctx, assetID)
}

func (s *Store) Assets(ctx context.Context) ([]ledger.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).Assets(ctx)
}

func (s *Store) Events(ctx context.Context) ([]ledger.CapitalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).Events(ctx)
}

func (s *Store) EventsForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.CapitalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).EventsForAsset(ctx, assetID)
}

func (s *Store) Entries(ctx context.Context) ([]ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).Entries(ctx)
}

func (s *Store) EntriesForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).EntriesForAsset(ctx, assetID)
}

func (s *Store) LastEntry(ctx context.Context) (*ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).LastEntry(ctx)
}

func (s *Store) JournalEntries(ctx context.Context) ([]ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).JournalEntries(ctx)
}

func (s *Store) JournalEntriesForEvent(ctx context.Context, eventID ledger.EventID) ([]ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).JournalEntriesForEvent(ctx, eventID)
}

func (s *Store) JournalEntriesForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).JournalEntriesForAsset(ctx, assetID)
}

func (s *Store) Proofs(ctx context.Context) ([]ledger.CapitalProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).Proofs(ctx)
}

func (s *Store) ProofsForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.CapitalProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).ProofsForAsset(ctx, assetID)
}

func (s *Store) Proof(ctx context.Context, proofID ledger.ProofID) (*ledger.CapitalProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).Proof(ctx, proofID)
}

func (s *Store) VerifyJournalBalance(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn(s.db).VerifyJournalBalance(ctx)
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.atomic(ctx, func(c *conn) error {
		return fn(c)
	})
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"proofs", "journal_entries", "entries", "events", "assets"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func writeFailed(what string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ledger.ErrTransactionFailed, what, err)
}

func marshalDetails(d ledger.Details) (string, error) {
	if d == nil {
		d = ledger.Details{}
	}
	b, err := json.Marshal(d)
	return string(b), err
}

func unmarshalDetails(raw string) (ledger.Details, error) {
	d := ledger.Details{}
	if raw == "" {
		return d, nil
	}
	err := json.Unmarshal([]byte(raw), &d)
	return d, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
