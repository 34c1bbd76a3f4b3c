// Package store provides in-memory ledger.Store implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/warp/capital-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (default, testing)
// =============================================================================

var (
	_ ledger.Store   = (*Memory)(nil)
	_ ledger.TxStore = (*TxMemory)(nil)
	_ ledger.Store   = (*state)(nil)
)

// Memory guards a state with a single writer lock.
type Memory struct {
	mu sync.RWMutex
	st *state
}

type Option func(*state)

// WithIDGenerator overrides how entry and proof ids are minted.
func WithIDGenerator(gen ledger.IDGenerator) Option {
	return func(s *state) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithClock overrides time.Now for proof timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *state) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemory(opts ...Option) *Memory {
	st := newState()
	for _, opt := range opts {
		opt(st)
	}
	return &Memory{st: st}
}

func (m *Memory) CreateAsset(ctx context.Context, in ledger.NewAsset) (ledger.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.CreateAsset(ctx, in)
}

func (m *Memory) UpdateAsset(ctx context.Context, assetID ledger.AssetID, fn func(*ledger.Asset) error) (ledger.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.UpdateAsset(ctx, assetID, fn)
}

func (m *Memory) RecordEvent(ctx context.Context, event ledger.CapitalEvent) (ledger.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.RecordEvent(ctx, event)
}

func (m *Memory) RecordJournalEntry(ctx context.Context, entry ledger.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.RecordJournalEntry(ctx, entry)
}

func (m *Memory) GenerateProof(ctx context.Context, assetID ledger.AssetID, eventID ledger.EventID) (ledger.CapitalProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GenerateProof(ctx, assetID, eventID)
}

func (m *Memory) Asset(ctx context.Context, assetID ledger.AssetID) (*ledger.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.Asset(ctx, assetID)
}

func (m *Memory) Assets(ctx context.Context) ([]ledger.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.Assets(ctx)
}

func (m *Memory) Events(ctx context.Context) ([]ledger.CapitalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.Events(ctx)
}

func (m *Memory) EventsForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.CapitalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.EventsForAsset(ctx, assetID)
}

func (m *Memory) Entries(ctx context.Context) ([]ledger.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.Entries(ctx)
}

func (m *Memory) EntriesForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.EntriesForAsset(ctx, assetID)
}

func (m *Memory) LastEntry(ctx context.Context) (*ledger.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.LastEntry(ctx)
}

func (m *Memory) JournalEntries(ctx context.Context) ([]ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.JournalEntries(ctx)
}

func (m *Memory) JournalEntriesForEvent(ctx context.Context, eventID ledger.EventID) ([]ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.JournalEntriesForEvent(ctx, eventID)
}

func (m *Memory) JournalEntriesForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.JournalEntriesForAsset(ctx, assetID)
}

func (m *Memory) Proofs(ctx context.Context) ([]ledger.CapitalProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.Proofs(ctx)
}

func (m *Memory) ProofsForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.CapitalProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ProofsForAsset(ctx, assetID)
}

func (m *Memory) Proof(ctx context.Context, proofID ledger.ProofID) (*ledger.CapitalProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.Proof(ctx, proofID)
}

func (m *Memory) VerifyJournalBalance(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.VerifyJournalBalance(ctx)
}

// Reset discards every record. Injected id generator and clock are kept.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fresh := newState()
	fresh.newID, fresh.now = m.st.newID, m.st.now
	m.st = fresh
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory(opts ...Option) *TxMemory {
	return &TxMemory{Memory: NewMemory(opts...)}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.st.snapshot()

	// The unlocked state is the transactional view.
	if err := fn(tm.st); err != nil {
		tm.st.restore(snapshot)
		return err
	}
	return nil
}
