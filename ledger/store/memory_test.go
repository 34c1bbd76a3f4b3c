package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/capital-ledger/id"
	"github.com/warp/capital-ledger/ledger"
)

func newAsset(assetID string) ledger.NewAsset {
	return ledger.NewAsset{
		ID:                 ledger.AssetID(assetID),
		Owner:              "team-alpha",
		InitialValue:       decimal.NewFromInt(1000),
		DepreciationMethod: ledger.MethodLinear,
		UsefulLifeMonths:   10,
		CreatedAt:          time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemory_CreateAsset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.CreateAsset(ctx, newAsset("a1"))
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusActive, a.Status)
	assert.True(t, a.CurrentValue.Valid)
	assert.True(t, a.CurrentValue.Decimal.Equal(a.InitialValue))

	_, err = m.CreateAsset(ctx, newAsset("a1"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateAsset)

	got, err := m.Asset(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemory_UpdateAsset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.CreateAsset(ctx, newAsset("a1"))
	require.NoError(t, err)

	updated, err := m.UpdateAsset(ctx, "a1", func(a *ledger.Asset) error {
		a.Owner = "team-beta"
		a.ID = "hijack"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.AssetID("a1"), updated.ID)
	assert.Equal(t, "team-beta", updated.Owner)

	boom := errors.New("boom")
	_, err = m.UpdateAsset(ctx, "a1", func(a *ledger.Asset) error {
		a.Owner = "team-gamma"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, err := m.Asset(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "team-beta", got.Owner)

	_, err = m.UpdateAsset(ctx, "missing", func(*ledger.Asset) error { return nil })
	assert.True(t, ledger.IsNotFound(err))
}

func TestMemory_RecordEvent_OneEntryPerEvent(t *testing.T) {
	// GIVEN: An asset
	// WHEN: Events with and without an amount are recorded
	// THEN: Each yields exactly one entry, amount defaulting to zero

	ctx := context.Background()
	m := NewMemory(WithIDGenerator(id.Sequence("entry")))
	_, err := m.CreateAsset(ctx, newAsset("a1"))
	require.NoError(t, err)

	ts := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	details := ledger.Details{ledger.DetailAmount: "12.50", "note": "x"}
	entry, err := m.RecordEvent(ctx, ledger.CapitalEvent{ID: "e1", AssetID: "a1", Type: ledger.EventUtilization, Timestamp: ts, Details: details})
	require.NoError(t, err)
	details["note"] = "mutated"

	assert.Equal(t, ledger.EntryID("entry-1"), entry.ID)
	assert.Equal(t, ledger.EventID("e1"), entry.EventID)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "utilization", entry.Description)
	assert.Equal(t, "x", entry.Metadata["note"])

	_, err = m.RecordEvent(ctx, ledger.CapitalEvent{ID: "e2", AssetID: "a1", Type: ledger.EventRetirement, Timestamp: ts})
	require.NoError(t, err)

	entries, err := m.EntriesForAsset(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[1].Amount.IsZero())

	events, err := m.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", events[0].Details["note"], "stored details are copied")

	last, err := m.LastEntry(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.EventID("e2"), last.EventID)
}

func TestMemory_RecordEvent_Rejects(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.CreateAsset(ctx, newAsset("a1"))
	require.NoError(t, err)

	_, err = m.RecordEvent(ctx, ledger.CapitalEvent{ID: "e1", AssetID: "ghost", Type: "x"})
	assert.True(t, ledger.IsNotFound(err))

	_, err = m.RecordEvent(ctx, ledger.CapitalEvent{ID: "e2", AssetID: "a1", Type: "x", Details: ledger.Details{ledger.DetailAmount: "lots"}})
	assert.True(t, ledger.IsIntegrityViolation(err))

	events, err := m.Events(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemory_JournalIndexedByEvent(t *testing.T) {
	// GIVEN: Two assets with one event each
	// WHEN: A posting is recorded against each event
	// THEN: Lookups by event and by asset both resolve through the event id

	ctx := context.Background()
	m := NewMemory()
	for _, assetID := range []string{"a1", "a2"} {
		_, err := m.CreateAsset(ctx, newAsset(assetID))
		require.NoError(t, err)
		_, err = m.RecordEvent(ctx, ledger.CapitalEvent{ID: ledger.EventID("ev-" + assetID), AssetID: ledger.AssetID(assetID), Type: "capitalization"})
		require.NoError(t, err)
		require.NoError(t, m.RecordJournalEntry(ctx, ledger.JournalEntry{
			ID:            ledger.JournalEntryID("j-" + assetID),
			EventID:       ledger.EventID("ev-" + assetID),
			DebitAccount:  ledger.AccountAsset,
			CreditAccount: ledger.AccountAccumulatedDepreciation,
			Amount:        decimal.NewFromInt(1000),
		}))
	}

	byEvent, err := m.JournalEntriesForEvent(ctx, "ev-a2")
	require.NoError(t, err)
	require.Len(t, byEvent, 1)
	assert.Equal(t, ledger.JournalEntryID("j-a2"), byEvent[0].ID)

	byAsset, err := m.JournalEntriesForAsset(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, byAsset, 1)
	assert.Equal(t, ledger.JournalEntryID("j-a1"), byAsset[0].ID)

	none, err := m.JournalEntriesForEvent(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, none, "asset ids are not journal keys")

	balanced, err := m.VerifyJournalBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balanced)
}

func TestMemory_RecordJournalEntry_Rejects(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.RecordJournalEntry(ctx, ledger.JournalEntry{
		ID: "j1", DebitAccount: ledger.AccountAsset, CreditAccount: ledger.AccountAsset, Amount: decimal.Zero,
	})
	assert.True(t, ledger.IsIntegrityViolation(err))

	err = m.RecordJournalEntry(ctx, ledger.JournalEntry{
		ID: "j2", DebitAccount: "cash", CreditAccount: ledger.AccountAsset, Amount: decimal.NewFromInt(1),
	})
	assert.True(t, ledger.IsIntegrityViolation(err))

	all, err := m.JournalEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemory_GenerateProof(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, time.May, 5, 12, 0, 0, 0, time.UTC)
	m := NewMemory(WithIDGenerator(id.Sequence("proof")), WithClock(func() time.Time { return at }))
	_, err := m.CreateAsset(ctx, newAsset("a1"))
	require.NoError(t, err)

	first, err := m.GenerateProof(ctx, "a1", "")
	require.NoError(t, err)
	second, err := m.GenerateProof(ctx, "a1", "e9")
	require.NoError(t, err)

	assert.Equal(t, ledger.ProofID("proof-1"), first.ID)
	assert.Equal(t, at, first.Timestamp)
	assert.Equal(t, first.Hash, second.PreviousHash)
	assert.Equal(t, ledger.EventID("e9"), second.EventID)

	// Mutating a returned proof does not reach the store.
	second.Content[0] = 'X'
	stored, err := m.Proof(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verify())

	_, err = m.GenerateProof(ctx, "ghost", "")
	assert.True(t, ledger.IsNotFound(err))
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	// GIVEN: A transactional store with one asset
	// WHEN: A transaction writes several records and then fails
	// THEN: None of the writes survive

	ctx := context.Background()
	tm := NewTxMemory()
	_, err := tm.CreateAsset(ctx, newAsset("a1"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tm.WithTx(ctx, func(s ledger.Store) error {
		if _, err := s.CreateAsset(ctx, newAsset("a2")); err != nil {
			return err
		}
		if _, err := s.UpdateAsset(ctx, "a1", func(a *ledger.Asset) error {
			a.Status = ledger.StatusRetired
			return nil
		}); err != nil {
			return err
		}
		if _, err := s.RecordEvent(ctx, ledger.CapitalEvent{ID: "e1", AssetID: "a1", Type: "retirement"}); err != nil {
			return err
		}
		if _, err := s.GenerateProof(ctx, "a1", "e1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assets, err := tm.Assets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, ledger.StatusActive, assets[0].Status)

	events, err := tm.EventsForAsset(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, events)
	proofs, err := tm.ProofsForAsset(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, proofs)
}

func TestTxMemory_Commit(t *testing.T) {
	ctx := context.Background()
	tm := NewTxMemory()

	err := tm.WithTx(ctx, func(s ledger.Store) error {
		_, err := s.CreateAsset(ctx, newAsset("a1"))
		return err
	})
	require.NoError(t, err)

	got, err := tm.Asset(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithIDGenerator(id.Sequence("rec")))

	_, err := m.CreateAsset(ctx, newAsset("a1"))
	require.NoError(t, err)
	_, err = m.RecordEvent(ctx, ledger.CapitalEvent{ID: "e1", AssetID: "a1", Type: ledger.EventUtilization, Timestamp: time.Now()})
	require.NoError(t, err)

	require.NoError(t, m.Reset(ctx))

	assets, err := m.Assets(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)
	last, err := m.LastEntry(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	// The injected generator survives the reset.
	_, err = m.CreateAsset(ctx, newAsset("a1"))
	require.NoError(t, err)
	entry, err := m.RecordEvent(ctx, ledger.CapitalEvent{ID: "e2", AssetID: "a1", Type: ledger.EventUtilization, Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryID("rec-2"), entry.ID)
}
