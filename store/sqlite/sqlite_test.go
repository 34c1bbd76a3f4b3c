package sqlite

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

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := time.Date(2025, time.March, 1, 12, 0, 0, 123456789, time.UTC)
	s, err := New(":memory:",
		WithIDGenerator(id.Sequence("rec")),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newLifecycle(s *Store) *ledger.Lifecycle {
	clock := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	return ledger.NewLifecycle(s, id.Sequence("op"), ledger.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
}

func mustDec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func capitalize(t *testing.T, lc *ledger.Lifecycle, assetID, value string) {
	t.Helper()
	_, err := lc.Capitalize(context.Background(), ledger.CapitalizeInput{
		ID:                 ledger.AssetID(assetID),
		Owner:              "team-alpha",
		InitialValue:       mustDec(value),
		DepreciationMethod: ledger.MethodLinear,
		UsefulLifeMonths:   12,
	})
	require.NoError(t, err)
}

func TestStore_AssetRoundTrip(t *testing.T) {
	// GIVEN: A fresh SQLite store
	// WHEN: An asset is created and read back
	// THEN: Every field survives, including exact decimals

	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.CreateAsset(ctx, ledger.NewAsset{
		ID:                 "model-1",
		Owner:              "team-alpha",
		InitialValue:       mustDec("12345.678901"),
		DepreciationMethod: ledger.MethodDecliningBalance,
		UsefulLifeMonths:   36,
		CreatedAt:          time.Date(2025, time.January, 2, 3, 4, 5, 6, time.UTC),
	})
	require.NoError(t, err)

	got, err := s.Asset(ctx, "model-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "team-alpha", got.Owner)
	assert.True(t, got.InitialValue.Equal(mustDec("12345.678901")))
	assert.Equal(t, ledger.MethodDecliningBalance, got.DepreciationMethod)
	assert.Equal(t, 36, got.UsefulLifeMonths)
	assert.True(t, got.CreatedAt.Equal(time.Date(2025, time.January, 2, 3, 4, 5, 6, time.UTC)))
	assert.Equal(t, ledger.StatusActive, got.Status)
	require.True(t, got.CurrentValue.Valid)
	assert.True(t, got.CurrentValue.Decimal.Equal(got.InitialValue))

	_, err = s.CreateAsset(ctx, ledger.NewAsset{ID: "model-1", Owner: "x", InitialValue: mustDec("1")})
	assert.ErrorIs(t, err, ledger.ErrDuplicateAsset)

	missing, err := s.Asset(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_LifecycleEndToEnd(t *testing.T) {
	// GIVEN: A SQLite-backed lifecycle
	// WHEN: An asset goes through every transition
	// THEN: Events, entries, journal and proofs are persisted in order and verify

	ctx := context.Background()
	s := newTestStore(t)
	lc := newLifecycle(s)

	capitalize(t, lc, "model-1", "10000")
	_, err := lc.Allocate(ctx, "model-1", "team-beta")
	require.NoError(t, err)
	_, err = lc.Utilize(ctx, "model-1", mustDec("7.25"))
	require.NoError(t, err)
	_, err = lc.Depreciate(ctx, ledger.DepreciateInput{
		AssetID: "model-1",
		Start:   time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = lc.Retire(ctx, "model-1")
	require.NoError(t, err)

	a, err := s.Asset(ctx, "model-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRetired, a.Status)
	assert.Equal(t, "team-beta", a.Owner)
	assert.True(t, a.BookValue().Equal(mustDec("5000")))

	events, err := s.EventsForAsset(ctx, "model-1")
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, ledger.EventCapitalization, events[0].Type)
	assert.Equal(t, ledger.EventRetirement, events[4].Type)
	assert.Equal(t, "team-alpha", events[1].Details[ledger.DetailFromOwner])

	entries, err := s.EntriesForAsset(ctx, "model-1")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.True(t, entries[2].Amount.Equal(mustDec("7.25")))

	journal, err := s.JournalEntriesForAsset(ctx, "model-1")
	require.NoError(t, err)
	require.Len(t, journal, 3)
	assert.Equal(t, ledger.AccountDepreciationExpense, journal[1].DebitAccount)
	assert.Equal(t, "10000", journal[1].Metadata["previous_value"])

	proofs := ledger.NewProofGenerator(s)
	p1, err := proofs.AssetProof(ctx, "model-1")
	require.NoError(t, err)
	p2, err := proofs.ExecutionProof(ctx, "model-1", events[2].ID)
	require.NoError(t, err)
	assert.Equal(t, p1.Hash, p2.PreviousHash)

	stored, err := proofs.Reconstruct(ctx, p2.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Verify(), "hash must recompute from persisted fields")
	assert.Equal(t, events[2].ID, stored.EventID)

	errs, err := ledger.NewIntegrityChecker(s).CheckAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, errs)

	balanced, err := s.VerifyJournalBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balanced)
}

func TestStore_WithTxRollback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	lc := newLifecycle(s)
	capitalize(t, lc, "model-1", "10000")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.UpdateAsset(ctx, "model-1", func(a *ledger.Asset) error {
			a.Owner = "team-gamma"
			return nil
		}); err != nil {
			return err
		}
		if _, err := tx.RecordEvent(ctx, ledger.CapitalEvent{ID: "x", AssetID: "model-1", Type: "allocation", Timestamp: time.Now()}); err != nil {
			return err
		}
		if _, err := tx.GenerateProof(ctx, "model-1", "x"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	a, err := s.Asset(ctx, "model-1")
	require.NoError(t, err)
	assert.Equal(t, "team-alpha", a.Owner)

	events, err := s.Events(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	all, err := s.Proofs(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_RejectsBadWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.RecordEvent(ctx, ledger.CapitalEvent{ID: "e", AssetID: "ghost", Type: "utilization"})
	assert.True(t, ledger.IsNotFound(err))

	_, err = s.UpdateAsset(ctx, "ghost", func(*ledger.Asset) error { return nil })
	assert.True(t, ledger.IsNotFound(err))

	_, err = s.GenerateProof(ctx, "ghost", "")
	assert.True(t, ledger.IsNotFound(err))

	err = s.RecordJournalEntry(ctx, ledger.JournalEntry{
		ID: "j", DebitAccount: ledger.AccountAsset, CreditAccount: ledger.AccountAsset, Amount: mustDec("-5"),
	})
	assert.True(t, ledger.IsIntegrityViolation(err))
}

func TestStore_LastEntryAndReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	lc := newLifecycle(s)

	last, err := s.LastEntry(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	capitalize(t, lc, "model-1", "100")
	capitalize(t, lc, "model-2", "200")

	last, err = s.LastEntry(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, ledger.AssetID("model-2"), last.AssetID)

	require.NoError(t, s.Reset(ctx))
	assets, err := s.Assets(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)
}
