package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/capital-ledger/id"
	"github.com/warp/capital-ledger/ledger"
	"github.com/warp/capital-ledger/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// fixedClock returns a clock that advances one second per call so
// timestamps are distinct and ordered.
func fixedClock() func() time.Time {
	t := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	ctx       context.Context
	store     *store.TxMemory
	lifecycle *ledger.Lifecycle
	checker   *ledger.IntegrityChecker
	proofs    *ledger.ProofGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewTxMemory(store.WithIDGenerator(id.Sequence("rec")), store.WithClock(fixedClock()))
	return &fixture{
		ctx:       context.Background(),
		store:     s,
		lifecycle: ledger.NewLifecycle(s, id.Sequence("op"), ledger.WithClock(fixedClock())),
		checker:   ledger.NewIntegrityChecker(s),
		proofs:    ledger.NewProofGenerator(s),
	}
}

func (f *fixture) capitalize(t *testing.T, assetID string, value string, method ledger.DepreciationMethod, life int) ledger.Asset {
	t.Helper()
	a, err := f.lifecycle.Capitalize(f.ctx, ledger.CapitalizeInput{
		ID:                 ledger.AssetID(assetID),
		Owner:              "team-alpha",
		InitialValue:       dec(value),
		DepreciationMethod: method,
		UsefulLifeMonths:   life,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) asset(t *testing.T, assetID string) ledger.Asset {
	t.Helper()
	a, err := f.store.Asset(f.ctx, ledger.AssetID(assetID))
	require.NoError(t, err)
	require.NotNil(t, a)
	return *a
}

func testAsset(value string, method ledger.DepreciationMethod, life int) ledger.Asset {
	return ledger.Asset{
		ID:                 "asset-1",
		Owner:              "team-alpha",
		InitialValue:       dec(value),
		DepreciationMethod: method,
		UsefulLifeMonths:   life,
		CreatedAt:          date(2023, time.January, 1),
		Status:             ledger.StatusActive,
	}
}
