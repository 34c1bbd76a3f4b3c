package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/capital-ledger/ledger"
)

func TestAssetProof_ChainsPerAsset(t *testing.T) {
	// GIVEN: Two assets
	// WHEN: Proofs are generated for each, interleaved
	// THEN: Each asset's chain starts empty and links only to its own proofs

	f := newFixture(t)
	f.capitalize(t, "model-1", "10000", ledger.MethodLinear, 12)
	f.capitalize(t, "model-2", "500", ledger.MethodLinear, 6)

	p1, err := f.proofs.AssetProof(f.ctx, "model-1")
	require.NoError(t, err)
	q1, err := f.proofs.AssetProof(f.ctx, "model-2")
	require.NoError(t, err)
	p2, err := f.proofs.AssetProof(f.ctx, "model-1")
	require.NoError(t, err)

	assert.Empty(t, p1.PreviousHash)
	assert.Empty(t, q1.PreviousHash)
	assert.Equal(t, p1.Hash, p2.PreviousHash)
	assert.Equal(t, ledger.OriginLedger, p1.Origin)
	assert.Len(t, p1.Hash, 64)
	assert.True(t, p1.Verify())
	assert.True(t, p2.Verify())

	problems, err := f.proofs.VerifyAsset(f.ctx, "model-1")
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestAssetProof_SnapshotIsNotLive(t *testing.T) {
	f := newFixture(t)
	f.capitalize(t, "model-1", "10000", ledger.MethodLinear, 12)

	before, err := f.proofs.AssetProof(f.ctx, "model-1")
	require.NoError(t, err)
	_, err = f.lifecycle.Allocate(f.ctx, "model-1", "team-beta")
	require.NoError(t, err)
	after, err := f.proofs.AssetProof(f.ctx, "model-1")
	require.NoError(t, err)

	stored, err := f.proofs.Reconstruct(f.ctx, before.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	content, err := stored.DecodeContent()
	require.NoError(t, err)
	assert.Equal(t, "team-alpha", content.Owner)
	assert.True(t, content.CurrentValue.Equal(dec("10000")))

	content, err = after.DecodeContent()
	require.NoError(t, err)
	assert.Equal(t, "team-beta", content.Owner)
	assert.Equal(t, ledger.StatusActive, content.Status)
}

func TestProof_TamperDetection(t *testing.T) {
	f := newFixture(t)
	f.capitalize(t, "model-1", "10000", ledger.MethodLinear, 12)
	p, err := f.proofs.AssetProof(f.ctx, "model-1")
	require.NoError(t, err)

	tampered := p
	tampered.Content = []byte(`{"asset_id":"model-1","owner":"mallory"}`)
	assert.False(t, tampered.Verify())

	relinked := p
	relinked.PreviousHash = "deadbeef"
	problems := ledger.VerifyProofChain([]ledger.CapitalProof{relinked})
	assert.Len(t, problems, 2)

	// The stored copy is unaffected.
	stored, err := f.proofs.Reconstruct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verify())
}

func TestProofs_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.proofs.AssetProof(f.ctx, "ghost")
	assert.True(t, ledger.IsNotFound(err))

	_, err = f.proofs.ExecutionProof(f.ctx, "ghost", "e1")
	assert.True(t, ledger.IsNotFound(err))

	p, err := f.proofs.Reconstruct(f.ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestExecutionAndOutcomeProofs(t *testing.T) {
	f := newFixture(t)
	f.capitalize(t, "model-1", "10000", ledger.MethodLinear, 12)
	event, err := f.lifecycle.Utilize(f.ctx, "model-1", dec("3"))
	require.NoError(t, err)

	exec, err := f.proofs.ExecutionProof(f.ctx, "model-1", event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, exec.EventID)

	outcome, err := f.proofs.FinancialOutcomeProof(f.ctx, "model-1", date(2023, time.January, 1), date(2023, time.December, 31))
	require.NoError(t, err)
	assert.Empty(t, outcome.EventID)
	assert.Equal(t, exec.Hash, outcome.PreviousHash)
}

func TestExecutionProof_EventMustBelongToAsset(t *testing.T) {
	// GIVEN: Two assets, one with a utilization event
	f := newFixture(t)
	f.capitalize(t, "model-1", "10000", ledger.MethodLinear, 12)
	f.capitalize(t, "model-2", "5000", ledger.MethodLinear, 12)
	event, err := f.lifecycle.Utilize(f.ctx, "model-1", dec("3"))
	require.NoError(t, err)

	// WHEN: A proof links that event to the other asset
	_, err = f.proofs.ExecutionProof(f.ctx, "model-2", event.ID)

	// THEN: The event is reported as not found for that asset and no proof is written
	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, event.ID, nf.EventID)
	proofs, err := f.store.ProofsForAsset(f.ctx, "model-2")
	require.NoError(t, err)
	assert.Empty(t, proofs)
}

func TestAssetHistory(t *testing.T) {
	// GIVEN: An asset with three events
	// WHEN: Its history is reconstructed
	// THEN: Events come back in order, each with its single entry

	f := newFixture(t)
	f.capitalize(t, "model-1", "10000", ledger.MethodLinear, 12)
	f.capitalize(t, "model-2", "10", ledger.MethodLinear, 12)
	_, err := f.lifecycle.Allocate(f.ctx, "model-1", "team-beta")
	require.NoError(t, err)
	_, err = f.lifecycle.Utilize(f.ctx, "model-1", dec("42"))
	require.NoError(t, err)

	history, err := f.proofs.AssetHistory(f.ctx, "model-1")
	require.NoError(t, err)

	require.Len(t, history, 3)
	wantTypes := []ledger.EventType{ledger.EventCapitalization, ledger.EventAllocation, ledger.EventUtilization}
	for i, item := range history {
		assert.Equal(t, wantTypes[i], item.Event.Type)
		require.Len(t, item.Entries, 1)
		assert.Equal(t, item.Event.ID, item.Entries[0].EventID)
	}
	assert.True(t, history[2].Entries[0].Amount.Equal(dec("42")))

	empty, err := f.proofs.AssetHistory(f.ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
