package ledger

import (
	"context"
	"time"
)

// =============================================================================
// PROOF GENERATOR - Hash-linked audit snapshots and history reconstruction
// =============================================================================

// ProofGenerator assembles proofs and reconstructs asset history.
// The execution and financial-outcome variants currently produce the same
// snapshot as AssetProof; they are kept separate so callers can already
// distinguish them when cross-referencing external systems.
type ProofGenerator struct {
	store Store
}

func NewProofGenerator(store Store) *ProofGenerator {
	return &ProofGenerator{store: store}
}

// AssetProof proves an asset's existence and current properties.
func (g *ProofGenerator) AssetProof(ctx context.Context, assetID AssetID) (CapitalProof, error) {
	a, err := g.store.Asset(ctx, assetID)
	if err != nil {
		return CapitalProof{}, err
	}
	if a == nil {
		return CapitalProof{}, &NotFoundError{AssetID: assetID}
	}
	return g.store.GenerateProof(ctx, assetID, "")
}

// ExecutionProof links an execution (optionally a specific event) to capital.
// A named event must belong to the asset.
func (g *ProofGenerator) ExecutionProof(ctx context.Context, assetID AssetID, eventID EventID) (CapitalProof, error) {
	if eventID == "" {
		return g.AssetProof(ctx, assetID)
	}
	events, err := g.store.EventsForAsset(ctx, assetID)
	if err != nil {
		return CapitalProof{}, err
	}
	for _, e := range events {
		if e.ID == eventID {
			return g.store.GenerateProof(ctx, assetID, eventID)
		}
	}
	return CapitalProof{}, &NotFoundError{AssetID: assetID, EventID: eventID}
}

// FinancialOutcomeProof links capital to a reporting window. The window is
// accepted for the caller's bookkeeping; the snapshot is the current state.
func (g *ProofGenerator) FinancialOutcomeProof(ctx context.Context, assetID AssetID, start, end time.Time) (CapitalProof, error) {
	return g.store.GenerateProof(ctx, assetID, "")
}

// Reconstruct returns the stored proof, or nil if the id is unknown.
func (g *ProofGenerator) Reconstruct(ctx context.Context, proofID ProofID) (*CapitalProof, error) {
	return g.store.Proof(ctx, proofID)
}

// AssetHistory pairs each event of the asset, in recording order, with
// the ledger entries sharing its event id.
func (g *ProofGenerator) AssetHistory(ctx context.Context, assetID AssetID) ([]HistoryItem, error) {
	events, err := g.store.EventsForAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	entries, err := g.store.EntriesForAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	byEvent := make(map[EventID][]LedgerEntry, len(events))
	for _, e := range entries {
		byEvent[e.EventID] = append(byEvent[e.EventID], e)
	}

	history := make([]HistoryItem, 0, len(events))
	for _, e := range events {
		items := byEvent[e.ID]
		if items == nil {
			items = []LedgerEntry{}
		}
		history = append(history, HistoryItem{Event: e, Entries: items})
	}
	return history, nil
}

// VerifyAsset checks the hash chain of one asset's proofs.
func (g *ProofGenerator) VerifyAsset(ctx context.Context, assetID AssetID) ([]string, error) {
	proofs, err := g.store.ProofsForAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return VerifyProofChain(proofs), nil
}
