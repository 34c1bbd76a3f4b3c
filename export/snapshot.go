/*
Package export dumps the complete ledger state for audit and reporting.

PURPOSE:
  A Snapshot holds every asset, event, ledger entry, journal entry and proof
  in store order. The JSON encoding is lossless: decimals stay strings,
  timestamps keep nanoseconds, and proof content is carried as the exact
  bytes that were hashed, so an exported trail can be re-verified offline
  with Audit.

FORMATS:
  json  canonical, full fidelity (Decode reads it back)
  csv   one flat table of every record, for spreadsheets (partial)
  xlsx  one sheet per collection (excelize)

SEE ALSO:
  - audit.go: Decode and Audit
  - api/handlers.go: GET /api/export
  - cli/export.go: capledger export
*/
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/capital-ledger/ledger"
)

// Snapshot is the full exported state.
type Snapshot struct {
	ExportedAt     time.Time      `json:"exported_at"`
	Assets         []Asset        `json:"assets"`
	Events         []Event        `json:"events"`
	Entries        []Entry        `json:"entries"`
	JournalEntries []JournalEntry `json:"journal_entries"`
	Proofs         []Proof        `json:"proofs"`
}

type Asset struct {
	ID                 string              `json:"id"`
	Owner              string              `json:"owner"`
	InitialValue       decimal.Decimal     `json:"initial_value"`
	DepreciationMethod string              `json:"depreciation_method"`
	UsefulLifeMonths   int                 `json:"useful_life_months"`
	CreatedAt          time.Time           `json:"created_at"`
	Status             string              `json:"status"`
	CurrentValue       decimal.NullDecimal `json:"current_value"`
}

type Event struct {
	ID        string         `json:"id"`
	AssetID   string         `json:"asset_id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Details   ledger.Details `json:"details"`
}

type Entry struct {
	ID          string          `json:"id"`
	EventID     string          `json:"event_id"`
	AssetID     string          `json:"asset_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Metadata    ledger.Details  `json:"metadata"`
}

type JournalEntry struct {
	ID            string          `json:"id"`
	EventID       string          `json:"event_id"`
	Timestamp     time.Time       `json:"timestamp"`
	DebitAccount  string          `json:"debit_account"`
	CreditAccount string          `json:"credit_account"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Metadata      ledger.Details  `json:"metadata"`
}

// Proof carries Content as a string: re-indenting raw JSON would change
// the hashed bytes.
type Proof struct {
	ID           string    `json:"id"`
	AssetID      string    `json:"asset_id"`
	EventID      string    `json:"event_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Origin       string    `json:"origin"`
	Content      string    `json:"content"`
	PreviousHash string    `json:"previous_hash"`
	Hash         string    `json:"hash"`
}

// =============================================================================
// COLLECTION
// =============================================================================

// Collect reads the whole store into a Snapshot.
func Collect(ctx context.Context, store ledger.Store, at time.Time) (Snapshot, error) {
	snap := Snapshot{
		ExportedAt:     at.UTC(),
		Assets:         []Asset{},
		Events:         []Event{},
		Entries:        []Entry{},
		JournalEntries: []JournalEntry{},
		Proofs:         []Proof{},
	}

	assets, err := store.Assets(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read assets: %w", err)
	}
	for _, a := range assets {
		snap.Assets = append(snap.Assets, fromAsset(a))
	}

	events, err := store.Events(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read events: %w", err)
	}
	for _, e := range events {
		snap.Events = append(snap.Events, Event{
			ID: string(e.ID), AssetID: string(e.AssetID), Type: string(e.Type),
			Timestamp: e.Timestamp, Details: nonNil(e.Details),
		})
	}

	entries, err := store.Entries(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read entries: %w", err)
	}
	for _, e := range entries {
		snap.Entries = append(snap.Entries, Entry{
			ID: string(e.ID), EventID: string(e.EventID), AssetID: string(e.AssetID),
			Timestamp: e.Timestamp, Amount: e.Amount, Description: e.Description,
			Metadata: nonNil(e.Metadata),
		})
	}

	journal, err := store.JournalEntries(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read journal: %w", err)
	}
	for _, j := range journal {
		snap.JournalEntries = append(snap.JournalEntries, JournalEntry{
			ID: string(j.ID), EventID: string(j.EventID), Timestamp: j.Timestamp,
			DebitAccount: string(j.DebitAccount), CreditAccount: string(j.CreditAccount),
			Amount: j.Amount, Description: j.Description, Metadata: nonNil(j.Metadata),
		})
	}

	proofs, err := store.Proofs(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read proofs: %w", err)
	}
	for _, p := range proofs {
		snap.Proofs = append(snap.Proofs, fromProof(p))
	}

	return snap, nil
}

func fromAsset(a ledger.Asset) Asset {
	return Asset{
		ID:                 string(a.ID),
		Owner:              a.Owner,
		InitialValue:       a.InitialValue,
		DepreciationMethod: string(a.DepreciationMethod),
		UsefulLifeMonths:   a.UsefulLifeMonths,
		CreatedAt:          a.CreatedAt,
		Status:             string(a.Status),
		CurrentValue:       a.CurrentValue,
	}
}

func fromProof(p ledger.CapitalProof) Proof {
	return Proof{
		ID:           string(p.ID),
		AssetID:      string(p.AssetID),
		EventID:      string(p.EventID),
		Timestamp:    p.Timestamp,
		Origin:       p.Origin,
		Content:      string(p.Content),
		PreviousHash: p.PreviousHash,
		Hash:         p.Hash,
	}
}

// LedgerProofs converts the exported proofs back to ledger proofs.
func (s Snapshot) LedgerProofs() []ledger.CapitalProof {
	out := make([]ledger.CapitalProof, len(s.Proofs))
	for i, p := range s.Proofs {
		out[i] = ledger.CapitalProof{
			ID:           ledger.ProofID(p.ID),
			AssetID:      ledger.AssetID(p.AssetID),
			EventID:      ledger.EventID(p.EventID),
			Timestamp:    p.Timestamp,
			Origin:       p.Origin,
			Content:      json.RawMessage(p.Content),
			PreviousHash: p.PreviousHash,
			Hash:         p.Hash,
		}
	}
	return out
}

// LedgerAssets converts the exported assets back to ledger assets.
func (s Snapshot) LedgerAssets() []ledger.Asset {
	out := make([]ledger.Asset, len(s.Assets))
	for i, a := range s.Assets {
		out[i] = ledger.Asset{
			ID:                 ledger.AssetID(a.ID),
			Owner:              a.Owner,
			InitialValue:       a.InitialValue,
			DepreciationMethod: ledger.DepreciationMethod(a.DepreciationMethod),
			UsefulLifeMonths:   a.UsefulLifeMonths,
			CreatedAt:          a.CreatedAt,
			Status:             ledger.AssetStatus(a.Status),
			CurrentValue:       a.CurrentValue,
		}
	}
	return out
}

func nonNil(d ledger.Details) ledger.Details {
	if d == nil {
		return ledger.Details{}
	}
	return d
}
