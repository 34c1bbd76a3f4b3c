/*
store.go - Persistence interface for the capital ledger

PURPOSE:
  Defines the contract between the Lifecycle / IntegrityChecker /
  ProofGenerator and whatever holds the records. The Store is the single
  authority for assets, events, ledger entries, journal entries and proofs.

APPEND-ONLY CONTRACT:
  - RecordEvent, RecordJournalEntry and GenerateProof only append
  - NO Update() or Delete() exists for child records
  - UpdateAsset is the one mutation point, reserved for the Lifecycle

LEDGER ENTRIES:
  RecordEvent is the only path by which LedgerEntries are created: exactly
  one per event, with Amount = Details["amount"] (zero when absent) and a
  copy of the details as metadata.

JOURNAL INDEX:
  Journal entries are indexed by EVENT id. JournalEntriesForAsset resolves
  the asset's events first and then collects their postings.

CONCURRENCY:
  Implementations serialize writers with one lock per store instance. The
  overlap check and the proof "previous hash" lookup both need a stable,
  ordered view of an asset's records, which WithTx provides.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory (default, tests)
  - store/sqlite/sqlite.go: Durable SQLite

SEE ALSO:
  - lifecycle.go: The only caller of UpdateAsset
*/
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Authoritative state holder
// =============================================================================

type Store interface {
	// CreateAsset stores a new ACTIVE asset whose current value equals its
	// initial value. Returns a *DuplicateError if the id exists.
	CreateAsset(ctx context.Context, in NewAsset) (Asset, error)

	// UpdateAsset applies fn to the stored asset under the writer lock and
	// persists the result. fn sees the state strictly before the change.
	UpdateAsset(ctx context.Context, id AssetID, fn func(*Asset) error) (Asset, error)

	// RecordEvent appends the event and its synthesized LedgerEntry.
	RecordEvent(ctx context.Context, event CapitalEvent) (LedgerEntry, error)

	// RecordJournalEntry appends a posting, indexed by its event id.
	RecordJournalEntry(ctx context.Context, entry JournalEntry) error

	// GenerateProof snapshots the asset and links it to the asset's most
	// recent proof in store order.
	GenerateProof(ctx context.Context, assetID AssetID, eventID EventID) (CapitalProof, error)

	// Asset returns nil (and no error) when the id is unknown.
	Asset(ctx context.Context, id AssetID) (*Asset, error)
	Assets(ctx context.Context) ([]Asset, error)

	Events(ctx context.Context) ([]CapitalEvent, error)
	EventsForAsset(ctx context.Context, id AssetID) ([]CapitalEvent, error)

	Entries(ctx context.Context) ([]LedgerEntry, error)
	EntriesForAsset(ctx context.Context, id AssetID) ([]LedgerEntry, error)
	// LastEntry returns the most recently appended entry, or nil.
	LastEntry(ctx context.Context) (*LedgerEntry, error)

	JournalEntries(ctx context.Context) ([]JournalEntry, error)
	JournalEntriesForEvent(ctx context.Context, id EventID) ([]JournalEntry, error)
	JournalEntriesForAsset(ctx context.Context, id AssetID) ([]JournalEntry, error)

	Proofs(ctx context.Context) ([]CapitalProof, error)
	ProofsForAsset(ctx context.Context, id AssetID) ([]CapitalProof, error)
	// Proof returns nil (and no error) when the id is unknown.
	Proof(ctx context.Context, id ProofID) (*CapitalProof, error)

	// VerifyJournalBalance reports whether every posting has a positive
	// amount. Each posting is a pre-paired debit/credit, so this is a
	// structural check, not a sum-to-zero check.
	VerifyJournalBalance(ctx context.Context) (bool, error)
}

// TxStore wraps Store with transaction support.
// If fn returns an error, every write made through the view is rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// NewAsset holds the inputs of Store.CreateAsset.
type NewAsset struct {
	ID                 AssetID
	Owner              string
	InitialValue       decimal.Decimal
	DepreciationMethod DepreciationMethod
	UsefulLifeMonths   int
	CreatedAt          time.Time
}

// Build returns the Asset a store persists for this input.
func (n NewAsset) Build() Asset {
	return Asset{
		ID:                 n.ID,
		Owner:              n.Owner,
		InitialValue:       n.InitialValue,
		DepreciationMethod: n.DepreciationMethod,
		UsefulLifeMonths:   n.UsefulLifeMonths,
		CreatedAt:          n.CreatedAt,
		Status:             StatusActive,
		CurrentValue:       decimal.NewNullDecimal(n.InitialValue),
	}
}

// =============================================================================
// HELPERS SHARED BY STORE IMPLEMENTATIONS
// =============================================================================

// EntryFor synthesizes the LedgerEntry for an event.
func EntryFor(id EntryID, event CapitalEvent) (LedgerEntry, error) {
	amount := decimal.Zero
	if raw, ok := event.Details[DetailAmount]; ok && raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return LedgerEntry{}, violation("event_amount", "event %s: amount %q is not numeric", event.ID, raw)
		}
		amount = d
	}
	return LedgerEntry{
		ID:          id,
		EventID:     event.ID,
		AssetID:     event.AssetID,
		Timestamp:   event.Timestamp,
		Amount:      amount,
		Description: string(event.Type),
		Metadata:    event.Details.clone(),
	}, nil
}

// CheckJournalEntry enforces the write-time rules for a posting.
func CheckJournalEntry(e JournalEntry) error {
	if !e.Amount.IsPositive() {
		return violation("journal_amount", "journal entry %s: amount must be positive, got %s", e.ID, e.Amount)
	}
	if !e.DebitAccount.Valid() || !e.CreditAccount.Valid() {
		return violation("journal_account", "journal entry %s: unknown account %q/%q", e.ID, e.DebitAccount, e.CreditAccount)
	}
	return nil
}

// NewProof builds and hashes a proof for the asset's current state.
func NewProof(id ProofID, asset Asset, eventID EventID, at time.Time, previousHash string) (CapitalProof, error) {
	content, err := json.Marshal(ContentFor(asset))
	if err != nil {
		return CapitalProof{}, fmt.Errorf("failed to serialize proof content: %w", err)
	}
	p := CapitalProof{
		ID:           id,
		AssetID:      asset.ID,
		EventID:      eventID,
		Timestamp:    at.UTC(),
		Origin:       OriginLedger,
		Content:      content,
		PreviousHash: previousHash,
	}
	p.Hash = ComputeProofHash(p)
	return p, nil
}

// ComputeProofHash returns hex(SHA-256(id ∥ timestamp ∥ content ∥ previous)).
func ComputeProofHash(p CapitalProof) string {
	h := sha256.New()
	h.Write([]byte(p.ID))
	h.Write([]byte(p.Timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write(p.Content)
	h.Write([]byte(p.PreviousHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether the stored hash matches the stored content.
func (p CapitalProof) Verify() bool {
	return p.Hash != "" && ComputeProofHash(p) == p.Hash
}

// VerifyProofChain checks every proof's hash and that each proof links to
// the previous proof of the same asset (in slice order). It returns one
// message per problem found.
func VerifyProofChain(proofs []CapitalProof) []string {
	var problems []string
	last := make(map[AssetID]string)
	for _, p := range proofs {
		if !p.Verify() {
			problems = append(problems, fmt.Sprintf("Proof %s: hash does not match content", p.ID))
		}
		if want := last[p.AssetID]; p.PreviousHash != want {
			problems = append(problems, fmt.Sprintf("Proof %s: previous hash %q, expected %q", p.ID, p.PreviousHash, want))
		}
		last[p.AssetID] = p.Hash
	}
	return problems
}
