/*
Package ledger provides the intelligence capital accounting core.

PURPOSE:
  Trained models and other intelligence-capability assets are tracked as
  capitalized financial assets. This package holds the append-only records
  that describe an asset's life (capitalization, allocation, utilization,
  depreciation, retirement), the double-entry postings derived from them,
  and hash-chained proofs of an asset's state at a point in time.

KEY CONCEPTS IN THIS FILE (types.go):
  - Asset: A capitalized unit with an owner, book value and status
  - CapitalEvent: An immutable record of a discrete action on an asset
  - LedgerEntry: The economic record derived 1:1 from a CapitalEvent
  - JournalEntry: A balanced debit/credit posting tied to an event
  - CapitalProof: A tamper-evident snapshot linked to the previous one

DESIGN PRINCIPLES:
  1. Immutability: Events, entries, journal entries and proofs are never
     modified or deleted. Only Asset.Owner, Asset.Status and
     Asset.CurrentValue change, and only through the Lifecycle.
  2. Precision: Money is decimal.Decimal, never float64
  3. Type Safety: Distinct ID types and closed enums
  4. Auditability: Proof content is serialized once and hashed

SEE ALSO:
  - store.go: Store interface (the ledger store contract)
  - lifecycle.go: State transitions and journal postings
  - depreciation.go: Value-decay formulas
  - integrity.go: Structural and temporal invariants
  - proofs.go: Proof chain generation and history
*/
package ledger

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AssetID string
type EventID string
type EntryID string
type JournalEntryID string
type ProofID string

// =============================================================================
// CLOSED SETS
// =============================================================================

// AssetStatus is the lifecycle state of an asset.
type AssetStatus string

const (
	StatusActive AssetStatus = "active"
	// StatusDepreciated is declared for reporting but no operation sets it.
	StatusDepreciated AssetStatus = "depreciated"
	StatusRetired     AssetStatus = "retired"
)

func (s AssetStatus) Valid() bool {
	switch s {
	case StatusActive, StatusDepreciated, StatusRetired:
		return true
	}
	return false
}

// DepreciationMethod selects the value-decay formula.
type DepreciationMethod string

const (
	MethodLinear           DepreciationMethod = "linear"
	MethodDecliningBalance DepreciationMethod = "declining_balance"
)

func (m DepreciationMethod) Valid() bool {
	switch m {
	case MethodLinear, MethodDecliningBalance:
		return true
	}
	return false
}

// ParseMethod converts a configuration string into a DepreciationMethod.
func ParseMethod(s string) (DepreciationMethod, error) {
	m := DepreciationMethod(s)
	if !m.Valid() {
		return "", &UnsupportedMethodError{Method: m}
	}
	return m, nil
}

// AccountType is one side of a journal posting.
type AccountType string

const (
	AccountAsset                   AccountType = "asset"
	AccountAccumulatedDepreciation AccountType = "accumulated_depreciation"
	AccountDepreciationExpense     AccountType = "depreciation_expense"
)

func (a AccountType) Valid() bool {
	switch a {
	case AccountAsset, AccountAccumulatedDepreciation, AccountDepreciationExpense:
		return true
	}
	return false
}

// EventType tags a CapitalEvent. The set is open at the storage layer
// (any non-empty tag is accepted) but the Lifecycle only emits these.
type EventType string

const (
	EventCapitalization EventType = "capitalization"
	EventAllocation     EventType = "allocation"
	EventUtilization    EventType = "utilization"
	EventDepreciation   EventType = "depreciation"
	EventRetirement     EventType = "retirement"
)

// Well-known detail keys.
const (
	DetailAmount         = "amount"
	DetailFromOwner      = "from_owner"
	DetailToOwner        = "to_owner"
	DetailStartDate      = "start_date"
	DetailEndDate        = "end_date"
	DetailSalvageValue   = "salvage_value"
	DetailRateMultiplier = "rate_multiplier"
)

// Details carries the scalar payload of an event. Values are rendered
// canonically: decimals with Decimal.String, times as RFC 3339.
type Details map[string]string

func (d Details) clone() Details {
	if d == nil {
		return Details{}
	}
	out := make(Details, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// =============================================================================
// ASSET
// =============================================================================

type Asset struct {
	ID                 AssetID
	Owner              string
	InitialValue       decimal.Decimal
	DepreciationMethod DepreciationMethod
	UsefulLifeMonths   int
	CreatedAt          time.Time
	Status             AssetStatus

	// CurrentValue is unset only for assets built outside the Store;
	// BookValue falls back to InitialValue in that case.
	CurrentValue decimal.NullDecimal
}

// BookValue returns the current book value, or the initial value when
// no current value has been recorded yet.
func (a Asset) BookValue() decimal.Decimal {
	if a.CurrentValue.Valid {
		return a.CurrentValue.Decimal
	}
	return a.InitialValue
}

func (a Asset) IsRetired() bool { return a.Status == StatusRetired }

// =============================================================================
// EVENTS AND ENTRIES
// =============================================================================

type CapitalEvent struct {
	ID        EventID
	AssetID   AssetID
	Type      EventType
	Timestamp time.Time
	Details   Details
}

// LedgerEntry is synthesized by the Store from exactly one CapitalEvent.
type LedgerEntry struct {
	ID          EntryID
	EventID     EventID
	AssetID     AssetID
	Timestamp   time.Time
	Amount      decimal.Decimal
	Description string
	Metadata    Details
}

// JournalEntry is one balanced posting: Amount is debited to DebitAccount
// and credited to CreditAccount.
type JournalEntry struct {
	ID            JournalEntryID
	EventID       EventID
	Timestamp     time.Time
	DebitAccount  AccountType
	CreditAccount AccountType
	Amount        decimal.Decimal
	Description   string
	Metadata      Details
}

// =============================================================================
// PROOF
// =============================================================================

// OriginLedger tags proofs generated by this ledger.
const OriginLedger = "ICL"

// CapitalProof is an immutable, hash-linked snapshot of an asset.
// Content holds canonical JSON captured at generation time, never a live
// reference to the Asset.
type CapitalProof struct {
	ID           ProofID
	AssetID      AssetID
	EventID      EventID // empty when the proof is not tied to an event
	Timestamp    time.Time
	Origin       string
	Content      json.RawMessage
	PreviousHash string // empty for the first proof of an asset
	Hash         string
}

// ProofContent is the asset snapshot serialized into CapitalProof.Content.
// It is a struct so field order, and therefore the hash, is deterministic.
type ProofContent struct {
	AssetID            AssetID            `json:"asset_id"`
	Owner              string             `json:"owner"`
	InitialValue       decimal.Decimal    `json:"initial_value"`
	DepreciationMethod DepreciationMethod `json:"depreciation_method"`
	UsefulLifeMonths   int                `json:"useful_life_months"`
	Status             AssetStatus        `json:"status"`
	CurrentValue       decimal.Decimal    `json:"current_value"`
}

// ContentFor snapshots the public fields of an asset.
func ContentFor(a Asset) ProofContent {
	return ProofContent{
		AssetID:            a.ID,
		Owner:              a.Owner,
		InitialValue:       a.InitialValue,
		DepreciationMethod: a.DepreciationMethod,
		UsefulLifeMonths:   a.UsefulLifeMonths,
		Status:             a.Status,
		CurrentValue:       a.BookValue(),
	}
}

// DecodeContent parses the stored snapshot.
func (p CapitalProof) DecodeContent() (ProofContent, error) {
	var c ProofContent
	err := json.Unmarshal(p.Content, &c)
	return c, err
}

// =============================================================================
// HISTORY
// =============================================================================

// HistoryItem pairs an event with the ledger entries derived from it.
type HistoryItem struct {
	Event   CapitalEvent
	Entries []LedgerEntry
}
