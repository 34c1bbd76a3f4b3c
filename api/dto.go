/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are shopspring decimals and serialize as JSON strings
  ("1250.50"), so no precision is lost in transit.

TIMES:
  RFC 3339 in UTC. Request dates accept YYYY-MM-DD as well.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/asset.go: AssetJSON doubles as the create-asset request
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/capital-ledger/factory"
	"github.com/warp/capital-ledger/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateAssetRequest capitalizes an asset. An optional depreciation
// schedule is applied right after capitalization.
type CreateAssetRequest = factory.AssetJSON

// AllocateRequest transfers ownership.
type AllocateRequest struct {
	ToOwner string `json:"to_owner"`
}

// UtilizeRequest records usage of an asset.
type UtilizeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// DepreciateRequest applies one depreciation window.
type DepreciateRequest struct {
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	SalvageValue   string `json:"salvage_value,omitempty"`
	RateMultiplier string `json:"rate_multiplier,omitempty"`
}

// Proof kinds accepted by CreateProofRequest.
const (
	ProofKindAsset            = "asset"
	ProofKindExecution        = "execution"
	ProofKindFinancialOutcome = "financial_outcome"
)

// CreateProofRequest generates a proof for the asset in the URL.
type CreateProofRequest struct {
	Kind      string `json:"kind"`
	EventID   string `json:"event_id,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type AssetDTO struct {
	ID                 string          `json:"id"`
	Owner              string          `json:"owner"`
	InitialValue       decimal.Decimal `json:"initial_value"`
	CurrentValue       decimal.Decimal `json:"current_value"`
	DepreciationMethod string          `json:"depreciation_method"`
	UsefulLifeMonths   int             `json:"useful_life_months"`
	Status             string          `json:"status"`
	CreatedAt          string          `json:"created_at"`
}

type EventDTO struct {
	ID        string            `json:"id"`
	AssetID   string            `json:"asset_id"`
	Type      string            `json:"type"`
	Timestamp string            `json:"timestamp"`
	Details   map[string]string `json:"details"`
}

type EntryDTO struct {
	ID          string          `json:"id"`
	EventID     string          `json:"event_id"`
	Timestamp   string          `json:"timestamp"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type HistoryItemDTO struct {
	Event   EventDTO   `json:"event"`
	Entries []EntryDTO `json:"entries"`
}

type JournalEntryDTO struct {
	ID            string            `json:"id"`
	EventID       string            `json:"event_id"`
	Timestamp     string            `json:"timestamp"`
	DebitAccount  string            `json:"debit_account"`
	CreditAccount string            `json:"credit_account"`
	Amount        decimal.Decimal   `json:"amount"`
	Description   string            `json:"description"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ProofDTO carries the snapshot as the exact hashed string.
type ProofDTO struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	EventID      string `json:"event_id,omitempty"`
	Timestamp    string `json:"timestamp"`
	Origin       string `json:"origin"`
	Content      string `json:"content"`
	PreviousHash string `json:"previous_hash"`
	Hash         string `json:"hash"`
	Valid        bool   `json:"valid"`
}

type ProofVerificationDTO struct {
	AssetID  string   `json:"asset_id"`
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

type IntegrityReportDTO struct {
	Valid           bool     `json:"valid"`
	JournalBalanced bool     `json:"journal_balanced"`
	Problems        []string `json:"problems"`
	CheckedAt       string   `json:"checked_at"`
}

type AttributionDTO struct {
	AssetID string `json:"asset_id"`
	Data    any    `json:"data"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func toAssetDTO(a ledger.Asset) AssetDTO {
	return AssetDTO{
		ID:                 string(a.ID),
		Owner:              a.Owner,
		InitialValue:       a.InitialValue,
		CurrentValue:       a.BookValue(),
		DepreciationMethod: string(a.DepreciationMethod),
		UsefulLifeMonths:   a.UsefulLifeMonths,
		Status:             string(a.Status),
		CreatedAt:          ts(a.CreatedAt),
	}
}

func toEventDTO(e ledger.CapitalEvent) EventDTO {
	details := map[string]string(e.Details)
	if details == nil {
		details = map[string]string{}
	}
	return EventDTO{
		ID:        string(e.ID),
		AssetID:   string(e.AssetID),
		Type:      string(e.Type),
		Timestamp: ts(e.Timestamp),
		Details:   details,
	}
}

func toHistoryDTO(items []ledger.HistoryItem) []HistoryItemDTO {
	dtos := make([]HistoryItemDTO, 0, len(items))
	for _, item := range items {
		entries := make([]EntryDTO, 0, len(item.Entries))
		for _, e := range item.Entries {
			entries = append(entries, EntryDTO{
				ID:          string(e.ID),
				EventID:     string(e.EventID),
				Timestamp:   ts(e.Timestamp),
				Amount:      e.Amount,
				Description: e.Description,
			})
		}
		dtos = append(dtos, HistoryItemDTO{Event: toEventDTO(item.Event), Entries: entries})
	}
	return dtos
}

func toJournalDTOs(entries []ledger.JournalEntry) []JournalEntryDTO {
	dtos := make([]JournalEntryDTO, 0, len(entries))
	for _, j := range entries {
		dtos = append(dtos, JournalEntryDTO{
			ID:            string(j.ID),
			EventID:       string(j.EventID),
			Timestamp:     ts(j.Timestamp),
			DebitAccount:  string(j.DebitAccount),
			CreditAccount: string(j.CreditAccount),
			Amount:        j.Amount,
			Description:   j.Description,
			Metadata:      j.Metadata,
		})
	}
	return dtos
}

func toProofDTO(p ledger.CapitalProof) ProofDTO {
	return ProofDTO{
		ID:           string(p.ID),
		AssetID:      string(p.AssetID),
		EventID:      string(p.EventID),
		Timestamp:    ts(p.Timestamp),
		Origin:       p.Origin,
		Content:      string(p.Content),
		PreviousHash: p.PreviousHash,
		Hash:         p.Hash,
		Valid:        p.Verify(),
	}
}

func toReportDTO(r ledger.IntegrityReport) IntegrityReportDTO {
	return IntegrityReportDTO{
		Valid:           r.Valid(),
		JournalBalanced: r.JournalBalanced,
		Problems:        r.Problems,
		CheckedAt:       ts(r.CheckedAt),
	}
}
