/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the ledger with realistic
	data for demos and dashboards. Each scenario is an asset catalog (the
	same YAML the CLI load command reads) plus optional follow-up lifecycle
	operations.

AVAILABLE SCENARIOS:

	model-portfolio:  Three models, linear and declining balance, with
	                  depreciation schedules
	team-handover:    One model allocated between teams and utilized
	end-of-life:      A model depreciated, proven, then retired

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Capitalize and depreciate assets via the factory
 3. Run follow-up operations (allocate, utilize, retire)
 4. Generate proofs

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "model-portfolio"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.
	Stores without a Reset method reject scenario loading.

SEE ALSO:
  - factory/asset.go: Catalog schema
  - cli/load.go: Loading catalogs from files
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/capital-ledger/factory"
	"github.com/warp/capital-ledger/ledger"
)

// Resetter is implemented by stores that can be wiped.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ErrResetUnsupported is returned when the store cannot be reset.
var ErrResetUnsupported = errors.New("store does not support reset")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "model-portfolio",
		Name:        "Model Portfolio",
		Description: "Three capitalized models with linear and declining-balance schedules",
	},
	{
		ID:          "team-handover",
		Name:        "Team Handover",
		Description: "A model allocated from research to product and utilized",
	},
	{
		ID:          "end-of-life",
		Name:        "End of Life",
		Description: "A model depreciated for a year, proven, then retired",
	},
}

const modelPortfolioCatalog = `
assets:
  - id: vision-v3
    owner: research
    initial_value: "240000"
    depreciation_method: linear
    useful_life_months: 24
    depreciation:
      - start: 2024-01-01
        end: 2024-07-01
        salvage_value: "24000"
  - id: ranker-v7
    owner: search
    initial_value: "90000"
    depreciation_method: declining_balance
    useful_life_months: 36
    depreciation:
      - start: 2024-01-01
        end: 2024-04-01
      - start: 2024-04-02
        end: 2024-10-01
        rate_multiplier: "1.5"
  - id: embeddings-v2
    owner: platform
    initial_value: "45000.50"
    depreciation_method: linear
    useful_life_months: 12
`

const teamHandoverCatalog = `
assets:
  - id: summarizer-v1
    owner: research
    initial_value: "60000"
    depreciation_method: linear
    useful_life_months: 12
`

const endOfLifeCatalog = `
assets:
  - id: legacy-classifier
    owner: risk
    initial_value: "120000"
    depreciation_method: declining_balance
    useful_life_months: 24
    depreciation:
      - start: 2023-01-01
        end: 2024-01-01
        salvage_value: "5000"
`

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(context.Context) error
	switch req.ScenarioID {
	case "model-portfolio":
		loader = h.loadModelPortfolioScenario
	case "team-handover":
		loader = h.loadTeamHandoverScenario
	case "end-of-life":
		loader = h.loadEndOfLifeScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusNotImplemented, "Failed to reset store", err)
		return
	}

	if err := loader(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetStore wipes the store.
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusNotImplemented, "Failed to reset store", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(Resetter)
	if !ok {
		return ErrResetUnsupported
	}
	if err := rs.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadCatalog(ctx context.Context, catalog string) error {
	defs, err := h.AssetFactory.ParseCatalog([]byte(catalog), factory.FormatYAML)
	if err != nil {
		return err
	}
	result, err := h.AssetFactory.Load(ctx, h.Lifecycle, defs)
	if err != nil {
		return err
	}
	for _, a := range result.Assets {
		if _, err := h.Proofs.AssetProof(ctx, a.ID); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadModelPortfolioScenario(ctx context.Context) error {
	return h.loadCatalog(ctx, modelPortfolioCatalog)
}

func (h *Handler) loadTeamHandoverScenario(ctx context.Context) error {
	if err := h.loadCatalog(ctx, teamHandoverCatalog); err != nil {
		return err
	}
	const id ledger.AssetID = "summarizer-v1"

	if _, err := h.Lifecycle.Allocate(ctx, id, "product"); err != nil {
		return err
	}
	for _, hours := range []int64{120, 340, 95} {
		if _, err := h.Lifecycle.Utilize(ctx, id, decimal.NewFromInt(hours)); err != nil {
			return err
		}
	}
	_, err := h.Proofs.AssetProof(ctx, id)
	return err
}

func (h *Handler) loadEndOfLifeScenario(ctx context.Context) error {
	if err := h.loadCatalog(ctx, endOfLifeCatalog); err != nil {
		return err
	}
	const id ledger.AssetID = "legacy-classifier"

	event, err := h.Lifecycle.Retire(ctx, id)
	if err != nil {
		return err
	}
	_, err = h.Proofs.ExecutionProof(ctx, id, event.ID)
	return err
}
