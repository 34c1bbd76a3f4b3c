/*
handlers.go - HTTP API handlers for the capital ledger

PURPOSE:
  Exposes the ledger via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the Lifecycle, ProofGenerator,
  IntegrityChecker and attribution Adapter.

ENDPOINTS:
  Assets:
    POST   /api/assets                    Capitalize (optional depreciation schedule)
    GET    /api/assets                    List assets
    GET    /api/assets/{id}               Get asset
    POST   /api/assets/{id}/allocate      Transfer ownership
    POST   /api/assets/{id}/utilize       Record utilization
    POST   /api/assets/{id}/depreciate    Apply a depreciation window
    POST   /api/assets/{id}/retire        Retire (terminal)
    GET    /api/assets/{id}/history       Events with their ledger entries
    GET    /api/assets/{id}/journal       Double-entry postings

  Proofs:
    POST   /api/assets/{id}/proofs        Generate asset|execution|financial_outcome proof
    GET    /api/assets/{id}/proofs/verify Verify the asset's hash chain
    GET    /api/proofs/{id}               Reconstruct a proof

  Audit:
    GET    /api/integrity                 Full integrity scan
    GET    /api/integrity/last            Latest background sweep
    GET    /api/export?format=            json | csv | xlsx

  Attribution:
    POST   /api/attribution               Ingest a batch
    GET    /api/attribution/{assetID}     Stored data for an asset
    POST   /api/reconcile                 Reconciliation status

  Scenarios:
    GET    /api/scenarios                 List demo scenarios
    GET    /api/scenarios/current         Loaded scenario
    POST   /api/scenarios/load            Reset and load a scenario
    POST   /api/scenarios/reset           Reset the store

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unsupported method
  - 404: Asset or proof not found
  - 409: Duplicate asset id
  - 422: Integrity violation (retired asset, overlapping period, ...)
  - 500: Store failures

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Background integrity sweep
  - scenarios.go: Demo scenario loaders
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/capital-ledger/attribution"
	"github.com/warp/capital-ledger/export"
	"github.com/warp/capital-ledger/factory"
	"github.com/warp/capital-ledger/ledger"
	"github.com/warp/capital-ledger/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        ledger.Store
	Lifecycle    *ledger.Lifecycle
	Proofs       *ledger.ProofGenerator
	Checker      *ledger.IntegrityChecker
	Attribution  *attribution.Adapter
	AssetFactory *factory.AssetFactory

	// Scheduler is optional; without it /api/integrity/last is 404.
	Scheduler *IntegrityScheduler

	now func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler around a lifecycle. The adapter may be nil,
// in which case an empty one is created.
func NewHandler(lc *ledger.Lifecycle, adapter *attribution.Adapter) *Handler {
	if adapter == nil {
		adapter = attribution.NewAdapter()
	}
	store := lc.Store()
	return &Handler{
		Store:        store,
		Lifecycle:    lc,
		Proofs:       ledger.NewProofGenerator(store),
		Checker:      ledger.NewIntegrityChecker(store),
		Attribution:  adapter,
		AssetFactory: factory.NewAssetFactory(),
		now:          time.Now,
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ASSET ENDPOINTS
// =============================================================================

// ListAssets returns every asset in creation order.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Store.Assets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assets", err)
		return
	}

	dtos := make([]AssetDTO, 0, len(assets))
	for _, a := range assets {
		dtos = append(dtos, toAssetDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAsset returns a single asset.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.loadAsset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAssetDTO(asset))
}

// CreateAsset capitalizes an asset and applies its optional schedule.
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	def, err := h.AssetFactory.FromJSON(req)
	if err != nil {
		writeLedgerError(w, "Invalid asset definition", err)
		return
	}

	result, err := h.AssetFactory.Load(r.Context(), h.Lifecycle, []factory.Definition{def})
	if err != nil {
		writeLedgerError(w, "Failed to capitalize asset", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssetDTO(result.Assets[0]))
}

// AllocateAsset transfers ownership.
func (h *Handler) AllocateAsset(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ToOwner == "" {
		writeError(w, http.StatusBadRequest, "to_owner is required", nil)
		return
	}

	event, err := h.Lifecycle.Allocate(r.Context(), assetID(r), req.ToOwner)
	if err != nil {
		writeLedgerError(w, "Failed to allocate asset", err)
		return
	}
	h.emit(event)
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// UtilizeAsset records a utilization amount.
func (h *Handler) UtilizeAsset(w http.ResponseWriter, r *http.Request) {
	var req UtilizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	event, err := h.Lifecycle.Utilize(r.Context(), assetID(r), req.Amount)
	if err != nil {
		writeLedgerError(w, "Failed to record utilization", err)
		return
	}
	h.emit(event)
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// DepreciateAsset applies one depreciation window.
func (h *Handler) DepreciateAsset(w http.ResponseWriter, r *http.Request) {
	var req DepreciateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := factory.ParseDepreciation(assetID(r), factory.DepreciationJSON{
		Start:          req.StartDate,
		End:            req.EndDate,
		SalvageValue:   req.SalvageValue,
		RateMultiplier: req.RateMultiplier,
	})
	if err != nil {
		writeLedgerError(w, "Invalid depreciation window (use YYYY-MM-DD or RFC 3339)", err)
		return
	}

	event, err := h.Lifecycle.Depreciate(r.Context(), in)
	if err != nil {
		writeLedgerError(w, "Failed to depreciate asset", err)
		return
	}
	h.emit(event)
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// RetireAsset retires an asset and writes off its remaining value.
func (h *Handler) RetireAsset(w http.ResponseWriter, r *http.Request) {
	event, err := h.Lifecycle.Retire(r.Context(), assetID(r))
	if err != nil {
		writeLedgerError(w, "Failed to retire asset", err)
		return
	}
	h.emit(event)
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// GetHistory returns the asset's events paired with their entries.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	items, err := h.Proofs.AssetHistory(r.Context(), asset.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get history", err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTO(items))
}

// GetJournal returns the asset's journal entries.
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	entries, err := h.Store.JournalEntriesForAsset(r.Context(), asset.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get journal", err)
		return
	}
	writeJSON(w, http.StatusOK, toJournalDTOs(entries))
}

// =============================================================================
// PROOF ENDPOINTS
// =============================================================================

// CreateProof generates a proof of the requested kind.
func (h *Handler) CreateProof(w http.ResponseWriter, r *http.Request) {
	req := CreateProofRequest{Kind: ProofKindAsset}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	ctx := r.Context()
	id := assetID(r)

	var (
		proof ledger.CapitalProof
		err   error
	)
	switch req.Kind {
	case ProofKindAsset, "":
		req.Kind = ProofKindAsset
		proof, err = h.Proofs.AssetProof(ctx, id)
	case ProofKindExecution:
		proof, err = h.Proofs.ExecutionProof(ctx, id, ledger.EventID(req.EventID))
	case ProofKindFinancialOutcome:
		start, end, perr := parseWindow(req.StartDate, req.EndDate)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid reporting window (use YYYY-MM-DD or RFC 3339)", perr)
			return
		}
		proof, err = h.Proofs.FinancialOutcomeProof(ctx, id, start, end)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown proof kind %q", req.Kind), nil)
		return
	}
	if err != nil {
		writeLedgerError(w, "Failed to generate proof", err)
		return
	}

	metrics.ObserveProof(req.Kind)
	writeJSON(w, http.StatusCreated, toProofDTO(proof))
}

// VerifyProofs checks the asset's proof chain.
func (h *Handler) VerifyProofs(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	problems, err := h.Proofs.VerifyAsset(r.Context(), asset.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to verify proofs", err)
		return
	}
	if problems == nil {
		problems = []string{}
	}
	writeJSON(w, http.StatusOK, ProofVerificationDTO{
		AssetID:  string(asset.ID),
		Valid:    len(problems) == 0,
		Problems: problems,
	})
}

// GetProof reconstructs a stored proof.
func (h *Handler) GetProof(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	proof, err := h.Proofs.Reconstruct(r.Context(), ledger.ProofID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get proof", err)
		return
	}
	if proof == nil {
		writeError(w, http.StatusNotFound, "Proof not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toProofDTO(*proof))
}

// =============================================================================
// AUDIT ENDPOINTS
// =============================================================================

// CheckIntegrity runs a full scan on demand.
func (h *Handler) CheckIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.Checker.Report(r.Context(), h.now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check integrity", err)
		return
	}
	metrics.ObserveIntegrity(report.Problems)
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// LastIntegrity returns the latest background sweep.
func (h *Handler) LastIntegrity(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotFound, "Integrity scheduler is disabled", nil)
		return
	}
	report, err := h.Scheduler.Last()
	if report == nil {
		writeError(w, http.StatusNotFound, "No integrity sweep has completed yet", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(*report))
}

// Export streams the whole ledger in the requested format.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown export format", err)
		return
	}

	snap, err := export.Collect(r.Context(), h.Store, h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read ledger", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="capital-ledger.%s"`, format))
	if err := export.Encode(snap, format, w); err != nil {
		log.Printf("Export failed after headers were sent: %v", err)
	}
}

// =============================================================================
// ATTRIBUTION ENDPOINTS
// =============================================================================

// IngestAttribution validates and stores a batch keyed by asset id.
func (h *Handler) IngestAttribution(w http.ResponseWriter, r *http.Request) {
	var batch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Attribution.Ingest(batch); err != nil {
		metrics.AttributionRecords.WithLabelValues(metrics.ResultRejected).Inc()
		writeLedgerError(w, "Invalid attribution data", err)
		return
	}
	metrics.AttributionRecords.WithLabelValues(metrics.ResultOK).Inc()
	writeJSON(w, http.StatusAccepted, map[string]int{"ingested": len(batch)})
}

// GetAttribution returns the stored data for an asset.
func (h *Handler) GetAttribution(w http.ResponseWriter, r *http.Request) {
	id := ledger.AssetID(chi.URLParam(r, "assetID"))

	data, ok := h.Attribution.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "No attribution data for asset", nil)
		return
	}
	writeJSON(w, http.StatusOK, AttributionDTO{AssetID: string(id), Data: data})
}

// Reconcile reports the attribution reconciliation status.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Attribution.Reconcile())
}

// =============================================================================
// HELPERS
// =============================================================================

func assetID(r *http.Request) ledger.AssetID {
	return ledger.AssetID(chi.URLParam(r, "id"))
}

// loadAsset writes a 404 and returns false when the asset is unknown.
func (h *Handler) loadAsset(w http.ResponseWriter, r *http.Request) (ledger.Asset, bool) {
	id := assetID(r)
	asset, err := h.Store.Asset(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get asset", err)
		return ledger.Asset{}, false
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "Asset not found", nil)
		return ledger.Asset{}, false
	}
	return *asset, true
}

// emit forwards a committed event to the attribution sink. A rejected
// event is logged here; the ledger write stands.
func (h *Handler) emit(event ledger.CapitalEvent) {
	if !h.Attribution.Emit(event) {
		log.Printf("Attribution sink rejected %s event %s for asset %s", event.Type, event.ID, event.AssetID)
	}
}

func parseWindow(start, end string) (time.Time, time.Time, error) {
	var s, e time.Time
	var err error
	if start != "" {
		if s, err = factory.ParseDate(start); err != nil {
			return s, e, err
		}
	}
	if end != "" {
		if e, err = factory.ParseDate(end); err != nil {
			return s, e, err
		}
	}
	return s, e, nil
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateAsset):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrIntegrityViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrUnsupportedMethod):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeLedgerError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
