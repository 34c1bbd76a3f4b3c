/*
integrity.go - Structural and temporal invariant enforcement

PURPOSE:
  Validates one entity or one cross-cutting rule per call against a Store.
  Single checks return an *IntegrityError; CheckAll runs every check over
  the whole store and collects messages instead of stopping at the first.

RULES:
  Asset:   owner non-empty, initial value > 0, useful life > 0
  Event:   asset must exist, event type non-empty
  Entry:   asset must exist; timestamp not before the most recently
           appended entry (only the immediate predecessor is checked)
  Period:  a new depreciation window must not overlap (closed interval)
           any window already recorded for the asset. Adjacent windows,
           where one ends on the instant the other starts, overlap.

SEE ALSO:
  - period.go: DepreciationPeriod.Overlaps
  - lifecycle.go: Runs these checks before committing
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// IntegrityChecker validates records against a store it only reads.
type IntegrityChecker struct {
	store Store
}

func NewIntegrityChecker(store Store) *IntegrityChecker {
	return &IntegrityChecker{store: store}
}

// ValidateAsset checks an asset's own fields.
func (c *IntegrityChecker) ValidateAsset(a Asset) error {
	if a.Owner == "" {
		return violation("asset_owner", "Asset must have an owner")
	}
	if !a.InitialValue.IsPositive() {
		return violation("asset_value", "Initial value must be positive")
	}
	if a.UsefulLifeMonths <= 0 {
		return violation("asset_life", "Useful life must be positive")
	}
	return nil
}

// ValidateEvent checks that the event references a known asset and is tagged.
func (c *IntegrityChecker) ValidateEvent(ctx context.Context, e CapitalEvent) error {
	if err := c.requireAsset(ctx, e.AssetID); err != nil {
		return err
	}
	if e.Type == "" {
		return violation("event_type", "Event type is required")
	}
	return nil
}

// ValidateEntry checks a candidate entry against the last appended entry.
func (c *IntegrityChecker) ValidateEntry(ctx context.Context, e LedgerEntry) error {
	if err := c.requireAsset(ctx, e.AssetID); err != nil {
		return err
	}
	last, err := c.store.LastEntry(ctx)
	if err != nil {
		return err
	}
	if last != nil && e.Timestamp.Before(last.Timestamp) {
		return violation("entry_order", "Ledger entries must be time-ordered")
	}
	return nil
}

// ValidateDepreciationPeriod rejects a window overlapping any depreciation
// already recorded for the asset.
func (c *IntegrityChecker) ValidateDepreciationPeriod(ctx context.Context, assetID AssetID, period DepreciationPeriod) error {
	events, err := c.store.EventsForAsset(ctx, assetID)
	if err != nil {
		return err
	}
	for _, e := range events {
		if e.Type != EventDepreciation {
			continue
		}
		prior, err := PeriodFromDetails(e.Details)
		if err != nil {
			return violation("depreciation_details", "Depreciation event %s: %v", e.ID, err)
		}
		if period.Overlaps(prior) {
			return violation("depreciation_overlap",
				"Depreciation period %s to %s overlaps with existing period %s to %s for asset %s",
				FormatTime(period.Start), FormatTime(period.End),
				FormatTime(prior.Start), FormatTime(prior.End), assetID)
		}
	}
	return nil
}

// EnsureNoRetroactiveModification rejects an event dated before the latest
// event already recorded for the same asset.
func (c *IntegrityChecker) EnsureNoRetroactiveModification(ctx context.Context, e CapitalEvent) error {
	events, err := c.store.EventsForAsset(ctx, e.AssetID)
	if err != nil {
		return err
	}
	if n := len(events); n > 0 && e.Timestamp.Before(events[n-1].Timestamp) {
		return violation("retroactive_event",
			"Event %s at %s precedes the latest event for asset %s", e.ID, FormatTime(e.Timestamp), e.AssetID)
	}
	return nil
}

// CheckAll runs every check over the store and reports all violations.
// Only store read failures are returned as an error.
func (c *IntegrityChecker) CheckAll(ctx context.Context) ([]string, error) {
	var errs []string

	assets, err := c.store.Assets(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[AssetID]bool, len(assets))
	for _, a := range assets {
		known[a.ID] = true
		if err := c.ValidateAsset(a); err != nil {
			errs = append(errs, fmt.Sprintf("Asset %s: %v", a.ID, err))
		}
	}

	events, err := c.store.Events(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		switch {
		case !known[e.AssetID]:
			errs = append(errs, fmt.Sprintf("Event %s: unknown asset %s", e.ID, e.AssetID))
		case e.Type == "":
			errs = append(errs, fmt.Sprintf("Event %s: Event type is required", e.ID))
		}
	}

	entries, err := c.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if !known[e.AssetID] {
			errs = append(errs, fmt.Sprintf("Entry %s: unknown asset %s", e.ID, e.AssetID))
			continue
		}
		if i > 0 && e.Timestamp.Before(entries[i-1].Timestamp) {
			errs = append(errs, fmt.Sprintf("Entry %s: Ledger entries must be time-ordered", e.ID))
		}
	}

	journal, err := c.store.JournalEntries(ctx)
	if err != nil {
		return nil, err
	}
	for _, j := range journal {
		if err := CheckJournalEntry(j); err != nil {
			errs = append(errs, fmt.Sprintf("Journal entry %s: %v", j.ID, err))
		}
	}

	proofs, err := c.store.Proofs(ctx)
	if err != nil {
		return nil, err
	}
	errs = append(errs, VerifyProofChain(proofs)...)

	return errs, nil
}

// IntegrityReport is the outcome of a full scan.
type IntegrityReport struct {
	CheckedAt       time.Time
	Problems        []string
	JournalBalanced bool
}

// Valid reports a clean scan with balanced books.
func (r IntegrityReport) Valid() bool {
	return len(r.Problems) == 0 && r.JournalBalanced
}

// Report runs CheckAll and the journal balance check.
func (c *IntegrityChecker) Report(ctx context.Context, at time.Time) (IntegrityReport, error) {
	problems, err := c.CheckAll(ctx)
	if err != nil {
		return IntegrityReport{}, err
	}
	balanced, err := c.store.VerifyJournalBalance(ctx)
	if err != nil {
		return IntegrityReport{}, err
	}
	if problems == nil {
		problems = []string{}
	}
	return IntegrityReport{CheckedAt: at, Problems: problems, JournalBalanced: balanced}, nil
}

func (c *IntegrityChecker) requireAsset(ctx context.Context, id AssetID) error {
	a, err := c.store.Asset(ctx, id)
	if err != nil {
		return err
	}
	if a == nil {
		return violation("unknown_asset", "Unknown asset %s", id)
	}
	return nil
}
