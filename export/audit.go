package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/warp/capital-ledger/ledger"
)

// Decode reads the JSON encoding produced by Encode(…, FormatJSON, …).
func Decode(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode export: %w", err)
	}
	return snap, nil
}

// Audit re-verifies an exported trail without a store: proof hashes and
// chains, journal postings, and the one-entry-per-event rule. It returns
// one message per problem; an empty result means the trail is consistent.
func Audit(snap Snapshot) []string {
	var problems []string
	checker := ledger.NewIntegrityChecker(nil)

	known := make(map[string]bool, len(snap.Assets))
	for _, a := range snap.LedgerAssets() {
		known[string(a.ID)] = true
		if err := checker.ValidateAsset(a); err != nil {
			problems = append(problems, fmt.Sprintf("Asset %s: %v", a.ID, err))
		}
	}

	events := make(map[string]bool, len(snap.Events))
	for _, e := range snap.Events {
		events[e.ID] = true
		if !known[e.AssetID] {
			problems = append(problems, fmt.Sprintf("Event %s: unknown asset %s", e.ID, e.AssetID))
		}
	}

	perEvent := make(map[string]int, len(snap.Entries))
	for _, e := range snap.Entries {
		perEvent[e.EventID]++
	}
	for _, e := range snap.Events {
		if n := perEvent[e.ID]; n != 1 {
			problems = append(problems, fmt.Sprintf("Event %s: expected 1 ledger entry, found %d", e.ID, n))
		}
	}

	for _, j := range snap.JournalEntries {
		entry := ledger.JournalEntry{
			ID:            ledger.JournalEntryID(j.ID),
			EventID:       ledger.EventID(j.EventID),
			DebitAccount:  ledger.AccountType(j.DebitAccount),
			CreditAccount: ledger.AccountType(j.CreditAccount),
			Amount:        j.Amount,
		}
		if err := ledger.CheckJournalEntry(entry); err != nil {
			problems = append(problems, fmt.Sprintf("Journal entry %s: %v", j.ID, err))
		}
		if !events[j.EventID] {
			problems = append(problems, fmt.Sprintf("Journal entry %s: unknown event %s", j.ID, j.EventID))
		}
	}

	return append(problems, ledger.VerifyProofChain(snap.LedgerProofs())...)
}
