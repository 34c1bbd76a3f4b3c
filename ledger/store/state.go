package store

import (
	"context"
	"time"

	"github.com/warp/capital-ledger/id"
	"github.com/warp/capital-ledger/ledger"
)

// state holds the records and their indices. It implements ledger.Store
// without locking; Memory and TxMemory serialize access to it.
//
// Indices hold positions into the append-only slices, so snapshotting is a
// shallow copy of slices and maps.
type state struct {
	newID ledger.IDGenerator
	now   func() time.Time

	assets     map[ledger.AssetID]ledger.Asset
	assetOrder []ledger.AssetID

	events  []ledger.CapitalEvent
	entries []ledger.LedgerEntry
	journal []ledger.JournalEntry
	proofs  []ledger.CapitalProof

	eventsByAsset  map[ledger.AssetID][]int
	entriesByAsset map[ledger.AssetID][]int
	journalByEvent map[ledger.EventID][]int
	proofsByAsset  map[ledger.AssetID][]int
}

func newState() *state {
	return &state{
		newID:          id.New,
		now:            time.Now,
		assets:         make(map[ledger.AssetID]ledger.Asset),
		eventsByAsset:  make(map[ledger.AssetID][]int),
		entriesByAsset: make(map[ledger.AssetID][]int),
		journalByEvent: make(map[ledger.EventID][]int),
		proofsByAsset:  make(map[ledger.AssetID][]int),
	}
}

// =============================================================================
// WRITES
// =============================================================================

func (s *state) CreateAsset(_ context.Context, in ledger.NewAsset) (ledger.Asset, error) {
	if _, exists := s.assets[in.ID]; exists {
		return ledger.Asset{}, &ledger.DuplicateError{AssetID: in.ID}
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now()
	}
	a := in.Build()
	s.assets[a.ID] = a
	s.assetOrder = append(s.assetOrder, a.ID)
	return a, nil
}

func (s *state) UpdateAsset(_ context.Context, assetID ledger.AssetID, fn func(*ledger.Asset) error) (ledger.Asset, error) {
	a, ok := s.assets[assetID]
	if !ok {
		return ledger.Asset{}, &ledger.NotFoundError{AssetID: assetID}
	}
	if err := fn(&a); err != nil {
		return ledger.Asset{}, err
	}
	// Identity is not mutable.
	a.ID = assetID
	s.assets[assetID] = a
	return a, nil
}

func (s *state) RecordEvent(_ context.Context, event ledger.CapitalEvent) (ledger.LedgerEntry, error) {
	if _, ok := s.assets[event.AssetID]; !ok {
		return ledger.LedgerEntry{}, &ledger.NotFoundError{AssetID: event.AssetID}
	}
	entryID, err := s.newID()
	if err != nil {
		return ledger.LedgerEntry{}, err
	}
	entry, err := ledger.EntryFor(ledger.EntryID(entryID), event)
	if err != nil {
		return ledger.LedgerEntry{}, err
	}

	event.Details = cloneDetails(event.Details)
	s.events = append(s.events, event)
	s.eventsByAsset[event.AssetID] = append(s.eventsByAsset[event.AssetID], len(s.events)-1)

	s.entries = append(s.entries, entry)
	s.entriesByAsset[entry.AssetID] = append(s.entriesByAsset[entry.AssetID], len(s.entries)-1)
	return entry, nil
}

func (s *state) RecordJournalEntry(_ context.Context, entry ledger.JournalEntry) error {
	if err := ledger.CheckJournalEntry(entry); err != nil {
		return err
	}
	entry.Metadata = cloneDetails(entry.Metadata)
	s.journal = append(s.journal, entry)
	s.journalByEvent[entry.EventID] = append(s.journalByEvent[entry.EventID], len(s.journal)-1)
	return nil
}

func (s *state) GenerateProof(_ context.Context, assetID ledger.AssetID, eventID ledger.EventID) (ledger.CapitalProof, error) {
	a, ok := s.assets[assetID]
	if !ok {
		return ledger.CapitalProof{}, &ledger.NotFoundError{AssetID: assetID}
	}

	var previous string
	if idx := s.proofsByAsset[assetID]; len(idx) > 0 {
		previous = s.proofs[idx[len(idx)-1]].Hash
	}

	proofID, err := s.newID()
	if err != nil {
		return ledger.CapitalProof{}, err
	}
	p, err := ledger.NewProof(ledger.ProofID(proofID), a, eventID, s.now(), previous)
	if err != nil {
		return ledger.CapitalProof{}, err
	}
	s.proofs = append(s.proofs, p)
	s.proofsByAsset[assetID] = append(s.proofsByAsset[assetID], len(s.proofs)-1)
	return cloneProof(p), nil
}

// =============================================================================
// READS
// =============================================================================

func (s *state) Asset(_ context.Context, assetID ledger.AssetID) (*ledger.Asset, error) {
	a, ok := s.assets[assetID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *state) Assets(_ context.Context) ([]ledger.Asset, error) {
	out := make([]ledger.Asset, 0, len(s.assetOrder))
	for _, assetID := range s.assetOrder {
		out = append(out, s.assets[assetID])
	}
	return out, nil
}

func (s *state) Events(_ context.Context) ([]ledger.CapitalEvent, error) {
	return append([]ledger.CapitalEvent{}, s.events...), nil
}

func (s *state) EventsForAsset(_ context.Context, assetID ledger.AssetID) ([]ledger.CapitalEvent, error) {
	idx := s.eventsByAsset[assetID]
	out := make([]ledger.CapitalEvent, len(idx))
	for i, n := range idx {
		out[i] = s.events[n]
	}
	return out, nil
}

func (s *state) Entries(_ context.Context) ([]ledger.LedgerEntry, error) {
	return append([]ledger.LedgerEntry{}, s.entries...), nil
}

func (s *state) EntriesForAsset(_ context.Context, assetID ledger.AssetID) ([]ledger.LedgerEntry, error) {
	idx := s.entriesByAsset[assetID]
	out := make([]ledger.LedgerEntry, len(idx))
	for i, n := range idx {
		out[i] = s.entries[n]
	}
	return out, nil
}

func (s *state) LastEntry(_ context.Context) (*ledger.LedgerEntry, error) {
	if len(s.entries) == 0 {
		return nil, nil
	}
	e := s.entries[len(s.entries)-1]
	return &e, nil
}

func (s *state) JournalEntries(_ context.Context) ([]ledger.JournalEntry, error) {
	return append([]ledger.JournalEntry{}, s.journal...), nil
}

func (s *state) JournalEntriesForEvent(_ context.Context, eventID ledger.EventID) ([]ledger.JournalEntry, error) {
	idx := s.journalByEvent[eventID]
	out := make([]ledger.JournalEntry, len(idx))
	for i, n := range idx {
		out[i] = s.journal[n]
	}
	return out, nil
}

func (s *state) JournalEntriesForAsset(_ context.Context, assetID ledger.AssetID) ([]ledger.JournalEntry, error) {
	owned := make(map[ledger.EventID]bool)
	for _, n := range s.eventsByAsset[assetID] {
		owned[s.events[n].ID] = true
	}
	out := []ledger.JournalEntry{}
	for _, j := range s.journal {
		if owned[j.EventID] {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *state) Proofs(_ context.Context) ([]ledger.CapitalProof, error) {
	out := make([]ledger.CapitalProof, len(s.proofs))
	for i, p := range s.proofs {
		out[i] = cloneProof(p)
	}
	return out, nil
}

func (s *state) ProofsForAsset(_ context.Context, assetID ledger.AssetID) ([]ledger.CapitalProof, error) {
	idx := s.proofsByAsset[assetID]
	out := make([]ledger.CapitalProof, len(idx))
	for i, n := range idx {
		out[i] = cloneProof(s.proofs[n])
	}
	return out, nil
}

func (s *state) Proof(_ context.Context, proofID ledger.ProofID) (*ledger.CapitalProof, error) {
	for _, p := range s.proofs {
		if p.ID == proofID {
			c := cloneProof(p)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *state) VerifyJournalBalance(_ context.Context) (bool, error) {
	for _, j := range s.journal {
		if !j.Amount.IsPositive() {
			return false, nil
		}
	}
	return true, nil
}

// =============================================================================
// SNAPSHOT / RESTORE
// =============================================================================

type memorySnapshot struct {
	assets         map[ledger.AssetID]ledger.Asset
	assetOrder     []ledger.AssetID
	events         []ledger.CapitalEvent
	entries        []ledger.LedgerEntry
	journal        []ledger.JournalEntry
	proofs         []ledger.CapitalProof
	eventsByAsset  map[ledger.AssetID][]int
	entriesByAsset map[ledger.AssetID][]int
	journalByEvent map[ledger.EventID][]int
	proofsByAsset  map[ledger.AssetID][]int
}

func (s *state) snapshot() memorySnapshot {
	assets := make(map[ledger.AssetID]ledger.Asset, len(s.assets))
	for k, v := range s.assets {
		assets[k] = v
	}
	return memorySnapshot{
		assets:         assets,
		assetOrder:     append([]ledger.AssetID{}, s.assetOrder...),
		events:         append([]ledger.CapitalEvent{}, s.events...),
		entries:        append([]ledger.LedgerEntry{}, s.entries...),
		journal:        append([]ledger.JournalEntry{}, s.journal...),
		proofs:         append([]ledger.CapitalProof{}, s.proofs...),
		eventsByAsset:  copyIndex(s.eventsByAsset),
		entriesByAsset: copyIndex(s.entriesByAsset),
		journalByEvent: copyIndex(s.journalByEvent),
		proofsByAsset:  copyIndex(s.proofsByAsset),
	}
}

func (s *state) restore(snap memorySnapshot) {
	s.assets = snap.assets
	s.assetOrder = snap.assetOrder
	s.events = snap.events
	s.entries = snap.entries
	s.journal = snap.journal
	s.proofs = snap.proofs
	s.eventsByAsset = snap.eventsByAsset
	s.entriesByAsset = snap.entriesByAsset
	s.journalByEvent = snap.journalByEvent
	s.proofsByAsset = snap.proofsByAsset
}

func copyIndex[K comparable](in map[K][]int) map[K][]int {
	out := make(map[K][]int, len(in))
	for k, v := range in {
		out[k] = append([]int{}, v...)
	}
	return out
}

func cloneDetails(d ledger.Details) ledger.Details {
	out := make(ledger.Details, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func cloneProof(p ledger.CapitalProof) ledger.CapitalProof {
	p.Content = append([]byte{}, p.Content...)
	return p
}
