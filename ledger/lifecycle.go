/*
lifecycle.go - Asset state machine and double-entry postings

PURPOSE:
  The Lifecycle is the only component that changes an Asset. Each
  operation validates through the IntegrityChecker, computes through the
  depreciation engine, and commits one CapitalEvent (plus its LedgerEntry)
  and zero or more JournalEntries through the Store.

STATES:
  ACTIVE ──retire──> RETIRED (terminal)
  DEPRECIATED exists in the enum but no operation moves an asset into it.

OPERATIONS AND POSTINGS:
  Capitalize  capitalization event; Dr ASSET / Cr ACCUMULATED_DEPRECIATION
              for the initial value (placeholder for cash/equity)
  Allocate    allocation event {from_owner, to_owner}; no posting
  Utilize     utilization event {amount}; no posting
  Depreciate  depreciation event {amount, start_date, end_date,
              salvage_value, rate_multiplier}; Dr DEPRECIATION_EXPENSE /
              Cr ACCUMULATED_DEPRECIATION when amount > 0
  Retire      retirement event; Dr ACCUMULATED_DEPRECIATION / Cr ASSET for
              the current value when it is > 0. CurrentValue is left as is.

ATOMICITY:
  When the store implements TxStore, every operation runs inside WithTx so
  the asset mutation, event, entry and postings commit together.

SEE ALSO:
  - integrity.go: Checks run before each commit
  - depreciation.go: CalculateDepreciation
  - metrics/metrics.go: Recorder implementation
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// IDGenerator produces record identifiers.
type IDGenerator func() (string, error)

// Recorder observes committed (or failed) transitions.
type Recorder interface {
	Transition(op string, err error)
	Posting(debit, credit AccountType, amount decimal.Decimal)
}

type nopRecorder struct{}

func (nopRecorder) Transition(string, error)                          {}
func (nopRecorder) Posting(AccountType, AccountType, decimal.Decimal) {}

// =============================================================================
// LIFECYCLE
// =============================================================================

type Lifecycle struct {
	store    Store
	now      func() time.Time
	newID    IDGenerator
	recorder Recorder
}

type Option func(*Lifecycle)

// WithClock overrides time.Now for event and posting timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator overrides how event and journal ids are minted.
func WithIDGenerator(gen IDGenerator) Option {
	return func(l *Lifecycle) {
		if gen != nil {
			l.newID = gen
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(l *Lifecycle) {
		if r != nil {
			l.recorder = r
		}
	}
}

func NewLifecycle(store Store, newID IDGenerator, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:    store,
		now:      time.Now,
		newID:    newID,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store exposes the underlying store for read access.
func (l *Lifecycle) Store() Store { return l.store }

// Atomically runs fn with a Lifecycle bound to a single transaction, so
// every operation fn performs commits or rolls back together. Without a
// TxStore the operations write straight to the store.
func (l *Lifecycle) Atomically(ctx context.Context, fn func(tx *Lifecycle) error) error {
	return l.withTx(ctx, func(s Store) error {
		bound := *l
		bound.store = s
		return fn(&bound)
	})
}

// CapitalizeInput holds the parameters of a capitalization.
type CapitalizeInput struct {
	ID                 AssetID
	Owner              string
	InitialValue       decimal.Decimal
	DepreciationMethod DepreciationMethod
	UsefulLifeMonths   int
}

// DepreciateInput holds the parameters of a depreciation run. A zero
// RateMultiplier means DefaultRateMultiplier.
type DepreciateInput struct {
	AssetID        AssetID
	Start          time.Time
	End            time.Time
	SalvageValue   decimal.Decimal
	RateMultiplier decimal.Decimal
}

// Capitalize creates the asset and posts its initial value.
func (l *Lifecycle) Capitalize(ctx context.Context, in CapitalizeInput) (asset Asset, err error) {
	defer func() { l.recorder.Transition("capitalize", err) }()

	if !in.DepreciationMethod.Valid() {
		return Asset{}, &UnsupportedMethodError{Method: in.DepreciationMethod}
	}
	now := l.now()
	candidate := NewAsset{
		ID:                 in.ID,
		Owner:              in.Owner,
		InitialValue:       in.InitialValue,
		DepreciationMethod: in.DepreciationMethod,
		UsefulLifeMonths:   in.UsefulLifeMonths,
		CreatedAt:          now,
	}

	err = l.withTx(ctx, func(s Store) error {
		checker := NewIntegrityChecker(s)
		if err := checker.ValidateAsset(candidate.Build()); err != nil {
			return err
		}
		created, err := s.CreateAsset(ctx, candidate)
		if err != nil {
			return err
		}
		event, err := l.newEvent(created.ID, EventCapitalization, now, Details{
			DetailAmount:          created.InitialValue.String(),
			"owner":               created.Owner,
			"depreciation_method": string(created.DepreciationMethod),
			"useful_life_months":  fmt.Sprint(created.UsefulLifeMonths),
		})
		if err != nil {
			return err
		}
		if err := l.record(ctx, s, checker, event); err != nil {
			return err
		}
		if err := l.post(ctx, s, event, AccountAsset, AccountAccumulatedDepreciation, created.InitialValue,
			"Asset capitalization", Details{
				"asset_id":      string(created.ID),
				"owner":         created.Owner,
				"initial_value": created.InitialValue.String(),
			}); err != nil {
			return err
		}
		asset = created
		return nil
	})
	return asset, err
}

// Allocate transfers ownership. The event records the owner strictly
// before and after the change.
func (l *Lifecycle) Allocate(ctx context.Context, assetID AssetID, newOwner string) (event CapitalEvent, err error) {
	defer func() { l.recorder.Transition("allocate", err) }()

	err = l.withTx(ctx, func(s Store) error {
		if _, err := l.activeAsset(ctx, s, assetID); err != nil {
			return err
		}
		if newOwner == "" {
			return violation("asset_owner", "Asset must have an owner")
		}
		checker := NewIntegrityChecker(s)
		var oldOwner string
		_, err := s.UpdateAsset(ctx, assetID, func(a *Asset) error {
			oldOwner = a.Owner
			a.Owner = newOwner
			return nil
		})
		if err != nil {
			return err
		}
		event, err = l.newEvent(assetID, EventAllocation, l.now(), Details{
			DetailFromOwner: oldOwner,
			DetailToOwner:   newOwner,
		})
		if err != nil {
			return err
		}
		return l.record(ctx, s, checker, event)
	})
	return event, err
}

// Utilize records usage. The asset itself is not changed.
func (l *Lifecycle) Utilize(ctx context.Context, assetID AssetID, amount decimal.Decimal) (event CapitalEvent, err error) {
	defer func() { l.recorder.Transition("utilize", err) }()

	err = l.withTx(ctx, func(s Store) error {
		if _, err := l.activeAsset(ctx, s, assetID); err != nil {
			return err
		}
		event, err = l.newEvent(assetID, EventUtilization, l.now(), Details{DetailAmount: amount.String()})
		if err != nil {
			return err
		}
		return l.record(ctx, s, NewIntegrityChecker(s), event)
	})
	return event, err
}

// Depreciate applies one depreciation window.
func (l *Lifecycle) Depreciate(ctx context.Context, in DepreciateInput) (event CapitalEvent, err error) {
	defer func() { l.recorder.Transition("depreciate", err) }()

	multiplier := in.RateMultiplier
	if multiplier.IsZero() {
		multiplier = DefaultRateMultiplier
	}

	err = l.withTx(ctx, func(s Store) error {
		asset, err := l.activeAsset(ctx, s, in.AssetID)
		if err != nil {
			return err
		}
		checker := NewIntegrityChecker(s)
		period := DepreciationPeriod{Start: in.Start, End: in.End}
		if err := checker.ValidateDepreciationPeriod(ctx, in.AssetID, period); err != nil {
			return err
		}

		result, err := CalculateDepreciation(asset, in.Start, in.End, in.SalvageValue, multiplier)
		if err != nil {
			return err
		}

		previous := asset.BookValue()
		if _, err := s.UpdateAsset(ctx, in.AssetID, func(a *Asset) error {
			a.CurrentValue = decimal.NewNullDecimal(result.NewValue)
			return nil
		}); err != nil {
			return err
		}

		event, err = l.newEvent(in.AssetID, EventDepreciation, l.now(), Details{
			DetailAmount:         result.Amount.String(),
			DetailStartDate:      FormatTime(in.Start),
			DetailEndDate:        FormatTime(in.End),
			DetailSalvageValue:   in.SalvageValue.String(),
			DetailRateMultiplier: multiplier.String(),
		})
		if err != nil {
			return err
		}
		if err := l.record(ctx, s, checker, event); err != nil {
			return err
		}
		if !result.Amount.IsPositive() {
			return nil
		}

		meta := event.Details.clone()
		meta["asset_id"] = string(in.AssetID)
		meta["previous_value"] = previous.String()
		meta["new_value"] = result.NewValue.String()
		return l.post(ctx, s, event, AccountDepreciationExpense, AccountAccumulatedDepreciation, result.Amount,
			"Asset depreciation", meta)
	})
	return event, err
}

// Retire moves the asset to RETIRED and writes off its remaining value.
func (l *Lifecycle) Retire(ctx context.Context, assetID AssetID) (event CapitalEvent, err error) {
	defer func() { l.recorder.Transition("retire", err) }()

	err = l.withTx(ctx, func(s Store) error {
		retired, err := s.UpdateAsset(ctx, assetID, func(a *Asset) error {
			if a.IsRetired() {
				return ErrAssetRetired
			}
			a.Status = StatusRetired
			return nil
		})
		if err != nil {
			return err
		}
		event, err = l.newEvent(assetID, EventRetirement, l.now(), Details{})
		if err != nil {
			return err
		}
		if err := l.record(ctx, s, NewIntegrityChecker(s), event); err != nil {
			return err
		}

		value := retired.BookValue()
		if !value.IsPositive() {
			return nil
		}
		return l.post(ctx, s, event, AccountAccumulatedDepreciation, AccountAsset, value,
			"Asset retirement write-off", Details{
				"asset_id":      string(assetID),
				"retired_value": value.String(),
			})
	})
	return event, err
}

// =============================================================================
// INTERNALS
// =============================================================================

func (l *Lifecycle) withTx(ctx context.Context, fn func(Store) error) error {
	if ts, ok := l.store.(TxStore); ok {
		return ts.WithTx(ctx, fn)
	}
	return fn(l.store)
}

func (l *Lifecycle) activeAsset(ctx context.Context, s Store, id AssetID) (Asset, error) {
	a, err := s.Asset(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	if a == nil {
		return Asset{}, &NotFoundError{AssetID: id}
	}
	if a.IsRetired() {
		return Asset{}, ErrAssetRetired
	}
	return *a, nil
}

func (l *Lifecycle) newEvent(assetID AssetID, typ EventType, at time.Time, details Details) (CapitalEvent, error) {
	eventID, err := l.newID()
	if err != nil {
		return CapitalEvent{}, err
	}
	return CapitalEvent{ID: EventID(eventID), AssetID: assetID, Type: typ, Timestamp: at, Details: details}, nil
}

// record validates and appends an event; the store derives its entry.
func (l *Lifecycle) record(ctx context.Context, s Store, checker *IntegrityChecker, event CapitalEvent) error {
	if err := checker.ValidateEvent(ctx, event); err != nil {
		return err
	}
	if err := checker.EnsureNoRetroactiveModification(ctx, event); err != nil {
		return err
	}
	candidate := LedgerEntry{AssetID: event.AssetID, Timestamp: event.Timestamp}
	if err := checker.ValidateEntry(ctx, candidate); err != nil {
		return err
	}
	_, err := s.RecordEvent(ctx, event)
	return err
}

func (l *Lifecycle) post(ctx context.Context, s Store, event CapitalEvent, debit, credit AccountType,
	amount decimal.Decimal, description string, meta Details) error {
	journalID, err := l.newID()
	if err != nil {
		return err
	}
	entry := JournalEntry{
		ID:            JournalEntryID(journalID),
		EventID:       event.ID,
		Timestamp:     event.Timestamp,
		DebitAccount:  debit,
		CreditAccount: credit,
		Amount:        amount,
		Description:   description,
		Metadata:      meta,
	}
	if err := s.RecordJournalEntry(ctx, entry); err != nil {
		return err
	}
	l.recorder.Posting(debit, credit, amount)
	return nil
}
