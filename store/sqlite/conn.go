package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/capital-ledger/ledger"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// conn implements ledger.Store over a querier without locking. Store
// locks around it; inside WithTx it is the transactional view.
type conn struct {
	q     querier
	newID ledger.IDGenerator
	now   func() time.Time
}

const (
	assetColumns   = `id, owner, initial_value, depreciation_method, useful_life_months, created_at, status, current_value`
	eventColumns   = `id, asset_id, event_type, timestamp, details_json`
	entryColumns   = `id, event_id, asset_id, timestamp, amount, description, metadata_json`
	journalColumns = `id, event_id, timestamp, debit_account, credit_account, amount, description, metadata_json`
	proofColumns   = `id, asset_id, event_id, timestamp, origin, content, previous_hash, hash`
)

// =============================================================================
// ASSETS
// =============================================================================

func (c *conn) CreateAsset(ctx context.Context, in ledger.NewAsset) (ledger.Asset, error) {
	existing, err := c.Asset(ctx, in.ID)
	if err != nil {
		return ledger.Asset{}, err
	}
	if existing != nil {
		return ledger.Asset{}, &ledger.DuplicateError{AssetID: in.ID}
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = c.now()
	}
	a := in.Build()

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.Owner, a.InitialValue, a.DepreciationMethod, a.UsefulLifeMonths,
		formatTime(a.CreatedAt), a.Status, a.CurrentValue,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.Asset{}, &ledger.DuplicateError{AssetID: in.ID}
		}
		return ledger.Asset{}, writeFailed("insert asset", err)
	}
	return c.reloadAsset(ctx, a.ID)
}

func (c *conn) UpdateAsset(ctx context.Context, assetID ledger.AssetID, fn func(*ledger.Asset) error) (ledger.Asset, error) {
	a, err := c.Asset(ctx, assetID)
	if err != nil {
		return ledger.Asset{}, err
	}
	if a == nil {
		return ledger.Asset{}, &ledger.NotFoundError{AssetID: assetID}
	}
	if err := fn(a); err != nil {
		return ledger.Asset{}, err
	}

	// Identity and creation fields are not mutable.
	_, err = c.q.ExecContext(ctx, `
		UPDATE assets SET owner = ?, status = ?, current_value = ?
		WHERE id = ?
	`, a.Owner, a.Status, a.CurrentValue, assetID)
	if err != nil {
		return ledger.Asset{}, writeFailed("update asset", err)
	}
	return c.reloadAsset(ctx, assetID)
}

func (c *conn) Asset(ctx context.Context, assetID ledger.AssetID) (*ledger.Asset, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, assetID)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *conn) Assets(ctx context.Context) ([]ledger.Asset, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := []ledger.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (c *conn) reloadAsset(ctx context.Context, assetID ledger.AssetID) (ledger.Asset, error) {
	a, err := c.Asset(ctx, assetID)
	if err != nil {
		return ledger.Asset{}, err
	}
	if a == nil {
		return ledger.Asset{}, &ledger.NotFoundError{AssetID: assetID}
	}
	return *a, nil
}

func scanAsset(row scanner) (ledger.Asset, error) {
	var (
		a         ledger.Asset
		createdAt string
	)
	err := row.Scan(
		&a.ID, &a.Owner, &a.InitialValue, &a.DepreciationMethod, &a.UsefulLifeMonths,
		&createdAt, &a.Status, &a.CurrentValue,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return a, err
	}
	if err != nil {
		return a, fmt.Errorf("failed to scan asset: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return a, fmt.Errorf("asset %s: invalid created_at: %w", a.ID, err)
	}
	return a, nil
}

// =============================================================================
// EVENTS AND ENTRIES
// =============================================================================

func (c *conn) RecordEvent(ctx context.Context, event ledger.CapitalEvent) (ledger.LedgerEntry, error) {
	a, err := c.Asset(ctx, event.AssetID)
	if err != nil {
		return ledger.LedgerEntry{}, err
	}
	if a == nil {
		return ledger.LedgerEntry{}, &ledger.NotFoundError{AssetID: event.AssetID}
	}
	entryID, err := c.newID()
	if err != nil {
		return ledger.LedgerEntry{}, err
	}
	entry, err := ledger.EntryFor(ledger.EntryID(entryID), event)
	if err != nil {
		return ledger.LedgerEntry{}, err
	}

	details, err := marshalDetails(event.Details)
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("failed to serialize event details: %w", err)
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?)
	`, event.ID, event.AssetID, event.Type, formatTime(event.Timestamp), details)
	if err != nil {
		return ledger.LedgerEntry{}, writeFailed("insert event", err)
	}

	metadata, err := marshalDetails(entry.Metadata)
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("failed to serialize entry metadata: %w", err)
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.EventID, entry.AssetID, formatTime(entry.Timestamp), entry.Amount, entry.Description, metadata)
	if err != nil {
		return ledger.LedgerEntry{}, writeFailed("insert entry", err)
	}
	return entry, nil
}

func (c *conn) Events(ctx context.Context) ([]ledger.CapitalEvent, error) {
	return c.queryEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY seq`)
}

func (c *conn) EventsForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.CapitalEvent, error) {
	return c.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE asset_id = ? ORDER BY seq`, assetID)
}

func (c *conn) queryEvents(ctx context.Context, query string, args ...any) ([]ledger.CapitalEvent, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []ledger.CapitalEvent{}
	for rows.Next() {
		var (
			e         ledger.CapitalEvent
			timestamp string
			details   string
		)
		if err := rows.Scan(&e.ID, &e.AssetID, &e.Type, &timestamp, &details); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if e.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, fmt.Errorf("event %s: invalid timestamp: %w", e.ID, err)
		}
		if e.Details, err = unmarshalDetails(details); err != nil {
			return nil, fmt.Errorf("event %s: invalid details: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (c *conn) Entries(ctx context.Context) ([]ledger.LedgerEntry, error) {
	return c.queryEntries(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY seq`)
}

func (c *conn) EntriesForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.LedgerEntry, error) {
	return c.queryEntries(ctx, `SELECT `+entryColumns+` FROM entries WHERE asset_id = ? ORDER BY seq`, assetID)
}

func (c *conn) LastEntry(ctx context.Context) (*ledger.LedgerEntry, error) {
	entries, err := c.queryEntries(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY seq DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (c *conn) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.LedgerEntry, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []ledger.LedgerEntry{}
	for rows.Next() {
		var (
			e         ledger.LedgerEntry
			timestamp string
			metadata  string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.AssetID, &timestamp, &e.Amount, &e.Description, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if e.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, fmt.Errorf("entry %s: invalid timestamp: %w", e.ID, err)
		}
		if e.Metadata, err = unmarshalDetails(metadata); err != nil {
			return nil, fmt.Errorf("entry %s: invalid metadata: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// JOURNAL
// =============================================================================

func (c *conn) RecordJournalEntry(ctx context.Context, entry ledger.JournalEntry) error {
	if err := ledger.CheckJournalEntry(entry); err != nil {
		return err
	}
	metadata, err := marshalDetails(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize journal metadata: %w", err)
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO journal_entries (`+journalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.EventID, formatTime(entry.Timestamp), entry.DebitAccount, entry.CreditAccount,
		entry.Amount, entry.Description, metadata,
	)
	if err != nil {
		return writeFailed("insert journal entry", err)
	}
	return nil
}

func (c *conn) JournalEntries(ctx context.Context) ([]ledger.JournalEntry, error) {
	return c.queryJournal(ctx, `SELECT `+journalColumns+` FROM journal_entries ORDER BY seq`)
}

func (c *conn) JournalEntriesForEvent(ctx context.Context, eventID ledger.EventID) ([]ledger.JournalEntry, error) {
	return c.queryJournal(ctx, `SELECT `+journalColumns+` FROM journal_entries WHERE event_id = ? ORDER BY seq`, eventID)
}

// JournalEntriesForAsset resolves the asset's events, then their postings.
func (c *conn) JournalEntriesForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.JournalEntry, error) {
	return c.queryJournal(ctx, `
		SELECT `+journalColumns+` FROM journal_entries
		WHERE event_id IN (SELECT id FROM events WHERE asset_id = ?)
		ORDER BY seq
	`, assetID)
}

func (c *conn) VerifyJournalBalance(ctx context.Context) (bool, error) {
	journal, err := c.JournalEntries(ctx)
	if err != nil {
		return false, err
	}
	for _, j := range journal {
		if !j.Amount.IsPositive() {
			return false, nil
		}
	}
	return true, nil
}

func (c *conn) queryJournal(ctx context.Context, query string, args ...any) ([]ledger.JournalEntry, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	journal := []ledger.JournalEntry{}
	for rows.Next() {
		var (
			j         ledger.JournalEntry
			timestamp string
			metadata  string
		)
		err := rows.Scan(&j.ID, &j.EventID, &timestamp, &j.DebitAccount, &j.CreditAccount,
			&j.Amount, &j.Description, &metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if j.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, fmt.Errorf("journal entry %s: invalid timestamp: %w", j.ID, err)
		}
		if j.Metadata, err = unmarshalDetails(metadata); err != nil {
			return nil, fmt.Errorf("journal entry %s: invalid metadata: %w", j.ID, err)
		}
		journal = append(journal, j)
	}
	return journal, rows.Err()
}

// =============================================================================
// PROOFS
// =============================================================================

func (c *conn) GenerateProof(ctx context.Context, assetID ledger.AssetID, eventID ledger.EventID) (ledger.CapitalProof, error) {
	a, err := c.Asset(ctx, assetID)
	if err != nil {
		return ledger.CapitalProof{}, err
	}
	if a == nil {
		return ledger.CapitalProof{}, &ledger.NotFoundError{AssetID: assetID}
	}

	var previous string
	err = c.q.QueryRowContext(ctx,
		`SELECT hash FROM proofs WHERE asset_id = ? ORDER BY seq DESC LIMIT 1`, assetID,
	).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ledger.CapitalProof{}, fmt.Errorf("failed to load previous proof: %w", err)
	}

	proofID, err := c.newID()
	if err != nil {
		return ledger.CapitalProof{}, err
	}
	p, err := ledger.NewProof(ledger.ProofID(proofID), *a, eventID, c.now(), previous)
	if err != nil {
		return ledger.CapitalProof{}, err
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO proofs (`+proofColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.AssetID, p.EventID, formatTime(p.Timestamp), p.Origin,
		string(p.Content), p.PreviousHash, p.Hash,
	)
	if err != nil {
		return ledger.CapitalProof{}, writeFailed("insert proof", err)
	}
	return p, nil
}

func (c *conn) Proofs(ctx context.Context) ([]ledger.CapitalProof, error) {
	return c.queryProofs(ctx, `SELECT `+proofColumns+` FROM proofs ORDER BY seq`)
}

func (c *conn) ProofsForAsset(ctx context.Context, assetID ledger.AssetID) ([]ledger.CapitalProof, error) {
	return c.queryProofs(ctx, `SELECT `+proofColumns+` FROM proofs WHERE asset_id = ? ORDER BY seq`, assetID)
}

func (c *conn) Proof(ctx context.Context, proofID ledger.ProofID) (*ledger.CapitalProof, error) {
	proofs, err := c.queryProofs(ctx, `SELECT `+proofColumns+` FROM proofs WHERE id = ? ORDER BY seq LIMIT 1`, proofID)
	if err != nil {
		return nil, err
	}
	if len(proofs) == 0 {
		return nil, nil
	}
	return &proofs[0], nil
}

func (c *conn) queryProofs(ctx context.Context, query string, args ...any) ([]ledger.CapitalProof, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query proofs: %w", err)
	}
	defer rows.Close()

	proofs := []ledger.CapitalProof{}
	for rows.Next() {
		var (
			p         ledger.CapitalProof
			timestamp string
			content   string
		)
		err := rows.Scan(&p.ID, &p.AssetID, &p.EventID, &timestamp, &p.Origin, &content, &p.PreviousHash, &p.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proof: %w", err)
		}
		if p.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, fmt.Errorf("proof %s: invalid timestamp: %w", p.ID, err)
		}
		p.Content = []byte(content)
		proofs = append(proofs, p)
	}
	return proofs, rows.Err()
}
