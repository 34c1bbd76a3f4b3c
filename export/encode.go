package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/warp/capital-ledger/ledger"
	"github.com/xuri/excelize/v2"
)

// Format selects an encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = fmt.Errorf("%w: unknown export format", ledger.ErrValidation)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Write collects the store and encodes it to w.
func Write(ctx context.Context, store ledger.Store, format Format, w io.Writer) error {
	snap, err := Collect(ctx, store, time.Now())
	if err != nil {
		return err
	}
	return Encode(snap, format, w)
}

// Encode writes a snapshot in the given format.
func Encode(snap Snapshot, format Format, w io.Writer) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatCSV:
		return encodeCSV(snap, w)
	case FormatXLSX:
		return encodeXLSX(snap, w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

// =============================================================================
// TABULAR VIEWS
// =============================================================================

type table struct {
	name   string
	header []string
	rows   [][]string
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// tables flattens a snapshot into one table per collection. Details maps
// are rendered as compact JSON (encoding/json sorts the keys).
func tables(snap Snapshot) []table {
	assets := table{name: "Assets", header: []string{
		"id", "owner", "initial_value", "depreciation_method", "useful_life_months", "created_at", "status", "current_value",
	}}
	for _, a := range snap.Assets {
		current := ""
		if a.CurrentValue.Valid {
			current = a.CurrentValue.Decimal.String()
		}
		assets.rows = append(assets.rows, []string{
			a.ID, a.Owner, a.InitialValue.String(), a.DepreciationMethod,
			strconv.Itoa(a.UsefulLifeMonths), ts(a.CreatedAt), a.Status, current,
		})
	}

	events := table{name: "Events", header: []string{"id", "asset_id", "type", "timestamp", "details"}}
	for _, e := range snap.Events {
		events.rows = append(events.rows, []string{e.ID, e.AssetID, e.Type, ts(e.Timestamp), detailsString(e.Details)})
	}

	entries := table{name: "Entries", header: []string{"id", "event_id", "asset_id", "timestamp", "amount", "description"}}
	for _, e := range snap.Entries {
		entries.rows = append(entries.rows, []string{e.ID, e.EventID, e.AssetID, ts(e.Timestamp), e.Amount.String(), e.Description})
	}

	journal := table{name: "Journal", header: []string{
		"id", "event_id", "timestamp", "debit_account", "credit_account", "amount", "description",
	}}
	for _, j := range snap.JournalEntries {
		journal.rows = append(journal.rows, []string{
			j.ID, j.EventID, ts(j.Timestamp), j.DebitAccount, j.CreditAccount, j.Amount.String(), j.Description,
		})
	}

	proofs := table{name: "Proofs", header: []string{"id", "asset_id", "event_id", "timestamp", "previous_hash", "hash"}}
	for _, p := range snap.Proofs {
		proofs.rows = append(proofs.rows, []string{p.ID, p.AssetID, p.EventID, ts(p.Timestamp), p.PreviousHash, p.Hash})
	}

	return []table{assets, events, entries, journal, proofs}
}

func detailsString(d ledger.Details) string {
	if len(d) == 0 {
		return ""
	}
	b, _ := json.Marshal(d)
	return string(b)
}

// =============================================================================
// CSV
// =============================================================================

// csvHeader is the union layout used by the flat CSV: every record is one
// row tagged with its kind; columns a kind does not use stay empty.
var csvHeader = []string{"record_type", "id", "asset_id", "event_id", "timestamp", "type", "amount", "description"}

func encodeCSV(snap Snapshot, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, a := range snap.Assets {
		amount := a.InitialValue.String()
		if a.CurrentValue.Valid {
			amount = a.CurrentValue.Decimal.String()
		}
		if err := cw.Write([]string{"asset", a.ID, a.ID, "", ts(a.CreatedAt), a.Status, amount, a.Owner}); err != nil {
			return err
		}
	}
	for _, e := range snap.Events {
		if err := cw.Write([]string{"event", e.ID, e.AssetID, e.ID, ts(e.Timestamp), e.Type, e.Details[ledger.DetailAmount], ""}); err != nil {
			return err
		}
	}
	for _, e := range snap.Entries {
		if err := cw.Write([]string{"entry", e.ID, e.AssetID, e.EventID, ts(e.Timestamp), "", e.Amount.String(), e.Description}); err != nil {
			return err
		}
	}
	for _, j := range snap.JournalEntries {
		kind := j.DebitAccount + "/" + j.CreditAccount
		if err := cw.Write([]string{"journal", j.ID, "", j.EventID, ts(j.Timestamp), kind, j.Amount.String(), j.Description}); err != nil {
			return err
		}
	}
	for _, p := range snap.Proofs {
		if err := cw.Write([]string{"proof", p.ID, p.AssetID, p.EventID, ts(p.Timestamp), p.Origin, "", p.Hash}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// =============================================================================
// XLSX
// =============================================================================

func encodeXLSX(snap Snapshot, w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, t := range tables(snap) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.name); err != nil {
				return fmt.Errorf("failed to name sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", t.name, err)
		}
		if err := writeSheetRow(f, t.name, 1, t.header); err != nil {
			return err
		}
		for r, row := range t.rows {
			if err := writeSheetRow(f, t.name, r+2, row); err != nil {
				return err
			}
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
