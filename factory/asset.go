/*
Package factory provides JSON/YAML to Go asset conversion.

PURPOSE:
  Converts asset definitions into ledger.CapitalizeInput and
  ledger.DepreciateInput values. This enables bulk capitalization without
  code changes: finance can describe a model portfolio in a file, and the
  factory creates the proper Go structs and replays them through the
  Lifecycle.

SCHEMA (YAML shown, JSON uses the same keys):
  assets:
    - id: model-vision-v3
      owner: research
      initial_value: "250000"
      depreciation_method: declining_balance
      useful_life_months: 36
      depreciation:
        - start: 2024-01-01
          end: 2024-07-01
          salvage_value: "10000"
          rate_multiplier: "1.5"

KEY FEATURES:
  - Validates structure and reports the offending asset
  - Defaults depreciation_method to linear
  - Generates an asset id (UUID) when none is given
  - Each definition loads atomically (capitalization plus its windows)
  - ToJSON and Catalog reverse the conversion for a stored ledger, so
    `capledger assets` output can be loaded into a fresh store

USAGE:
  f := NewAssetFactory()
  catalog, err := f.ParseCatalog(data, FormatYAML)
  result, err := f.Load(ctx, lifecycle, catalog)

SEE ALSO:
  - ledger/lifecycle.go: CapitalizeInput, DepreciateInput
  - cli/load.go: capledger load -f assets.yaml
  - cli/assets.go: capledger assets --format yaml
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/capital-ledger/id"
	"github.com/warp/capital-ledger/ledger"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// CatalogJSON is a list of asset definitions.
type CatalogJSON struct {
	Assets []AssetJSON `json:"assets" yaml:"assets"`
}

// AssetJSON is the file representation of one asset.
type AssetJSON struct {
	ID                 string             `json:"id,omitempty" yaml:"id,omitempty"`
	Owner              string             `json:"owner" yaml:"owner"`
	InitialValue       string             `json:"initial_value" yaml:"initial_value"`
	DepreciationMethod string             `json:"depreciation_method,omitempty" yaml:"depreciation_method,omitempty"`
	UsefulLifeMonths   int                `json:"useful_life_months" yaml:"useful_life_months"`
	Depreciation       []DepreciationJSON `json:"depreciation,omitempty" yaml:"depreciation,omitempty"`
}

// DepreciationJSON is one scheduled depreciation window.
type DepreciationJSON struct {
	Start          string `json:"start" yaml:"start"`
	End            string `json:"end" yaml:"end"`
	SalvageValue   string `json:"salvage_value,omitempty" yaml:"salvage_value,omitempty"`
	RateMultiplier string `json:"rate_multiplier,omitempty" yaml:"rate_multiplier,omitempty"`
}

// Definition is a converted asset: its capitalization and the depreciation
// windows to apply afterwards, in file order.
type Definition struct {
	Capitalize   ledger.CapitalizeInput
	Depreciation []ledger.DepreciateInput
}

// Format selects the catalog encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// =============================================================================
// ASSET FACTORY
// =============================================================================

// AssetFactory converts asset definitions to lifecycle inputs.
type AssetFactory struct {
	newID ledger.IDGenerator
}

// NewAssetFactory creates a new asset factory.
func NewAssetFactory() *AssetFactory {
	return &AssetFactory{newID: id.NewAsset}
}

// ParseAsset parses a single JSON asset definition.
func (f *AssetFactory) ParseAsset(jsonStr string) (Definition, error) {
	var aj AssetJSON
	if err := json.Unmarshal([]byte(jsonStr), &aj); err != nil {
		return Definition{}, fmt.Errorf("failed to parse asset JSON: %w", err)
	}
	return f.FromJSON(aj)
}

// ParseCatalog parses a catalog in the given format and converts every
// asset. The first invalid asset aborts the parse.
func (f *AssetFactory) ParseCatalog(data []byte, format Format) ([]Definition, error) {
	var cj CatalogJSON
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cj); err != nil {
			return nil, fmt.Errorf("failed to parse asset YAML: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &cj); err != nil {
			return nil, fmt.Errorf("failed to parse asset JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown catalog format %q", ledger.ErrValidation, string(format))
	}

	defs := make([]Definition, 0, len(cj.Assets))
	for i, aj := range cj.Assets {
		def, err := f.FromJSON(aj)
		if err != nil {
			return nil, fmt.Errorf("asset %d: %w", i, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// FromJSON converts AssetJSON to lifecycle inputs.
func (f *AssetFactory) FromJSON(aj AssetJSON) (Definition, error) {
	assetID := aj.ID
	if assetID == "" {
		generated, err := f.newID()
		if err != nil {
			return Definition{}, err
		}
		assetID = generated
	}

	value, err := parseDecimal("initial_value", aj.InitialValue)
	if err != nil {
		return Definition{}, err
	}

	method := ledger.MethodLinear
	if aj.DepreciationMethod != "" {
		if method, err = ledger.ParseMethod(aj.DepreciationMethod); err != nil {
			return Definition{}, err
		}
	}

	def := Definition{
		Capitalize: ledger.CapitalizeInput{
			ID:                 ledger.AssetID(assetID),
			Owner:              aj.Owner,
			InitialValue:       value,
			DepreciationMethod: method,
			UsefulLifeMonths:   aj.UsefulLifeMonths,
		},
	}

	for i, dj := range aj.Depreciation {
		in, err := ParseDepreciation(ledger.AssetID(assetID), dj)
		if err != nil {
			return Definition{}, fmt.Errorf("depreciation %d: %w", i, err)
		}
		def.Depreciation = append(def.Depreciation, in)
	}
	return def, nil
}

// ToJSON converts an Asset to AssetJSON. Depreciation history is not
// included; it lives in the asset's events.
func (f *AssetFactory) ToJSON(a ledger.Asset) AssetJSON {
	return AssetJSON{
		ID:                 string(a.ID),
		Owner:              a.Owner,
		InitialValue:       a.InitialValue.String(),
		DepreciationMethod: string(a.DepreciationMethod),
		UsefulLifeMonths:   a.UsefulLifeMonths,
	}
}

// Catalog dumps the store as a catalog that Load can replay: every asset
// with its current owner and the depreciation windows recorded for it.
// Utilization and retirement are not part of a catalog.
func (f *AssetFactory) Catalog(ctx context.Context, store ledger.Store) (CatalogJSON, error) {
	assets, err := store.Assets(ctx)
	if err != nil {
		return CatalogJSON{}, err
	}
	cj := CatalogJSON{Assets: make([]AssetJSON, 0, len(assets))}
	for _, a := range assets {
		aj := f.ToJSON(a)
		events, err := store.EventsForAsset(ctx, a.ID)
		if err != nil {
			return CatalogJSON{}, err
		}
		for _, e := range events {
			if e.Type != ledger.EventDepreciation {
				continue
			}
			period, err := ledger.PeriodFromDetails(e.Details)
			if err != nil {
				return CatalogJSON{}, fmt.Errorf("asset %s event %s: %w", a.ID, e.ID, err)
			}
			aj.Depreciation = append(aj.Depreciation, DepreciationJSON{
				Start:          ledger.FormatTime(period.Start),
				End:            ledger.FormatTime(period.End),
				SalvageValue:   e.Details[ledger.DetailSalvageValue],
				RateMultiplier: e.Details[ledger.DetailRateMultiplier],
			})
		}
		cj.Assets = append(cj.Assets, aj)
	}
	return cj, nil
}

// EncodeCatalog writes a catalog in the given format.
func EncodeCatalog(cj CatalogJSON, format Format, w io.Writer) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cj); err != nil {
			return fmt.Errorf("failed to encode asset YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cj)
	default:
		return fmt.Errorf("%w: unknown catalog format %q", ledger.ErrValidation, string(format))
	}
}

// =============================================================================
// LOADING
// =============================================================================

// LoadResult summarizes a catalog replay.
type LoadResult struct {
	Assets       []ledger.Asset
	Depreciation int
}

// Load capitalizes every definition and applies its depreciation windows.
// Each definition commits as one unit: a failing window leaves no trace of
// its asset. Load stops at the first failure; earlier definitions stay.
func (f *AssetFactory) Load(ctx context.Context, lc *ledger.Lifecycle, defs []Definition) (LoadResult, error) {
	var result LoadResult
	for _, def := range defs {
		var (
			asset ledger.Asset
			runs  int
		)
		err := lc.Atomically(ctx, func(tx *ledger.Lifecycle) error {
			created, err := tx.Capitalize(ctx, def.Capitalize)
			if err != nil {
				return fmt.Errorf("capitalize %s: %w", def.Capitalize.ID, err)
			}
			asset = created
			for _, in := range def.Depreciation {
				if _, err := tx.Depreciate(ctx, in); err != nil {
					return fmt.Errorf("depreciate %s: %w", in.AssetID, err)
				}
				runs++
			}
			if runs == 0 {
				return nil
			}
			current, err := tx.Store().Asset(ctx, asset.ID)
			if err != nil {
				return err
			}
			asset = *current
			return nil
		})
		if err != nil {
			return result, err
		}
		result.Assets = append(result.Assets, asset)
		result.Depreciation += runs
	}
	return result, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// ParseDepreciation converts one window for the given asset.
func ParseDepreciation(assetID ledger.AssetID, dj DepreciationJSON) (ledger.DepreciateInput, error) {
	start, err := ParseDate(dj.Start)
	if err != nil {
		return ledger.DepreciateInput{}, fmt.Errorf("%w: start: %v", ledger.ErrValidation, err)
	}
	end, err := ParseDate(dj.End)
	if err != nil {
		return ledger.DepreciateInput{}, fmt.Errorf("%w: end: %v", ledger.ErrValidation, err)
	}
	in := ledger.DepreciateInput{AssetID: assetID, Start: start, End: end}
	if dj.SalvageValue != "" {
		if in.SalvageValue, err = parseDecimal("salvage_value", dj.SalvageValue); err != nil {
			return ledger.DepreciateInput{}, err
		}
	}
	if dj.RateMultiplier != "" {
		if in.RateMultiplier, err = parseDecimal("rate_multiplier", dj.RateMultiplier); err != nil {
			return ledger.DepreciateInput{}, err
		}
	}
	return in, nil
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 time.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ledger.ErrValidation, field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a number", ledger.ErrValidation, field, s)
	}
	return d, nil
}
