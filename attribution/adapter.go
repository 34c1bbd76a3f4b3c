/*
Package attribution holds inference-cost attribution received from an
external attribution engine and answers reconciliation queries about it.

PURPOSE:
  The ledger records what capital exists; an external engine records what
  each execution of that capital cost. This adapter is the seam between
  them: it ingests attribution batches, answers "is attribution known for
  this asset?", and exposes the emit / reconcile hooks a financial system
  integration plugs into.

INGESTION:
  A batch maps a key (an asset id) to either:
  - a raw scalar (string, number, bool), stored as-is, or
  - a structured record {asset_id, inference_cost, execution_time,
    timestamp, model_version}, coerced from JSON and then checked against
    the validate tags on Record (go-playground/validator).

  Ingestion is all-or-nothing: the first invalid record aborts the batch
  with a *ValidationError naming the key, and nothing is stored. Keys are
  validated in sorted order so the reported key is deterministic.

SEE ALSO:
  - api/handlers.go: POST /api/attribution, GET /api/attribution/{assetID}
*/
package attribution

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/capital-ledger/ledger"
)

// Record is a validated structured attribution entry.
type Record struct {
	AssetID       ledger.AssetID  `json:"asset_id" validate:"required"`
	InferenceCost decimal.Decimal `json:"inference_cost" validate:"gt=0"`
	ExecutionTime float64         `json:"execution_time" validate:"gt=0"` // seconds
	Timestamp     time.Time       `json:"timestamp" validate:"required"`
	ModelVersion  string          `json:"model_version" validate:"required"`
}

// ValidationError identifies the batch key and field that failed.
type ValidationError struct {
	Key    string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid attribution data for %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("invalid attribution data for %s: %s %s", e.Key, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ledger.ErrValidation
}

// Reconciliation is the outcome of a reconciliation pass.
type Reconciliation struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Known     int       `json:"known"`
}

const StatusReconciled = "reconciled"

// Sink receives capital events forwarded to a financial system.
type Sink func(ledger.CapitalEvent) error

// =============================================================================
// ADAPTER
// =============================================================================

type Adapter struct {
	mu   sync.RWMutex
	data map[string]any
	sink Sink
	now  func() time.Time
}

type Option func(*Adapter)

// WithSink forwards emitted events to fn.
func WithSink(fn Sink) Option {
	return func(a *Adapter) { a.sink = fn }
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{data: make(map[string]any), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ingest validates the whole batch, then merges it. Existing keys are
// overwritten by the batch.
func (a *Adapter) Ingest(batch map[string]any) error {
	keys := make([]string, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	validated := make(map[string]any, len(batch))
	for _, key := range keys {
		switch v := batch[key].(type) {
		case map[string]any:
			rec, err := parseRecord(key, v)
			if err != nil {
				return err
			}
			validated[key] = rec
		case []any:
			return &ValidationError{Key: key, Reason: "must be a scalar or an attribution record"}
		default:
			validated[key] = v
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range validated {
		a.data[k] = v
	}
	return nil
}

// Has reports whether any attribution is known for the asset.
func (a *Adapter) Has(assetID ledger.AssetID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.data[string(assetID)]
	return ok
}

// Get returns the stored value: a Record or the raw scalar.
func (a *Adapter) Get(assetID ledger.AssetID) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.data[string(assetID)]
	return v, ok
}

// ValidateAttribution reports whether usable attribution exists for an
// execution of the asset. Empty scalars (nil, "", 0, false) do not count.
func (a *Adapter) ValidateAttribution(assetID ledger.AssetID, _ ledger.Details) bool {
	v, ok := a.Get(assetID)
	return ok && !isEmpty(v)
}

// Emit forwards an event to the configured sink. Without a sink every
// event is accepted.
func (a *Adapter) Emit(event ledger.CapitalEvent) bool {
	if a.sink == nil {
		return true
	}
	return a.sink(event) == nil
}

// Reconcile reports the reconciliation status of the ingested data.
func (a *Adapter) Reconcile() Reconciliation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Reconciliation{
		Status:    StatusReconciled,
		Timestamp: a.now().UTC(),
		Known:     len(a.data),
	}
}

// =============================================================================
// RECORD VALIDATION
// =============================================================================

var recordValidator = newRecordValidator()

// newRecordValidator reports fields by their JSON names and compares
// decimals as floats so numeric tags apply to them.
func newRecordValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// parseRecord coerces the raw JSON values into a Record, then checks the
// record's validate tags.
func parseRecord(key string, raw map[string]any) (Record, error) {
	fail := func(field, reason string) (Record, error) {
		return Record{}, &ValidationError{Key: key, Field: field, Reason: reason}
	}

	rec := Record{AssetID: ledger.AssetID(key)}
	if v, ok := raw["asset_id"]; ok {
		s, ok := v.(string)
		if !ok {
			return fail("asset_id", "must be a string")
		}
		rec.AssetID = ledger.AssetID(s)
	}

	cost, err := toDecimal(raw["inference_cost"])
	if err != nil {
		return fail("inference_cost", err.Error())
	}
	rec.InferenceCost = cost

	execTime, err := toDecimal(raw["execution_time"])
	if err != nil {
		return fail("execution_time", err.Error())
	}
	rec.ExecutionTime = execTime.InexactFloat64()

	switch ts := raw["timestamp"].(type) {
	case nil:
	case time.Time:
		rec.Timestamp = ts
	case string:
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fail("timestamp", "must be an RFC 3339 time")
		}
		rec.Timestamp = t
	default:
		return fail("timestamp", "must be an RFC 3339 time")
	}

	switch version := raw["model_version"].(type) {
	case nil:
	case string:
		rec.ModelVersion = version
	default:
		return fail("model_version", "must be a string")
	}

	if err := recordValidator.Struct(rec); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return Record{}, fmt.Errorf("validate attribution record %s: %w", key, err)
		}
		fe := fieldErrs[0]
		return fail(fe.Field(), reasonFor(fe))
	}
	return rec, nil
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("is required")
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, fmt.Errorf("must be a number, got %s", strconv.Quote(n))
		}
		return d, nil
	case decimal.Decimal:
		return n, nil
	default:
		return decimal.Zero, fmt.Errorf("must be a number")
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case int:
		return x == 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	}
	return false
}
