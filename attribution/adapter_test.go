package attribution

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/capital-ledger/ledger"
)

func validRecord(assetID string) map[string]any {
	return map[string]any{
		"asset_id":       assetID,
		"inference_cost": 1000.0,
		"execution_time": 3600.0,
		"timestamp":      "2025-03-01T12:00:00Z",
		"model_version":  "v1.0",
	}
}

func TestIngest_StructuredRecord(t *testing.T) {
	// GIVEN: A batch with one structured record
	// WHEN: It is ingested
	// THEN: The stored value is a validated Record

	a := NewAdapter()

	require.NoError(t, a.Ingest(map[string]any{"asset-1": validRecord("asset-1")}))

	v, ok := a.Get("asset-1")
	require.True(t, ok)
	rec, ok := v.(Record)
	require.True(t, ok)
	assert.Equal(t, ledger.AssetID("asset-1"), rec.AssetID)
	assert.True(t, rec.InferenceCost.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 3600.0, rec.ExecutionTime)
	assert.Equal(t, "v1.0", rec.ModelVersion)
	assert.True(t, rec.Timestamp.Equal(time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)))
}

func TestIngest_RawScalarsStoredAsIs(t *testing.T) {
	a := NewAdapter()

	require.NoError(t, a.Ingest(map[string]any{"asset-1": 42.5, "asset-2": "opaque"}))

	v, ok := a.Get("asset-1")
	require.True(t, ok)
	assert.Equal(t, 42.5, v)
	v, _ = a.Get("asset-2")
	assert.Equal(t, "opaque", v)
}

func TestIngest_AllOrNothing(t *testing.T) {
	// GIVEN: A batch where one record has a non-positive cost
	// WHEN: It is ingested
	// THEN: A ValidationError names the key and nothing from the batch is stored

	a := NewAdapter()
	require.NoError(t, a.Ingest(map[string]any{"existing": "keep"}))

	bad := validRecord("asset-b")
	bad["inference_cost"] = 0.0

	err := a.Ingest(map[string]any{
		"asset-a":  validRecord("asset-a"),
		"asset-b":  bad,
		"asset-c":  "scalar",
		"existing": "overwritten?",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrValidation)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "asset-b", ve.Key)
	assert.Equal(t, "inference_cost", ve.Field)

	assert.False(t, a.Has("asset-a"))
	assert.False(t, a.Has("asset-c"))
	v, _ := a.Get("existing")
	assert.Equal(t, "keep", v)
}

func TestIngest_FieldValidation(t *testing.T) {
	tests := []struct {
		name  string
		patch func(map[string]any)
		field string
	}{
		{"missing cost", func(m map[string]any) { delete(m, "inference_cost") }, "inference_cost"},
		{"negative cost", func(m map[string]any) { m["inference_cost"] = -1.0 }, "inference_cost"},
		{"text cost", func(m map[string]any) { m["inference_cost"] = "cheap" }, "inference_cost"},
		{"zero time", func(m map[string]any) { m["execution_time"] = 0 }, "execution_time"},
		{"bad timestamp", func(m map[string]any) { m["timestamp"] = "yesterday" }, "timestamp"},
		{"missing timestamp", func(m map[string]any) { delete(m, "timestamp") }, "timestamp"},
		{"missing version", func(m map[string]any) { delete(m, "model_version") }, "model_version"},
		{"empty asset id", func(m map[string]any) { m["asset_id"] = "" }, "asset_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord("k")
			tt.patch(rec)

			err := NewAdapter().Ingest(map[string]any{"k": rec})

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "k", ve.Key)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestIngest_ValidationMessages(t *testing.T) {
	// GIVEN: Records that fail a coercion, a required tag and a bound
	tests := []struct {
		name  string
		patch func(map[string]any)
		want  string
	}{
		{"required", func(m map[string]any) { m["model_version"] = "" }, "invalid attribution data for k: model_version is required"},
		{"bound", func(m map[string]any) { m["execution_time"] = -2.5 }, "invalid attribution data for k: execution_time must be greater than 0"},
		{"tiny cost", func(m map[string]any) { m["inference_cost"] = "-0.0001" }, "invalid attribution data for k: inference_cost must be greater than 0"},
		{"wrong type", func(m map[string]any) { m["asset_id"] = 7.0 }, "invalid attribution data for k: asset_id must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord("k")
			tt.patch(rec)

			// WHEN: The record is ingested
			err := NewAdapter().Ingest(map[string]any{"k": rec})

			// THEN: The error names the JSON field and the broken rule
			assert.EqualError(t, err, tt.want)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}
}

func TestIngest_AssetIDDefaultsToKey(t *testing.T) {
	rec := validRecord("")
	delete(rec, "asset_id")
	a := NewAdapter()

	require.NoError(t, a.Ingest(map[string]any{"asset-9": rec}))

	v, _ := a.Get("asset-9")
	assert.Equal(t, ledger.AssetID("asset-9"), v.(Record).AssetID)
}

func TestValidateAttribution(t *testing.T) {
	a := NewAdapter()
	require.NoError(t, a.Ingest(map[string]any{
		"known": validRecord("known"),
		"zero":  0.0,
		"blank": "",
	}))

	assert.True(t, a.ValidateAttribution("known", nil))
	assert.False(t, a.ValidateAttribution("zero", nil))
	assert.False(t, a.ValidateAttribution("blank", nil))
	assert.False(t, a.ValidateAttribution("unknown", nil))

	_, ok := a.Get("unknown")
	assert.False(t, ok)
}

func TestEmitAndReconcile(t *testing.T) {
	at := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	var seen []ledger.EventID
	a := NewAdapter(
		WithClock(func() time.Time { return at }),
		WithSink(func(e ledger.CapitalEvent) error {
			if e.Type == ledger.EventRetirement {
				return errors.New("rejected")
			}
			seen = append(seen, e.ID)
			return nil
		}),
	)

	assert.True(t, a.Emit(ledger.CapitalEvent{ID: "e1", Type: ledger.EventUtilization}))
	assert.False(t, a.Emit(ledger.CapitalEvent{ID: "e2", Type: ledger.EventRetirement}))
	assert.Equal(t, []ledger.EventID{"e1"}, seen)
	assert.True(t, NewAdapter().Emit(ledger.CapitalEvent{ID: "e3"}))

	require.NoError(t, a.Ingest(map[string]any{"x": 1.0}))
	r := a.Reconcile()
	assert.Equal(t, StatusReconciled, r.Status)
	assert.Equal(t, at, r.Timestamp)
	assert.Equal(t, 1, r.Known)
}
