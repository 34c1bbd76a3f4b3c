// Package metrics exposes Prometheus counters for the capital ledger.
//
// The counters are registered on the default registry at init (promauto)
// and served by the api package on /metrics. Recorder plugs them into the
// ledger.Lifecycle.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/warp/capital-ledger/ledger"
)

const namespace = "capledger"

// Result label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// ═══════════════════════════════════════════════════════════════════════════
// Lifecycle
// ═══════════════════════════════════════════════════════════════════════════

// Transitions counts lifecycle operations by outcome.
var Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "lifecycle",
	Name:      "transitions_total",
	Help:      "Total lifecycle operations by operation and result.",
}, []string{"op", "result"})

// Postings counts journal entries by debit and credit account.
var Postings = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "journal",
	Name:      "postings_total",
	Help:      "Total journal entries posted by account pair.",
}, []string{"debit", "credit"})

// PostedAmount sums posted amounts per debit account. Float precision is
// enough for a dashboard; the ledger itself stays decimal.
var PostedAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "journal",
	Name:      "posted_amount_total",
	Help:      "Sum of posted amounts by debit account.",
}, []string{"debit"})

// ═══════════════════════════════════════════════════════════════════════════
// Integrity & proofs
// ═══════════════════════════════════════════════════════════════════════════

// IntegrityViolations counts problems found by full integrity scans.
var IntegrityViolations = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "integrity",
	Name:      "violations_total",
	Help:      "Total integrity problems reported by full scans.",
})

// ProofsGenerated counts proofs by kind.
var ProofsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "proofs",
	Name:      "generated_total",
	Help:      "Total capital proofs generated by kind.",
}, []string{"kind"})

// AttributionRecords counts ingested attribution records by outcome.
var AttributionRecords = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "attribution",
	Name:      "records_total",
	Help:      "Total attribution batches ingested by result.",
}, []string{"result"})

// ─── Recorder ───────────────────────────────────────────────────────────────

// Recorder implements ledger.Recorder on the package counters.
type Recorder struct{}

var _ ledger.Recorder = Recorder{}

func (Recorder) Transition(op string, err error) {
	Transitions.WithLabelValues(op, Result(err)).Inc()
}

func (Recorder) Posting(debit, credit ledger.AccountType, amount decimal.Decimal) {
	Postings.WithLabelValues(string(debit), string(credit)).Inc()
	f, _ := amount.Float64()
	if f > 0 {
		PostedAmount.WithLabelValues(string(debit)).Add(f)
	}
}

// Result maps an operation error to a result label: caller mistakes are
// "rejected", anything else is "error".
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case ledger.IsClientError(err), errors.Is(err, ledger.ErrAssetNotFound):
		return ResultRejected
	default:
		return ResultError
	}
}

// ObserveIntegrity adds the problems of one scan.
func ObserveIntegrity(problems []string) {
	IntegrityViolations.Add(float64(len(problems)))
}

// ObserveProof counts one generated proof.
func ObserveProof(kind string) {
	ProofsGenerated.WithLabelValues(kind).Inc()
}
