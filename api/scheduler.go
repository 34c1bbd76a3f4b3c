/*
scheduler.go - Periodic integrity sweep

PURPOSE:
  Re-runs the full integrity scan (asset rules, event and entry ordering,
  journal postings, proof hash chains, journal balance) on an interval so
  that corruption introduced outside the lifecycle, for example by a manual
  database edit, is surfaced without waiting for an auditor to ask.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Keeps the latest report for GET /api/integrity/last
  - Adds every problem found to the capledger_integrity_violations_total
    counter

CONFIGURATION:
  - CheckInterval: integrity.interval in config (default: 1 hour)
  - Enabled: false when the interval is zero

USAGE:
  scheduler := NewIntegrityScheduler(store, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GET /api/integrity (on-demand scan)
  - ledger/integrity.go: IntegrityChecker.Report
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/capital-ledger/ledger"
	"github.com/warp/capital-ledger/metrics"
)

// IntegrityScheduler runs integrity sweeps in the background.
type IntegrityScheduler struct {
	Checker       *ledger.IntegrityChecker
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	last    *ledger.IntegrityReport
	lastErr error
	now     func() time.Time
}

// NewIntegrityScheduler creates a scheduler. A non-positive interval
// leaves it disabled.
func NewIntegrityScheduler(store ledger.Store, interval time.Duration) *IntegrityScheduler {
	return &IntegrityScheduler{
		Checker:       ledger.NewIntegrityChecker(store),
		CheckInterval: interval,
		Enabled:       interval > 0,
		now:           time.Now,
	}
}

// Start begins the scheduler.
func (s *IntegrityScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Integrity] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	log.Printf("[Integrity] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *IntegrityScheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker = nil
	s.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		s.wg.Wait()
		log.Println("[Integrity] Stopped")
	}
}

func (s *IntegrityScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-stop:
			return
		}
	}
}

// Sweep runs one scan, records it as the latest report and returns it.
func (s *IntegrityScheduler) Sweep(ctx context.Context) (ledger.IntegrityReport, error) {
	report, err := s.Checker.Report(ctx, s.now().UTC())

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.last = &report
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("[Integrity] Sweep failed: %v", err)
		return report, err
	}

	metrics.ObserveIntegrity(report.Problems)
	if report.Valid() {
		log.Printf("[Integrity] Ledger consistent")
	} else {
		log.Printf("[Integrity] %d problem(s), journal balanced: %v", len(report.Problems), report.JournalBalanced)
		for _, p := range report.Problems {
			log.Printf("[Integrity]   %s", p)
		}
	}
	return report, nil
}

// Last returns the latest successful report, or nil before the first sweep.
func (s *IntegrityScheduler) Last() (*ledger.IntegrityReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}
