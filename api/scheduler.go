/*
scheduler.go - Automated settlement scheduler

PURPOSE:
  Periodically runs the settlement pass (deposit interest accrual and
  credit amortization) on a configurable cadence.

DESIGN:
  - robfig/cron drives the cadence ("@every 730h" by default)
  - A TryLock skips a tick if the previous pass is still running
  - The period key derives from the tick time, so even if two processes
    fire for the same period, the settlement_runs unique index lets only
    one of them apply

CONFIGURATION:
  - Cadence: How often to run (default: monthly)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSettlementScheduler(settlement, cadence)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunSettlement endpoint (manual trigger)
  - bank/settlement.go: The settlement pass itself
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/bank-ledger/bank"
)

// DefaultCadence approximates one month.
const DefaultCadence = 730 * time.Hour

// SettlementScheduler runs settlement passes on a fixed cadence.
type SettlementScheduler struct {
	Settlement *bank.Settlement
	Cadence    time.Duration
	Enabled    bool

	cron *cron.Cron
	mu   sync.Mutex // guards against overlapping passes
}

// NewSettlementScheduler creates a scheduler. A non-positive cadence falls
// back to DefaultCadence.
func NewSettlementScheduler(settlement *bank.Settlement, cadence time.Duration) *SettlementScheduler {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &SettlementScheduler{
		Settlement: settlement,
		Cadence:    cadence,
		Enabled:    true,
	}
}

// Start begins the scheduler.
func (ss *SettlementScheduler) Start() {
	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.cron = cron.New()
	ss.cron.Schedule(cron.Every(ss.Cadence), cron.FuncJob(ss.tick))
	ss.cron.Start()

	log.Printf("[Scheduler] Started with settlement cadence: %v", ss.Cadence)
}

// Stop halts the scheduler and waits for a running pass to finish.
func (ss *SettlementScheduler) Stop() {
	if ss.cron == nil {
		return
	}
	// Stop's context completes once running jobs finish.
	ctx := ss.cron.Stop()
	<-ctx.Done()

	log.Println("[Scheduler] Stopped")
}

// RunNow triggers a settlement pass for the current period immediately.
func (ss *SettlementScheduler) RunNow(ctx context.Context) (bank.RunSummary, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.Settlement.Run(ctx, ss.periodKey(time.Now()))
}

func (ss *SettlementScheduler) tick() {
	if !ss.mu.TryLock() {
		log.Println("[Scheduler] Previous settlement pass still running, skipping tick")
		return
	}
	defer ss.mu.Unlock()

	periodKey := ss.periodKey(time.Now())
	summary, err := ss.Settlement.Run(context.Background(), periodKey)
	if err != nil {
		log.Printf("[Scheduler] Settlement pass failed for period %s: %v", periodKey, err)
		return
	}
	log.Printf("[Scheduler] Settled period %s: %d deposits accrued, %d credits amortized, %d closed",
		summary.PeriodKey, summary.DepositsAccrued, summary.CreditsAmortized, summary.CreditsClosed)
}

func (ss *SettlementScheduler) periodKey(t time.Time) string {
	if ss.Cadence == DefaultCadence {
		return bank.MonthPeriodKey(t)
	}
	return bank.PeriodKey(t, ss.Cadence)
}
