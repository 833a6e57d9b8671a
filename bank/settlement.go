/*
settlement.go - Scheduled interest accrual and amortization

PURPOSE:
  The Settlement engine runs the periodic batch jobs: interest accrual over
  all open deposits and amortization over all open credits. It knows nothing
  about wall-clock scheduling; an external timer calls Run with a period key.

AT-MOST-ONCE:
  Each job records a SettlementRun keyed by (job, period key) before touching
  any record. The store enforces uniqueness on that pair, so a re-entrant or
  overlapping invocation for the same period gets ErrDuplicateRun and skips.
  Running the same job twice in one period would silently compound interest
  and double-charge installments, which is why this is enforced in storage
  rather than by scheduler discipline alone.

FAILURE ISOLATION:
  Each deposit/credit update is its own transaction. A failure on one record
  is logged and counted; the rest of the batch still settles. Partial
  progress across the batch is acceptable - partial mutation of a single
  record is not.

KNOWN RULE:
  Amortization collects the installment even when the balance cannot cover
  it, so an account may go negative during settlement. The final installment
  debits exactly the remaining owed and closes the credit.
*/
package bank

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SETTLEMENT ENGINE
// =============================================================================

// Settlement batch-applies interest and amortization across the full record
// set. Construct with NewSettlement and drive it from an external timer.
type Settlement struct {
	store TxStore
}

func NewSettlement(store TxStore) *Settlement {
	return &Settlement{store: store}
}

// RunSummary reports one settlement pass.
type RunSummary struct {
	PeriodKey        string
	DepositsAccrued  int
	DepositsFailed   int
	CreditsAmortized int
	CreditsFailed    int
	CreditsClosed    int
	InterestSkipped  bool
	AmortizedSkipped bool
}

// Run executes one settlement pass for the given period key: interest
// accrual over all deposits and amortization over all credits. The two jobs
// settle independently; neither depends on the other's outcome.
func (se *Settlement) Run(ctx context.Context, periodKey string) (RunSummary, error) {
	summary := RunSummary{PeriodKey: periodKey}

	accrued, failed, skipped, err := se.AccrueInterest(ctx, periodKey)
	if err != nil {
		return summary, fmt.Errorf("interest accrual: %w", err)
	}
	summary.DepositsAccrued = accrued
	summary.DepositsFailed = failed
	summary.InterestSkipped = skipped

	amortized, closed, failed, skipped, err := se.Amortize(ctx, periodKey)
	if err != nil {
		return summary, fmt.Errorf("amortization: %w", err)
	}
	summary.CreditsAmortized = amortized
	summary.CreditsClosed = closed
	summary.CreditsFailed = failed
	summary.AmortizedSkipped = skipped

	return summary, nil
}

// =============================================================================
// DEPOSIT INTEREST
// =============================================================================

// AccrueInterest multiplies every deposit by (1 + annualRate/12), rounded
// half-up to cents. The account balance is unaffected; interest grows the
// deposit itself. Returns (accrued, failed, skippedPeriod, error).
func (se *Settlement) AccrueInterest(ctx context.Context, periodKey string) (int, int, bool, error) {
	run, done, err := se.beginRun(ctx, JobDepositInterest, periodKey)
	if err != nil {
		return 0, 0, false, err
	}
	if done {
		return 0, 0, true, nil
	}

	deposits, err := se.store.ListAllDeposits(ctx)
	if err != nil {
		return 0, 0, false, se.failRun(ctx, run, err)
	}

	multiplier := decimal.NewFromInt(1).Add(DepositMonthlyRate)

	accrued, failed := 0, 0
	for _, d := range deposits {
		err := se.store.WithTx(ctx, func(s Store) error {
			// Reload inside the transaction; the deposit may have been
			// withdrawn or closed since the listing.
			cur, err := s.GetDeposit(ctx, d.ID)
			if err != nil {
				return err
			}
			if cur == nil {
				return nil
			}
			return s.UpdateDepositAmount(ctx, d.ID, cur.Amount.Mul(multiplier).Round2())
		})
		if err != nil {
			failed++
			log.Printf("[Settlement] Interest accrual failed for deposit %s: %v", d.ID, err)
			continue
		}
		accrued++
	}

	se.completeRun(ctx, run, accrued, failed)
	return accrued, failed, false, nil
}

// =============================================================================
// CREDIT AMORTIZATION
// =============================================================================

// Amortize collects one fixed installment (total_amount / 10) from every
// open credit. The final installment debits exactly the remaining owed and
// deletes the credit. Returns (amortized, closed, failed, skippedPeriod, error).
func (se *Settlement) Amortize(ctx context.Context, periodKey string) (int, int, int, bool, error) {
	run, done, err := se.beginRun(ctx, JobCreditAmortization, periodKey)
	if err != nil {
		return 0, 0, 0, false, err
	}
	if done {
		return 0, 0, 0, true, nil
	}

	credits, err := se.store.ListAllCredits(ctx)
	if err != nil {
		return 0, 0, 0, false, se.failRun(ctx, run, err)
	}

	amortized, closed, failed := 0, 0, 0
	for _, c := range credits {
		didClose := false
		err := se.store.WithTx(ctx, func(s Store) error {
			cur, err := s.GetCredit(ctx, c.ID)
			if err != nil {
				return err
			}
			if cur == nil {
				return nil
			}

			// Already settled; closure deletes the record, so this should
			// not normally occur. Kept as a guard against a zeroed row.
			if !cur.Amount.IsPositive() {
				return nil
			}

			account, err := s.GetAccount(ctx, cur.AccountID)
			if err != nil {
				return err
			}
			if account == nil {
				return ErrAccountNotFound
			}

			payment := cur.TotalAmount.Div(AmortizationDivisor).Round2()
			remaining := cur.Amount.Sub(payment)

			if remaining.IsPositive() {
				if err := s.UpdateAccountBalance(ctx, account.ID, account.Balance.Sub(payment)); err != nil {
					return err
				}
				return s.UpdateCreditAmount(ctx, c.ID, remaining)
			}

			// Final installment: pay off exactly what is owed and close.
			if err := s.UpdateAccountBalance(ctx, account.ID, account.Balance.Sub(cur.Amount)); err != nil {
				return err
			}
			if err := s.DeleteCredit(ctx, c.ID); err != nil {
				return err
			}
			didClose = true
			return nil
		})
		if err != nil {
			failed++
			log.Printf("[Settlement] Amortization failed for credit %s: %v", c.ID, err)
			continue
		}
		amortized++
		if didClose {
			closed++
		}
	}

	se.completeRun(ctx, run, amortized, failed)
	return amortized, closed, failed, false, nil
}

// =============================================================================
// PERIOD KEYS
// =============================================================================

// MonthPeriodKey returns the calendar-month period key containing t, e.g.
// "2026-08". Interest and amortization settle monthly in production.
func MonthPeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// PeriodKey returns the key of the cadence-aligned period containing t.
// Used by schedulers running on shorter cadences (demos, tests).
func PeriodKey(t time.Time, cadence time.Duration) string {
	if cadence <= 0 {
		return MonthPeriodKey(t)
	}
	return t.UTC().Truncate(cadence).Format(time.RFC3339)
}

// =============================================================================
// RUN BOOKKEEPING
// =============================================================================

// beginRun records the run row. The unique (job, period key) index makes the
// insert the at-most-once gate: a duplicate means this period already
// settled (or is settling) and the caller must skip.
func (se *Settlement) beginRun(ctx context.Context, job, periodKey string) (SettlementRun, bool, error) {
	run := SettlementRun{
		ID:        fmt.Sprintf("run-%d", time.Now().UnixNano()),
		Job:       job,
		PeriodKey: periodKey,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	err := se.store.CreateSettlementRun(ctx, run)
	if errors.Is(err, ErrDuplicateRun) {
		log.Printf("[Settlement] %s already settled for period %s, skipping", job, periodKey)
		return run, true, nil
	}
	if err != nil {
		return run, false, err
	}
	return run, false, nil
}

func (se *Settlement) completeRun(ctx context.Context, run SettlementRun, processed, failed int) {
	now := time.Now().UTC()
	run.Status = RunStatusCompleted
	run.Processed = processed
	run.Failed = failed
	run.CompletedAt = &now

	if err := se.store.UpdateSettlementRun(ctx, run); err != nil {
		log.Printf("[Settlement] Failed to record %s run for period %s: %v", run.Job, run.PeriodKey, err)
	}
}

func (se *Settlement) failRun(ctx context.Context, run SettlementRun, cause error) error {
	now := time.Now().UTC()
	run.Status = RunStatusFailed
	run.Error = cause.Error()
	run.CompletedAt = &now

	if err := se.store.UpdateSettlementRun(ctx, run); err != nil {
		log.Printf("[Settlement] Failed to record failed %s run: %v", run.Job, err)
	}
	return cause
}
