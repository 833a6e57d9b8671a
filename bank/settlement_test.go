package bank_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/bank-ledger/bank"
	"github.com/warp/bank-ledger/bank/store"
)

func newTestSettlement(t *testing.T) (*bank.Ledger, *bank.Settlement, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return bank.NewLedger(st), bank.NewSettlement(st), st
}

// =============================================================================
// INTEREST ACCRUAL
// =============================================================================

func TestAccrueInterest_GrowsDeposit_NotBalance(t *testing.T) {
	// GIVEN: Deposit of 50, account balance 40
	// WHEN: One interest accrual runs (5% annual, monthly)
	// THEN: Deposit 50.21 (50 * (1 + 0.05/12) rounded), balance unchanged

	ledger, settlement, st := newTestSettlement(t)
	ctx := context.Background()
	accountID := seedAccount(t, ledger, "90")
	deposit, err := ledger.OpenDeposit(ctx, bank.MustParseMoney("50"), accountID)
	require.NoError(t, err)

	accrued, failed, skipped, err := settlement.AccrueInterest(ctx, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 1, accrued)
	assert.Zero(t, failed)
	assert.False(t, skipped)

	reloaded, err := st.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.21", reloaded.Amount.String())
	assert.Equal(t, "40.00", accountBalance(t, st, accountID).String())
}

func TestAccrueInterest_Compounds(t *testing.T) {
	ledger, settlement, st := newTestSettlement(t)
	ctx := context.Background()
	accountID := seedAccount(t, ledger, "50")
	deposit, err := ledger.OpenDeposit(ctx, bank.MustParseMoney("50"), accountID)
	require.NoError(t, err)

	_, _, _, err = settlement.AccrueInterest(ctx, "2026-08")
	require.NoError(t, err)
	_, _, _, err = settlement.AccrueInterest(ctx, "2026-09")
	require.NoError(t, err)

	// 50.21 * (1 + 0.05/12) = 50.419... rounds to 50.42
	reloaded, err := st.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.42", reloaded.Amount.String())
}

func TestAccrueInterest_SamePeriodTwice_SecondIsNoOp(t *testing.T) {
	// GIVEN: A period that already settled
	// WHEN: The same period key runs again
	// THEN: Skip flag set, no deposit touched twice

	ledger, settlement, st := newTestSettlement(t)
	ctx := context.Background()
	accountID := seedAccount(t, ledger, "50")
	deposit, err := ledger.OpenDeposit(ctx, bank.MustParseMoney("50"), accountID)
	require.NoError(t, err)

	_, _, skipped, err := settlement.AccrueInterest(ctx, "2026-08")
	require.NoError(t, err)
	assert.False(t, skipped)

	accrued, _, skipped, err := settlement.AccrueInterest(ctx, "2026-08")
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Zero(t, accrued)

	reloaded, err := st.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.21", reloaded.Amount.String())
}

func TestAccrueInterest_FailureIsolatedToOneDeposit(t *testing.T) {
	// GIVEN: Two deposits, one of which cannot be persisted
	// WHEN: Accrual runs
	// THEN: The healthy deposit accrues; the failure is counted, not fatal

	st := store.NewMemory()
	ledger := bank.NewLedger(st)
	ctx := context.Background()

	_, account, _, err := ledger.CreateUser(ctx, "alice", "Alice", "A")
	require.NoError(t, err)
	_, _, err = ledger.Adjust(ctx, account.ID, bank.MustParseMoney("100"))
	require.NoError(t, err)

	good, err := ledger.OpenDeposit(ctx, bank.MustParseMoney("50"), account.ID)
	require.NoError(t, err)
	bad, err := ledger.OpenDeposit(ctx, bank.MustParseMoney("50"), account.ID)
	require.NoError(t, err)

	settlement := bank.NewSettlement(&flakyStore{TxStore: st, failDeposit: bad.ID})

	accrued, failed, skipped, err := settlement.AccrueInterest(ctx, "2026-08")
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 1, accrued)
	assert.Equal(t, 1, failed)

	goodReloaded, err := st.GetDeposit(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.21", goodReloaded.Amount.String())

	badReloaded, err := st.GetDeposit(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", badReloaded.Amount.String())
}

// =============================================================================
// AMORTIZATION
// =============================================================================

func TestAmortize_CollectsTenthOfTotal(t *testing.T) {
	// GIVEN: Fresh credit of 100 (owed 110), balance spent down to 0
	// WHEN: One amortization runs
	// THEN: Owed 99, balance -11 (installments collect even into negative)

	ledger, settlement, st := newTestSettlement(t)
	ctx := context.Background()
	accountID := seedAccount(t, ledger, "1")
	credit, err := ledger.OpenCredit(ctx, bank.MustParseMoney("100"), accountID)
	require.NoError(t, err)
	_, err = ledger.Debit(ctx, accountID, bank.MustParseMoney("101"), "shop")
	require.NoError(t, err)

	amortized, closed, failed, skipped, err := settlement.Amortize(ctx, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 1, amortized)
	assert.Zero(t, closed)
	assert.Zero(t, failed)
	assert.False(t, skipped)

	reloaded, err := st.GetCredit(ctx, credit.ID)
	require.NoError(t, err)
	assert.Equal(t, "99.00", reloaded.Amount.String())
	assert.Equal(t, "-11.00", accountBalance(t, st, accountID).String())
}

func TestAmortize_TenInstallments_ClosesCredit(t *testing.T) {
	// GIVEN: Credit of 100 (owed 110)
	// WHEN: Ten periods amortize
	// THEN: The tenth installment pays the exact remainder and deletes the credit

	ledger, settlement, st := newTestSettlement(t)
	ctx := context.Background()
	accountID := seedAccount(t, ledger, "10")
	credit, err := ledger.OpenCredit(ctx, bank.MustParseMoney("100"), accountID)
	require.NoError(t, err)
	// Balance 110 covers exactly the ten 11.00 installments.

	periods := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9"}
	for _, p := range periods {
		_, closed, _, _, err := settlement.Amortize(ctx, p)
		require.NoError(t, err)
		assert.Zero(t, closed)
	}

	reloaded, err := st.GetCredit(ctx, credit.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, "11.00", reloaded.Amount.String())

	amortized, closed, _, _, err := settlement.Amortize(ctx, "p10")
	require.NoError(t, err)
	assert.Equal(t, 1, amortized)
	assert.Equal(t, 1, closed)

	gone, err := st.GetCredit(ctx, credit.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Equal(t, "0.00", accountBalance(t, st, accountID).String())
}

func TestAmortize_FinalInstallment_PaysExactRemainder(t *testing.T) {
	// GIVEN: Owed reduced below one installment by a manual repayment
	// WHEN: Amortization runs
	// THEN: Only the remainder is collected and the credit closes

	ledger, settlement, st := newTestSettlement(t)
	ctx := context.Background()
	accountID := seedAccount(t, ledger, "10")
	credit, err := ledger.OpenCredit(ctx, bank.MustParseMoney("100"), accountID)
	require.NoError(t, err)
	require.NoError(t, ledger.RepayCredit(ctx, credit.ID, bank.MustParseMoney("103.50"), accountID))
	// Owed 6.50, balance 6.50; installment would be 11.00.

	_, closed, _, _, err := settlement.Amortize(ctx, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	assert.Equal(t, "0.00", accountBalance(t, st, accountID).String())
	gone, err := st.GetCredit(ctx, credit.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAmortize_SamePeriodTwice_SecondIsNoOp(t *testing.T) {
	ledger, settlement, st := newTestSettlement(t)
	ctx := context.Background()
	accountID := seedAccount(t, ledger, "10")
	credit, err := ledger.OpenCredit(ctx, bank.MustParseMoney("100"), accountID)
	require.NoError(t, err)

	_, _, _, skipped, err := settlement.Amortize(ctx, "2026-08")
	require.NoError(t, err)
	assert.False(t, skipped)

	_, _, _, skipped, err = settlement.Amortize(ctx, "2026-08")
	require.NoError(t, err)
	assert.True(t, skipped)

	reloaded, err := st.GetCredit(ctx, credit.ID)
	require.NoError(t, err)
	assert.Equal(t, "99.00", reloaded.Amount.String())
}

// =============================================================================
// FULL RUN
// =============================================================================

func TestRun_SettlesDepositsAndCredits(t *testing.T) {
	ledger, settlement, st := newTestSettlement(t)
	ctx := context.Background()
	accountID := seedAccount(t, ledger, "60")
	_, err := ledger.OpenDeposit(ctx, bank.MustParseMoney("50"), accountID)
	require.NoError(t, err)
	_, err = ledger.OpenCredit(ctx, bank.MustParseMoney("100"), accountID)
	require.NoError(t, err)

	summary, err := settlement.Run(ctx, "2026-08")
	require.NoError(t, err)

	assert.Equal(t, "2026-08", summary.PeriodKey)
	assert.Equal(t, 1, summary.DepositsAccrued)
	assert.Equal(t, 1, summary.CreditsAmortized)
	assert.Zero(t, summary.CreditsClosed)
	assert.False(t, summary.InterestSkipped)
	assert.False(t, summary.AmortizedSkipped)

	// 60 - 50 (deposit) + 100 (principal) - 11 (installment)
	assert.Equal(t, "99.00", accountBalance(t, st, accountID).String())

	runs, err := st.ListSettlementRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, bank.RunStatusCompleted, run.Status)
		assert.Equal(t, "2026-08", run.PeriodKey)
		require.NotNil(t, run.CompletedAt)
	}
}

func TestRun_RepeatPeriod_FullyIdempotent(t *testing.T) {
	ledger, settlement, st := newTestSettlement(t)
	ctx := context.Background()
	accountID := seedAccount(t, ledger, "50")
	_, err := ledger.OpenDeposit(ctx, bank.MustParseMoney("50"), accountID)
	require.NoError(t, err)

	_, err = settlement.Run(ctx, "2026-08")
	require.NoError(t, err)
	summary, err := settlement.Run(ctx, "2026-08")
	require.NoError(t, err)

	assert.True(t, summary.InterestSkipped)
	assert.True(t, summary.AmortizedSkipped)

	deposits, err := st.ListAllDeposits(ctx)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, "50.21", deposits[0].Amount.String())
}

// =============================================================================
// FLAKY STORE - fails persistence for one targeted deposit
// =============================================================================

type flakyStore struct {
	bank.TxStore
	failDeposit bank.DepositID
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(bank.Store) error) error {
	return f.TxStore.WithTx(ctx, func(s bank.Store) error {
		return fn(&flakyView{Store: s, failDeposit: f.failDeposit})
	})
}

type flakyView struct {
	bank.Store
	failDeposit bank.DepositID
}

func (v *flakyView) UpdateDepositAmount(ctx context.Context, id bank.DepositID, amount bank.Money) error {
	if id == v.failDeposit {
		return errors.New("simulated storage failure")
	}
	return v.Store.UpdateDepositAmount(ctx, id, amount)
}
