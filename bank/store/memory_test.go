package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/bank-ledger/bank"
	"github.com/warp/bank-ledger/bank/store"
)

func seed(t *testing.T, m *store.Memory, balance string) bank.AccountID {
	t.Helper()
	ctx := context.Background()

	userID := bank.NewUserID()
	require.NoError(t, m.CreateUser(ctx, bank.User{ID: userID, Username: string(userID), CreatedAt: time.Now()}))

	accountID := bank.NewAccountID()
	require.NoError(t, m.CreateAccount(ctx, bank.Account{
		ID:      accountID,
		UserID:  userID,
		Balance: bank.MustParseMoney(balance),
	}))
	return accountID
}

func TestWithTx_ErrorRollsBackAllWrites(t *testing.T) {
	// GIVEN: Account with 100
	// WHEN: A transaction updates balance and appends an action, then fails
	// THEN: Neither write survives

	m := store.NewMemory()
	ctx := context.Background()
	accountID := seed(t, m, "100")

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s bank.Store) error {
		if err := s.UpdateAccountBalance(ctx, accountID, bank.MustParseMoney("20")); err != nil {
			return err
		}
		if err := s.AppendAction(ctx, bank.Action{
			ID:        bank.NewActionID(),
			AccountID: accountID,
			Amount:    bank.MustParseMoney("-80"),
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := m.GetAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", a.Balance.String())

	actions, err := m.ListActions(ctx, accountID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestWithTx_SuccessCommits(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	accountID := seed(t, m, "100")

	err := m.WithTx(ctx, func(s bank.Store) error {
		return s.UpdateAccountBalance(ctx, accountID, bank.MustParseMoney("42"))
	})
	require.NoError(t, err)

	a, err := m.GetAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "42.00", a.Balance.String())
}

func TestGetters_MissingRows_ReturnNil(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	a, err := m.GetAccount(ctx, bank.NewAccountID())
	require.NoError(t, err)
	assert.Nil(t, a)

	d, err := m.GetDeposit(ctx, bank.NewDepositID())
	require.NoError(t, err)
	assert.Nil(t, d)

	c, err := m.GetCredit(ctx, bank.NewCreditID())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCreateUser_DuplicateUsername_Rejected(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateUser(ctx, bank.User{ID: bank.NewUserID(), Username: "alice", CreatedAt: time.Now()}))

	err := m.CreateUser(ctx, bank.User{ID: bank.NewUserID(), Username: "alice", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, bank.ErrUsernameTaken)
}

func TestCreateSettlementRun_DuplicatePeriod_Rejected(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	run := bank.SettlementRun{
		ID:        "run-1",
		Job:       bank.JobDepositInterest,
		PeriodKey: "2026-08",
		Status:    bank.RunStatusRunning,
		StartedAt: time.Now(),
	}
	require.NoError(t, m.CreateSettlementRun(ctx, run))

	dup := run
	dup.ID = "run-2"
	assert.ErrorIs(t, m.CreateSettlementRun(ctx, dup), bank.ErrDuplicateRun)

	// Same period under a different job is fine.
	other := run
	other.ID = "run-3"
	other.Job = bank.JobCreditAmortization
	assert.NoError(t, m.CreateSettlementRun(ctx, other))
}

func TestListActions_NewestFirstWithPaging(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	accountID := seed(t, m, "0")

	for i := 0; i < 5; i++ {
		require.NoError(t, m.AppendAction(ctx, bank.Action{
			ID:        bank.NewActionID(),
			AccountID: accountID,
			Amount:    bank.NewMoney(float64(i)),
			CreatedAt: time.Now(),
		}))
	}

	page1, err := m.ListActions(ctx, accountID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "4.00", page1[0].Amount.String())
	assert.Equal(t, "3.00", page1[1].Amount.String())

	page2, err := m.ListActions(ctx, accountID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "2.00", page2[0].Amount.String())
}
