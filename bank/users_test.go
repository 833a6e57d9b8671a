package bank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/bank-ledger/bank"
)

func TestCreateUser_ProvisionsAccountAndProfile(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Creating a user
	// THEN: User, zero-balance account, and profile all exist and link up

	ledger, st := newTestLedger(t)
	ctx := context.Background()

	user, account, profile, err := ledger.CreateUser(ctx, "alice", "Alice", "Anderson")
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, user.ID, account.UserID)
	assert.True(t, account.Balance.IsZero())
	assert.Equal(t, user.ID, profile.UserID)
	assert.Equal(t, "Alice", profile.FirstName)
	assert.Equal(t, "Anderson", profile.LastName)

	storedUser, err := st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, storedUser)

	storedAccount, err := st.GetAccountByUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, storedAccount)
	assert.Equal(t, account.ID, storedAccount.ID)

	storedProfile, err := st.GetProfileByUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, storedProfile)
}

func TestCreateUser_DuplicateUsername_Rejected(t *testing.T) {
	ledger, st := newTestLedger(t)
	ctx := context.Background()

	first, _, _, err := ledger.CreateUser(ctx, "alice", "Alice", "Anderson")
	require.NoError(t, err)

	_, _, _, err = ledger.CreateUser(ctx, "alice", "Alicia", "Archer")
	assert.ErrorIs(t, err, bank.ErrUsernameTaken)

	// The original user is untouched.
	stored, err := st.GetUser(ctx, first.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestDeleteUser_BlockedWhileAccountExists(t *testing.T) {
	ledger, st := newTestLedger(t)
	ctx := context.Background()

	user, _, _, err := ledger.CreateUser(ctx, "bob", "Bob", "B")
	require.NoError(t, err)

	err = ledger.DeleteUser(ctx, user.ID)
	assert.ErrorIs(t, err, bank.ErrUserHasAccount)

	stored, err := st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestDeleteUser_Unknown_NotFound(t *testing.T) {
	ledger, _ := newTestLedger(t)

	err := ledger.DeleteUser(context.Background(), bank.NewUserID())
	assert.ErrorIs(t, err, bank.ErrUserNotFound)
	assert.True(t, bank.IsNotFound(err))
}
