/*
ledger.go - Account operations

PURPOSE:
  The Ledger is the call contract consumed by the request-handling layer.
  This file holds the three account operations: Adjust (signed balance
  adjustment), Debit (merchant payment), and Transfer (two-account movement).

CRITICAL INVARIANTS:
  1. Balance never goes negative from a committed caller operation
  2. Validation happens before the first write; a rejected call has no
     side effects
  3. Every movement record's amount matches the balance delta it caused
  4. All mutations of one operation commit or roll back as a single unit

DEADLOCK AVOIDANCE:
  Transfer updates both accounts inside a single transaction, applying the
  writes in ascending account-ID order so that two concurrent
  opposite-direction transfers acquire row locks in the same order.

SEE ALSO:
  - deposit.go: Deposit lifecycle operations on the same Ledger
  - credit.go: Credit lifecycle operations on the same Ledger
  - users.go: User provisioning
*/
package bank

import (
	"context"
	"time"
)

// =============================================================================
// LEDGER - The core operation surface
// =============================================================================

// Ledger executes invariant-preserving state transitions against a TxStore.
type Ledger struct {
	store TxStore
}

func NewLedger(store TxStore) *Ledger {
	return &Ledger{store: store}
}

// =============================================================================
// ACCOUNT OPERATIONS
// =============================================================================

// Adjust applies a signed amount to the account balance and appends an
// Action record. Positive credits, negative debits. Fails with
// ErrInsufficientFunds if the adjustment would take the balance below zero.
func (l *Ledger) Adjust(ctx context.Context, accountID AccountID, amount Money) (*Account, *Action, error) {
	var (
		account *Account
		action  *Action
	)

	err := l.store.WithTx(ctx, func(s Store) error {
		a, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAccountNotFound
		}

		newBalance := a.Balance.Add(amount)
		if newBalance.IsNegative() {
			return &InsufficientFundsError{
				AccountID: accountID,
				Available: a.Balance,
				Requested: amount.Neg(),
			}
		}

		if err := s.UpdateAccountBalance(ctx, accountID, newBalance); err != nil {
			return err
		}

		act := Action{
			ID:        NewActionID(),
			AccountID: accountID,
			Amount:    amount,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.AppendAction(ctx, act); err != nil {
			return err
		}

		a.Balance = newBalance
		account = a
		action = &act
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return account, action, nil
}

// Debit decreases the balance by a non-negative amount and appends a
// Transaction record naming the merchant.
func (l *Ledger) Debit(ctx context.Context, accountID AccountID, amount Money, merchant string) (*Transaction, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	var tran *Transaction

	err := l.store.WithTx(ctx, func(s Store) error {
		a, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAccountNotFound
		}

		if a.Balance.LessThan(amount) {
			return &InsufficientFundsError{
				AccountID: accountID,
				Available: a.Balance,
				Requested: amount,
			}
		}

		if err := s.UpdateAccountBalance(ctx, accountID, a.Balance.Sub(amount)); err != nil {
			return err
		}

		t := Transaction{
			ID:        NewTransactionID(),
			AccountID: accountID,
			Amount:    amount,
			Merchant:  merchant,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.AppendTransaction(ctx, t); err != nil {
			return err
		}

		tran = &t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tran, nil
}

// Transfer moves a non-negative amount between two distinct accounts and
// appends one Transfer record covering both legs. Both balance writes and
// the record insert commit as a single atomic unit.
func (l *Ledger) Transfer(ctx context.Context, amount Money, fromID, toID AccountID) (*Transfer, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if fromID == toID {
		return nil, ErrSameAccount
	}

	var transfer *Transfer

	err := l.store.WithTx(ctx, func(s Store) error {
		from, err := s.GetAccount(ctx, fromID)
		if err != nil {
			return err
		}
		if from == nil {
			return ErrAccountNotFound
		}
		to, err := s.GetAccount(ctx, toID)
		if err != nil {
			return err
		}
		if to == nil {
			return ErrAccountNotFound
		}

		if from.Balance.LessThan(amount) {
			return &InsufficientFundsError{
				AccountID: fromID,
				Available: from.Balance,
				Requested: amount,
			}
		}

		// Consistent update order: lower account ID first, so concurrent
		// opposite-direction transfers never acquire row locks in
		// conflicting order.
		first, firstBalance := fromID, from.Balance.Sub(amount)
		second, secondBalance := toID, to.Balance.Add(amount)
		if second < first {
			first, second = second, first
			firstBalance, secondBalance = secondBalance, firstBalance
		}
		if err := s.UpdateAccountBalance(ctx, first, firstBalance); err != nil {
			return err
		}
		if err := s.UpdateAccountBalance(ctx, second, secondBalance); err != nil {
			return err
		}

		t := Transfer{
			ID:            NewTransferID(),
			FromAccountID: fromID,
			ToAccountID:   toID,
			Amount:        amount,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.AppendTransfer(ctx, t); err != nil {
			return err
		}

		transfer = &t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return transfer, nil
}
