/*
deposit.go - Deposit lifecycle

PURPOSE:
  Operations on interest-bearing deposits: open, partial withdraw, close.
  Scheduled interest accrual lives in settlement.go; it grows the deposit
  itself and never touches the spendable balance.

LIFECYCLE:
  Open      balance -= amount, deposit created with that amount
  Withdraw  balance += amount, deposit.amount -= amount (no auto-close at 0)
  Close     balance += remaining amount, deposit row deleted

A deposit is never auto-closed when it reaches zero; destruction is always an
explicit caller decision.
*/
package bank

import (
	"context"
	"time"
)

// OpenDeposit moves a non-negative amount out of the account into a new
// deposit. Fails with ErrInsufficientFunds if the amount exceeds the balance.
func (l *Ledger) OpenDeposit(ctx context.Context, amount Money, accountID AccountID) (*Deposit, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	var deposit *Deposit

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

		d := Deposit{
			ID:        NewDepositID(),
			AccountID: accountID,
			Amount:    amount,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.CreateDeposit(ctx, d); err != nil {
			return err
		}

		deposit = &d
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deposit, nil
}

// WithdrawDeposit moves a non-negative amount from the deposit back to the
// account balance. Fails with ErrInsufficientFunds if the amount exceeds the
// deposit. The deposit stays open even at zero.
func (l *Ledger) WithdrawDeposit(ctx context.Context, depositID DepositID, amount Money, accountID AccountID) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}

	return l.store.WithTx(ctx, func(s Store) error {
		d, err := s.GetDeposit(ctx, depositID)
		if err != nil {
			return err
		}
		if d == nil || d.AccountID != accountID {
			return ErrDepositNotFound
		}
		a, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAccountNotFound
		}

		if d.Amount.LessThan(amount) {
			return &InsufficientFundsError{
				AccountID: accountID,
				Available: d.Amount,
				Requested: amount,
			}
		}

		if err := s.UpdateAccountBalance(ctx, accountID, a.Balance.Add(amount)); err != nil {
			return err
		}
		return s.UpdateDepositAmount(ctx, depositID, d.Amount.Sub(amount))
	})
}

// CloseDeposit returns any remaining deposit amount to the account balance
// and deletes the deposit.
func (l *Ledger) CloseDeposit(ctx context.Context, depositID DepositID, accountID AccountID) error {
	return l.store.WithTx(ctx, func(s Store) error {
		d, err := s.GetDeposit(ctx, depositID)
		if err != nil {
			return err
		}
		if d == nil || d.AccountID != accountID {
			return ErrDepositNotFound
		}

		if d.Amount.IsPositive() {
			a, err := s.GetAccount(ctx, accountID)
			if err != nil {
				return err
			}
			if a == nil {
				return ErrAccountNotFound
			}
			if err := s.UpdateAccountBalance(ctx, accountID, a.Balance.Add(d.Amount)); err != nil {
				return err
			}
		}

		return s.DeleteDeposit(ctx, depositID)
	})
}
