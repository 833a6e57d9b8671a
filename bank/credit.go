/*
credit.go - Credit lifecycle

PURPOSE:
  Operations on amortizing loans: open (with credit-limit check and fixed 10%
  markup) and partial repay. Scheduled amortization lives in settlement.go.

OPENING MATH:
  markup = principal / 10
  credit.amount = credit.total_amount = principal + markup
  account.balance += principal   (the borrower receives principal, not
                                  principal+markup)

CREDIT LIMIT:
  A request is rejected when principal > balance * 100.

CLOSURE:
  A credit is destroyed by amortization once the remaining amount reaches
  zero; repayment alone never deletes the record.
*/
package bank

import (
	"context"
	"time"
)

// OpenCredit grants a loan of the requested principal. The account balance
// increases by the principal; the credit record carries principal plus the
// fixed 10% markup as both remaining and total amount.
func (l *Ledger) OpenCredit(ctx context.Context, amount Money, accountID AccountID) (*Credit, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	var credit *Credit

	err := l.store.WithTx(ctx, func(s Store) error {
		a, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAccountNotFound
		}

		limit := a.Balance.Mul(CreditLimitMultiplier)
		if amount.GreaterThan(limit) {
			return &CreditLimitError{
				AccountID: accountID,
				Requested: amount,
				Limit:     limit,
			}
		}

		markup := amount.Div(CreditMarkupDivisor).Round2()
		owed := amount.Add(markup)

		if err := s.UpdateAccountBalance(ctx, accountID, a.Balance.Add(amount)); err != nil {
			return err
		}

		c := Credit{
			ID:          NewCreditID(),
			AccountID:   accountID,
			Amount:      owed,
			TotalAmount: owed,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.CreateCredit(ctx, c); err != nil {
			return err
		}

		credit = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return credit, nil
}

// RepayCredit pays down a non-negative amount of the outstanding debt,
// decreasing both the account balance and the remaining credit amount.
// Fails with ErrAmountExceedsDebt when the payment exceeds what is owed, and
// with ErrInsufficientFunds when the account cannot cover it.
func (l *Ledger) RepayCredit(ctx context.Context, creditID CreditID, amount Money, accountID AccountID) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}

	return l.store.WithTx(ctx, func(s Store) error {
		c, err := s.GetCredit(ctx, creditID)
		if err != nil {
			return err
		}
		if c == nil || c.AccountID != accountID {
			return ErrCreditNotFound
		}
		a, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAccountNotFound
		}

		if amount.GreaterThan(c.Amount) {
			return ErrAmountExceedsDebt
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
		return s.UpdateCreditAmount(ctx, creditID, c.Amount.Sub(amount))
	})
}
