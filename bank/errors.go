/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All domain error kinds in one place for consistency and discoverability.
  Every error here is caller-recoverable; none is process-fatal. Validation
  errors are detected before any mutation, so a caller seeing one of these
  can assume no side effects occurred.

ERROR CATEGORIES:
  1. Validation errors - bad input (negative amount, same account)
  2. Balance errors - insufficient funds, credit limit, excess repayment
  3. Lookup errors - referenced record does not exist

USAGE:
  if errors.Is(err, bank.ErrInsufficientFunds) { ... }

  var insufficientErr *bank.InsufficientFundsError
  if errors.As(err, &insufficientErr) {
      log.Printf("short by %s", insufficientErr.Shortfall())
  }

SEE ALSO:
  - ledger.go, deposit.go, credit.go: Produce these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package bank

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a negative amount is supplied where a
	// non-negative one is required.
	ErrInvalidAmount = errors.New("amount can't be negative")

	// ErrInsufficientFunds is returned when a balance, deposit, or remaining
	// credit is insufficient for the requested debit.
	ErrInsufficientFunds = errors.New("not enough money")

	// ErrSameAccount is returned when a transfer source equals its destination.
	ErrSameAccount = errors.New("transfer to the same account")

	// ErrCreditLimitExceeded is returned when a requested credit exceeds the
	// allowed multiple of the current balance.
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")

	// ErrAmountExceedsDebt is returned when a repayment exceeds the
	// outstanding credit amount.
	ErrAmountExceedsDebt = errors.New("repayment exceeds outstanding debt")

	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrAccountNotFound is returned when a referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDepositNotFound is returned when a referenced deposit does not exist
	// or is not owned by the caller's account.
	ErrDepositNotFound = errors.New("deposit not found")

	// ErrCreditNotFound is returned when a referenced credit does not exist
	// or is not owned by the caller's account.
	ErrCreditNotFound = errors.New("credit not found")

	// ErrUserHasAccount is returned when deleting a user that still owns an
	// account. Accounts are never deleted, so this protects the user row too.
	ErrUserHasAccount = errors.New("user still owns an account")

	// ErrUsernameTaken is returned when creating a user with a username that
	// already exists.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrDuplicateRun is returned when a settlement run for the same job and
	// period has already been recorded. Expected under overlapping triggers.
	ErrDuplicateRun = errors.New("settlement run already recorded for period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	AccountID AccountID
	Available Money
	Requested Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("not enough money: available %s, requested %s",
		e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

func (e *InsufficientFundsError) Shortfall() Money {
	return e.Requested.Sub(e.Available)
}

// CreditLimitError provides details about a rejected credit opening.
type CreditLimitError struct {
	AccountID AccountID
	Requested Money
	Limit     Money
}

func (e *CreditLimitError) Error() string {
	return fmt.Sprintf("credit limit exceeded: requested %s, limit %s",
		e.Requested, e.Limit)
}

func (e *CreditLimitError) Unwrap() error {
	return ErrCreditLimitExceeded
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input or a
// business-rule rejection, as opposed to a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSameAccount) ||
		errors.Is(err, ErrCreditLimitExceeded) ||
		errors.Is(err, ErrAmountExceedsDebt) ||
		errors.Is(err, ErrUserHasAccount)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrDepositNotFound) ||
		errors.Is(err, ErrCreditNotFound)
}
