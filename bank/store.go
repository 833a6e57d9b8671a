/*
store.go - Persistence interface for the ledger

PURPOSE:
  Defines the interface between the domain logic and the database. Movement
  records (actions, transactions, transfers) are append-only; accounts,
  deposits, and credits are mutable rows updated only inside WithTx.

APPEND-ONLY CONTRACT:
  The interface exposes no update or delete for movement records. Once a
  movement is committed it is part of the permanent history.

ATOMICITY:
  Every ledger-mutating operation runs inside TxStore.WithTx: all reads and
  writes for that operation either fully commit or fully roll back. Partial
  application (a debit without its matching record) is never observable.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - bank/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go, deposit.go, credit.go, settlement.go: Consumers
*/
package bank

import "context"

// =============================================================================
// STORE - Record persistence
// =============================================================================

// Store handles persistence of ledger records.
//
// Lookup methods return (nil, nil) when the record does not exist; callers
// translate that into the appropriate NotFound sentinel.
type Store interface {
	// Users and profiles. CreateUser stores only the user row; provisioning
	// of the account and profile happens in the same WithTx at the service
	// level (see Ledger.CreateUser).
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
	// DeleteUser fails with ErrUserHasAccount while the user's account exists.
	DeleteUser(ctx context.Context, id UserID) error
	CreateProfile(ctx context.Context, p Profile) error
	GetProfileByUser(ctx context.Context, userID UserID) (*Profile, error)

	// Accounts.
	CreateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, id AccountID) (*Account, error)
	GetAccountByUser(ctx context.Context, userID UserID) (*Account, error)
	UpdateAccountBalance(ctx context.Context, id AccountID, balance Money) error

	// Movement records. Append-only: no update, no delete.
	AppendAction(ctx context.Context, a Action) error
	AppendTransaction(ctx context.Context, t Transaction) error
	AppendTransfer(ctx context.Context, t Transfer) error
	ListActions(ctx context.Context, accountID AccountID, limit, offset int) ([]Action, error)
	ListTransactions(ctx context.Context, accountID AccountID, limit, offset int) ([]Transaction, error)
	ListTransfers(ctx context.Context, accountID AccountID, limit, offset int) ([]Transfer, error)

	// Deposits.
	CreateDeposit(ctx context.Context, d Deposit) error
	GetDeposit(ctx context.Context, id DepositID) (*Deposit, error)
	UpdateDepositAmount(ctx context.Context, id DepositID, amount Money) error
	DeleteDeposit(ctx context.Context, id DepositID) error
	ListDeposits(ctx context.Context, accountID AccountID) ([]Deposit, error)
	ListAllDeposits(ctx context.Context) ([]Deposit, error)

	// Credits.
	CreateCredit(ctx context.Context, c Credit) error
	GetCredit(ctx context.Context, id CreditID) (*Credit, error)
	UpdateCreditAmount(ctx context.Context, id CreditID, amount Money) error
	DeleteCredit(ctx context.Context, id CreditID) error
	ListCredits(ctx context.Context, accountID AccountID) ([]Credit, error)
	ListAllCredits(ctx context.Context) ([]Credit, error)

	// Settlement runs. CreateSettlementRun fails with ErrDuplicateRun when a
	// run for the same (job, period key) already exists; that uniqueness is
	// the at-most-once guarantee for scheduled passes.
	CreateSettlementRun(ctx context.Context, r SettlementRun) error
	UpdateSettlementRun(ctx context.Context, r SettlementRun) error
	ListSettlementRuns(ctx context.Context, limit int) ([]SettlementRun, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Scoped atomic operations
// =============================================================================

// TxStore wraps Store with transaction support.
//
// WithTx executes fn within a transaction. If fn returns an error, every
// write made through the passed Store rolls back; if fn returns nil, all of
// them commit together.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
