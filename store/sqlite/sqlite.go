/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements bank.Store and bank.TxStore using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  Movement tables (actions, transactions, transfers) see INSERT and SELECT
  only. No UPDATE or DELETE statement exists for them anywhere in this file.

KEY TABLES:
  users, profiles:    Identity records; accounts reference users with
                      ON DELETE RESTRICT, so a user row is protected while
                      its account exists
  accounts:           Current balance per user (decimal stored as TEXT)
  actions:            Signed balance adjustments
  transactions:       Merchant debits
  transfers:          Two-account movements, one row covering both legs
  deposits, credits:  Mutable holdings updated only inside WithTx
  settlement_runs:    One row per (job, period); the unique index is the
                      at-most-once gate for scheduled settlement

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/bank.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := bank.NewLedger(store)

SEE ALSO:
  - bank/store.go: Interface definitions
  - bank/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/bank-ledger/bank"
)

// Store implements bank.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		image_path TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_user ON profiles(user_id);

	-- Accounts protect their owner: deleting a user with an account fails.
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		balance TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);

	-- Movement records (append-only ledger)
	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_actions_account
		ON actions(account_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		amount TEXT NOT NULL,
		merchant TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		from_account_id TEXT NOT NULL REFERENCES accounts(id),
		to_account_id TEXT NOT NULL REFERENCES accounts(id),
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_from
		ON transfers(from_account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transfers_to
		ON transfers(to_account_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS deposits (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_account ON deposits(account_id);

	CREATE TABLE IF NOT EXISTS credits (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_credits_account ON credits(account_id);

	-- Settlement runs: the unique (job, period_key) index guarantees
	-- at-most-once application per job per period.
	CREATE TABLE IF NOT EXISTS settlement_runs (
		id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		period_key TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		processed INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_settlement_runs_unique
		ON settlement_runs(job, period_key);
	CREATE INDEX IF NOT EXISTS idx_settlement_runs_status
		ON settlement_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the subset of *sql.DB / *sql.Tx the internal methods need, so the
// same code serves both direct calls and calls inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (bank.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store bank.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every Store method through the open transaction. It holds
// no lock of its own; WithTx already holds the parent's write lock.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) CreateUser(ctx context.Context, u bank.User) error {
	return ts.parent.createUser(ctx, ts.tx, u)
}
func (ts *txStore) GetUser(ctx context.Context, id bank.UserID) (*bank.User, error) {
	return ts.parent.getUser(ctx, ts.tx, id)
}
func (ts *txStore) DeleteUser(ctx context.Context, id bank.UserID) error {
	return ts.parent.deleteUser(ctx, ts.tx, id)
}
func (ts *txStore) CreateProfile(ctx context.Context, p bank.Profile) error {
	return ts.parent.createProfile(ctx, ts.tx, p)
}
func (ts *txStore) GetProfileByUser(ctx context.Context, userID bank.UserID) (*bank.Profile, error) {
	return ts.parent.getProfileByUser(ctx, ts.tx, userID)
}
func (ts *txStore) CreateAccount(ctx context.Context, a bank.Account) error {
	return ts.parent.createAccount(ctx, ts.tx, a)
}
func (ts *txStore) GetAccount(ctx context.Context, id bank.AccountID) (*bank.Account, error) {
	return ts.parent.getAccount(ctx, ts.tx, id)
}
func (ts *txStore) GetAccountByUser(ctx context.Context, userID bank.UserID) (*bank.Account, error) {
	return ts.parent.getAccountByUser(ctx, ts.tx, userID)
}
func (ts *txStore) UpdateAccountBalance(ctx context.Context, id bank.AccountID, balance bank.Money) error {
	return ts.parent.updateAccountBalance(ctx, ts.tx, id, balance)
}
func (ts *txStore) AppendAction(ctx context.Context, a bank.Action) error {
	return ts.parent.appendAction(ctx, ts.tx, a)
}
func (ts *txStore) AppendTransaction(ctx context.Context, t bank.Transaction) error {
	return ts.parent.appendTransaction(ctx, ts.tx, t)
}
func (ts *txStore) AppendTransfer(ctx context.Context, t bank.Transfer) error {
	return ts.parent.appendTransfer(ctx, ts.tx, t)
}
func (ts *txStore) ListActions(ctx context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Action, error) {
	return ts.parent.listActions(ctx, ts.tx, accountID, limit, offset)
}
func (ts *txStore) ListTransactions(ctx context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Transaction, error) {
	return ts.parent.listTransactions(ctx, ts.tx, accountID, limit, offset)
}
func (ts *txStore) ListTransfers(ctx context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Transfer, error) {
	return ts.parent.listTransfers(ctx, ts.tx, accountID, limit, offset)
}
func (ts *txStore) CreateDeposit(ctx context.Context, d bank.Deposit) error {
	return ts.parent.createDeposit(ctx, ts.tx, d)
}
func (ts *txStore) GetDeposit(ctx context.Context, id bank.DepositID) (*bank.Deposit, error) {
	return ts.parent.getDeposit(ctx, ts.tx, id)
}
func (ts *txStore) UpdateDepositAmount(ctx context.Context, id bank.DepositID, amount bank.Money) error {
	return ts.parent.updateDepositAmount(ctx, ts.tx, id, amount)
}
func (ts *txStore) DeleteDeposit(ctx context.Context, id bank.DepositID) error {
	return ts.parent.deleteDeposit(ctx, ts.tx, id)
}
func (ts *txStore) ListDeposits(ctx context.Context, accountID bank.AccountID) ([]bank.Deposit, error) {
	return ts.parent.listDeposits(ctx, ts.tx, accountID)
}
func (ts *txStore) ListAllDeposits(ctx context.Context) ([]bank.Deposit, error) {
	return ts.parent.listAllDeposits(ctx, ts.tx)
}
func (ts *txStore) CreateCredit(ctx context.Context, c bank.Credit) error {
	return ts.parent.createCredit(ctx, ts.tx, c)
}
func (ts *txStore) GetCredit(ctx context.Context, id bank.CreditID) (*bank.Credit, error) {
	return ts.parent.getCredit(ctx, ts.tx, id)
}
func (ts *txStore) UpdateCreditAmount(ctx context.Context, id bank.CreditID, amount bank.Money) error {
	return ts.parent.updateCreditAmount(ctx, ts.tx, id, amount)
}
func (ts *txStore) DeleteCredit(ctx context.Context, id bank.CreditID) error {
	return ts.parent.deleteCredit(ctx, ts.tx, id)
}
func (ts *txStore) ListCredits(ctx context.Context, accountID bank.AccountID) ([]bank.Credit, error) {
	return ts.parent.listCredits(ctx, ts.tx, accountID)
}
func (ts *txStore) ListAllCredits(ctx context.Context) ([]bank.Credit, error) {
	return ts.parent.listAllCredits(ctx, ts.tx)
}
func (ts *txStore) CreateSettlementRun(ctx context.Context, r bank.SettlementRun) error {
	return ts.parent.createSettlementRun(ctx, ts.tx, r)
}
func (ts *txStore) UpdateSettlementRun(ctx context.Context, r bank.SettlementRun) error {
	return ts.parent.updateSettlementRun(ctx, ts.tx, r)
}
func (ts *txStore) ListSettlementRuns(ctx context.Context, limit int) ([]bank.SettlementRun, error) {
	return ts.parent.listSettlementRuns(ctx, ts.tx, limit)
}

// =============================================================================
// USERS AND PROFILES
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u bank.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUser(ctx, s.db, u)
}

func (s *Store) createUser(ctx context.Context, db dbtx, u bank.User) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)",
		u.ID, u.Username, u.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return bank.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id bank.UserID) (*bank.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUser(ctx, s.db, id)
}

func (s *Store) getUser(ctx context.Context, db dbtx, id bank.UserID) (*bank.User, error) {
	var (
		u         bank.User
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, username, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Username, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id bank.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteUser(ctx, s.db, id)
}

func (s *Store) deleteUser(ctx context.Context, db dbtx, id bank.UserID) error {
	_, err := db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		// accounts.user_id is ON DELETE RESTRICT: the account blocks deletion.
		if isForeignKeyError(err) {
			return bank.ErrUserHasAccount
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *Store) CreateProfile(ctx context.Context, p bank.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createProfile(ctx, s.db, p)
}

func (s *Store) createProfile(ctx context.Context, db dbtx, p bank.Profile) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO profiles (id, user_id, first_name, last_name, image_path)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.FirstName, p.LastName, p.ImagePath,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfileByUser(ctx context.Context, userID bank.UserID) (*bank.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProfileByUser(ctx, s.db, userID)
}

func (s *Store) getProfileByUser(ctx context.Context, db dbtx, userID bank.UserID) (*bank.Profile, error) {
	var p bank.Profile
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, first_name, last_name, image_path
		 FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.ImagePath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, a bank.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAccount(ctx, s.db, a)
}

func (s *Store) createAccount(ctx context.Context, db dbtx, a bank.Account) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO accounts (id, user_id, balance) VALUES (?, ?, ?)",
		a.ID, a.UserID, a.Balance.Value.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id bank.AccountID) (*bank.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccount(ctx, s.db, id)
}

func (s *Store) getAccount(ctx context.Context, db dbtx, id bank.AccountID) (*bank.Account, error) {
	var (
		a       bank.Account
		balance string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, user_id, balance FROM accounts WHERE id = ?", id,
	).Scan(&a.ID, &a.UserID, &balance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Balance = bank.MustParseMoney(balance)
	return &a, nil
}

func (s *Store) GetAccountByUser(ctx context.Context, userID bank.UserID) (*bank.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccountByUser(ctx, s.db, userID)
}

func (s *Store) getAccountByUser(ctx context.Context, db dbtx, userID bank.UserID) (*bank.Account, error) {
	var (
		a       bank.Account
		balance string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, user_id, balance FROM accounts WHERE user_id = ?", userID,
	).Scan(&a.ID, &a.UserID, &balance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Balance = bank.MustParseMoney(balance)
	return &a, nil
}

func (s *Store) UpdateAccountBalance(ctx context.Context, id bank.AccountID, balance bank.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateAccountBalance(ctx, s.db, id, balance)
}

func (s *Store) updateAccountBalance(ctx context.Context, db dbtx, id bank.AccountID, balance bank.Money) error {
	res, err := db.ExecContext(ctx,
		"UPDATE accounts SET balance = ? WHERE id = ?",
		balance.Value.String(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return bank.ErrAccountNotFound
	}
	return nil
}

// =============================================================================
// MOVEMENT RECORDS (append-only)
// =============================================================================

func (s *Store) AppendAction(ctx context.Context, a bank.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendAction(ctx, s.db, a)
}

func (s *Store) appendAction(ctx context.Context, db dbtx, a bank.Action) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO actions (id, account_id, amount, created_at) VALUES (?, ?, ?, ?)",
		a.ID, a.AccountID, a.Amount.Value.String(), a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append action: %w", err)
	}
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, t bank.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendTransaction(ctx, s.db, t)
}

func (s *Store) appendTransaction(ctx context.Context, db dbtx, t bank.Transaction) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO transactions (id, account_id, amount, merchant, created_at) VALUES (?, ?, ?, ?, ?)",
		t.ID, t.AccountID, t.Amount.Value.String(), t.Merchant, t.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) AppendTransfer(ctx context.Context, t bank.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendTransfer(ctx, s.db, t)
}

func (s *Store) appendTransfer(ctx context.Context, db dbtx, t bank.Transfer) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO transfers (id, from_account_id, to_account_id, amount, created_at) VALUES (?, ?, ?, ?, ?)",
		t.ID, t.FromAccountID, t.ToAccountID, t.Amount.Value.String(), t.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append transfer: %w", err)
	}
	return nil
}

func (s *Store) ListActions(ctx context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listActions(ctx, s.db, accountID, limit, offset)
}

func (s *Store) listActions(ctx context.Context, db dbtx, accountID bank.AccountID, limit, offset int) ([]bank.Action, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, account_id, amount, created_at FROM actions
		 WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		accountID, normalizeLimit(limit), offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []bank.Action
	for rows.Next() {
		var (
			a         bank.Action
			amount    string
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.AccountID, &amount, &createdAt); err != nil {
			return nil, err
		}
		a.Amount = bank.MustParseMoney(amount)
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (s *Store) ListTransactions(ctx context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTransactions(ctx, s.db, accountID, limit, offset)
}

func (s *Store) listTransactions(ctx context.Context, db dbtx, accountID bank.AccountID, limit, offset int) ([]bank.Transaction, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, account_id, amount, merchant, created_at FROM transactions
		 WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		accountID, normalizeLimit(limit), offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trans []bank.Transaction
	for rows.Next() {
		var (
			t         bank.Transaction
			amount    string
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &amount, &t.Merchant, &createdAt); err != nil {
			return nil, err
		}
		t.Amount = bank.MustParseMoney(amount)
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		trans = append(trans, t)
	}
	return trans, rows.Err()
}

func (s *Store) ListTransfers(ctx context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTransfers(ctx, s.db, accountID, limit, offset)
}

func (s *Store) listTransfers(ctx context.Context, db dbtx, accountID bank.AccountID, limit, offset int) ([]bank.Transfer, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, from_account_id, to_account_id, amount, created_at FROM transfers
		 WHERE from_account_id = ? OR to_account_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		accountID, accountID, normalizeLimit(limit), offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []bank.Transfer
	for rows.Next() {
		var (
			t         bank.Transfer
			amount    string
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &amount, &createdAt); err != nil {
			return nil, err
		}
		t.Amount = bank.MustParseMoney(amount)
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// =============================================================================
// DEPOSITS
// =============================================================================

func (s *Store) CreateDeposit(ctx context.Context, d bank.Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createDeposit(ctx, s.db, d)
}

func (s *Store) createDeposit(ctx context.Context, db dbtx, d bank.Deposit) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO deposits (id, account_id, amount, created_at) VALUES (?, ?, ?, ?)",
		d.ID, d.AccountID, d.Amount.Value.String(), d.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create deposit: %w", err)
	}
	return nil
}

func (s *Store) GetDeposit(ctx context.Context, id bank.DepositID) (*bank.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getDeposit(ctx, s.db, id)
}

func (s *Store) getDeposit(ctx context.Context, db dbtx, id bank.DepositID) (*bank.Deposit, error) {
	var (
		d         bank.Deposit
		amount    string
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, account_id, amount, created_at FROM deposits WHERE id = ?", id,
	).Scan(&d.ID, &d.AccountID, &amount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Amount = bank.MustParseMoney(amount)
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &d, nil
}

func (s *Store) UpdateDepositAmount(ctx context.Context, id bank.DepositID, amount bank.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateDepositAmount(ctx, s.db, id, amount)
}

func (s *Store) updateDepositAmount(ctx context.Context, db dbtx, id bank.DepositID, amount bank.Money) error {
	res, err := db.ExecContext(ctx,
		"UPDATE deposits SET amount = ? WHERE id = ?",
		amount.Value.String(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update deposit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return bank.ErrDepositNotFound
	}
	return nil
}

func (s *Store) DeleteDeposit(ctx context.Context, id bank.DepositID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteDeposit(ctx, s.db, id)
}

func (s *Store) deleteDeposit(ctx context.Context, db dbtx, id bank.DepositID) error {
	_, err := db.ExecContext(ctx, "DELETE FROM deposits WHERE id = ?", id)
	return err
}

func (s *Store) ListDeposits(ctx context.Context, accountID bank.AccountID) ([]bank.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDeposits(ctx, s.db, accountID)
}

func (s *Store) listDeposits(ctx context.Context, db dbtx, accountID bank.AccountID) ([]bank.Deposit, error) {
	return s.queryDeposits(ctx, db,
		`SELECT id, account_id, amount, created_at FROM deposits
		 WHERE account_id = ? ORDER BY created_at DESC, id DESC`, accountID)
}

func (s *Store) ListAllDeposits(ctx context.Context) ([]bank.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAllDeposits(ctx, s.db)
}

func (s *Store) listAllDeposits(ctx context.Context, db dbtx) ([]bank.Deposit, error) {
	return s.queryDeposits(ctx, db,
		"SELECT id, account_id, amount, created_at FROM deposits ORDER BY created_at ASC, id ASC")
}

func (s *Store) queryDeposits(ctx context.Context, db dbtx, query string, args ...any) ([]bank.Deposit, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []bank.Deposit
	for rows.Next() {
		var (
			d         bank.Deposit
			amount    string
			createdAt string
		)
		if err := rows.Scan(&d.ID, &d.AccountID, &amount, &createdAt); err != nil {
			return nil, err
		}
		d.Amount = bank.MustParseMoney(amount)
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

// =============================================================================
// CREDITS
// =============================================================================

func (s *Store) CreateCredit(ctx context.Context, c bank.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCredit(ctx, s.db, c)
}

func (s *Store) createCredit(ctx context.Context, db dbtx, c bank.Credit) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO credits (id, account_id, amount, total_amount, created_at) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.AccountID, c.Amount.Value.String(), c.TotalAmount.Value.String(), c.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create credit: %w", err)
	}
	return nil
}

func (s *Store) GetCredit(ctx context.Context, id bank.CreditID) (*bank.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCredit(ctx, s.db, id)
}

func (s *Store) getCredit(ctx context.Context, db dbtx, id bank.CreditID) (*bank.Credit, error) {
	var (
		c           bank.Credit
		amount      string
		totalAmount string
		createdAt   string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, account_id, amount, total_amount, created_at FROM credits WHERE id = ?", id,
	).Scan(&c.ID, &c.AccountID, &amount, &totalAmount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Amount = bank.MustParseMoney(amount)
	c.TotalAmount = bank.MustParseMoney(totalAmount)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &c, nil
}

func (s *Store) UpdateCreditAmount(ctx context.Context, id bank.CreditID, amount bank.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCreditAmount(ctx, s.db, id, amount)
}

func (s *Store) updateCreditAmount(ctx context.Context, db dbtx, id bank.CreditID, amount bank.Money) error {
	res, err := db.ExecContext(ctx,
		"UPDATE credits SET amount = ? WHERE id = ?",
		amount.Value.String(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update credit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return bank.ErrCreditNotFound
	}
	return nil
}

func (s *Store) DeleteCredit(ctx context.Context, id bank.CreditID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteCredit(ctx, s.db, id)
}

func (s *Store) deleteCredit(ctx context.Context, db dbtx, id bank.CreditID) error {
	_, err := db.ExecContext(ctx, "DELETE FROM credits WHERE id = ?", id)
	return err
}

func (s *Store) ListCredits(ctx context.Context, accountID bank.AccountID) ([]bank.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCredits(ctx, s.db, accountID)
}

func (s *Store) listCredits(ctx context.Context, db dbtx, accountID bank.AccountID) ([]bank.Credit, error) {
	return s.queryCredits(ctx, db,
		`SELECT id, account_id, amount, total_amount, created_at FROM credits
		 WHERE account_id = ? ORDER BY created_at DESC, id DESC`, accountID)
}

func (s *Store) ListAllCredits(ctx context.Context) ([]bank.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAllCredits(ctx, s.db)
}

func (s *Store) listAllCredits(ctx context.Context, db dbtx) ([]bank.Credit, error) {
	return s.queryCredits(ctx, db,
		"SELECT id, account_id, amount, total_amount, created_at FROM credits ORDER BY created_at ASC, id ASC")
}

func (s *Store) queryCredits(ctx context.Context, db dbtx, query string, args ...any) ([]bank.Credit, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []bank.Credit
	for rows.Next() {
		var (
			c           bank.Credit
			amount      string
			totalAmount string
			createdAt   string
		)
		if err := rows.Scan(&c.ID, &c.AccountID, &amount, &totalAmount, &createdAt); err != nil {
			return nil, err
		}
		c.Amount = bank.MustParseMoney(amount)
		c.TotalAmount = bank.MustParseMoney(totalAmount)
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// =============================================================================
// SETTLEMENT RUNS
// =============================================================================

func (s *Store) CreateSettlementRun(ctx context.Context, r bank.SettlementRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSettlementRun(ctx, s.db, r)
}

func (s *Store) createSettlementRun(ctx context.Context, db dbtx, r bank.SettlementRun) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settlement_runs (id, job, period_key, status, processed, failed, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Job, r.PeriodKey, r.Status, r.Processed, r.Failed, r.Error,
		r.StartedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return bank.ErrDuplicateRun
		}
		return fmt.Errorf("failed to create settlement run: %w", err)
	}
	return nil
}

func (s *Store) UpdateSettlementRun(ctx context.Context, r bank.SettlementRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSettlementRun(ctx, s.db, r)
}

func (s *Store) updateSettlementRun(ctx context.Context, db dbtx, r bank.SettlementRun) error {
	var completedAt *string
	if r.CompletedAt != nil {
		t := r.CompletedAt.Format(time.RFC3339)
		completedAt = &t
	}

	_, err := db.ExecContext(ctx,
		`UPDATE settlement_runs
		 SET status = ?, processed = ?, failed = ?, error = ?, completed_at = ?
		 WHERE id = ?`,
		r.Status, r.Processed, r.Failed, r.Error, completedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement run: %w", err)
	}
	return nil
}

func (s *Store) ListSettlementRuns(ctx context.Context, limit int) ([]bank.SettlementRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSettlementRuns(ctx, s.db, limit)
}

func (s *Store) listSettlementRuns(ctx context.Context, db dbtx, limit int) ([]bank.SettlementRun, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, job, period_key, status, processed, failed, error, started_at, completed_at
		 FROM settlement_runs
		 ORDER BY started_at DESC
		 LIMIT ?`, normalizeLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []bank.SettlementRun
	for rows.Next() {
		var (
			r           bank.SettlementRun
			errMsg      sql.NullString
			startedAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Job, &r.PeriodKey, &r.Status, &r.Processed, &r.Failed,
			&errMsg, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		r.Error = errMsg.String
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if completedAt.Valid {
			t, _ := time.Parse(time.RFC3339, completedAt.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"settlement_runs", "credits", "deposits",
		"transfers", "transactions", "actions",
		"accounts", "profiles", "users",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return -1 // SQLite: LIMIT -1 means no limit
	}
	return limit
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
