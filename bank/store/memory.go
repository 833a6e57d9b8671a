// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/bank-ledger/bank"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements bank.TxStore entirely in memory. WithTx snapshots the
// whole state and restores it when the closure fails, which gives the same
// commit-or-rollback semantics the SQLite store gets from BEGIN/ROLLBACK.
type Memory struct {
	mu sync.Mutex
	st *state
}

type state struct {
	users    map[bank.UserID]bank.User
	profiles map[bank.ProfileID]bank.Profile
	accounts map[bank.AccountID]bank.Account

	actions      []bank.Action
	transactions []bank.Transaction
	transfers    []bank.Transfer

	deposits     map[bank.DepositID]bank.Deposit
	depositOrder []bank.DepositID
	credits      map[bank.CreditID]bank.Credit
	creditOrder  []bank.CreditID

	runs    []bank.SettlementRun
	runKeys map[string]bool // job + "|" + periodKey
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

func newState() *state {
	return &state{
		users:    make(map[bank.UserID]bank.User),
		profiles: make(map[bank.ProfileID]bank.Profile),
		accounts: make(map[bank.AccountID]bank.Account),
		deposits: make(map[bank.DepositID]bank.Deposit),
		credits:  make(map[bank.CreditID]bank.Credit),
		runKeys:  make(map[string]bool),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.profiles {
		c.profiles[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	c.actions = append([]bank.Action(nil), st.actions...)
	c.transactions = append([]bank.Transaction(nil), st.transactions...)
	c.transfers = append([]bank.Transfer(nil), st.transfers...)
	for k, v := range st.deposits {
		c.deposits[k] = v
	}
	c.depositOrder = append([]bank.DepositID(nil), st.depositOrder...)
	for k, v := range st.credits {
		c.credits[k] = v
	}
	c.creditOrder = append([]bank.CreditID(nil), st.creditOrder...)
	c.runs = append([]bank.SettlementRun(nil), st.runs...)
	for k, v := range st.runKeys {
		c.runKeys[k] = v
	}
	return c
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against the live state under the store lock. On error the
// pre-transaction snapshot is restored, so partial writes never survive.
func (m *Memory) WithTx(_ context.Context, fn func(bank.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&view{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// view exposes the state as a bank.Store without locking; used inside WithTx
// where the Memory lock is already held.
type view struct {
	st *state
}

// =============================================================================
// USERS AND PROFILES
// =============================================================================

func (m *Memory) CreateUser(ctx context.Context, u bank.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).CreateUser(ctx, u)
}

func (v *view) CreateUser(_ context.Context, u bank.User) error {
	// Same uniqueness contract the SQLite schema enforces on username.
	for _, existing := range v.st.users {
		if existing.Username == u.Username {
			return bank.ErrUsernameTaken
		}
	}
	v.st.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id bank.UserID) (*bank.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).GetUser(ctx, id)
}

func (v *view) GetUser(_ context.Context, id bank.UserID) (*bank.User, error) {
	u, ok := v.st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) DeleteUser(ctx context.Context, id bank.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).DeleteUser(ctx, id)
}

func (v *view) DeleteUser(_ context.Context, id bank.UserID) error {
	for _, a := range v.st.accounts {
		if a.UserID == id {
			return bank.ErrUserHasAccount
		}
	}
	delete(v.st.users, id)
	return nil
}

func (m *Memory) CreateProfile(ctx context.Context, p bank.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).CreateProfile(ctx, p)
}

func (v *view) CreateProfile(_ context.Context, p bank.Profile) error {
	v.st.profiles[p.ID] = p
	return nil
}

func (m *Memory) GetProfileByUser(ctx context.Context, userID bank.UserID) (*bank.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).GetProfileByUser(ctx, userID)
}

func (v *view) GetProfileByUser(_ context.Context, userID bank.UserID) (*bank.Profile, error) {
	for _, p := range v.st.profiles {
		if p.UserID == userID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) CreateAccount(ctx context.Context, a bank.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).CreateAccount(ctx, a)
}

func (v *view) CreateAccount(_ context.Context, a bank.Account) error {
	v.st.accounts[a.ID] = a
	return nil
}

func (m *Memory) GetAccount(ctx context.Context, id bank.AccountID) (*bank.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).GetAccount(ctx, id)
}

func (v *view) GetAccount(_ context.Context, id bank.AccountID) (*bank.Account, error) {
	a, ok := v.st.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) GetAccountByUser(ctx context.Context, userID bank.UserID) (*bank.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).GetAccountByUser(ctx, userID)
}

func (v *view) GetAccountByUser(_ context.Context, userID bank.UserID) (*bank.Account, error) {
	for _, a := range v.st.accounts {
		if a.UserID == userID {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpdateAccountBalance(ctx context.Context, id bank.AccountID, balance bank.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).UpdateAccountBalance(ctx, id, balance)
}

func (v *view) UpdateAccountBalance(_ context.Context, id bank.AccountID, balance bank.Money) error {
	a, ok := v.st.accounts[id]
	if !ok {
		return bank.ErrAccountNotFound
	}
	a.Balance = balance
	v.st.accounts[id] = a
	return nil
}

// =============================================================================
// MOVEMENT RECORDS - Append-only
// =============================================================================

func (m *Memory) AppendAction(ctx context.Context, a bank.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).AppendAction(ctx, a)
}

func (v *view) AppendAction(_ context.Context, a bank.Action) error {
	v.st.actions = append(v.st.actions, a)
	return nil
}

func (m *Memory) AppendTransaction(ctx context.Context, t bank.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).AppendTransaction(ctx, t)
}

func (v *view) AppendTransaction(_ context.Context, t bank.Transaction) error {
	v.st.transactions = append(v.st.transactions, t)
	return nil
}

func (m *Memory) AppendTransfer(ctx context.Context, t bank.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).AppendTransfer(ctx, t)
}

func (v *view) AppendTransfer(_ context.Context, t bank.Transfer) error {
	v.st.transfers = append(v.st.transfers, t)
	return nil
}

func (m *Memory) ListActions(ctx context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).ListActions(ctx, accountID, limit, offset)
}

func (v *view) ListActions(_ context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Action, error) {
	var out []bank.Action
	// Newest first.
	for i := len(v.st.actions) - 1; i >= 0; i-- {
		if v.st.actions[i].AccountID == accountID {
			out = append(out, v.st.actions[i])
		}
	}
	return page(out, limit, offset), nil
}

func (m *Memory) ListTransactions(ctx context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).ListTransactions(ctx, accountID, limit, offset)
}

func (v *view) ListTransactions(_ context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Transaction, error) {
	var out []bank.Transaction
	for i := len(v.st.transactions) - 1; i >= 0; i-- {
		if v.st.transactions[i].AccountID == accountID {
			out = append(out, v.st.transactions[i])
		}
	}
	return page(out, limit, offset), nil
}

func (m *Memory) ListTransfers(ctx context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).ListTransfers(ctx, accountID, limit, offset)
}

func (v *view) ListTransfers(_ context.Context, accountID bank.AccountID, limit, offset int) ([]bank.Transfer, error) {
	var out []bank.Transfer
	for i := len(v.st.transfers) - 1; i >= 0; i-- {
		t := v.st.transfers[i]
		if t.FromAccountID == accountID || t.ToAccountID == accountID {
			out = append(out, t)
		}
	}
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// =============================================================================
// DEPOSITS
// =============================================================================

func (m *Memory) CreateDeposit(ctx context.Context, d bank.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).CreateDeposit(ctx, d)
}

func (v *view) CreateDeposit(_ context.Context, d bank.Deposit) error {
	v.st.deposits[d.ID] = d
	v.st.depositOrder = append(v.st.depositOrder, d.ID)
	return nil
}

func (m *Memory) GetDeposit(ctx context.Context, id bank.DepositID) (*bank.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).GetDeposit(ctx, id)
}

func (v *view) GetDeposit(_ context.Context, id bank.DepositID) (*bank.Deposit, error) {
	d, ok := v.st.deposits[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *Memory) UpdateDepositAmount(ctx context.Context, id bank.DepositID, amount bank.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).UpdateDepositAmount(ctx, id, amount)
}

func (v *view) UpdateDepositAmount(_ context.Context, id bank.DepositID, amount bank.Money) error {
	d, ok := v.st.deposits[id]
	if !ok {
		return bank.ErrDepositNotFound
	}
	d.Amount = amount
	v.st.deposits[id] = d
	return nil
}

func (m *Memory) DeleteDeposit(ctx context.Context, id bank.DepositID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).DeleteDeposit(ctx, id)
}

func (v *view) DeleteDeposit(_ context.Context, id bank.DepositID) error {
	delete(v.st.deposits, id)
	for i, did := range v.st.depositOrder {
		if did == id {
			v.st.depositOrder = append(v.st.depositOrder[:i], v.st.depositOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ListDeposits(ctx context.Context, accountID bank.AccountID) ([]bank.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).ListDeposits(ctx, accountID)
}

func (v *view) ListDeposits(_ context.Context, accountID bank.AccountID) ([]bank.Deposit, error) {
	var out []bank.Deposit
	for _, id := range v.st.depositOrder {
		if d, ok := v.st.deposits[id]; ok && d.AccountID == accountID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) ListAllDeposits(ctx context.Context) ([]bank.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).ListAllDeposits(ctx)
}

func (v *view) ListAllDeposits(_ context.Context) ([]bank.Deposit, error) {
	var out []bank.Deposit
	for _, id := range v.st.depositOrder {
		if d, ok := v.st.deposits[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// =============================================================================
// CREDITS
// =============================================================================

func (m *Memory) CreateCredit(ctx context.Context, c bank.Credit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).CreateCredit(ctx, c)
}

func (v *view) CreateCredit(_ context.Context, c bank.Credit) error {
	v.st.credits[c.ID] = c
	v.st.creditOrder = append(v.st.creditOrder, c.ID)
	return nil
}

func (m *Memory) GetCredit(ctx context.Context, id bank.CreditID) (*bank.Credit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).GetCredit(ctx, id)
}

func (v *view) GetCredit(_ context.Context, id bank.CreditID) (*bank.Credit, error) {
	c, ok := v.st.credits[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) UpdateCreditAmount(ctx context.Context, id bank.CreditID, amount bank.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).UpdateCreditAmount(ctx, id, amount)
}

func (v *view) UpdateCreditAmount(_ context.Context, id bank.CreditID, amount bank.Money) error {
	c, ok := v.st.credits[id]
	if !ok {
		return bank.ErrCreditNotFound
	}
	c.Amount = amount
	v.st.credits[id] = c
	return nil
}

func (m *Memory) DeleteCredit(ctx context.Context, id bank.CreditID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).DeleteCredit(ctx, id)
}

func (v *view) DeleteCredit(_ context.Context, id bank.CreditID) error {
	delete(v.st.credits, id)
	for i, cid := range v.st.creditOrder {
		if cid == id {
			v.st.creditOrder = append(v.st.creditOrder[:i], v.st.creditOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ListCredits(ctx context.Context, accountID bank.AccountID) ([]bank.Credit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).ListCredits(ctx, accountID)
}

func (v *view) ListCredits(_ context.Context, accountID bank.AccountID) ([]bank.Credit, error) {
	var out []bank.Credit
	for _, id := range v.st.creditOrder {
		if c, ok := v.st.credits[id]; ok && c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) ListAllCredits(ctx context.Context) ([]bank.Credit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).ListAllCredits(ctx)
}

func (v *view) ListAllCredits(_ context.Context) ([]bank.Credit, error) {
	var out []bank.Credit
	for _, id := range v.st.creditOrder {
		if c, ok := v.st.credits[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// =============================================================================
// SETTLEMENT RUNS
// =============================================================================

func (m *Memory) CreateSettlementRun(ctx context.Context, r bank.SettlementRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).CreateSettlementRun(ctx, r)
}

func (v *view) CreateSettlementRun(_ context.Context, r bank.SettlementRun) error {
	k := r.Job + "|" + r.PeriodKey
	if v.st.runKeys[k] {
		return bank.ErrDuplicateRun
	}
	v.st.runKeys[k] = true
	v.st.runs = append(v.st.runs, r)
	return nil
}

func (m *Memory) UpdateSettlementRun(ctx context.Context, r bank.SettlementRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).UpdateSettlementRun(ctx, r)
}

func (v *view) UpdateSettlementRun(_ context.Context, r bank.SettlementRun) error {
	for i := range v.st.runs {
		if v.st.runs[i].ID == r.ID {
			v.st.runs[i] = r
			return nil
		}
	}
	return nil
}

func (m *Memory) ListSettlementRuns(ctx context.Context, limit int) ([]bank.SettlementRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&view{m.st}).ListSettlementRuns(ctx, limit)
}

func (v *view) ListSettlementRuns(_ context.Context, limit int) ([]bank.SettlementRun, error) {
	var out []bank.SettlementRun
	for i := len(v.st.runs) - 1; i >= 0; i-- {
		out = append(out, v.st.runs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
