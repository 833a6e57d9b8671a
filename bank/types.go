/*
Package bank provides the ledger core for the banking backend.

PURPOSE:
  This package contains the domain types and state-transition operations that
  mutate account balances and append immutable movement records. Everything
  that touches money lives here; HTTP routing, authentication, and
  serialization are external collaborators.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A fixed-point monetary value with 2 fractional digits
  - Account: Per-user balance, never negative after a committed operation
  - Action/Transaction/Transfer: Immutable movement records
  - Deposit/Credit: Interest-bearing holdings and amortizing loans

DESIGN PRINCIPLES:
  1. Immutability: Movement records are appended, never mutated or deleted
  2. Precision: Uses decimal.Decimal to avoid floating-point drift
  3. Atomicity: Every operation commits or rolls back as one unit
  4. Type Safety: Strong typing for IDs prevents mixing record references

USAGE:
  ledger := bank.NewLedger(store)
  acct, action, err := ledger.Adjust(ctx, accountID, bank.MustParseMoney("25.00"))

SEE ALSO:
  - ledger.go: Account operations (adjust, debit, transfer)
  - deposit.go: Deposit lifecycle
  - credit.go: Credit lifecycle
  - settlement.go: Scheduled interest accrual and amortization
*/
package bank

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point monetary value, 2 fractional digits
// =============================================================================

// Money is a monetary value. Stored precision never silently loses cents:
// every derived value (interest, markup, installment) is rounded half-up to
// 2 places at the point it is computed.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value).Round(2)}
}

func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Value: d}
}

// ParseMoney parses a decimal string like "12.34". Sub-cent precision is
// rejected so that every amount entering the ledger carries at most 2
// fractional digits; trailing zeros ("12.340") are fine.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	if !d.Equal(d.Round(2)) {
		return Money{}, fmt.Errorf("amount %s has more than 2 decimal places", s)
	}
	return Money{Value: d}, nil
}

// MustParseMoney parses a decimal string of any precision, returning zero on
// failure. For stored values and derived intermediates; caller input goes
// through ParseMoney.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(b Money) Money            { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money            { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money  { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money  { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                   { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool             { return m.Value.IsNegative() }
func (m Money) IsZero() bool                 { return m.Value.IsZero() }
func (m Money) IsPositive() bool             { return m.Value.IsPositive() }
func (m Money) Equal(b Money) bool           { return m.Value.Equal(b.Value) }
func (m Money) GreaterThan(b Money) bool     { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool        { return m.Value.LessThan(b.Value) }
func (m Money) LessThanOrEqual(b Money) bool { return m.Value.LessThanOrEqual(b.Value) }

// Round2 rounds half-up to 2 fractional digits.
func (m Money) Round2() Money { return Money{Value: m.Value.Round(2)} }

// String renders with exactly 2 fractional digits, e.g. "50.21".
func (m Money) String() string { return m.Value.StringFixed(2) }

// =============================================================================
// RATES AND RATIOS
// =============================================================================

var (
	// DepositAnnualRate is the yearly interest rate on deposits.
	DepositAnnualRate = decimal.RequireFromString("0.05")

	// DepositMonthlyRate is the per-settlement accrual rate (annual / 12).
	DepositMonthlyRate = DepositAnnualRate.Div(decimal.NewFromInt(12))

	// CreditMarkupDivisor: markup = principal / 10 (fixed 10% surcharge).
	CreditMarkupDivisor = decimal.NewFromInt(10)

	// CreditLimitMultiplier: a credit may not exceed 100x the current balance.
	CreditLimitMultiplier = decimal.NewFromInt(100)

	// AmortizationDivisor: installment = total_amount / 10.
	AmortizationDivisor = decimal.NewFromInt(10)
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	UserID        string
	ProfileID     string
	AccountID     string
	ActionID      string
	TransactionID string
	TransferID    string
	DepositID     string
	CreditID      string
)

func NewUserID() UserID               { return UserID(uuid.NewString()) }
func NewProfileID() ProfileID         { return ProfileID(uuid.NewString()) }
func NewAccountID() AccountID         { return AccountID(uuid.NewString()) }
func NewActionID() ActionID           { return ActionID(uuid.NewString()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.NewString()) }
func NewTransferID() TransferID       { return TransferID(uuid.NewString()) }
func NewDepositID() DepositID         { return DepositID(uuid.NewString()) }
func NewCreditID() CreditID           { return CreditID(uuid.NewString()) }

// =============================================================================
// USERS AND ACCOUNTS
// =============================================================================

// User owns exactly one Account and one Profile, both provisioned when the
// user is created. A user cannot be deleted while its account exists.
type User struct {
	ID        UserID
	Username  string
	CreatedAt time.Time
}

// Profile holds display data for a user. No domain logic attaches to it.
type Profile struct {
	ID        ProfileID
	UserID    UserID
	FirstName string
	LastName  string
	ImagePath string
}

// Account carries the spendable balance. The balance is never negative after
// any committed caller-facing operation; scheduled amortization is the one
// documented exception (see Settlement.Amortize).
type Account struct {
	ID      AccountID
	UserID  UserID
	Balance Money
}

// =============================================================================
// MOVEMENT RECORDS - Append-only, immutable once created
// =============================================================================

// Action is a generic balance adjustment. Positive amount credits the
// account, negative debits it.
type Action struct {
	ID        ActionID
	AccountID AccountID
	Amount    Money
	CreatedAt time.Time
}

// Transaction is a single-account debit to an external merchant.
type Transaction struct {
	ID        TransactionID
	AccountID AccountID
	Amount    Money
	Merchant  string
	CreatedAt time.Time
}

// Transfer is a two-account balance movement. One record covers both legs.
type Transfer struct {
	ID            TransferID
	FromAccountID AccountID
	ToAccountID   AccountID
	Amount        Money
	CreatedAt     time.Time
}

// =============================================================================
// DEPOSITS AND CREDITS
// =============================================================================

// Deposit holds funds moved out of the account into an interest-bearing
// holding. Interest grows the deposit itself, not the spendable balance.
type Deposit struct {
	ID        DepositID
	AccountID AccountID
	Amount    Money
	CreatedAt time.Time
}

// Credit is a loan. Amount is the remaining owed; TotalAmount is the original
// principal plus the fixed 10% markup and never changes after opening.
type Credit struct {
	ID          CreditID
	AccountID   AccountID
	Amount      Money
	TotalAmount Money
	CreatedAt   time.Time
}

// =============================================================================
// SETTLEMENT RUNS - At-most-once bookkeeping for scheduled passes
// =============================================================================

// Settlement job names. Each job settles independently per period.
const (
	JobDepositInterest    = "deposit-interest"
	JobCreditAmortization = "credit-amortization"
)

// SettlementRun records one scheduled pass of a settlement job. The store
// enforces uniqueness on (job, period key), which is what guarantees
// at-most-once application per period.
type SettlementRun struct {
	ID          string
	Job         string
	PeriodKey   string
	Status      string // running, completed, failed
	Processed   int
	Failed      int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
