/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients. DTOs are separate from
  domain types so the wire format can evolve without touching bank/.

MONEY ON THE WIRE:
  Amounts travel as decimal strings ("50.21"), never as floats. Responses
  always render two decimal places.

SEE ALSO:
  - handlers.go: Handlers that produce/consume these
  - bank/types.go: Domain types these map from
*/
package api

import (
	"time"

	"github.com/warp/bank-ledger/bank"
)

// =============================================================================
// REQUESTS
// =============================================================================

// CreateUserRequest creates a user with their account and profile.
type CreateUserRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AdjustRequest applies a signed balance adjustment to an account.
type AdjustRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"` // signed decimal string
}

// DebitRequest spends from an account at a merchant.
type DebitRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Merchant  string `json:"merchant"`
}

// TransferRequest moves money between two accounts.
type TransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
}

// OpenDepositRequest moves money from an account into a new deposit.
type OpenDepositRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

// WithdrawDepositRequest moves money from a deposit back to its account.
type WithdrawDepositRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

// OpenCreditRequest opens a credit line for an account.
type OpenCreditRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"` // principal; owed amount includes markup
}

// RepayCreditRequest pays down a credit from the account balance.
type RepayCreditRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

// RunSettlementRequest triggers a settlement pass for a period.
type RunSettlementRequest struct {
	PeriodKey string `json:"period_key,omitempty"` // defaults to current period
}

// =============================================================================
// RESPONSES
// =============================================================================

// UserDTO is a user with their provisioned account and profile.
type UserDTO struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	CreatedAt string      `json:"created_at"`
	Account   *AccountDTO `json:"account,omitempty"`
	Profile   *ProfileDTO `json:"profile,omitempty"`
}

// ProfileDTO mirrors bank.Profile.
type ProfileDTO struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ImagePath string `json:"image_path,omitempty"`
}

// AccountDTO mirrors bank.Account.
type AccountDTO struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Balance string `json:"balance"`
}

// ActionDTO mirrors bank.Action.
type ActionDTO struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

// TransactionDTO mirrors bank.Transaction.
type TransactionDTO struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Merchant  string `json:"merchant"`
	CreatedAt string `json:"created_at"`
}

// TransferDTO mirrors bank.Transfer.
type TransferDTO struct {
	ID            string `json:"id"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	CreatedAt     string `json:"created_at"`
}

// DepositDTO mirrors bank.Deposit.
type DepositDTO struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

// CreditDTO mirrors bank.Credit.
type CreditDTO struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Amount      string `json:"amount"`       // remaining debt
	TotalAmount string `json:"total_amount"` // original owed (with markup)
	CreatedAt   string `json:"created_at"`
}

// SettlementRunDTO mirrors bank.SettlementRun.
type SettlementRunDTO struct {
	ID          string `json:"id"`
	Job         string `json:"job"`
	PeriodKey   string `json:"period_key"`
	Status      string `json:"status"`
	Processed   int    `json:"processed"`
	Failed      int    `json:"failed"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// SettlementSummaryDTO reports one settlement pass.
type SettlementSummaryDTO struct {
	PeriodKey        string `json:"period_key"`
	DepositsAccrued  int    `json:"deposits_accrued"`
	DepositsFailed   int    `json:"deposits_failed"`
	CreditsAmortized int    `json:"credits_amortized"`
	CreditsClosed    int    `json:"credits_closed"`
	CreditsFailed    int    `json:"credits_failed"`
	InterestSkipped  bool   `json:"interest_skipped"`
	AmortizedSkipped bool   `json:"amortization_skipped"`
}

// ErrorResponse is the uniform error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(a *bank.Account) AccountDTO {
	return AccountDTO{
		ID:      string(a.ID),
		UserID:  string(a.UserID),
		Balance: a.Balance.String(),
	}
}

func toActionDTO(a bank.Action) ActionDTO {
	return ActionDTO{
		ID:        string(a.ID),
		AccountID: string(a.AccountID),
		Amount:    a.Amount.String(),
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(t bank.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:        string(t.ID),
		AccountID: string(t.AccountID),
		Amount:    t.Amount.String(),
		Merchant:  t.Merchant,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

func toTransferDTO(t bank.Transfer) TransferDTO {
	return TransferDTO{
		ID:            string(t.ID),
		FromAccountID: string(t.FromAccountID),
		ToAccountID:   string(t.ToAccountID),
		Amount:        t.Amount.String(),
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
}

func toDepositDTO(d bank.Deposit) DepositDTO {
	return DepositDTO{
		ID:        string(d.ID),
		AccountID: string(d.AccountID),
		Amount:    d.Amount.String(),
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}

func toCreditDTO(c bank.Credit) CreditDTO {
	return CreditDTO{
		ID:          string(c.ID),
		AccountID:   string(c.AccountID),
		Amount:      c.Amount.String(),
		TotalAmount: c.TotalAmount.String(),
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

func toSettlementRunDTO(r bank.SettlementRun) SettlementRunDTO {
	dto := SettlementRunDTO{
		ID:        r.ID,
		Job:       r.Job,
		PeriodKey: r.PeriodKey,
		Status:    r.Status,
		Processed: r.Processed,
		Failed:    r.Failed,
		Error:     r.Error,
		StartedAt: r.StartedAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toSettlementSummaryDTO(s bank.RunSummary) SettlementSummaryDTO {
	return SettlementSummaryDTO{
		PeriodKey:        s.PeriodKey,
		DepositsAccrued:  s.DepositsAccrued,
		DepositsFailed:   s.DepositsFailed,
		CreditsAmortized: s.CreditsAmortized,
		CreditsClosed:    s.CreditsClosed,
		CreditsFailed:    s.CreditsFailed,
		InterestSkipped:  s.InterestSkipped,
		AmortizedSkipped: s.AmortizedSkipped,
	}
}
