/*
handlers.go - HTTP API handlers for the banking ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic in bank/.

ENDPOINTS:
  Users:
    POST   /api/users                     Create user (+account +profile)
    GET    /api/users/{id}                Get user with account and profile
    DELETE /api/users/{id}                Delete user (fails while account exists)

  Accounts:
    GET    /api/accounts/{id}              Account with current balance
    GET    /api/accounts/{id}/actions      Adjustment history
    GET    /api/accounts/{id}/transactions Debit history
    GET    /api/accounts/{id}/transfers    Transfer history (both directions)
    GET    /api/accounts/{id}/deposits     Open deposits
    GET    /api/accounts/{id}/credits      Open credits

  Movements:
    POST   /api/actions                   Signed balance adjustment
    POST   /api/transactions              Merchant debit
    POST   /api/transfers                 Account-to-account transfer

  Deposits:
    POST   /api/deposits                  Open a deposit
    POST   /api/deposits/{id}/withdraw    Partial withdrawal back to account
    DELETE /api/deposits/{id}             Close deposit, return remainder

  Credits:
    POST   /api/credits                   Open credit (10% markup applied)
    POST   /api/credits/{id}/repay        Repay from account balance

  Admin:
    POST   /api/admin/settlement/run      Trigger settlement for a period
    GET    /api/admin/settlement/runs     Recent settlement runs
    POST   /api/reset                     Database reset (dev only)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate settlement period)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - bank/ledger.go: Domain operations these delegate to
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/bank-ledger/bank"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger     *bank.Ledger
	Settlement *bank.Settlement
	Store      bank.TxStore
}

// NewHandler creates a new handler around the given store.
func NewHandler(store bank.TxStore) *Handler {
	return &Handler{
		Ledger:     bank.NewLedger(store),
		Settlement: bank.NewSettlement(store),
		Store:      store,
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser provisions a user together with their account and profile.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required", nil)
		return
	}

	user, account, profile, err := h.Ledger.CreateUser(r.Context(), req.Username, req.FirstName, req.LastName)
	if err != nil {
		writeDomainError(w, "Failed to create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, userDTO(user, account, profile))
}

// GetUser returns a user with their account and profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := bank.UserID(chi.URLParam(r, "id"))

	user, err := h.Store.GetUser(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	account, err := h.Store.GetAccountByUser(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get account", err)
		return
	}
	profile, err := h.Store.GetProfileByUser(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get profile", err)
		return
	}

	writeJSON(w, http.StatusOK, userDTO(user, account, profile))
}

// DeleteUser removes a user. Fails while the user still owns an account.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := bank.UserID(chi.URLParam(r, "id"))

	if err := h.Ledger.DeleteUser(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete user", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// GetAccount returns an account with its current balance.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := bank.AccountID(chi.URLParam(r, "id"))

	account, err := h.Store.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get account", err)
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// ListAccountActions returns the adjustment history, newest first.
func (h *Handler) ListAccountActions(w http.ResponseWriter, r *http.Request) {
	id := bank.AccountID(chi.URLParam(r, "id"))
	limit, offset := pagination(r)

	actions, err := h.Store.ListActions(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions", err)
		return
	}

	dtos := make([]ActionDTO, len(actions))
	for i, a := range actions {
		dtos[i] = toActionDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAccountTransactions returns the debit history, newest first.
func (h *Handler) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id := bank.AccountID(chi.URLParam(r, "id"))
	limit, offset := pagination(r)

	trans, err := h.Store.ListTransactions(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(trans))
	for i, t := range trans {
		dtos[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAccountTransfers returns transfers touching this account, newest first.
func (h *Handler) ListAccountTransfers(w http.ResponseWriter, r *http.Request) {
	id := bank.AccountID(chi.URLParam(r, "id"))
	limit, offset := pagination(r)

	transfers, err := h.Store.ListTransfers(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transfers", err)
		return
	}

	dtos := make([]TransferDTO, len(transfers))
	for i, t := range transfers {
		dtos[i] = toTransferDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAccountDeposits returns the account's open deposits.
func (h *Handler) ListAccountDeposits(w http.ResponseWriter, r *http.Request) {
	id := bank.AccountID(chi.URLParam(r, "id"))

	deposits, err := h.Store.ListDeposits(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list deposits", err)
		return
	}

	dtos := make([]DepositDTO, len(deposits))
	for i, d := range deposits {
		dtos[i] = toDepositDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAccountCredits returns the account's open credits.
func (h *Handler) ListAccountCredits(w http.ResponseWriter, r *http.Request) {
	id := bank.AccountID(chi.URLParam(r, "id"))

	credits, err := h.Store.ListCredits(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list credits", err)
		return
	}

	dtos := make([]CreditDTO, len(credits))
	for i, c := range credits {
		dtos[i] = toCreditDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

// CreateAction applies a signed adjustment to an account balance.
func (h *Handler) CreateAction(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := bank.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	_, action, err := h.Ledger.Adjust(r.Context(), bank.AccountID(req.AccountID), amount)
	if err != nil {
		writeDomainError(w, "Failed to adjust balance", err)
		return
	}

	writeJSON(w, http.StatusCreated, toActionDTO(*action))
}

// CreateTransaction debits an account at a merchant.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req DebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := bank.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	tx, err := h.Ledger.Debit(r.Context(), bank.AccountID(req.AccountID), amount, req.Merchant)
	if err != nil {
		writeDomainError(w, "Failed to debit account", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// CreateTransfer moves money between two accounts.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := bank.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	transfer, err := h.Ledger.Transfer(r.Context(), amount,
		bank.AccountID(req.FromAccountID), bank.AccountID(req.ToAccountID))
	if err != nil {
		writeDomainError(w, "Failed to transfer", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransferDTO(*transfer))
}

// =============================================================================
// DEPOSIT HANDLERS
// =============================================================================

// OpenDeposit moves money from the account into a new deposit.
func (h *Handler) OpenDeposit(w http.ResponseWriter, r *http.Request) {
	var req OpenDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := bank.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	deposit, err := h.Ledger.OpenDeposit(r.Context(), amount, bank.AccountID(req.AccountID))
	if err != nil {
		writeDomainError(w, "Failed to open deposit", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDepositDTO(*deposit))
}

// WithdrawDeposit moves part of a deposit back to its account.
func (h *Handler) WithdrawDeposit(w http.ResponseWriter, r *http.Request) {
	depositID := bank.DepositID(chi.URLParam(r, "id"))

	var req WithdrawDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := bank.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	if err := h.Ledger.WithdrawDeposit(r.Context(), depositID, amount, bank.AccountID(req.AccountID)); err != nil {
		writeDomainError(w, "Failed to withdraw from deposit", err)
		return
	}

	deposit, err := h.Store.GetDeposit(r.Context(), depositID)
	if err != nil || deposit == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, toDepositDTO(*deposit))
}

// CloseDeposit returns the remaining deposit amount to the account.
func (h *Handler) CloseDeposit(w http.ResponseWriter, r *http.Request) {
	depositID := bank.DepositID(chi.URLParam(r, "id"))
	accountID := bank.AccountID(r.URL.Query().Get("account_id"))

	if err := h.Ledger.CloseDeposit(r.Context(), depositID, accountID); err != nil {
		writeDomainError(w, "Failed to close deposit", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CREDIT HANDLERS
// =============================================================================

// OpenCredit opens a credit line; the owed amount includes the markup.
func (h *Handler) OpenCredit(w http.ResponseWriter, r *http.Request) {
	var req OpenCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := bank.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	credit, err := h.Ledger.OpenCredit(r.Context(), amount, bank.AccountID(req.AccountID))
	if err != nil {
		writeDomainError(w, "Failed to open credit", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCreditDTO(*credit))
}

// RepayCredit pays down a credit from the account balance.
func (h *Handler) RepayCredit(w http.ResponseWriter, r *http.Request) {
	creditID := bank.CreditID(chi.URLParam(r, "id"))

	var req RepayCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := bank.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	if err := h.Ledger.RepayCredit(r.Context(), creditID, amount, bank.AccountID(req.AccountID)); err != nil {
		writeDomainError(w, "Failed to repay credit", err)
		return
	}

	credit, err := h.Store.GetCredit(r.Context(), creditID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload credit", err)
		return
	}
	if credit == nil {
		// Fully repaid and closed.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toCreditDTO(*credit))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunSettlement triggers interest accrual and credit amortization for a
// period. Re-running the same period is a no-op per job.
func (h *Handler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	var req RunSettlementRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	periodKey := req.PeriodKey
	if periodKey == "" {
		periodKey = bank.MonthPeriodKey(time.Now())
	}

	summary, err := h.Settlement.Run(r.Context(), periodKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Settlement run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toSettlementSummaryDTO(summary))
}

// ListSettlementRuns returns recent settlement runs, newest first.
func (h *Handler) ListSettlementRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r)

	runs, err := h.Store.ListSettlementRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settlement runs", err)
		return
	}

	dtos := make([]SettlementRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toSettlementRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// resetter is implemented by stores that support wiping all data.
type resetter interface {
	Reset(ctx context.Context) error
}

// ResetDatabase wipes all data. Dev only.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}
	if err := rs.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func userDTO(u *bank.User, account *bank.Account, profile *bank.Profile) UserDTO {
	dto := UserDTO{
		ID:        string(u.ID),
		Username:  u.Username,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if account != nil {
		a := toAccountDTO(account)
		dto.Account = &a
	}
	if profile != nil {
		dto.Profile = &ProfileDTO{
			ID:        string(profile.ID),
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			ImagePath: profile.ImagePath,
		}
	}
	return dto
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

// writeDomainError maps bank errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case bank.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, bank.ErrDuplicateRun), errors.Is(err, bank.ErrUsernameTaken):
		writeError(w, http.StatusConflict, message, err)
	case bank.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
