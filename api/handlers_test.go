package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/bank-ledger/api"
	"github.com/warp/bank-ledger/bank"
	"github.com/warp/bank-ledger/bank/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *api.Handler) {
	t.Helper()
	handler := api.NewHandler(store.NewMemory())
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, handler
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func doJSONList(t *testing.T, url string) (*http.Response, []map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// createFundedAccount creates a user over the API and funds the account.
func createFundedAccount(t *testing.T, srv *httptest.Server, balance string) string {
	t.Helper()

	resp, body := doJSON(t, "POST", srv.URL+"/api/users", api.CreateUserRequest{
		Username: "user-" + string(bank.NewUserID()), FirstName: "Test", LastName: "User",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	account := body["account"].(map[string]any)
	accountID := account["id"].(string)

	if balance != "0" {
		resp, _ = doJSON(t, "POST", srv.URL+"/api/actions", api.AdjustRequest{
			AccountID: accountID, Amount: balance,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	return accountID
}

// =============================================================================
// USER ENDPOINTS
// =============================================================================

func TestCreateAndGetUser(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, "POST", srv.URL+"/api/users", api.CreateUserRequest{
		Username: "alice", FirstName: "Alice", LastName: "Anderson",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])

	account := body["account"].(map[string]any)
	assert.Equal(t, "0.00", account["balance"])
	profile := body["profile"].(map[string]any)
	assert.Equal(t, "Alice", profile["first_name"])

	userID := body["id"].(string)
	resp, body = doJSON(t, "GET", srv.URL+"/api/users/"+userID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])
}

func TestCreateUser_MissingUsername_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, "POST", srv.URL+"/api/users", api.CreateUserRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateUser_DuplicateUsername_Conflict(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, "POST", srv.URL+"/api/users", api.CreateUserRequest{Username: "carol"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, "POST", srv.URL+"/api/users", api.CreateUserRequest{Username: "carol"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetUser_Unknown_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, "GET", srv.URL+"/api/users/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteUser_BlockedByAccount(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, "POST", srv.URL+"/api/users", api.CreateUserRequest{Username: "bob"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userID := body["id"].(string)

	resp, _ = doJSON(t, "DELETE", srv.URL+"/api/users/"+userID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// MOVEMENT ENDPOINTS
// =============================================================================

func TestAdjustDebitTransfer_Flow(t *testing.T) {
	srv, _ := newTestServer(t)
	aID := createFundedAccount(t, srv, "100")
	bID := createFundedAccount(t, srv, "0")

	// Debit
	resp, body := doJSON(t, "POST", srv.URL+"/api/transactions", api.DebitRequest{
		AccountID: aID, Amount: "25.50", Merchant: "coffee shop",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "coffee shop", body["merchant"])

	// Transfer
	resp, body = doJSON(t, "POST", srv.URL+"/api/transfers", api.TransferRequest{
		FromAccountID: aID, ToAccountID: bID, Amount: "30",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "30.00", body["amount"])

	// Balances
	resp, body = doJSON(t, "GET", srv.URL+"/api/accounts/"+aID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "44.50", body["balance"])

	resp, body = doJSON(t, "GET", srv.URL+"/api/accounts/"+bID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "30.00", body["balance"])

	// Histories
	resp, trans := doJSONList(t, srv.URL+"/api/accounts/"+aID+"/transactions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, trans, 1)

	resp, transfers := doJSONList(t, srv.URL+"/api/accounts/"+bID+"/transfers")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, transfers, 1)
}

func TestDebit_InsufficientFunds_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	aID := createFundedAccount(t, srv, "10")

	resp, body := doJSON(t, "POST", srv.URL+"/api/transactions", api.DebitRequest{
		AccountID: aID, Amount: "10.01", Merchant: "shop",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["details"], "not enough money")
}

func TestTransfer_SameAccount_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	aID := createFundedAccount(t, srv, "10")

	resp, _ := doJSON(t, "POST", srv.URL+"/api/transfers", api.TransferRequest{
		FromAccountID: aID, ToAccountID: aID, Amount: "1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdjust_UnknownAccount_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, "POST", srv.URL+"/api/actions", api.AdjustRequest{
		AccountID: "nope", Amount: "10",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAction_MalformedAmount_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	aID := createFundedAccount(t, srv, "10")

	resp, _ := doJSON(t, "POST", srv.URL+"/api/actions", api.AdjustRequest{
		AccountID: aID, Amount: "ten dollars",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDebit_SubCentAmount_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	aID := createFundedAccount(t, srv, "100")

	// Sub-cent amounts must never reach the ledger: with two-decimal
	// rendering, a stored 99.995 would display as 100.00 while the movement
	// shows 0.01, and the visible history no longer sums.
	resp, _ := doJSON(t, "POST", srv.URL+"/api/transactions", api.DebitRequest{
		AccountID: aID, Amount: "0.005", Merchant: "shop",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, "GET", srv.URL+"/api/accounts/"+aID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "100.00", body["balance"])
}

// =============================================================================
// DEPOSIT ENDPOINTS
// =============================================================================

func TestDepositLifecycle_OverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	aID := createFundedAccount(t, srv, "100")

	// Open
	resp, body := doJSON(t, "POST", srv.URL+"/api/deposits", api.OpenDepositRequest{
		AccountID: aID, Amount: "60",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	depositID := body["id"].(string)
	assert.Equal(t, "60.00", body["amount"])

	// Withdraw part
	resp, body = doJSON(t, "POST", srv.URL+"/api/deposits/"+depositID+"/withdraw", api.WithdrawDepositRequest{
		AccountID: aID, Amount: "25",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "35.00", body["amount"])

	// Close
	req, err := http.NewRequest("DELETE", srv.URL+"/api/deposits/"+depositID+"?account_id="+aID, nil)
	require.NoError(t, err)
	closeResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	closeResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, closeResp.StatusCode)

	resp, body = doJSON(t, "GET", srv.URL+"/api/accounts/"+aID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "100.00", body["balance"])
}

// =============================================================================
// CREDIT ENDPOINTS
// =============================================================================

func TestCreditLifecycle_OverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	aID := createFundedAccount(t, srv, "10")

	resp, body := doJSON(t, "POST", srv.URL+"/api/credits", api.OpenCreditRequest{
		AccountID: aID, Amount: "100",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	creditID := body["id"].(string)
	assert.Equal(t, "110.00", body["amount"])
	assert.Equal(t, "110.00", body["total_amount"])

	resp, body = doJSON(t, "GET", srv.URL+"/api/accounts/"+aID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "110.00", body["balance"])

	resp, body = doJSON(t, "POST", srv.URL+"/api/credits/"+creditID+"/repay", api.RepayCreditRequest{
		AccountID: aID, Amount: "50",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "60.00", body["amount"])
}

func TestOpenCredit_OverLimit_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	aID := createFundedAccount(t, srv, "10")

	resp, _ := doJSON(t, "POST", srv.URL+"/api/credits", api.OpenCreditRequest{
		AccountID: aID, Amount: "1000.01",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// SETTLEMENT ENDPOINTS
// =============================================================================

func TestRunSettlement_OverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	aID := createFundedAccount(t, srv, "100")

	resp, _ := doJSON(t, "POST", srv.URL+"/api/deposits", api.OpenDepositRequest{
		AccountID: aID, Amount: "50",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, "POST", srv.URL+"/api/admin/settlement/run", api.RunSettlementRequest{
		PeriodKey: "2026-08",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["deposits_accrued"])
	assert.Equal(t, false, body["interest_skipped"])

	// Re-running the same period is a recorded no-op.
	resp, body = doJSON(t, "POST", srv.URL+"/api/admin/settlement/run", api.RunSettlementRequest{
		PeriodKey: "2026-08",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["interest_skipped"])

	resp, runs := doJSONList(t, srv.URL+"/api/admin/settlement/runs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, runs, 2)
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestScheduler_RunNow(t *testing.T) {
	st := store.NewMemory()
	handler := api.NewHandler(st)
	ledger := handler.Ledger
	ctx := context.Background()

	_, account, _, err := ledger.CreateUser(ctx, "alice", "Alice", "A")
	require.NoError(t, err)
	_, _, err = ledger.Adjust(ctx, account.ID, bank.MustParseMoney("50"))
	require.NoError(t, err)
	_, err = ledger.OpenDeposit(ctx, bank.MustParseMoney("50"), account.ID)
	require.NoError(t, err)

	scheduler := api.NewSettlementScheduler(handler.Settlement, 0)
	summary, err := scheduler.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DepositsAccrued)

	// Same period again: the run gate skips.
	summary, err = scheduler.RunNow(ctx)
	require.NoError(t, err)
	assert.True(t, summary.InterestSkipped)
}
