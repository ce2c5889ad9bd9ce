package api_test

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"scratch_lottery/internal/api"
	"scratch_lottery/internal/domain"
	"scratch_lottery/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseInsufficientBalance(t *testing.T) {
	r, db := setupTestServer(t)
	token := registerAndLogin(t, r, "alice", "hunter22")

	// A fresh account has no balance, so the purchase must be refused
	w := doRequest(r, http.MethodPost, "/api/ticket", "", token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Insufficient balance", resp["error"])

	// Nothing was debited and no ticket was created
	var user domain.User
	require.NoError(t, db.Where("username = ?", "alice").First(&user).Error)
	assert.Equal(t, float64(0), user.Balance)
	var count int64
	require.NoError(t, db.Model(&domain.Ticket{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestTopUpAndPurchase(t *testing.T) {
	r, db := setupTestServer(t)
	token := registerAndLogin(t, r, "alice", "hunter22")

	// Top-up credits exactly the fixed amount
	w := doRequest(r, http.MethodPost, "/api/topup", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var topup map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &topup))
	assert.Equal(t, float64(api.TopUpAmount), topup["balance"])

	// Purchase debits the ticket price and creates one unscratched ticket
	w = doRequest(r, http.MethodPost, "/api/ticket", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var ticket domain.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))
	assert.NotZero(t, ticket.ID)
	assert.False(t, ticket.IsScratched)
	assert.Contains(t, []string{domain.PrizeWin50, domain.PrizeWin100, domain.PrizeNothing}, ticket.Prize)

	var user domain.User
	require.NoError(t, db.Where("username = ?", "alice").First(&user).Error)
	assert.Equal(t, float64(api.TopUpAmount-api.TicketPrice), user.Balance)
	assert.Equal(t, user.ID, ticket.UserID)

	var count int64
	require.NoError(t, db.Model(&domain.Ticket{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTopUpIsUnconditional(t *testing.T) {
	r, db := setupTestServer(t)
	token := registerAndLogin(t, r, "alice", "hunter22")

	// Repeated top-ups keep adding the fixed amount with no upper bound
	for i := 1; i <= 3; i++ {
		w := doRequest(r, http.MethodPost, "/api/topup", "", token)
		require.Equal(t, http.StatusOK, w.Code)
		var topup map[string]float64
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &topup))
		assert.Equal(t, float64(i*api.TopUpAmount), topup["balance"])
	}

	var user domain.User
	require.NoError(t, db.Where("username = ?", "alice").First(&user).Error)
	assert.Equal(t, float64(3*api.TopUpAmount), user.Balance)
}

func TestPurchaseAndTopUpForDeletedUser(t *testing.T) {
	r, db := setupTestServer(t)
	token := registerAndLogin(t, r, "alice", "hunter22")

	// The token stays valid even after the account disappears
	require.NoError(t, db.Where("username = ?", "alice").Delete(&domain.User{}).Error)

	w := doRequest(r, http.MethodPost, "/api/ticket", "", token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(r, http.MethodPost, "/api/topup", "", token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMyTicketsReturnsOnlyOwnTickets(t *testing.T) {
	r, _ := setupTestServer(t)
	tokenA := registerAndLogin(t, r, "alice", "hunter22")
	tokenB := registerAndLogin(t, r, "bob", "password1")

	// Both users buy a ticket
	for _, token := range []string{tokenA, tokenB} {
		w := doRequest(r, http.MethodPost, "/api/topup", "", token)
		require.Equal(t, http.StatusOK, w.Code)
		w = doRequest(r, http.MethodPost, "/api/ticket", "", token)
		require.Equal(t, http.StatusOK, w.Code)
	}

	claimsA, err := utils.ParseJWT(tokenA, testSecret)
	require.NoError(t, err)

	// Alice sees exactly her own ticket
	w := doRequest(r, http.MethodGet, "/api/mytickets", "", tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	var tickets []domain.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tickets))
	require.Len(t, tickets, 1)
	assert.Equal(t, claimsA.UserID, tickets[0].UserID)

	// A second read is served from the cache with the same content
	w = doRequest(r, http.MethodGet, "/api/mytickets", "", tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	var cached []domain.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cached))
	assert.Equal(t, tickets, cached)
}

func TestMyTicketsEmptyList(t *testing.T) {
	r, _ := setupTestServer(t)
	token := registerAndLogin(t, r, "alice", "hunter22")

	w := doRequest(r, http.MethodGet, "/api/mytickets", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	// A user with no tickets gets an empty array, not null
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestScratchOwnTicketIsIdempotent(t *testing.T) {
	r, db := setupTestServer(t)
	token := registerAndLogin(t, r, "alice", "hunter22")

	w := doRequest(r, http.MethodPost, "/api/topup", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(r, http.MethodPost, "/api/ticket", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var ticket domain.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))

	// First scratch reveals the ticket
	w = doRequest(r, http.MethodPost, "/api/scratch/"+strconv.Itoa(int(ticket.ID)), "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var scratched domain.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scratched))
	assert.True(t, scratched.IsScratched)
	assert.Equal(t, ticket.Prize, scratched.Prize)

	// Scratching again still succeeds and stays revealed
	w = doRequest(r, http.MethodPost, "/api/scratch/"+strconv.Itoa(int(ticket.ID)), "", token)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scratched))
	assert.True(t, scratched.IsScratched)

	var stored domain.Ticket
	require.NoError(t, db.First(&stored, ticket.ID).Error)
	assert.True(t, stored.IsScratched)
}

func TestScratchForeignOrMissingTicket(t *testing.T) {
	r, db := setupTestServer(t)
	tokenA := registerAndLogin(t, r, "alice", "hunter22")
	tokenB := registerAndLogin(t, r, "bob", "password1")

	w := doRequest(r, http.MethodPost, "/api/topup", "", tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(r, http.MethodPost, "/api/ticket", "", tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	var ticket domain.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))

	// Bob cannot scratch Alice's ticket; the response matches a missing ticket
	w = doRequest(r, http.MethodPost, "/api/scratch/"+strconv.Itoa(int(ticket.ID)), "", tokenB)
	require.Equal(t, http.StatusNotFound, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Ticket not found", resp["error"])

	// The ticket stays unscratched
	var stored domain.Ticket
	require.NoError(t, db.First(&stored, ticket.ID).Error)
	assert.False(t, stored.IsScratched)

	// A ticket id that does not exist behaves the same way
	w = doRequest(r, http.MethodPost, "/api/scratch/99999", "", tokenA)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestGameScenario walks the full flow: register, top up, buy, a foreign
// scratch attempt, then the owner's scratch.
func TestGameScenario(t *testing.T) {
	r, _ := setupTestServer(t)
	tokenA := registerAndLogin(t, r, "alice", "hunter22")
	tokenB := registerAndLogin(t, r, "bob", "password1")

	// Alice tops up to 100
	w := doRequest(r, http.MethodPost, "/api/topup", "", tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	var topup map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &topup))
	require.Equal(t, float64(100), topup["balance"])

	// Alice buys a ticket, dropping to 90
	w = doRequest(r, http.MethodPost, "/api/ticket", "", tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	var ticket domain.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))
	require.False(t, ticket.IsScratched)

	// Bob cannot scratch it
	w = doRequest(r, http.MethodPost, "/api/scratch/"+strconv.Itoa(int(ticket.ID)), "", tokenB)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Alice scratches it successfully
	w = doRequest(r, http.MethodPost, "/api/scratch/"+strconv.Itoa(int(ticket.ID)), "", tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	var scratched domain.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scratched))
	assert.True(t, scratched.IsScratched)
}
