package integration

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentWithdrawals_NoOverdraw fires 10 concurrent withdrawals
// of 100 against a balance of 500. The debit is a conditional update
// executed under the repo lock, so exactly 5 must succeed and the
// balance must land on zero, never below.
func TestConcurrentWithdrawals_NoOverdraw(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := registerAndLogin(t, app, "concurrent_withdrawer")

	// Seed the balance and create the limit rows sequentially so the
	// concurrent requests only race on the debit itself.
	deposit(t, app, token, "600")
	respSeed := postJSON(t, app.server.URL+"/api/v1/transactions/withdraw", token, map[string]string{
		"amount": "100",
	})
	require.Equal(t, http.StatusOK, respSeed.StatusCode)
	respSeed.Body.Close()

	concurrency := 10

	var wg sync.WaitGroup
	var successCount atomic.Int64
	var failCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp := postJSON(t, app.server.URL+"/api/v1/transactions/withdraw", token, map[string]string{
				"amount": "100",
			})
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()

	t.Logf("Concurrent withdrawals: %d succeeded, %d failed (out of %d)", successCount.Load(), failCount.Load(), concurrency)

	assert.Equal(t, int64(5), successCount.Load(), "only the covered withdrawals may succeed")
	assert.Equal(t, int64(5), failCount.Load())

	balance := getBalance(t, app, token)
	assert.True(t, balance.Balance.IsZero(), "final balance must be exactly zero, got %s", balance.Balance)
}

// TestConcurrentDeposits_DailyCapHolds fires 10 concurrent deposits of
// 1000 against a daily cap of 5000 with 100 already consumed. The cap
// accumulation is conditional, so exactly 4 deposits fit.
func TestConcurrentDeposits_DailyCapHolds(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := registerAndLogin(t, app, "concurrent_depositor")

	// Create the limit rows before racing.
	deposit(t, app, token, "100")

	concurrency := 10

	var wg sync.WaitGroup
	var successCount atomic.Int64
	var limitCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp := postJSON(t, app.server.URL+"/api/v1/transactions/deposit", token, map[string]string{
				"amount": "1000",
			})
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				successCount.Add(1)
			case http.StatusBadRequest:
				limitCount.Add(1)
			}
		}()
	}

	wg.Wait()

	t.Logf("Concurrent deposits: %d succeeded, %d hit the cap (out of %d)", successCount.Load(), limitCount.Load(), concurrency)

	assert.Equal(t, int64(4), successCount.Load(), "the daily cap leaves room for exactly 4 deposits")
	assert.Equal(t, int64(6), limitCount.Load())

	balance := getBalance(t, app, token)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(4100)), "balance must reflect only the accepted deposits, got %s", balance.Balance)
}
