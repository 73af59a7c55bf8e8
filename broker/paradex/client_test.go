package paradex

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = "0x0101010101010101010101010101010101010101010101010101010101010101"

type recordingObserver struct {
	mu       sync.Mutex
	statuses []int
	errors   int
	auth     []string
}

func (o *recordingObserver) ObserveRequest(route, method string, status int, _ time.Duration) {
	o.mu.Lock()
	o.statuses = append(o.statuses, status)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveError(string) {
	o.mu.Lock()
	o.errors++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveAuth(outcome string) {
	o.mu.Lock()
	o.auth = append(o.auth, outcome)
	o.mu.Unlock()
}

type testClient struct {
	*Client
	obs *recordingObserver

	mu     sync.Mutex
	sleeps []time.Duration
}

func (tc *testClient) slept() []time.Duration {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]time.Duration(nil), tc.sleeps...)
}

func newTestClient(t *testing.T, handler http.Handler) *testClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	signer, err := NewKeySigner("0xabc123", testSeed)
	require.NoError(t, err)

	obs := &recordingObserver{}
	c, err := New(Options{
		BaseURL:         srv.URL,
		Signer:          signer,
		EthereumAccount: "0xeth",
		Observer:        obs,
		HTTPClient:      &http.Client{Timeout: 5 * time.Second},
	})
	require.NoError(t, err)

	tc := &testClient{Client: c, obs: obs}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		tc.mu.Lock()
		tc.sleeps = append(tc.sleeps, d)
		tc.mu.Unlock()
		return nil
	}
	return tc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func authOK(calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"jwt_token": "tok-1"})
	}
}

const accountJSON = `{"account":"0xabc123","account_value":"1000.50","free_collateral":"800","total_collateral":"1000.50",
"initial_margin_requirement":"200.25","maintenance_margin_requirement":"100","status":"ACTIVE"}`

func TestBaseURL(t *testing.T) {
	t.Parallel()

	u, err := BaseURL("testnet")
	require.NoError(t, err)
	assert.Equal(t, TestnetURL, u)

	u, err = BaseURL("PROD")
	require.NoError(t, err)
	assert.Equal(t, ProdURL, u)

	_, err = BaseURL("staging")
	assert.Error(t, err)

	assert.Equal(t, ProdChainID, ChainID("prod"))
	assert.Equal(t, TestnetChainID, ChainID("testnet"))
}

func TestNewRequiresSigner(t *testing.T) {
	t.Parallel()

	_, err := New(Options{})
	assert.Error(t, err)
}

func TestRequestRetriesFourTimes(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/markets", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	})
	c := newTestClient(t, mux)

	_, err := c.Markets(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 4, hits.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, c.slept())
	assert.Contains(t, err.Error(), "GET /v1/markets")
	assert.Contains(t, err.Error(), "4 attempts")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Contains(t, apiErr.Body, "boom")

	assert.Equal(t, []int{500, 500, 500, 500}, c.obs.statuses)
	assert.Equal(t, 4, c.obs.errors)
}

func TestRequestRecoversAfterFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/markets", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"results":[{"symbol":"BTC-USD-PERP","order_size_increment":"0.001","price_tick_size":"0.1"}]}`)
	})
	c := newTestClient(t, mux)

	rules, err := c.Markets(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.EqualValues(t, 3, hits.Load())
	assert.Len(t, c.slept(), 2)
}

func TestCancelledBackoffKeepsLastError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/markets", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	})
	c := newTestClient(t, mux)
	c.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := c.Markets(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
	assert.ErrorIs(t, err, context.Canceled)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Contains(t, err.Error(), "last error")
}

func TestTransportErrorIsRetriedThenSurfaced(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.NotFoundHandler())
	c.baseURL = "http://127.0.0.1:1"

	_, err := c.MarketSummary(context.Background(), "BTC-USD-PERP")
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "/v1/markets/BTC-USD-PERP/summary", te.Path)
	assert.Len(t, c.slept(), 3)
}

func TestMarketsParsesRules(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/markets", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":[
			{"symbol":"ETH-USD-PERP","base_currency":"ETH","quote_currency":"USD","settlement_currency":"USDC",
			 "order_size_increment":"0.01","price_tick_size":"0.01","min_notional":"10","max_order_size":"500",
			 "position_limit":"1000","asset_kind":"PERP","market_kind":"cross"},
			{"symbol":"BTC-USD-PERP","order_size_increment":"0.001","price_tick_size":"0.1","min_notional":"","asset_kind":"PERP"}
		]}`)
	})
	c := newTestClient(t, mux)

	rules, err := c.Markets(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "BTC-USD-PERP", rules[0].Symbol)
	assert.Zero(t, rules[0].MinNotional)

	eth := rules[1]
	assert.Equal(t, "USDC", eth.SettlementCurrency)
	assert.Equal(t, 10.0, eth.MinNotional)
	assert.Equal(t, 500.0, eth.MaxOrderSize)
	assert.Equal(t, 1000.0, eth.PositionLimit)

	r, ok := c.Market(context.Background(), "ETH-USD-PERP")
	require.True(t, ok)
	assert.Equal(t, "0.01", r.OrderSizeIncrement)
	assert.Equal(t, "0.12", c.Catalog().FormatQuantity(context.Background(), "ETH-USD-PERP", 0.129))
}

func TestMarketDataEndpoints(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/markets/BTC-USD-PERP/summary", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":[{"symbol":"BTC-USD-PERP","mark_price":"95123.45","last_traded_price":"95120",
			"bid":"95120.1","ask":"95125.3","funding_rate":"0.0001"}]}`)
	})
	mux.HandleFunc("/v1/markets/BTC-USD-PERP/orderbook", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"market":"BTC-USD-PERP","bids":[["95120.1","0.5"]],"asks":[["95125.3","1.25"],["95130","2"]],
			"last_updated_at":1700000000000}`)
	})
	mux.HandleFunc("/v1/markets/BTC-USD-PERP/trades", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		io.WriteString(w, `{"results":[{"id":"t1","market":"BTC-USD-PERP","side":"BUY","price":"95121","size":"0.01","created_at":1700000000000},
			{"id":"t2","market":"BTC-USD-PERP","side":"SELL","price":"95119","size":"0.02","created_at":1700000000500}]}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	s, err := c.MarketSummary(ctx, "BTC-USD-PERP")
	require.NoError(t, err)
	assert.Equal(t, 95123.45, s.MarkPrice)
	assert.Equal(t, 95120.0, s.LastPrice)
	assert.Equal(t, 0.0001, s.FundingRate)

	ob, err := c.Orderbook(ctx, "BTC-USD-PERP")
	require.NoError(t, err)
	require.Len(t, ob.Bids, 1)
	require.Len(t, ob.Asks, 2)
	assert.Equal(t, 1.25, ob.Asks[0].Size)
	assert.Equal(t, int64(1700000000000), ob.UpdatedAt.UnixMilli())

	trades, err := c.Trades(ctx, "BTC-USD-PERP", 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "SELL", string(trades[1].Side))
}

func TestEmptySummaryIsError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/markets/NOPE/summary", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":[]}`)
	})
	c := newTestClient(t, mux)

	_, err := c.MarketSummary(context.Background(), "NOPE")
	assert.ErrorContains(t, err, "no summary for NOPE")
}
