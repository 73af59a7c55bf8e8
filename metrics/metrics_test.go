package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/flashscalper/broker/paradex"
	"github.com/rustyeddy/flashscalper/execution"
)

var (
	_ paradex.Observer   = (*Prometheus)(nil)
	_ execution.Observer = (*Prometheus)(nil)
)

func TestObserveRequest(t *testing.T) {
	t.Parallel()

	p := New()
	p.ObserveRequest("/v1/markets/{symbol}/summary", "GET", 200, 120*time.Millisecond)
	p.ObserveRequest("/v1/markets/{symbol}/summary", "GET", 200, 80*time.Millisecond)
	p.ObserveRequest("/v1/orders", "POST", 0, time.Second)
	p.ObserveError("/v1/orders")

	assert.Equal(t, 2.0, testutil.ToFloat64(p.requests.WithLabelValues("/v1/markets/{symbol}/summary", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.requests.WithLabelValues("/v1/orders", "POST", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.errors.WithLabelValues("/v1/orders")))
	assert.Equal(t, 2, testutil.CollectAndCount(p.duration))
}

func TestObserveAuthAndTrades(t *testing.T) {
	t.Parallel()

	p := New()
	p.ObserveAuth("success")
	p.ObserveAuth("onboarding")
	p.ObserveAuth("success")
	p.ObserveTrade("open", "paper")
	p.ObserveTrade("close", "filled")

	assert.Equal(t, 2.0, testutil.ToFloat64(p.auth.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.auth.WithLabelValues("onboarding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.trades.WithLabelValues("open", "paper")))

	expected := `
# HELP scalper_trades_total Orchestrated opens and closes by outcome.
# TYPE scalper_trades_total counter
scalper_trades_total{action="close",outcome="filled"} 1
scalper_trades_total{action="open",outcome="paper"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(p.trades, strings.NewReader(expected)))
}

func TestHandler(t *testing.T) {
	t.Parallel()

	p := New()
	p.ObserveTrade("open", "filled")

	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `scalper_trades_total{action="open",outcome="filled"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
