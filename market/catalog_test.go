package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls atomic.Int32
	err   error
	rules []Rule
}

func (f *fakeFetcher) fetch(ctx context.Context) ([]Rule, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.rules, nil
}

func newTestCatalog(t *testing.T, f *fakeFetcher) (*Catalog, *time.Time) {
	t.Helper()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCatalog(f.fetch, DefaultTTL, nil)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCatalogGetRefreshesOnFirstRead(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{rules: []Rule{*btcRule()}}
	c, _ := newTestCatalog(t, f)

	r, ok := c.Get(context.Background(), "BTC-USD-PERP")
	require.True(t, ok)
	assert.Equal(t, "0.001", r.OrderSizeIncrement)
	assert.EqualValues(t, 1, f.calls.Load())

	_, ok = c.Get(context.Background(), "BTC-USD-PERP")
	assert.True(t, ok)
	assert.EqualValues(t, 1, f.calls.Load(), "fresh snapshot must not refetch")
}

func TestCatalogTTLExpiry(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{rules: []Rule{*btcRule()}}
	c, now := newTestCatalog(t, f)

	c.Get(context.Background(), "BTC-USD-PERP")
	*now = now.Add(4 * time.Minute)
	c.Get(context.Background(), "BTC-USD-PERP")
	assert.EqualValues(t, 1, f.calls.Load())

	*now = now.Add(time.Minute)
	c.Get(context.Background(), "BTC-USD-PERP")
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestCatalogUnknownSymbolIsAbsent(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{rules: []Rule{*btcRule()}}
	c, _ := newTestCatalog(t, f)

	require.NoError(t, c.Refresh(context.Background()))
	_, ok := c.Get(context.Background(), "UNKNOWN")
	assert.False(t, ok)
	assert.EqualValues(t, 2, f.calls.Load(), "a miss refreshes once")

	assert.Equal(t, "100.12", c.FormatPrice(context.Background(), "UNKNOWN", 100.123456))
}

func TestCatalogRefreshReplacesWholesale(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{rules: []Rule{*btcRule(), {Symbol: "ETH-USD-PERP", OrderSizeIncrement: "0.01"}}}
	c, _ := newTestCatalog(t, f)
	require.NoError(t, c.Refresh(context.Background()))
	assert.Len(t, c.All(context.Background()), 2)

	f.rules = []Rule{{Symbol: "SOL-USD-PERP", OrderSizeIncrement: "0.1"}}
	require.NoError(t, c.Refresh(context.Background()))

	all := c.All(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, "SOL-USD-PERP", all[0].Symbol)
}

func TestCatalogFailedRefreshKeepsSnapshot(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{rules: []Rule{*btcRule()}}
	c, now := newTestCatalog(t, f)
	require.NoError(t, c.Refresh(context.Background()))

	f.err = errors.New("exchange down")
	*now = now.Add(10 * time.Minute)

	r, ok := c.Get(context.Background(), "BTC-USD-PERP")
	assert.True(t, ok)
	assert.Equal(t, "0.1", r.PriceTickSize)
	assert.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, "95123.4", c.FormatPrice(context.Background(), "BTC-USD-PERP", 95123.456))
}

func TestCatalogConcurrentRefreshCollapses(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	var once sync.Once

	c := NewCatalog(func(ctx context.Context) ([]Rule, error) {
		calls.Add(1)
		once.Do(func() { close(entered) })
		<-release
		return []Rule{*btcRule()}, nil
	}, DefaultTTL, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Refresh(context.Background()))
	}()
	<-entered

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Refresh(context.Background()))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
}

func TestCatalogSharedRefreshOutlivesLeaderTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := NewCatalog(func(ctx context.Context) ([]Rule, error) {
		calls.Add(1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(300 * time.Millisecond):
			return []Rule{*btcRule()}, nil
		}
	}, DefaultTTL, nil)

	leaderErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		leaderErr <- c.Refresh(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Refresh(context.Background()))

	assert.ErrorIs(t, <-leaderErr, context.DeadlineExceeded)
	assert.EqualValues(t, 1, calls.Load())
	_, ok := c.lookup("BTC-USD-PERP")
	assert.True(t, ok)
}
