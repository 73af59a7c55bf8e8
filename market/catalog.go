package market

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a catalog snapshot is trusted before a read refreshes it.
const DefaultTTL = 5 * time.Minute

// refreshTimeout bounds one shared catalog fetch.
const refreshTimeout = time.Minute

// FetchFunc returns the full market catalog from the exchange.
type FetchFunc func(ctx context.Context) ([]Rule, error)

// Catalog caches market rules by symbol. A snapshot is replaced wholesale on
// refresh; readers never observe a partially built map.
type Catalog struct {
	fetch FetchFunc
	ttl   time.Duration
	log   *slog.Logger
	now   func() time.Time

	mu        sync.RWMutex
	rules     map[string]Rule
	fetchedAt time.Time

	group singleflight.Group
}

func NewCatalog(fetch FetchFunc, ttl time.Duration, log *slog.Logger) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{
		fetch: fetch,
		ttl:   ttl,
		log:   log,
		now:   time.Now,
	}
}

// Refresh replaces the whole cache from a full catalog fetch. Concurrent
// callers share one fetch, which is not cancelled when the caller that
// started it gives up; each caller returns when its own ctx is done.
func (c *Catalog) Refresh(ctx context.Context) error {
	ch := c.group.DoChan("markets", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		rules, err := c.fetch(fctx)
		if err != nil {
			return nil, err
		}
		next := make(map[string]Rule, len(rules))
		for _, r := range rules {
			next[r.Symbol] = r
		}

		c.mu.Lock()
		c.rules = next
		c.fetchedAt = c.now()
		c.mu.Unlock()

		c.log.Debug("market catalog refreshed", "markets", len(next))
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *Catalog) stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rules == nil || c.now().Sub(c.fetchedAt) >= c.ttl
}

// ensure refreshes when the snapshot is missing or older than the TTL and
// reports whether it tried. A failed refresh keeps the previous snapshot serving.
func (c *Catalog) ensure(ctx context.Context) bool {
	if !c.stale() {
		return false
	}
	c.refreshLogged(ctx)
	return true
}

func (c *Catalog) refreshLogged(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.log.Warn("market catalog refresh failed", "error", err)
	}
}

func (c *Catalog) lookup(symbol string) (Rule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rules[symbol]
	return r, ok
}

// Get returns the rule for symbol. A miss triggers one refresh; symbols still
// unknown afterwards are reported as absent.
func (c *Catalog) Get(ctx context.Context, symbol string) (Rule, bool) {
	refreshed := c.ensure(ctx)
	if r, ok := c.lookup(symbol); ok || refreshed {
		return r, ok
	}
	c.refreshLogged(ctx)
	return c.lookup(symbol)
}

// All returns the current entries sorted by symbol.
func (c *Catalog) All(ctx context.Context) []Rule {
	c.ensure(ctx)

	c.mu.RLock()
	out := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (c *Catalog) rule(ctx context.Context, symbol string) *Rule {
	r, ok := c.Get(ctx, symbol)
	if !ok {
		return nil
	}
	return &r
}

func (c *Catalog) FormatQuantity(ctx context.Context, symbol string, qty float64) string {
	return FormatQuantity(c.rule(ctx, symbol), qty)
}

func (c *Catalog) FormatPrice(ctx context.Context, symbol string, price float64) string {
	return FormatPrice(c.rule(ctx, symbol), price)
}
