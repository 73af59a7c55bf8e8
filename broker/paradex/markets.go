package paradex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rustyeddy/flashscalper/broker"
	"github.com/rustyeddy/flashscalper/market"
)

type results[T any] struct {
	Results []T `json:"results"`
}

type apiMarket struct {
	Symbol             string `json:"symbol"`
	BaseCurrency       string `json:"base_currency"`
	QuoteCurrency      string `json:"quote_currency"`
	SettlementCurrency string `json:"settlement_currency"`
	OrderSizeIncrement string `json:"order_size_increment"`
	PriceTickSize      string `json:"price_tick_size"`
	MinNotional        string `json:"min_notional"`
	MaxOrderSize       string `json:"max_order_size"`
	PositionLimit      string `json:"position_limit"`
	AssetKind          string `json:"asset_kind"`
	MarketKind         string `json:"market_kind"`
}

func (m apiMarket) rule() market.Rule {
	margin := market.Cross
	if strings.EqualFold(m.MarketKind, string(market.Isolated)) {
		margin = market.Isolated
	}
	return market.Rule{
		Symbol:             m.Symbol,
		BaseCurrency:       m.BaseCurrency,
		QuoteCurrency:      m.QuoteCurrency,
		SettlementCurrency: m.SettlementCurrency,
		OrderSizeIncrement: m.OrderSizeIncrement,
		PriceTickSize:      m.PriceTickSize,
		MinNotional:        num(m.MinNotional),
		MaxOrderSize:       num(m.MaxOrderSize),
		PositionLimit:      num(m.PositionLimit),
		AssetKind:          market.AssetKind(strings.ToUpper(m.AssetKind)),
		MarginKind:         margin,
	}
}

func (c *Client) fetchMarkets(ctx context.Context) ([]market.Rule, error) {
	var resp results[apiMarket]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/markets"}, &resp); err != nil {
		return nil, err
	}
	rules := make([]market.Rule, 0, len(resp.Results))
	for _, m := range resp.Results {
		rules = append(rules, m.rule())
	}
	return rules, nil
}

// Markets refreshes the catalog and returns every market rule.
func (c *Client) Markets(ctx context.Context) ([]market.Rule, error) {
	if err := c.catalog.Refresh(ctx); err != nil {
		return nil, err
	}
	return c.catalog.All(ctx), nil
}

// Market returns the cached rule for symbol.
func (c *Client) Market(ctx context.Context, symbol string) (market.Rule, bool) {
	return c.catalog.Get(ctx, symbol)
}

type apiSummary struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"mark_price"`
	LastTradedPrice string `json:"last_traded_price"`
	Bid             string `json:"bid"`
	Ask             string `json:"ask"`
	FundingRate     string `json:"funding_rate"`
	OpenInterest    string `json:"open_interest"`
	Volume24h       string `json:"volume_24h"`
}

func (c *Client) MarketSummary(ctx context.Context, symbol string) (broker.MarketSummary, error) {
	var resp results[apiSummary]
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/markets/" + url.PathEscape(symbol) + "/summary",
		route:  "/v1/markets/{symbol}/summary",
	}, &resp)
	if err != nil {
		return broker.MarketSummary{}, err
	}
	if len(resp.Results) == 0 {
		return broker.MarketSummary{}, fmt.Errorf("no summary for %s", symbol)
	}
	s := resp.Results[0]
	return broker.MarketSummary{
		Symbol:       s.Symbol,
		MarkPrice:    num(s.MarkPrice),
		LastPrice:    num(s.LastTradedPrice),
		Bid:          num(s.Bid),
		Ask:          num(s.Ask),
		FundingRate:  num(s.FundingRate),
		OpenInterest: num(s.OpenInterest),
		Volume24h:    num(s.Volume24h),
	}, nil
}

type apiOrderbook struct {
	Market        string      `json:"market"`
	Bids          [][2]string `json:"bids"`
	Asks          [][2]string `json:"asks"`
	LastUpdatedAt int64       `json:"last_updated_at"`
}

func levels(in [][2]string) []broker.BookLevel {
	out := make([]broker.BookLevel, 0, len(in))
	for _, l := range in {
		out = append(out, broker.BookLevel{Price: num(l[0]), Size: num(l[1])})
	}
	return out
}

func (c *Client) Orderbook(ctx context.Context, symbol string) (broker.Orderbook, error) {
	var resp apiOrderbook
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/markets/" + url.PathEscape(symbol) + "/orderbook",
		route:  "/v1/markets/{symbol}/orderbook",
	}, &resp)
	if err != nil {
		return broker.Orderbook{}, err
	}
	return broker.Orderbook{
		Symbol:    resp.Market,
		Bids:      levels(resp.Bids),
		Asks:      levels(resp.Asks),
		UpdatedAt: millis(resp.LastUpdatedAt),
	}, nil
}

type apiTrade struct {
	ID        string `json:"id"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	CreatedAt int64  `json:"created_at"`
}

// Trades returns the most recent public fills, newest first.
func (c *Client) Trades(ctx context.Context, symbol string, limit int) ([]broker.PublicTrade, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp results[apiTrade]
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/markets/" + url.PathEscape(symbol) + "/trades",
		route:  "/v1/markets/{symbol}/trades",
		query:  q,
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := make([]broker.PublicTrade, 0, len(resp.Results))
	for _, t := range resp.Results {
		out = append(out, broker.PublicTrade{
			ID:        t.ID,
			Symbol:    t.Market,
			Side:      broker.Side(strings.ToUpper(t.Side)),
			Price:     num(t.Price),
			Size:      num(t.Size),
			CreatedAt: millis(t.CreatedAt),
		})
	}
	return out, nil
}
