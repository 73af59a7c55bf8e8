package paradex

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/flashscalper/broker"
)

type apiAccount struct {
	Account                      string `json:"account"`
	AccountValue                 string `json:"account_value"`
	FreeCollateral               string `json:"free_collateral"`
	TotalCollateral              string `json:"total_collateral"`
	InitialMarginRequirement     string `json:"initial_margin_requirement"`
	MaintenanceMarginRequirement string `json:"maintenance_margin_requirement"`
	Status                       string `json:"status"`
}

func (c *Client) AccountSummary(ctx context.Context) (broker.Account, error) {
	var a apiAccount
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/account/summary", auth: true}, &a); err != nil {
		return broker.Account{}, err
	}
	return broker.Account{
		Account:           a.Account,
		AccountValue:      num(a.AccountValue),
		FreeCollateral:    num(a.FreeCollateral),
		TotalCollateral:   num(a.TotalCollateral),
		InitialMargin:     num(a.InitialMarginRequirement),
		MaintenanceMargin: num(a.MaintenanceMarginRequirement),
		Status:            a.Status,
	}, nil
}

type apiPosition struct {
	ID                string `json:"id"`
	Market            string `json:"market"`
	Side              string `json:"side"`
	Size              string `json:"size"`
	AverageEntryPrice string `json:"average_entry_price"`
	UnrealizedPnL     string `json:"unrealized_pnl"`
	Leverage          string `json:"leverage"`
	LiquidationPrice  string `json:"liquidation_price"`
	Status            string `json:"status"`
}

func (c *Client) Positions(ctx context.Context) ([]broker.Position, error) {
	var resp results[apiPosition]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/positions", auth: true}, &resp); err != nil {
		return nil, err
	}
	out := make([]broker.Position, 0, len(resp.Results))
	for _, p := range resp.Results {
		out = append(out, broker.Position{
			ID:               p.ID,
			Symbol:           p.Market,
			Side:             p.Side,
			Size:             num(p.Size),
			AverageEntry:     num(p.AverageEntryPrice),
			UnrealizedPnL:    num(p.UnrealizedPnL),
			Leverage:         num(p.Leverage),
			LiquidationPrice: num(p.LiquidationPrice),
			Status:           p.Status,
		})
	}
	return out, nil
}

type marginRequest struct {
	Leverage   string `json:"leverage"`
	MarginType string `json:"margin_type"`
}

// SetLeverage sets the cross-margin leverage used for symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage float64) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v1/account/margin/" + url.PathEscape(symbol),
		route:  "/v1/account/margin/{symbol}",
		body: marginRequest{
			Leverage:   decimal.NewFromFloat(leverage).String(),
			MarginType: "CROSS",
		},
		auth: true,
	}, nil)
}
