package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/flashscalper/market"
)

// Exchange is the subset of a venue the execution layer drives.
type Exchange interface {
	Market(ctx context.Context, symbol string) (market.Rule, bool)
	MarketSummary(ctx context.Context, symbol string) (MarketSummary, error)
	SetLeverage(ctx context.Context, symbol string, leverage float64) error
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

type TimeInForce string

const (
	GTC      TimeInForce = "GTC"
	IOC      TimeInForce = "IOC"
	PostOnly TimeInForce = "POST_ONLY"
)

type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Size        string // already quantized
	Price       string // LIMIT only, already quantized
	ReduceOnly  bool
	TimeInForce TimeInForce // LIMIT only
}

// OrderResult is returned only for accepted orders; failures are errors.
type OrderResult struct {
	OrderID     string
	FilledPrice float64
	FilledSize  float64
	Fees        float64
	Paper       bool
}

type MarketSummary struct {
	Symbol       string
	MarkPrice    float64
	LastPrice    float64
	Bid          float64
	Ask          float64
	FundingRate  float64
	OpenInterest float64
	Volume24h    float64
}

type BookLevel struct {
	Price float64
	Size  float64
}

type Orderbook struct {
	Symbol    string
	Bids      []BookLevel
	Asks      []BookLevel
	UpdatedAt time.Time
}

type PublicTrade struct {
	ID        string
	Symbol    string
	Side      Side
	Price     float64
	Size      float64
	CreatedAt time.Time
}

type Account struct {
	Account           string
	AccountValue      float64
	FreeCollateral    float64
	TotalCollateral   float64
	InitialMargin     float64
	MaintenanceMargin float64
	Status            string
}

type Position struct {
	ID               string
	Symbol           string
	Side             string
	Size             float64
	AverageEntry     float64
	UnrealizedPnL    float64
	Leverage         float64
	LiquidationPrice float64
	Status           string
}

type Order struct {
	ID            string
	Symbol        string
	Side          Side
	Type          OrderType
	Size          float64
	Price         float64
	RemainingSize float64
	AvgFillPrice  float64
	Status        string
	CreatedAt     time.Time
}
